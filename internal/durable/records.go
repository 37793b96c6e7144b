package durable

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/threadkeep/internal/model"
)

// Record is one persisted entity. Data is the entity's JSON encoding.
type Record struct {
	ID             string
	ConversationID string
	Data           []byte
}

// ReadAll returns every record in the collection ordered by id.
// Returns an empty slice (not nil) for an empty or new collection.
func (s *Store) ReadAll(ctx context.Context, kind model.Kind) ([]Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("read all: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, conversation_id, data
		FROM %s
		ORDER BY id COLLATE BINARY ASC
	`, table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return scanRecords(rows, table)
}

// ReadByConversation returns the records of one conversation, using the
// conversation_id index.
func (s *Store) ReadByConversation(ctx context.Context, kind model.Kind, conversationID string) ([]Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("read by conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, conversation_id, data
		FROM %s
		WHERE conversation_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, table), conversationID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return scanRecords(rows, table)
}

// Put upserts records in a single transaction. Writing an existing id
// replaces the stored row.
func (s *Store) Put(ctx context.Context, kind model.Kind, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	table, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put %s: begin tx: %w", table, err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, table))
	if err != nil {
		return fmt.Errorf("put %s: prepare: %w", table, err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("put %s: empty id", table)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.ConversationID, string(r.Data), now); err != nil {
			return fmt.Errorf("put %s %s: %w", table, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put %s: commit: %w", table, err)
	}
	return nil
}

// Delete removes one record. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, kind model.Kind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id); err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return nil
}

// Clear removes every record in a collection.
func (s *Store) Clear(ctx context.Context, kind model.Kind) error {
	table, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}

// ClearAll empties every collection and every slot in one transaction.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear all: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, kind := range model.Kinds {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, tables[kind])); err != nil {
			return fmt.Errorf("clear all: %s: %w", tables[kind], err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM slots`); err != nil {
		return fmt.Errorf("clear all: slots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear all: commit: %w", err)
	}
	return nil
}

// Count returns the number of records in a collection.
func (s *Store) Count(ctx context.Context, kind model.Kind) (int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func scanRecords(rows *sql.Rows, table string) ([]Record, error) {
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r    Record
			data string
		)
		if err := rows.Scan(&r.ID, &r.ConversationID, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		r.Data = []byte(data)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return records, nil
}
