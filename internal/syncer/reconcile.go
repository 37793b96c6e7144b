package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/threadkeep/internal/metrics"
)

// CursorSlot is the durable slot holding the server time of the last
// completed reconcile.
const CursorSlot = "sync.last"

// Bootstrapper fetches every delta changed since a point in time. A nil
// since requests a full snapshot. *api.Client implements it.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, since *time.Time) ([]json.RawMessage, error)
}

// Cursor persists the reconcile cursor. *durable.Store implements it.
type Cursor interface {
	GetSlot(ctx context.Context, key string) (string, bool, error)
	SetSlot(ctx context.Context, key, value string) error
	DeleteSlot(ctx context.Context, key string) error
}

// submitFunc hands frames to the apply loop and returns once all of them
// have been applied.
type submitFunc func(ctx context.Context, frames []json.RawMessage) error

// Reconciler pulls the changes missed by the push channel. The cursor only
// advances after the pulled deltas are applied and flushed, so a crash
// mid-reconcile re-fetches the same window on restart.
type Reconciler struct {
	api     Bootstrapper
	cursor  Cursor
	submit  submitFunc
	replica Replica
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Reconcile runs one pull: read cursor, fetch, apply, flush, store cursor.
func (r *Reconciler) Reconcile(ctx context.Context) (err error) {
	started := r.now()
	defer func() { r.metrics.Reconciled(r.now().Sub(started), err) }()

	since, err := r.since(ctx)
	if err != nil {
		return err
	}

	frames, err := r.api.Bootstrap(ctx, since)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	// Failures recorded from here on belong to this window. Any earlier
	// window that failed also held the cursor, so it is fetched again now.
	r.replica.ClearPersistenceErrors()
	if err := r.submit(ctx, frames); err != nil {
		return err
	}
	if err := r.replica.Flush(ctx); err != nil {
		return fmt.Errorf("flush before cursor advance: %w", err)
	}
	if errs := r.replica.PersistenceErrors(); len(errs) > 0 {
		return fmt.Errorf("sync cursor held: %w", errors.Join(errs...))
	}

	// The cursor is the time the request started, so changes made while
	// it was in flight fall inside the next window.
	if err := r.cursor.SetSlot(ctx, CursorSlot, started.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("store sync cursor: %w", err)
	}
	r.logger.Debug("reconciled", "deltas", len(frames), "since", since)
	return nil
}

// since loads the cursor. An unreadable value is deleted and falls back to
// a full snapshot.
func (r *Reconciler) since(ctx context.Context) (*time.Time, error) {
	raw, ok, err := r.cursor.GetSlot(ctx, CursorSlot)
	if err != nil {
		return nil, fmt.Errorf("load sync cursor: %w", err)
	}
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		r.logger.Warn("discarding malformed sync cursor", "value", raw, "error", err)
		if err := r.cursor.DeleteSlot(ctx, CursorSlot); err != nil {
			return nil, fmt.Errorf("discard sync cursor: %w", err)
		}
		return nil, nil
	}
	return &t, nil
}
