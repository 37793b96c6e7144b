package entity

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/threadkeep/internal/durable"
	"github.com/roach88/threadkeep/internal/model"
)

// fakeBackend is an in-memory Backend with failure injection.
type fakeBackend struct {
	mu      sync.Mutex
	rows    map[model.Kind]map[string]durable.Record
	putErr  error
	readErr error
	puts    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rows: make(map[model.Kind]map[string]durable.Record)}
}

func (b *fakeBackend) ReadAll(_ context.Context, kind model.Kind) ([]durable.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return nil, b.readErr
	}
	out := []durable.Record{}
	for _, r := range b.rows[kind] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *fakeBackend) Put(_ context.Context, kind model.Kind, recs ...durable.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	if b.putErr != nil {
		return b.putErr
	}
	if b.rows[kind] == nil {
		b.rows[kind] = make(map[string]durable.Record)
	}
	for _, r := range recs {
		b.rows[kind][r.ID] = r
	}
	return nil
}

func (b *fakeBackend) Delete(_ context.Context, kind model.Kind, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rows[kind], id)
	return nil
}

func (b *fakeBackend) Clear(_ context.Context, kind model.Kind) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rows, kind)
	return nil
}

func (b *fakeBackend) row(kind model.Kind, id string) (durable.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rows[kind][id]
	return r, ok
}

func (b *fakeBackend) setPutErr(err error) {
	b.mu.Lock()
	b.putErr = err
	b.mu.Unlock()
}

func openDurable(t *testing.T) *durable.Store {
	t.Helper()
	s, err := durable.Open(filepath.Join(t.TempDir(), "entity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func flush(t *testing.T, f interface{ Flush(context.Context) error }) {
	t.Helper()
	require.NoError(t, f.Flush(context.Background()))
}
