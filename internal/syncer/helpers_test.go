package syncer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/threadkeep/internal/durable"
	"github.com/roach88/threadkeep/internal/metrics"
	"github.com/roach88/threadkeep/internal/model"
	"github.com/roach88/threadkeep/internal/root"
	"github.com/roach88/threadkeep/internal/testutil"
)

var t0 = time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeBootstrap serves queued responses and records every since it saw.
type fakeBootstrap struct {
	mu        sync.Mutex
	responses [][]json.RawMessage
	err       error
	sinces    []*time.Time
}

func (f *fakeBootstrap) Bootstrap(_ context.Context, since *time.Time) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinces = append(f.sinces, since)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, nil
	}
	out := f.responses[0]
	f.responses = f.responses[1:]
	return out, nil
}

func (f *fakeBootstrap) queue(frames ...json.RawMessage) {
	f.mu.Lock()
	f.responses = append(f.responses, frames)
	f.mu.Unlock()
}

func (f *fakeBootstrap) calls() []*time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*time.Time(nil), f.sinces...)
}

type fixture struct {
	path    string
	durable *durable.Store
	root    *root.Root
	api     *fakeBootstrap
	clock   *testutil.FixedClock
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		path:    filepath.Join(t.TempDir(), "replica.db"),
		api:     &fakeBootstrap{},
		clock:   testutil.NewFixedClock(t0),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.open(t)
	return f
}

// open (re)opens the replica from the durable file.
func (f *fixture) open(t *testing.T) {
	t.Helper()
	d, err := durable.Open(f.path)
	require.NoError(t, err)
	r, err := root.New(root.Deps{Durable: d, Clock: f.clock, Logger: discard, Metrics: f.metrics})
	require.NoError(t, err)
	require.NoError(t, r.LoadFromDurable(t.Context()))
	f.durable, f.root = d, r
	t.Cleanup(f.shutdown)
}

func (f *fixture) shutdown() {
	if f.root == nil {
		return
	}
	f.root.Close()
	_ = f.durable.Close()
	f.root, f.durable = nil, nil
}

func (f *fixture) channel(t *testing.T, push PushConfig) *Channel {
	t.Helper()
	c, err := New(Config{
		Replica: f.root,
		API:     f.api,
		Cursor:  f.durable,
		Push:    push,
		Now:     f.clock.Now,
		Metrics: f.metrics,
		Logger:  discard,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func frame(t *testing.T, kind model.Kind, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	out, err := json.Marshal(map[string]any{"type": kind, "data": json.RawMessage(data)})
	require.NoError(t, err)
	return out
}

func conversationFrame(t *testing.T, id, title string) json.RawMessage {
	return frame(t, model.KindConversation, model.Conversation{ID: id, Title: title, OwnerID: "u1", Created: t0, Modified: t0})
}
