package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/threadkeep/internal/durable"
	"github.com/roach88/threadkeep/internal/metrics"
	"github.com/roach88/threadkeep/internal/model"
)

// Backend is the durable collection a Store persists to.
// *durable.Store implements it.
type Backend interface {
	ReadAll(ctx context.Context, kind model.Kind) ([]durable.Record, error)
	Put(ctx context.Context, kind model.Kind, records ...durable.Record) error
	Delete(ctx context.Context, kind model.Kind, id string) error
	Clear(ctx context.Context, kind model.Kind) error
}

// Op identifies the change delivered to subscribers.
type Op int

const (
	// OpPut means one entity was inserted or replaced.
	OpPut Op = iota + 1
	// OpRemove means one entity was removed.
	OpRemove
	// OpReset means the cache contents were replaced wholesale (load or
	// reset). Old and New are zero.
	OpReset
)

// Change describes one cache mutation.
type Change[T any] struct {
	Op Op
	// Old is the previous value; valid only when HadOld is true.
	Old    T
	HadOld bool
	// New is the stored value for OpPut.
	New T
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the store logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records persistence failures on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Store is the reactive cache of one entity kind.
//
// Thread-safety: all methods are safe for concurrent use. A mutation and its
// write-behind enqueue happen under one lock, so durable write order matches
// cache order. Subscribers run synchronously on the mutating goroutine while
// the write lock is held, so no reader observes a change before every
// subscriber has seen it. A subscriber must not call back into the store it
// is subscribed to.
type Store[T model.Entity[T]] struct {
	kind    model.Kind
	backend Backend
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	items map[string]T

	subMu   sync.Mutex
	subs    map[int]func(Change[T])
	nextSub int

	errMu   sync.Mutex
	lastErr error

	loadOnce sync.Once
	loadErr  error

	wb *writeBehind
}

// NewStore creates a store for kind backed by backend and starts its
// write-behind worker. Call Close to stop it.
func NewStore[T model.Entity[T]](kind model.Kind, backend Backend, opts ...Option) *Store[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[T]{
		kind:    kind,
		backend: backend,
		logger:  o.logger.With("kind", string(kind)),
		metrics: o.metrics,
		items:   make(map[string]T),
		subs:    make(map[int]func(Change[T])),
	}
	s.wb = newWriteBehind(s.persist)
	return s
}

// Kind returns the entity kind this store holds.
func (s *Store[T]) Kind() model.Kind {
	return s.kind
}

// Upsert stores v, replacing any cached value with the same id. A typed value
// carries every field, so the merge over the previous value is a full
// replacement; use Merge for partial updates.
func (s *Store[T]) Upsert(v T) error {
	if v.Key() == "" {
		return fmt.Errorf("upsert %s: %w", s.kind, ErrEmptyID)
	}
	v = normalize(v.Clone())
	rec, err := s.encode(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, hadOld := s.items[v.Key()]
	s.items[v.Key()] = v
	s.wb.enqueue(persistOp{put: []record{rec}})
	s.notify(Change[T]{Op: OpPut, Old: old, HadOld: hadOld, New: v.Clone()})
	return nil
}

// UpsertMany stores every value with one bulk durable write. Values are
// validated first; on error nothing is stored.
func (s *Store[T]) UpsertMany(vs []T) error {
	if len(vs) == 0 {
		return nil
	}
	vals := make([]T, 0, len(vs))
	recs := make([]record, 0, len(vs))
	for _, v := range vs {
		if v.Key() == "" {
			return fmt.Errorf("upsert %s: %w", s.kind, ErrEmptyID)
		}
		v = normalize(v.Clone())
		rec, err := s.encode(v)
		if err != nil {
			return err
		}
		vals = append(vals, v)
		recs = append(recs, rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changes := make([]Change[T], 0, len(vals))
	for _, v := range vals {
		old, hadOld := s.items[v.Key()]
		s.items[v.Key()] = v
		changes = append(changes, Change[T]{Op: OpPut, Old: old, HadOld: hadOld, New: v.Clone()})
	}
	s.wb.enqueue(persistOp{put: recs})
	for _, c := range changes {
		s.notify(c)
	}
	return nil
}

// Merge applies a partial JSON patch over the cached entity with the given
// id (or over the zero value if none is cached) and stores the result.
// Applying the same patch twice yields the same state as applying it once.
func (s *Store[T]) Merge(id string, patch json.RawMessage) (T, error) {
	var zero T
	if id == "" {
		return zero, fmt.Errorf("merge %s: %w", s.kind, ErrEmptyID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, hadOld := s.items[id]
	next, err := model.Merge(old, patch)
	if err != nil {
		return zero, fmt.Errorf("merge %s %s: %w", s.kind, id, err)
	}
	if next.Key() != id {
		return zero, fmt.Errorf("merge %s %s: patch changes id to %q", s.kind, id, next.Key())
	}
	next = normalize(next)
	rec, err := s.encode(next)
	if err != nil {
		return zero, err
	}
	s.items[id] = next
	s.wb.enqueue(persistOp{put: []record{rec}})
	s.notify(Change[T]{Op: OpPut, Old: old, HadOld: hadOld, New: next.Clone()})
	return next.Clone(), nil
}

// Remove deletes the entity from the cache and, write-behind, from durable
// storage. Removing an unknown id only issues the durable delete.
func (s *Store[T]) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, hadOld := s.items[id]
	delete(s.items, id)
	s.wb.enqueue(persistOp{deleteID: id})
	if hadOld {
		s.notify(Change[T]{Op: OpRemove, Old: old, HadOld: true})
	}
}

// Get returns the cached entity.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return v.Clone(), true
}

// All returns every cached entity ordered by id.
func (s *Store[T]) All() []T {
	return s.Filter(func(T) bool { return true })
}

// Filter returns the cached entities matching keep, ordered by id.
func (s *Store[T]) Filter(keep func(T) bool) []T {
	s.mu.RLock()
	out := make([]T, 0, len(s.items))
	for _, v := range s.items {
		if keep(v) {
			out = append(out, v.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b T) int { return strings.Compare(a.Key(), b.Key()) })
	return out
}

// Len returns the number of cached entities.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// LoadFromDurable fills the cache from the durable snapshot. It runs once per
// store; later calls return the first call's result. An empty snapshot is a
// successful empty load. Rows that fail to decode are skipped and recorded
// in the error slot. Entities already cached are newer than the snapshot
// and are kept.
func (s *Store[T]) LoadFromDurable(ctx context.Context) error {
	s.loadOnce.Do(func() {
		s.loadErr = s.load(ctx)
	})
	return s.loadErr
}

func (s *Store[T]) load(ctx context.Context) error {
	recs, err := s.backend.ReadAll(ctx, s.kind)
	if err != nil {
		pe := &PersistenceError{Kind: s.kind, Op: "load", Err: err}
		s.fail(pe)
		return pe
	}

	loaded := 0
	s.mu.Lock()
	for _, r := range recs {
		var v T
		if err := json.Unmarshal(r.Data, &v); err != nil {
			s.logger.Warn("skipping undecodable durable row", "id", r.ID, "error", err)
			s.recordErr(&PersistenceError{Kind: s.kind, Op: "load", ID: r.ID, Err: err})
			continue
		}
		if v.Key() == "" {
			continue
		}
		if _, cached := s.items[v.Key()]; cached {
			continue
		}
		s.items[v.Key()] = normalize(v)
		loaded++
	}
	s.notify(Change[T]{Op: OpReset})
	s.mu.Unlock()

	s.logger.Debug("loaded from durable", "rows", len(recs), "loaded", loaded)
	return nil
}

// Reset empties the cache and clears the durable collection. Used on
// sign-out. The returned error is from flushing the clear; the cache is
// empty either way.
func (s *Store[T]) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.items = make(map[string]T)
	s.wb.enqueue(persistOp{clear: true})
	s.notify(Change[T]{Op: OpReset})
	s.mu.Unlock()

	return s.Flush(ctx)
}

// Subscribe registers fn for every change. The returned func unsubscribes.
func (s *Store[T]) Subscribe(fn func(Change[T])) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Flush waits until every persist enqueued before the call has completed.
func (s *Store[T]) Flush(ctx context.Context) error {
	return s.wb.flush(ctx)
}

// Close drains pending persists and stops the worker. The cache remains
// readable; later writes are cached but not persisted.
func (s *Store[T]) Close() {
	s.wb.close()
}

// Err returns the most recent persistence failure, or nil.
func (s *Store[T]) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// ClearErr empties the error slot.
func (s *Store[T]) ClearErr() {
	s.errMu.Lock()
	s.lastErr = nil
	s.errMu.Unlock()
}

func (s *Store[T]) notify(c Change[T]) {
	s.subMu.Lock()
	keys := make([]int, 0, len(s.subs))
	for id := range s.subs {
		keys = append(keys, id)
	}
	slices.Sort(keys)
	fns := make([]func(Change[T]), 0, len(keys))
	for _, id := range keys {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// normalizer is implemented by entities with a canonical stored form.
type normalizer[T any] interface {
	Normalize() T
}

// normalize puts v in its canonical form. Every path into the cache goes
// through it, so views never see a non-canonical value.
func normalize[T any](v T) T {
	if n, ok := any(v).(normalizer[T]); ok {
		return n.Normalize()
	}
	return v
}

func (s *Store[T]) encode(v T) (record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return record{}, fmt.Errorf("encode %s %s: %w", s.kind, v.Key(), err)
	}
	return record{id: v.Key(), conversationID: v.ConversationKey(), data: data}, nil
}

// persist runs on the write-behind worker.
func (s *Store[T]) persist(op persistOp) {
	ctx := context.Background()

	switch {
	case op.clear:
		if err := s.backend.Clear(ctx, s.kind); err != nil {
			s.fail(&PersistenceError{Kind: s.kind, Op: "clear", Err: err})
		}
	case op.deleteID != "":
		if err := s.backend.Delete(ctx, s.kind, op.deleteID); err != nil {
			s.fail(&PersistenceError{Kind: s.kind, Op: "delete", ID: op.deleteID, Err: err})
		}
	case len(op.put) > 0:
		recs := make([]durable.Record, len(op.put))
		for i, r := range op.put {
			recs[i] = durable.Record{ID: r.id, ConversationID: r.conversationID, Data: r.data}
		}
		if err := s.backend.Put(ctx, s.kind, recs...); err != nil {
			id := ""
			if len(recs) == 1 {
				id = recs[0].ID
			}
			s.fail(&PersistenceError{Kind: s.kind, Op: "put", ID: id, Err: err})
		}
	}
}

func (s *Store[T]) fail(pe *PersistenceError) {
	s.logger.Warn("durable write failed", "op", pe.Op, "id", pe.ID, "error", pe.Err)
	s.recordErr(pe)
}

func (s *Store[T]) recordErr(pe *PersistenceError) {
	s.metrics.PersistenceFailed(string(pe.Kind), pe.Op)
	s.errMu.Lock()
	s.lastErr = pe
	s.errMu.Unlock()
}

// cloneAll returns a deep copy of vs, so memoized views never share mutable
// state with callers.
func cloneAll[T model.Entity[T]](vs []T) []T {
	out := make([]T, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}
