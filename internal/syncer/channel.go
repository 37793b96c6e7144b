package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/threadkeep/internal/metrics"
)

// ErrClosed is returned when frames are submitted after Close.
var ErrClosed = errors.New("sync channel closed")

// Config wires a Channel.
type Config struct {
	Replica Replica
	API     Bootstrapper
	Cursor  Cursor

	// Push configures the WebSocket channel. A zero URL disables push and
	// the channel runs on polling alone.
	Push PushConfig

	// PollInterval is the reconcile period. Zero disables periodic polling;
	// ReconcileNow still works.
	PollInterval time.Duration

	Now     func() time.Time
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Channel drives both sync channels into a single ordered apply loop.
//
// The apply loop starts in New and stops in Close. Run adds the push
// connection and periodic polling on top of it.
type Channel struct {
	applier      *Applier
	reconciler   *Reconciler
	push         *PushConn
	queue        *deltaQueue
	pollInterval time.Duration
	logger       *slog.Logger

	kick chan struct{}

	// reconcileMu serializes pulls so the cursor moves monotonically.
	reconcileMu sync.Mutex

	done chan struct{}
	once sync.Once
}

// New creates the channel and starts its apply loop.
func New(cfg Config) (*Channel, error) {
	if cfg.Replica == nil {
		return nil, errors.New("syncer: replica is required")
	}
	if cfg.API == nil {
		return nil, errors.New("syncer: bootstrap API is required")
	}
	if cfg.Cursor == nil {
		return nil, errors.New("syncer: cursor store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Channel{
		applier:      NewApplier(cfg.Replica, cfg.Metrics, logger),
		queue:        newDeltaQueue(),
		pollInterval: cfg.PollInterval,
		logger:       logger,
		kick:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	c.reconciler = &Reconciler{
		api:     cfg.API,
		cursor:  cfg.Cursor,
		submit:  c.submitPoll,
		replica: cfg.Replica,
		now:     now,
		metrics: cfg.Metrics,
		logger:  logger.With("component", "reconcile"),
	}
	if cfg.Push.URL != "" {
		push := cfg.Push
		if push.Metrics == nil {
			push.Metrics = cfg.Metrics
		}
		if push.Logger == nil {
			push.Logger = logger
		}
		onConnected := push.OnConnected
		push.OnConnected = func() {
			// A fresh connection may have missed deltas while it was down.
			c.triggerReconcile()
			if onConnected != nil {
				onConnected()
			}
		}
		c.push = NewPushConn(push, c.deliverPush)
	}

	go c.applyLoop()
	return c, nil
}

// State reports the push connection state. Without push it is always
// disconnected.
func (c *Channel) State() State {
	if c.push == nil {
		return StateDisconnected
	}
	return c.push.State()
}

// Run keeps the replica in sync until ctx is cancelled. Connection
// failures are logged and retried; they never end Run.
func (c *Channel) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if c.push != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.push.Run(ctx); err != nil {
				c.logger.Error("push channel stopped, continuing on polling", "error", err)
			}
		}()
	}

	c.pollLoop(ctx)
	wg.Wait()
	return nil
}

// ReconcileNow runs one pull immediately and waits for it to finish.
func (c *Channel) ReconcileNow(ctx context.Context) error {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()
	return c.reconciler.Reconcile(ctx)
}

// Close stops the apply loop after draining queued frames.
func (c *Channel) Close() {
	c.once.Do(func() {
		c.queue.close()
		<-c.done
	})
}

func (c *Channel) pollLoop(ctx context.Context) {
	var tick <-chan time.Time
	if c.pollInterval > 0 {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.reconcileLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-c.kick:
		}
		c.reconcileLogged(ctx)
	}
}

func (c *Channel) reconcileLogged(ctx context.Context) {
	if err := c.ReconcileNow(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warn("reconcile failed", "error", err)
	}
}

func (c *Channel) triggerReconcile() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Channel) deliverPush(data []byte) {
	if !c.queue.enqueue(item{source: SourcePush, data: data}) {
		c.logger.Debug("dropping push frame after close")
	}
}

// submitPoll enqueues frames behind any pending push frames and waits for
// the apply loop to reach them.
func (c *Channel) submitPoll(ctx context.Context, frames []json.RawMessage) error {
	for _, f := range frames {
		if !c.queue.enqueue(item{source: SourcePoll, data: f}) {
			return ErrClosed
		}
	}
	barrier := make(chan struct{})
	if !c.queue.enqueue(item{barrier: barrier}) {
		return ErrClosed
	}
	select {
	case <-barrier:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("waiting for apply: %w", ctx.Err())
	}
}

// applyLoop is the only writer of remote changes into the stores.
func (c *Channel) applyLoop() {
	defer close(c.done)
	for {
		for {
			it, ok := c.queue.tryDequeue()
			if !ok {
				break
			}
			if it.barrier != nil {
				close(it.barrier)
				continue
			}
			// Failures are already logged and counted by Ingest.
			_ = c.applier.Ingest(it.data, it.source)
		}
		if c.queue.isClosed() && c.queue.len() == 0 {
			return
		}
		<-c.queue.wait()
	}
}
