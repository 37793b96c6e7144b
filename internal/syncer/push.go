package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/roach88/threadkeep/internal/metrics"
)

// State is the push connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

var allStates = []string{
	string(StateDisconnected),
	string(StateConnecting),
	string(StateConnected),
	string(StateReconnecting),
}

// ErrGaveUp is returned by PushConn.Run once the reconnect attempts are
// exhausted.
var ErrGaveUp = errors.New("push connection: reconnect attempts exhausted")

// maxFrameSize bounds a single inbound frame.
const maxFrameSize = 4 << 20

// PushConfig configures the push connection.
type PushConfig struct {
	URL   string
	Token string

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // 0 retries forever

	// PingInterval enables keepalive pings when positive.
	PingInterval time.Duration

	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// OnConnected runs after every successful dial.
	OnConnected func()
}

// PushConn holds the long-lived WebSocket that streams deltas from the
// server. Each text frame is one sync delta and is handed to deliver
// unparsed.
type PushConn struct {
	cfg     PushConfig
	deliver func(data []byte)
	recon   *reconnector
	logger  *slog.Logger

	mu    sync.Mutex
	state State
}

// NewPushConn creates a disconnected push connection.
func NewPushConn(cfg PushConfig, deliver func(data []byte)) *PushConn {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &PushConn{
		cfg:     cfg,
		deliver: deliver,
		recon:   newReconnector(cfg.BaseDelay, cfg.MaxDelay, cfg.MaxAttempts),
		logger:  logger.With("component", "push"),
		state:   StateDisconnected,
	}
	cfg.Metrics.SetConnectionState(string(StateDisconnected), allStates)
	return p
}

// State returns the current connection state.
func (p *PushConn) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PushConn) setState(s State) {
	p.mu.Lock()
	changed := p.state != s
	p.state = s
	p.mu.Unlock()
	if changed {
		p.cfg.Metrics.SetConnectionState(string(s), allStates)
		p.logger.Debug("push state", "state", s)
	}
}

// Run connects and streams frames until ctx is done, reconnecting with
// backoff after every failure. It returns nil when ctx is cancelled and
// ErrGaveUp when MaxAttempts is exhausted. Every Run starts a fresh
// backoff schedule.
func (p *PushConn) Run(ctx context.Context) error {
	defer p.setState(StateDisconnected)
	p.recon.reset()

	p.setState(StateConnecting)
	for {
		err := p.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Warn("push connection lost", "error", err)
		p.setState(StateDisconnected)

		if !p.recon.shouldReconnect() {
			return ErrGaveUp
		}
		delay := p.recon.nextDelay()
		p.setState(StateReconnecting)
		p.cfg.Metrics.Reconnecting()
		p.logger.Info("push reconnecting", "attempt", p.recon.attempts(), "delay", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// session dials once and reads until the connection fails.
func (p *PushConn) session(ctx context.Context) error {
	header := http.Header{}
	if p.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+p.cfg.Token)
	}
	conn, _, err := websocket.Dial(ctx, p.cfg.URL, &websocket.DialOptions{
		HTTPClient: p.cfg.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(maxFrameSize)

	p.setState(StateConnected)
	p.recon.markConnected()
	if p.cfg.OnConnected != nil {
		p.cfg.OnConnected()
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if p.cfg.PingInterval > 0 {
		go p.keepalive(connCtx, conn)
	}

	for {
		typ, data, err := conn.Read(connCtx)
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}
		if typ != websocket.MessageText {
			p.logger.Debug("ignoring binary frame", "bytes", len(data))
			continue
		}
		p.deliver(data)
	}
}

func (p *PushConn) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(p.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, p.cfg.PingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					conn.Close(websocket.StatusGoingAway, "ping timeout")
				}
				return
			}
		}
	}
}
