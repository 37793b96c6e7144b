package root

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/threadkeep/internal/api"
	"github.com/roach88/threadkeep/internal/durable"
	"github.com/roach88/threadkeep/internal/metrics"
	"github.com/roach88/threadkeep/internal/model"
)

// API is the server surface transactions call. *api.Client implements it.
type API interface {
	CreateConversation(ctx context.Context, req api.CreateConversationRequest) error
	CreateMessage(ctx context.Context, msg model.Message) error
	UpdateConversation(ctx context.Context, patch api.ConversationPatch, conversationID string) error
}

// Clock reads wall time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces entity ids.
type IDGenerator interface {
	Generate() string
}

// Notifier shows transient, non-fatal messages to the user.
type Notifier interface {
	Warn(ctx context.Context, msg string)
}

// Deps holds everything a Root needs. Only Durable is required.
type Deps struct {
	Durable *durable.Store
	// API is nil for an offline session; transactions stay local.
	API      API
	Clock    Clock
	IDs      IDGenerator
	Notifier Notifier
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// MemoSize bounds each memoized view. Zero uses entity.DefaultMemoSize.
	MemoSize int
}

// SystemClock is the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Warn logs msg at warn level.
func (n LogNotifier) Warn(ctx context.Context, msg string) {
	l := n.Logger
	if l == nil {
		l = slog.Default()
	}
	l.WarnContext(ctx, msg)
}
