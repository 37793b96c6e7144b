package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/threadkeep/internal/entity"
	"github.com/roach88/threadkeep/internal/metrics"
	"github.com/roach88/threadkeep/internal/model"
)

// Replica is the set of stores deltas are applied to. *root.Root
// implements it.
type Replica interface {
	Users() *entity.UserStore
	Conversations() *entity.ConversationStore
	Members() *entity.MemberStore
	Messages() *entity.MessageStore
	Flush(ctx context.Context) error
	PersistenceErrors() []error
	ClearPersistenceErrors()
}

// Applier merges decoded deltas into the replica.
type Applier struct {
	replica Replica
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewApplier creates an applier. m and logger may be nil.
func NewApplier(replica Replica, m *metrics.Metrics, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{replica: replica, metrics: m, logger: logger}
}

// Apply merges d into its store. Applying the same delta again leaves the
// store unchanged.
func (a *Applier) Apply(d model.Delta, source Source) error {
	var err error
	switch d := d.(type) {
	case model.ConversationDelta:
		_, err = a.replica.Conversations().Merge(d.EntityID(), d.Patch())
	case model.MessageDelta:
		_, err = a.replica.Messages().Merge(d.EntityID(), d.Patch())
	case model.MemberDelta:
		_, err = a.replica.Members().Merge(d.EntityID(), d.Patch())
	case model.UserDelta:
		_, err = a.replica.Users().Merge(d.EntityID(), d.Patch())
	default:
		// The Delta interface is sealed; only a new kind added to model
		// without a case here can reach this.
		panic(fmt.Sprintf("syncer: unhandled delta type %T", d))
	}
	if err != nil {
		return fmt.Errorf("apply %s %s: %w", d.Kind(), d.EntityID(), err)
	}
	a.metrics.DeltaApplied(string(d.Kind()), string(source))
	return nil
}

// Ingest decodes one wire frame and applies it. Failures are logged,
// counted and returned; the caller moves on to the next frame.
func (a *Applier) Ingest(data []byte, source Source) error {
	d, err := model.DecodeDelta(data)
	if err == nil {
		err = a.Apply(d, source)
	}
	if err != nil {
		a.metrics.IngestFailed(string(source))
		a.logger.Warn("dropping sync delta", "source", source, "error", err)
		return err
	}
	return nil
}
