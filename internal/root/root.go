package root

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/threadkeep/internal/durable"
	"github.com/roach88/threadkeep/internal/entity"
	"github.com/roach88/threadkeep/internal/metrics"
	"github.com/roach88/threadkeep/internal/model"
	"github.com/roach88/threadkeep/internal/tree"
)

// Root is one session's replica: the four entity stores plus the derived
// views over them.
//
// Thread-safety: all methods are safe for concurrent use.
type Root struct {
	durable  *durable.Store
	api      API
	clock    Clock
	ids      IDGenerator
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics

	users         *entity.UserStore
	conversations *entity.ConversationStore
	members       *entity.MemberStore
	messages      *entity.MessageStore
	tags          *entity.TagStore

	myConversations *entity.Memo[memberKey, myConversationResult]
	trees           *entity.Memo[string, []*tree.Node]
}

type memberKey struct {
	conversationID string
	userID         string
}

type myConversationResult struct {
	view MyConversation
	ok   bool
}

// New creates a Root over deps.Durable. Call LoadFromDurable before first
// use and Close at shutdown; the durable store stays open.
func New(deps Deps) (*Root, error) {
	if deps.Durable == nil {
		return nil, errors.New("root: durable store is required")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.IDs == nil {
		deps.IDs = UUIDv7Generator{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{Logger: deps.Logger}
	}

	opts := []entity.Option{entity.WithLogger(deps.Logger), entity.WithMetrics(deps.Metrics)}
	r := &Root{
		durable:  deps.Durable,
		api:      deps.API,
		clock:    deps.Clock,
		ids:      deps.IDs,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		metrics:  deps.Metrics,

		users:         entity.NewUserStore(deps.Durable, deps.MemoSize, opts...),
		conversations: entity.NewConversationStore(deps.Durable, deps.MemoSize, opts...),
		members:       entity.NewMemberStore(deps.Durable, deps.MemoSize, opts...),
		messages:      entity.NewMessageStore(deps.Durable, deps.MemoSize, opts...),
		tags:          entity.NewTagStore(deps.Durable, deps.MemoSize, opts...),

		myConversations: entity.NewMemo[memberKey, myConversationResult](deps.MemoSize),
		trees:           entity.NewMemo[string, []*tree.Node](deps.MemoSize),
	}

	r.conversations.Subscribe(r.onConversation)
	r.members.Subscribe(r.onMember)
	r.messages.Subscribe(r.onMessage)
	return r, nil
}

// Users returns the user store.
func (r *Root) Users() *entity.UserStore { return r.users }

// Conversations returns the conversation store.
func (r *Root) Conversations() *entity.ConversationStore { return r.conversations }

// Members returns the member store.
func (r *Root) Members() *entity.MemberStore { return r.members }

// Messages returns the message store.
func (r *Root) Messages() *entity.MessageStore { return r.messages }

// Tags returns the local tag store.
func (r *Root) Tags() *entity.TagStore { return r.tags }

// Durable returns the durable store the replica persists to.
func (r *Root) Durable() *durable.Store { return r.durable }

// LoadFromDurable fills every store from the durable snapshot. Each store
// loads at most once; later calls return the same result.
func (r *Root) LoadFromDurable(ctx context.Context) error {
	return errors.Join(
		r.users.LoadFromDurable(ctx),
		r.conversations.LoadFromDurable(ctx),
		r.members.LoadFromDurable(ctx),
		r.messages.LoadFromDurable(ctx),
		r.tags.LoadFromDurable(ctx),
	)
}

// Flush waits for every pending durable write.
func (r *Root) Flush(ctx context.Context) error {
	return errors.Join(
		r.users.Flush(ctx),
		r.conversations.Flush(ctx),
		r.members.Flush(ctx),
		r.messages.Flush(ctx),
		r.tags.Flush(ctx),
	)
}

// ClearAll empties every store and purges the durable store, including the
// sync cursor. Used on sign-out.
func (r *Root) ClearAll(ctx context.Context) error {
	err := errors.Join(
		r.users.Reset(ctx),
		r.conversations.Reset(ctx),
		r.members.Reset(ctx),
		r.messages.Reset(ctx),
		r.tags.Reset(ctx),
	)
	if err != nil {
		return fmt.Errorf("clear stores: %w", err)
	}
	if err := r.durable.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear durable: %w", err)
	}
	r.logger.Info("cleared local replica")
	return nil
}

// PersistenceErrors returns the last persistence failure of each store
// that has one.
func (r *Root) PersistenceErrors() []error {
	var errs []error
	for _, err := range []error{r.users.Err(), r.conversations.Err(), r.members.Err(), r.messages.Err(), r.tags.Err()} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ClearPersistenceErrors empties every store's error slot.
func (r *Root) ClearPersistenceErrors() {
	r.users.ClearErr()
	r.conversations.ClearErr()
	r.members.ClearErr()
	r.messages.ClearErr()
	r.tags.ClearErr()
}

// Close drains pending durable writes and stops the store workers.
func (r *Root) Close() {
	r.users.Close()
	r.conversations.Close()
	r.members.Close()
	r.messages.Close()
	r.tags.Close()
}

func (r *Root) onConversation(c entity.Change[model.Conversation]) {
	if c.Op == entity.OpReset {
		r.myConversations.Purge()
		return
	}
	ids := make(map[string]bool, 2)
	if c.HadOld {
		ids[c.Old.ID] = true
	}
	if c.Op == entity.OpPut {
		ids[c.New.ID] = true
	}
	r.myConversations.Invalidate(func(k memberKey) bool { return ids[k.conversationID] })
}

func (r *Root) onMember(c entity.Change[model.Member]) {
	if c.Op == entity.OpReset {
		r.myConversations.Purge()
		return
	}
	if c.HadOld {
		r.myConversations.Forget(memberKey{c.Old.ConversationID, c.Old.UserID})
	}
	if c.Op == entity.OpPut {
		r.myConversations.Forget(memberKey{c.New.ConversationID, c.New.UserID})
	}
}

func (r *Root) onMessage(c entity.Change[model.Message]) {
	if c.Op == entity.OpReset {
		r.trees.Purge()
		return
	}
	if c.HadOld {
		r.trees.Forget(c.Old.ConversationID)
	}
	if c.Op == entity.OpPut {
		r.trees.Forget(c.New.ConversationID)
	}
}
