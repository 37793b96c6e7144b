package root

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/threadkeep/internal/api"
	"github.com/roach88/threadkeep/internal/durable"
	"github.com/roach88/threadkeep/internal/model"
	"github.com/roach88/threadkeep/internal/testutil"
)

var t0 = time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC)

type apiCall struct {
	op             string
	conversationID string
	patch          api.ConversationPatch
	message        model.Message
	create         api.CreateConversationRequest
}

// fakeAPI records calls and fails them with err.
type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
	err   error
}

func (f *fakeAPI) record(c apiCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeAPI) CreateConversation(_ context.Context, req api.CreateConversationRequest) error {
	return f.record(apiCall{op: "create_conversation", conversationID: req.Conversation.ID, create: req})
}

func (f *fakeAPI) CreateMessage(_ context.Context, msg model.Message) error {
	return f.record(apiCall{op: "create_message", conversationID: msg.ConversationID, message: msg})
}

func (f *fakeAPI) UpdateConversation(_ context.Context, patch api.ConversationPatch, conversationID string) error {
	return f.record(apiCall{op: "update_conversation", conversationID: conversationID, patch: patch})
}

func (f *fakeAPI) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

func (f *fakeAPI) last() apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Warn(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type fixture struct {
	root     *Root
	db       *durable.Store
	api      *fakeAPI
	clock    *testutil.FixedClock
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := durable.Open(filepath.Join(t.TempDir(), "root.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:       db,
		api:      &fakeAPI{},
		clock:    testutil.NewFixedClock(t0),
		notifier: &fakeNotifier{},
	}
	f.root, err = New(Deps{
		Durable:  db,
		API:      f.api,
		Clock:    f.clock,
		IDs:      testutil.NewSequenceGenerator("id"),
		Notifier: f.notifier,
	})
	require.NoError(t, err)
	t.Cleanup(f.root.Close)
	require.NoError(t, f.root.LoadFromDurable(context.Background()))
	return f
}

// seedMessage stores a message directly, as a sync delta would.
func (f *fixture) seedMessage(t *testing.T, m model.Message) {
	t.Helper()
	require.NoError(t, f.root.Messages().Upsert(m))
}

func human(id, conv, author, parent string, at time.Time) model.Message {
	m := model.Message{ID: id, ConversationID: conv, AuthorID: model.Ptr(author), Content: id, Created: at, Modified: at}
	if parent != "" {
		m.ReplyToID = model.Ptr(parent)
	}
	return m
}

func llm(id, conv, parent string, at time.Time) model.Message {
	m := model.Message{ID: id, ConversationID: conv, LLM: model.Ptr("gpt"), Content: id, Created: at, Modified: at}
	if parent != "" {
		m.ReplyToID = model.Ptr(parent)
	}
	return m
}
