package root

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/threadkeep/internal/model"
)

func TestNew_RequiresDurable(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestMyConversation(t *testing.T) {
	f := newFixture(t)
	r := f.root

	_, ok := r.MyConversation("c1", "u1")
	assert.False(t, ok, "absent before anything exists")

	require.NoError(t, r.Conversations().Upsert(model.Conversation{ID: "c1", Title: "Trip"}))
	_, ok = r.MyConversation("c1", "u1")
	assert.False(t, ok, "absent without a member record")

	require.NoError(t, r.Members().Upsert(model.Member{
		ID: "m1", ConversationID: "c1", UserID: "u1",
		LLMsSelected: []string{"gpt"}, MessageBranches: map[string]bool{"x": true},
	}))
	view, ok := r.MyConversation("c1", "u1")
	require.True(t, ok)
	assert.Equal(t, "Trip", view.Title)
	assert.Equal(t, "m1", view.MemberID)
	assert.Equal(t, []string{"gpt"}, view.LLMsSelected)
	assert.Equal(t, map[string]bool{"x": true}, view.MessageBranches)

	require.NoError(t, r.Conversations().Upsert(model.Conversation{ID: "c1", Title: "Renamed"}))
	view, _ = r.MyConversation("c1", "u1")
	assert.Equal(t, "Renamed", view.Title, "conversation change invalidates")

	_, err := r.Members().Merge("m1", []byte(`{"id":"m1","llmsSelected":["claude"]}`))
	require.NoError(t, err)
	view, _ = r.MyConversation("c1", "u1")
	assert.Equal(t, []string{"claude"}, view.LLMsSelected, "member change invalidates")

	_, err = r.Members().Merge("m1", []byte(`{"id":"m1","llmsSelected":["gpt","claude","gpt",""]}`))
	require.NoError(t, err)
	view, _ = r.MyConversation("c1", "u1")
	assert.Equal(t, []string{"claude", "gpt"}, view.LLMsSelected, "synced selection is a set")

	view.MessageBranches["x"] = false
	again, _ := r.MyConversation("c1", "u1")
	assert.True(t, again.MessageBranches["x"], "views are copies")

	r.Members().Remove("m1")
	_, ok = r.MyConversation("c1", "u1")
	assert.False(t, ok)
}

func TestMessageTree(t *testing.T) {
	f := newFixture(t)
	f.seedMessage(t, human("A", "c1", "u1", "", t0))
	f.seedMessage(t, llm("B", "c1", "A", t0.Add(time.Minute)))
	f.seedMessage(t, llm("C", "c1", "A", t0.Add(2*time.Minute)))
	f.seedMessage(t, human("D", "c1", "u1", "B", t0.Add(3*time.Minute)))
	f.seedMessage(t, human("X", "c2", "u1", "", t0))

	roots := f.root.MessageTree("c1")
	require.Len(t, roots, 1)
	assert.Equal(t, "A", roots[0].ID())
	require.Len(t, roots[0].Replies, 2)
	assert.Equal(t, "B", roots[0].Replies[0].ID())
	assert.Equal(t, "C", roots[0].Replies[1].ID())
	require.Len(t, roots[0].Replies[0].Replies, 1)
	assert.Equal(t, "D", roots[0].Replies[0].Replies[0].ID())

	assert.Same(t, roots[0], f.root.MessageTree("c1")[0], "memoized")

	f.seedMessage(t, human("Y", "c2", "u1", "X", t0.Add(time.Minute)))
	assert.Same(t, roots[0], f.root.MessageTree("c1")[0], "other conversation does not invalidate")

	f.seedMessage(t, human("E", "c1", "u1", "D", t0.Add(4*time.Minute)))
	fresh := f.root.MessageTree("c1")
	assert.NotSame(t, roots[0], fresh[0])
	assert.Equal(t, "E", fresh[0].Replies[0].Replies[0].Replies[0].ID())
}

func TestConversationsForUser(t *testing.T) {
	f := newFixture(t)
	r := f.root

	require.NoError(t, r.Conversations().UpsertMany([]model.Conversation{
		{ID: "old", Modified: t0},
		{ID: "new", Modified: t0.Add(time.Hour)},
	}))
	require.NoError(t, r.Members().Upsert(model.Member{
		ID: "m1", ConversationID: "old", UserID: "u1", Hidden: true, LLMsSelected: []string{"gpt"},
	}))

	rows := r.ConversationsForUser("u1")
	require.Len(t, rows, 2)

	assert.Equal(t, "new", rows[0].ID)
	assert.False(t, rows[0].Hidden, "no member yet: not hidden")
	assert.Empty(t, rows[0].LLMsSelected, "no member yet: no models")

	assert.Equal(t, "old", rows[1].ID)
	assert.True(t, rows[1].Hidden)
	assert.Equal(t, []string{"gpt"}, rows[1].LLMsSelected)
}

func TestDailyLLMResponseCount(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(t0.Add(2 * time.Hour))

	f.seedMessage(t, human("u-msg", "c1", "U", "", t0))
	f.seedMessage(t, human("v-msg", "c1", "V", "", t0))
	f.seedMessage(t, llm("reply-u", "c1", "u-msg", t0.Add(time.Hour)))
	f.seedMessage(t, llm("reply-v", "c1", "v-msg", t0.Add(time.Hour)))

	assert.Equal(t, 1, f.root.DailyLLMResponseCount("U"))
	assert.Equal(t, 1, f.root.DailyLLMResponseCount("V"))
	assert.Equal(t, 0, f.root.DailyLLMResponseCount("W"))
}

func TestDailyLLMResponseCount_StrictWindow(t *testing.T) {
	f := newFixture(t)
	f.seedMessage(t, human("q", "c1", "U", "", t0))
	f.seedMessage(t, llm("a", "c1", "q", t0.Add(time.Hour)))
	// Unknown-model messages count as model-authored.
	f.seedMessage(t, model.Message{ID: "sys", ConversationID: "c1", ReplyToID: model.Ptr("q"), Created: t0.Add(2 * time.Hour)})
	// Human replies do not count.
	f.seedMessage(t, human("h", "c1", "V", "q", t0.Add(time.Hour)))

	f.clock.Set(t0.Add(3 * time.Hour))
	assert.Equal(t, 2, f.root.DailyLLMResponseCount("U"))

	f.clock.Set(t0.Add(time.Hour + DailyWindow))
	assert.Equal(t, 1, f.root.DailyLLMResponseCount("U"), "exactly 24h old is outside the window")

	f.clock.Set(t0.Add(2*time.Hour + DailyWindow))
	assert.Equal(t, 0, f.root.DailyLLMResponseCount("U"))
}

func TestVisibleThread(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.root.Members().Upsert(model.Member{ID: "m1", ConversationID: "c1", UserID: "u1"}))
	f.seedMessage(t, human("A", "c1", "u1", "", t0))
	f.seedMessage(t, llm("B", "c1", "A", t0.Add(time.Minute)))
	f.seedMessage(t, llm("C", "c1", "A", t0.Add(2*time.Minute)))

	steps := f.root.VisibleThread("c1", "u1")
	require.Len(t, steps, 1)
	assert.Len(t, steps[0].Pending, 2)

	_, err := f.root.SelectBranch(context.Background(), "c1", "u1", "C")
	require.NoError(t, err)

	steps = f.root.VisibleThread("c1", "u1")
	require.Len(t, steps, 2)
	assert.Equal(t, "C", steps[1].Node.ID())
	assert.Equal(t, 2, steps[1].Alternatives)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.root

	_, _, err := r.CreateConversation(ctx, CreateConversationInput{Title: "t", OwnerID: "u1"})
	require.NoError(t, err)
	_, err = r.CreateTag(TagInput{Title: "work", Color: "#00f"})
	require.NoError(t, err)
	require.NoError(t, f.db.SetSlot(ctx, "sync.last", "2024-01-01T00:00:00Z"))
	require.NoError(t, r.Flush(ctx))

	require.NoError(t, r.ClearAll(ctx))

	assert.Equal(t, 0, r.Conversations().Len())
	assert.Equal(t, 0, r.Members().Len())
	assert.Equal(t, 0, r.Tags().Len())
	assert.Empty(t, r.ConversationsForUser("u1"))

	for _, kind := range model.Kinds {
		n, err := f.db.Count(ctx, kind)
		require.NoError(t, err)
		assert.Zero(t, n, kind)
	}
	_, ok, err := f.db.GetSlot(ctx, "sync.last")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadFromDurable_RestoresSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	conv, _, err := f.root.CreateConversation(ctx, CreateConversationInput{Title: "kept", OwnerID: "u1"})
	require.NoError(t, err)
	_, err = f.root.CreateMessage(ctx, CreateMessageInput{ConversationID: conv.ID, AuthorID: "u1", Content: "hi"})
	require.NoError(t, err)
	f.root.Close()

	next, err := New(Deps{Durable: f.db, Clock: f.clock})
	require.NoError(t, err)
	t.Cleanup(next.Close)
	require.NoError(t, next.LoadFromDurable(ctx))

	view, ok := next.MyConversation(conv.ID, "u1")
	require.True(t, ok)
	assert.Equal(t, "kept", view.Title)
	assert.Len(t, next.MessageTree(conv.ID), 1)
	assert.Empty(t, next.PersistenceErrors())
}
