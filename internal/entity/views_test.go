package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/threadkeep/internal/model"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ids[T model.Entity[T]](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Key()
	}
	return out
}

func TestConversationStore_SortedByModifiedDesc(t *testing.T) {
	s := NewConversationStore(newFakeBackend(), 16)
	t.Cleanup(s.Close)

	require.NoError(t, s.UpsertMany([]model.Conversation{
		{ID: "old", Modified: epoch},
		{ID: "new", Modified: epoch.Add(2 * time.Hour)},
		{ID: "mid-b", Modified: epoch.Add(time.Hour)},
		{ID: "mid-a", Modified: epoch.Add(time.Hour)},
	}))

	assert.Equal(t, []string{"new", "mid-a", "mid-b", "old"}, ids(s.Sorted()))

	require.NoError(t, s.Upsert(model.Conversation{ID: "old", Modified: epoch.Add(3 * time.Hour)}))
	assert.Equal(t, []string{"old", "new", "mid-a", "mid-b"}, ids(s.Sorted()), "memo invalidated by upsert")
}

func TestConversationStore_SearchIgnoresCase(t *testing.T) {
	s := NewConversationStore(newFakeBackend(), 16)
	t.Cleanup(s.Close)

	require.NoError(t, s.UpsertMany([]model.Conversation{
		{ID: "c1", Title: "Trip to STRASSE planning"},
		{ID: "c2", Title: "Groceries"},
	}))

	assert.Equal(t, []string{"c1"}, ids(s.Search("strasse")))
	assert.Equal(t, []string{"c1"}, ids(s.Search("  TRIP ")))
	assert.Empty(t, s.Search("nothing"))
	assert.Len(t, s.Search(""), 2)
}

func TestUserStore_Search(t *testing.T) {
	s := NewUserStore(newFakeBackend(), 16)
	t.Cleanup(s.Close)

	require.NoError(t, s.UpsertMany([]model.User{
		{ID: "u3", Name: "bob"},
		{ID: "u1", Name: "Alice"},
		{ID: "u2", Name: "ALBERT"},
	}))

	assert.Equal(t, []string{"u2", "u1"}, ids(s.Search("al")))
	assert.Equal(t, []string{"u2", "u1", "u3"}, ids(s.Search("")))

	s.Remove("u2")
	assert.Equal(t, []string{"u1"}, ids(s.Search("al")))
}

func TestTagStore_SearchAndPersist(t *testing.T) {
	backend := newFakeBackend()
	s := NewTagStore(backend, 16)
	t.Cleanup(s.Close)

	require.NoError(t, s.UpsertMany([]model.Tag{
		{ID: "t2", Title: "Work", Color: "#0000ff"},
		{ID: "t1", Title: "homework", Color: "#00ff00"},
		{ID: "t3", Title: "Travel", Color: "#ff0000"},
	}))

	assert.Equal(t, []string{"t1", "t3", "t2"}, ids(s.Search("")))
	assert.Equal(t, []string{"t1", "t2"}, ids(s.Search("WORK")))

	require.NoError(t, s.Upsert(model.Tag{ID: "t3", Title: "Work trips", Color: "#ff0000"}))
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids(s.Search("work")), "memo invalidated by upsert")

	flush(t, s)
	_, ok := backend.row(model.KindTag, "t3")
	assert.True(t, ok)
}

func TestMemberStore_ByConversationAndUser(t *testing.T) {
	s := NewMemberStore(newFakeBackend(), 16)
	t.Cleanup(s.Close)

	require.NoError(t, s.UpsertMany([]model.Member{
		{ID: "m2", ConversationID: "c1", UserID: "u2"},
		{ID: "m1", ConversationID: "c1", UserID: "u1"},
		{ID: "m3", ConversationID: "c2", UserID: "u1"},
	}))

	assert.Equal(t, []string{"m1", "m2"}, ids(s.ByConversation("c1")))

	byUser := s.ByUser("u1")
	require.Len(t, byUser, 2)
	assert.Equal(t, "m1", byUser["c1"].ID)
	assert.Equal(t, "m3", byUser["c2"].ID)

	m, ok := s.ForUser("c2", "u1")
	require.True(t, ok)
	assert.Equal(t, "m3", m.ID)

	_, ok = s.ForUser("c2", "u2")
	assert.False(t, ok)
}

func TestMemberStore_DuplicateMembershipLowestIDWins(t *testing.T) {
	s := NewMemberStore(newFakeBackend(), 16)
	t.Cleanup(s.Close)

	require.NoError(t, s.UpsertMany([]model.Member{
		{ID: "m9", ConversationID: "c1", UserID: "u1", Hidden: true},
		{ID: "m4", ConversationID: "c1", UserID: "u1"},
	}))

	m, ok := s.ForUser("c1", "u1")
	require.True(t, ok)
	assert.Equal(t, "m4", m.ID)
	assert.Equal(t, "m4", s.ByUser("u1")["c1"].ID)
}

func TestMemberStore_InvalidationFollowsMove(t *testing.T) {
	s := NewMemberStore(newFakeBackend(), 16)
	t.Cleanup(s.Close)

	require.NoError(t, s.Upsert(model.Member{ID: "m1", ConversationID: "c1", UserID: "u1"}))
	require.Len(t, s.ByConversation("c1"), 1)
	require.Empty(t, s.ByConversation("c2"))

	// Moving the record must invalidate both the old and new conversation.
	require.NoError(t, s.Upsert(model.Member{ID: "m1", ConversationID: "c2", UserID: "u1"}))
	assert.Empty(t, s.ByConversation("c1"))
	assert.Len(t, s.ByConversation("c2"), 1)
}

func TestMemberStore_ViewsReturnCopies(t *testing.T) {
	s := NewMemberStore(newFakeBackend(), 16)
	t.Cleanup(s.Close)
	require.NoError(t, s.Upsert(model.Member{ID: "m1", ConversationID: "c1", UserID: "u1", MessageBranches: map[string]bool{"x": true}}))

	view := s.ByConversation("c1")
	view[0].MessageBranches["x"] = false

	assert.True(t, s.ByConversation("c1")[0].MessageBranches["x"])
}

func TestMessageStore_ByConversationOldestFirst(t *testing.T) {
	s := NewMessageStore(newFakeBackend(), 16)
	t.Cleanup(s.Close)

	require.NoError(t, s.UpsertMany([]model.Message{
		{ID: "b", ConversationID: "c1", Created: epoch.Add(time.Minute)},
		{ID: "a", ConversationID: "c1", Created: epoch.Add(2 * time.Minute)},
		{ID: "z", ConversationID: "c1", Created: epoch},
		{ID: "y", ConversationID: "c1", Created: epoch},
		{ID: "o", ConversationID: "c2", Created: epoch},
	}))

	assert.Equal(t, []string{"y", "z", "b", "a"}, ids(s.ByConversation("c1")))

	s.Remove("z")
	assert.Equal(t, []string{"y", "b", "a"}, ids(s.ByConversation("c1")))
	assert.Equal(t, []string{"o"}, ids(s.ByConversation("c2")))
}

func TestMessageStore_Search(t *testing.T) {
	s := NewMessageStore(newFakeBackend(), 16)
	t.Cleanup(s.Close)

	require.NoError(t, s.UpsertMany([]model.Message{
		{ID: "m1", ConversationID: "c1", Content: "Hello World", Created: epoch},
		{ID: "m2", ConversationID: "c2", Content: "hello again", Created: epoch.Add(time.Minute)},
		{ID: "m3", ConversationID: "c1", Content: "bye", Created: epoch.Add(2 * time.Minute)},
	}))

	assert.Equal(t, []string{"m1", "m2"}, ids(s.Search("HELLO", "")))
	assert.Equal(t, []string{"m1"}, ids(s.Search("hello", "c1")))

	_, err := s.Merge("m3", []byte(`{"id":"m3","content":"hello, goodbye"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m3"}, ids(s.Search("hello", "c1")))
}

func TestMessageStore_ResetPurgesViews(t *testing.T) {
	s := NewMessageStore(openDurable(t), 16)
	t.Cleanup(s.Close)

	require.NoError(t, s.Upsert(model.Message{ID: "m1", ConversationID: "c1"}))
	require.Len(t, s.ByConversation("c1"), 1)

	require.NoError(t, s.Reset(t.Context()))
	assert.Empty(t, s.ByConversation("c1"))
}
