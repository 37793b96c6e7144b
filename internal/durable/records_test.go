package durable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/threadkeep/internal/model"
)

func TestReadAll_EmptyCollection(t *testing.T) {
	s := createTestStore(t)

	recs, err := s.ReadAll(context.Background(), model.KindMessage)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestPut_InsertThenReplace(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Put(ctx, model.KindConversation, Record{ID: "c1", ConversationID: "c1", Data: []byte(`{"id":"c1","title":"a"}`)}))
	require.NoError(t, s.Put(ctx, model.KindConversation, Record{ID: "c1", ConversationID: "c1", Data: []byte(`{"id":"c1","title":"b"}`)}))

	recs, err := s.ReadAll(ctx, model.KindConversation)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.JSONEq(t, `{"id":"c1","title":"b"}`, string(recs[0].Data))
}

func TestPut_BulkIsOrderedByID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	err := s.Put(ctx, model.KindUser,
		Record{ID: "u3", Data: []byte(`{}`)},
		Record{ID: "u1", Data: []byte(`{}`)},
		Record{ID: "u2", Data: []byte(`{}`)},
	)
	require.NoError(t, err)

	recs, err := s.ReadAll(ctx, model.KindUser)
	require.NoError(t, err)
	ids := []string{}
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, ids)
}

func TestPut_EmptyIDRollsBackBatch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	err := s.Put(ctx, model.KindUser,
		Record{ID: "u1", Data: []byte(`{}`)},
		Record{ID: "", Data: []byte(`{}`)},
	)
	require.Error(t, err)

	n, err := s.Count(ctx, model.KindUser)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "batch must be atomic")
}

func TestPut_UnknownCollection(t *testing.T) {
	s := createTestStore(t)
	err := s.Put(context.Background(), model.Kind("tag"), Record{ID: "x"})
	assert.Error(t, err)
}

func TestReadByConversation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Put(ctx, model.KindMessage,
		Record{ID: "m1", ConversationID: "c1", Data: []byte(`{}`)},
		Record{ID: "m2", ConversationID: "c2", Data: []byte(`{}`)},
		Record{ID: "m3", ConversationID: "c1", Data: []byte(`{}`)},
	))

	recs, err := s.ReadByConversation(ctx, model.KindMessage, "c1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "m1", recs[0].ID)
	assert.Equal(t, "m3", recs[1].ID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Put(ctx, model.KindMember, Record{ID: "s1", Data: []byte(`{}`)}))
	require.NoError(t, s.Delete(ctx, model.KindMember, "s1"))
	require.NoError(t, s.Delete(ctx, model.KindMember, "missing"))

	n, err := s.Count(ctx, model.KindMember)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestClear_OnlyTouchesOneCollection(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Put(ctx, model.KindUser, Record{ID: "u1", Data: []byte(`{}`)}))
	require.NoError(t, s.Put(ctx, model.KindMessage, Record{ID: "m1", Data: []byte(`{}`)}))

	require.NoError(t, s.Clear(ctx, model.KindUser))

	n, _ := s.Count(ctx, model.KindUser)
	assert.Equal(t, 0, n)
	n, _ = s.Count(ctx, model.KindMessage)
	assert.Equal(t, 1, n)
}

func TestClearAll_RemovesRecordsAndSlots(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for _, kind := range model.Kinds {
		require.NoError(t, s.Put(ctx, kind, Record{ID: "x", Data: []byte(`{}`)}))
	}
	require.NoError(t, s.SetSlot(ctx, "sync.last", "2024-01-01T00:00:00Z"))

	require.NoError(t, s.ClearAll(ctx))

	for _, kind := range model.Kinds {
		n, err := s.Count(ctx, kind)
		require.NoError(t, err)
		assert.Equal(t, 0, n, "kind %s", kind)
	}
	_, ok, err := s.GetSlot(ctx, "sync.last")
	require.NoError(t, err)
	assert.False(t, ok)
}
