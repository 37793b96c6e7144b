package entity

import (
	"cmp"
	"slices"

	"github.com/roach88/threadkeep/internal/model"
)

// MessageStore caches messages.
type MessageStore struct {
	*Store[model.Message]
	byConversation *Memo[string, []model.Message]
	search         *Memo[messageQuery, []model.Message]
}

type messageQuery struct {
	query          string
	conversationID string
}

// NewMessageStore creates the message store.
func NewMessageStore(backend Backend, memoSize int, opts ...Option) *MessageStore {
	s := &MessageStore{
		Store:          NewStore[model.Message](model.KindMessage, backend, opts...),
		byConversation: NewMemo[string, []model.Message](memoSize),
		search:         NewMemo[messageQuery, []model.Message](memoSize),
	}
	s.Subscribe(s.invalidate)
	return s
}

func (s *MessageStore) invalidate(c Change[model.Message]) {
	s.search.Purge()
	if c.Op == OpReset {
		s.byConversation.Purge()
		return
	}
	for _, m := range touched(c) {
		s.byConversation.Forget(m.ConversationID)
	}
}

// ByConversation returns the messages of one conversation, oldest first.
func (s *MessageStore) ByConversation(conversationID string) []model.Message {
	return cloneAll(s.byConversation.Get(conversationID, func() []model.Message {
		msgs := s.Filter(func(m model.Message) bool { return m.ConversationID == conversationID })
		slices.SortStableFunc(msgs, ByCreated)
		return msgs
	}))
}

// Search returns messages whose content contains query, ignoring case,
// oldest first. An empty conversationID searches every conversation.
func (s *MessageStore) Search(query, conversationID string) []model.Message {
	key := messageQuery{query: query, conversationID: conversationID}
	return cloneAll(s.search.Get(key, func() []model.Message {
		match := matcher(query)
		msgs := s.Filter(func(m model.Message) bool {
			if conversationID != "" && m.ConversationID != conversationID {
				return false
			}
			return match(m.Content)
		})
		slices.SortStableFunc(msgs, ByCreated)
		return msgs
	}))
}

// ByCreated orders messages by creation time, then id.
func ByCreated(a, b model.Message) int {
	return cmp.Or(a.Created.Compare(b.Created), cmp.Compare(a.ID, b.ID))
}
