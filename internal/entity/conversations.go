package entity

import (
	"cmp"
	"slices"

	"github.com/roach88/threadkeep/internal/model"
)

// ConversationStore caches conversations.
type ConversationStore struct {
	*Store[model.Conversation]
	sorted *Memo[string, []model.Conversation]
}

// NewConversationStore creates the conversation store.
func NewConversationStore(backend Backend, memoSize int, opts ...Option) *ConversationStore {
	s := &ConversationStore{
		Store:  NewStore[model.Conversation](model.KindConversation, backend, opts...),
		sorted: NewMemo[string, []model.Conversation](memoSize),
	}
	s.Subscribe(func(Change[model.Conversation]) { s.sorted.Purge() })
	return s
}

// Sorted returns every conversation, most recently modified first.
func (s *ConversationStore) Sorted() []model.Conversation {
	return s.Search("")
}

// Search returns conversations whose title contains query, ignoring case,
// most recently modified first.
func (s *ConversationStore) Search(query string) []model.Conversation {
	return cloneAll(s.sorted.Get(query, func() []model.Conversation {
		match := matcher(query)
		convs := s.Filter(func(c model.Conversation) bool { return match(c.Title) })
		slices.SortStableFunc(convs, byModifiedDesc)
		return convs
	}))
}

func byModifiedDesc(a, b model.Conversation) int {
	return cmp.Or(b.Modified.Compare(a.Modified), cmp.Compare(a.ID, b.ID))
}
