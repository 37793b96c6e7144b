package entity

import "github.com/roach88/threadkeep/internal/model"

// MemberStore caches conversation memberships.
type MemberStore struct {
	*Store[model.Member]
	byConversation *Memo[string, []model.Member]
	byUser         *Memo[string, map[string]model.Member]
}

// NewMemberStore creates the member store.
func NewMemberStore(backend Backend, memoSize int, opts ...Option) *MemberStore {
	s := &MemberStore{
		Store:          NewStore[model.Member](model.KindMember, backend, opts...),
		byConversation: NewMemo[string, []model.Member](memoSize),
		byUser:         NewMemo[string, map[string]model.Member](memoSize),
	}
	s.Subscribe(s.invalidate)
	return s
}

func (s *MemberStore) invalidate(c Change[model.Member]) {
	if c.Op == OpReset {
		s.byConversation.Purge()
		s.byUser.Purge()
		return
	}
	for _, m := range touched(c) {
		s.byConversation.Forget(m.ConversationID)
		s.byUser.Forget(m.UserID)
	}
}

// ByConversation returns the members of one conversation ordered by id.
func (s *MemberStore) ByConversation(conversationID string) []model.Member {
	return cloneAll(s.byConversation.Get(conversationID, func() []model.Member {
		return s.Filter(func(m model.Member) bool { return m.ConversationID == conversationID })
	}))
}

// ForUser returns userID's member record in a conversation. When more than
// one record exists for the pair, the one with the lowest id wins.
func (s *MemberStore) ForUser(conversationID, userID string) (model.Member, bool) {
	for _, m := range s.ByConversation(conversationID) {
		if m.UserID == userID {
			return m.Clone(), true
		}
	}
	return model.Member{}, false
}

// ByUser returns userID's member records keyed by conversation id.
func (s *MemberStore) ByUser(userID string) map[string]model.Member {
	cached := s.byUser.Get(userID, func() map[string]model.Member {
		out := make(map[string]model.Member)
		// Filter is ordered by id, so the first record per conversation wins.
		for _, m := range s.Filter(func(m model.Member) bool { return m.UserID == userID }) {
			if _, seen := out[m.ConversationID]; !seen {
				out[m.ConversationID] = m
			}
		}
		return out
	})

	out := make(map[string]model.Member, len(cached))
	for k, m := range cached {
		out[k] = m.Clone()
	}
	return out
}

// touched returns the entity values a change affects.
func touched[T any](c Change[T]) []T {
	var out []T
	if c.HadOld {
		out = append(out, c.Old)
	}
	if c.Op == OpPut {
		out = append(out, c.New)
	}
	return out
}
