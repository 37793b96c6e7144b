package entity

import (
	"cmp"
	"slices"

	"github.com/roach88/threadkeep/internal/model"
)

// UserStore caches users.
type UserStore struct {
	*Store[model.User]
	search *Memo[string, []model.User]
}

// NewUserStore creates the user store.
func NewUserStore(backend Backend, memoSize int, opts ...Option) *UserStore {
	s := &UserStore{
		Store:  NewStore[model.User](model.KindUser, backend, opts...),
		search: NewMemo[string, []model.User](memoSize),
	}
	s.Subscribe(func(Change[model.User]) { s.search.Purge() })
	return s
}

// Search returns users whose name contains query, ignoring case, sorted by
// name then id.
func (s *UserStore) Search(query string) []model.User {
	return cloneAll(s.search.Get(query, func() []model.User {
		match := matcher(query)
		users := s.Filter(func(u model.User) bool { return match(u.Name) })
		slices.SortStableFunc(users, func(a, b model.User) int {
			return cmp.Or(cmp.Compare(fold(a.Name), fold(b.Name)), cmp.Compare(a.ID, b.ID))
		})
		return users
	}))
}
