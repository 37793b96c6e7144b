package entity

import (
	"cmp"
	"slices"

	"github.com/roach88/threadkeep/internal/model"
)

// TagStore caches local tags.
type TagStore struct {
	*Store[model.Tag]
	search *Memo[string, []model.Tag]
}

// NewTagStore creates the tag store.
func NewTagStore(backend Backend, memoSize int, opts ...Option) *TagStore {
	s := &TagStore{
		Store:  NewStore[model.Tag](model.KindTag, backend, opts...),
		search: NewMemo[string, []model.Tag](memoSize),
	}
	s.Subscribe(func(Change[model.Tag]) { s.search.Purge() })
	return s
}

// Search returns tags whose title contains query, ignoring case, sorted by
// title then id. An empty query lists every tag.
func (s *TagStore) Search(query string) []model.Tag {
	return cloneAll(s.search.Get(query, func() []model.Tag {
		match := matcher(query)
		tags := s.Filter(func(t model.Tag) bool { return match(t.Title) })
		slices.SortStableFunc(tags, func(a, b model.Tag) int {
			return cmp.Or(cmp.Compare(fold(a.Title), fold(b.Title)), cmp.Compare(a.ID, b.ID))
		})
		return tags
	}))
}
