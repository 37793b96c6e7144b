package root

import (
	"strings"

	"github.com/roach88/threadkeep/internal/model"
)

// TagInput is the full set of editable tag fields.
type TagInput struct {
	Title string
	// Color is #rgb or #rrggbb; it is stored in long lower-case form.
	Color string
}

func (in TagInput) validate() (model.Tag, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Tag{}, invalidInput("title")
	}
	color, err := model.ParseColor(in.Color)
	if err != nil {
		return model.Tag{}, invalidField("color", err)
	}
	return model.Tag{Title: title, Color: color}, nil
}

// CreateTag stores a new tag. Tags never leave the local replica.
func (r *Root) CreateTag(in TagInput) (model.Tag, error) {
	tag, err := in.validate()
	if err != nil {
		return model.Tag{}, err
	}
	tag.ID = r.ids.Generate()
	if err := r.tags.Upsert(tag); err != nil {
		return model.Tag{}, err
	}
	r.logger.Debug("created tag", "tag_id", tag.ID)
	return tag, nil
}

// UpdateTag replaces the title and color of an existing tag.
func (r *Root) UpdateTag(id string, in TagInput) (model.Tag, error) {
	if _, ok := r.tags.Get(id); !ok {
		return model.Tag{}, unknownTag(id)
	}
	tag, err := in.validate()
	if err != nil {
		return model.Tag{}, err
	}
	tag.ID = id
	if err := r.tags.Upsert(tag); err != nil {
		return model.Tag{}, err
	}
	r.logger.Debug("updated tag", "tag_id", id)
	return tag, nil
}

// DeleteTag removes a tag.
func (r *Root) DeleteTag(id string) error {
	if _, ok := r.tags.Get(id); !ok {
		return unknownTag(id)
	}
	r.tags.Remove(id)
	r.logger.Debug("deleted tag", "tag_id", id)
	return nil
}
