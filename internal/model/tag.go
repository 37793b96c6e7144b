package model

import (
	"fmt"
	"strings"
)

// Tag is a user-defined label kept only in the local replica.
type Tag struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Color is lower-case #rrggbb.
	Color string `json:"color"`
}

func (t Tag) Key() string             { return t.ID }
func (t Tag) ConversationKey() string { return "" }
func (t Tag) Clone() Tag              { return t }

// ParseColor accepts #rgb or #rrggbb in any case and returns the long
// lower-case form.
func ParseColor(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "#") {
		return "", fmt.Errorf("color %q: missing leading #", s)
	}
	hex := s[1:]
	for _, r := range hex {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", fmt.Errorf("color %q: not a hex digit %q", s, r)
		}
	}
	switch len(hex) {
	case 6:
		return s, nil
	case 3:
		return "#" + string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}), nil
	default:
		return "", fmt.Errorf("color %q: want 3 or 6 hex digits", s)
	}
}
