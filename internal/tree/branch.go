package tree

import (
	"errors"
	"fmt"
	"maps"
)

// ErrNotSibling is returned by Select when the chosen id is not in the
// sibling group.
var ErrNotSibling = errors.New("message is not in the sibling group")

// Resolution is the outcome of resolving one sibling group.
//
// At most one of Shown and Choices is set. Both are empty for a group with
// no siblings.
type Resolution struct {
	// Shown is the sibling to display.
	Shown *Node
	// Choices lists every sibling when the viewer must pick one.
	Choices []*Node
}

// NeedsChoice reports whether the group is an unresolved branch point.
func (r Resolution) NeedsChoice() bool {
	return len(r.Choices) > 0
}

// Resolve picks the sibling to display.
//
// A single sibling is shown with no choice. Among several, the one sibling
// explicitly marked true in branches is shown; with none or more than one
// marked, every sibling is offered as a choice.
func Resolve(siblings []*Node, branches map[string]bool) Resolution {
	switch len(siblings) {
	case 0:
		return Resolution{}
	case 1:
		return Resolution{Shown: siblings[0]}
	}

	var shown *Node
	marked := 0
	for _, s := range siblings {
		if branches[s.ID()] {
			shown = s
			marked++
		}
	}
	if marked == 1 {
		return Resolution{Shown: shown}
	}
	return Resolution{Choices: append([]*Node(nil), siblings...)}
}

// Select returns a copy of branches with chosenID shown and every other
// sibling hidden. Entries for messages outside the group are kept. branches
// is not modified.
func Select(branches map[string]bool, siblings []*Node, chosenID string) (map[string]bool, error) {
	found := false
	for _, s := range siblings {
		if s.ID() == chosenID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("select %s: %w", chosenID, ErrNotSibling)
	}

	next := maps.Clone(branches)
	if next == nil {
		next = make(map[string]bool, len(siblings))
	}
	for _, s := range siblings {
		next[s.ID()] = s.ID() == chosenID
	}
	return next, nil
}
