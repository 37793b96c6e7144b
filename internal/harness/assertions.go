package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/threadkeep/internal/model"
	"github.com/roach88/threadkeep/internal/tree"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against the replica and
// returns one message per failure.
func EvaluateAssertions(h *Harness, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if a.User == "" {
			a.User = h.user
		}
		var err error
		switch a.Type {
		case AssertTree:
			err = h.assertTree(a)
		case AssertThread:
			err = h.assertThread(a)
		case AssertConversations:
			err = h.assertConversations(a)
		case AssertDailyCount:
			err = h.assertDailyCount(a)
		case AssertEntity:
			err = h.assertEntity(a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// renderTree renders a conversation as userID sees it.
func (h *Harness) renderTree(conversationID, userID string) (string, error) {
	var branches map[string]bool
	if mc, ok := h.root.MyConversation(conversationID, userID); ok {
		branches = mc.MessageBranches
	}
	var buf bytes.Buffer
	if err := tree.Render(&buf, h.root.MessageTree(conversationID), branches); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (h *Harness) assertTree(a Assertion) error {
	got, err := h.renderTree(a.Conversation, a.User)
	if err != nil {
		return err
	}
	if strings.TrimSpace(got) != strings.TrimSpace(a.Text) {
		return &AssertionError{Type: a.Type, Expected: "\n" + a.Text, Actual: "\n" + got}
	}
	return nil
}

func (h *Harness) assertThread(a Assertion) error {
	var got []string
	for _, st := range h.root.VisibleThread(a.Conversation, a.User) {
		got = append(got, st.Node.ID())
	}
	if !slices.Equal(got, a.IDs) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.IDs), Actual: fmt.Sprint(got)}
	}
	return nil
}

func (h *Harness) assertConversations(a Assertion) error {
	var got []string
	for _, c := range h.root.ConversationsForUser(a.User) {
		id := c.ID
		if c.Hidden {
			id += " (hidden)"
		}
		got = append(got, id)
	}
	if !slices.Equal(got, a.IDs) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.IDs), Actual: fmt.Sprint(got)}
	}
	return nil
}

func (h *Harness) assertDailyCount(a Assertion) error {
	if got := h.root.DailyLLMResponseCount(a.User); got != a.Count {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Count), Actual: fmt.Sprint(got)}
	}
	return nil
}

func (h *Harness) assertEntity(a Assertion) error {
	v, ok, err := h.lookup(model.Kind(a.Kind), a.ID)
	if err != nil {
		return err
	}
	switch {
	case a.Absent && ok:
		return &AssertionError{Type: a.Type, Expected: a.Kind + " " + a.ID + " absent", Actual: "present"}
	case a.Absent:
		return nil
	case !ok:
		return &AssertionError{Type: a.Type, Expected: a.Kind + " " + a.ID + " present", Actual: "absent"}
	}

	actual, err := toJSONMap(v)
	if err != nil {
		return err
	}
	expected, err := toJSONMap(a.Expect)
	if err != nil {
		return err
	}
	if !matchFields(actual, expected) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(expected), Actual: fmt.Sprint(actual)}
	}
	return nil
}

func (h *Harness) lookup(kind model.Kind, id string) (any, bool, error) {
	switch kind {
	case model.KindUser:
		v, ok := h.root.Users().Get(id)
		return v, ok, nil
	case model.KindConversation:
		v, ok := h.root.Conversations().Get(id)
		return v, ok, nil
	case model.KindMember:
		v, ok := h.root.Members().Get(id)
		return v, ok, nil
	case model.KindMessage:
		v, ok := h.root.Messages().Get(id)
		return v, ok, nil
	}
	return nil, false, fmt.Errorf("unknown kind %q", kind)
}

// toJSONMap round-trips v through JSON so YAML and entity values compare
// with the same number and time representations.
func toJSONMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchFields reports whether every expected field equals the actual one.
// Nested objects match by subset; extra keys in actual are OK.
func matchFields(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if want == nil {
			// null expects the field to be unset.
			if exists && got != nil {
				return false
			}
			continue
		}
		if !exists {
			return false
		}
		wantMap, wantIsMap := want.(map[string]any)
		gotMap, gotIsMap := got.(map[string]any)
		if wantIsMap && gotIsMap {
			if !matchFields(gotMap, wantMap) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
