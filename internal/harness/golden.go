package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the trace and every conversation tree as plain text.
func (h *Harness) Snapshot(name string, result *Result) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", name)
	for _, ev := range result.Trace {
		fmt.Fprintf(&b, "%d %s", ev.Seq, ev.Op)
		if ev.User != "" {
			fmt.Fprintf(&b, " %s", ev.User)
		}
		if ev.ID != "" {
			fmt.Fprintf(&b, " %s", ev.ID)
		}
		fmt.Fprintf(&b, " -> %s\n", ev.Outcome)
	}

	for _, c := range h.root.Conversations().Sorted() {
		fmt.Fprintf(&b, "\n## %s %q as %s\n", c.ID, c.Title, h.user)
		rendered, err := h.renderTree(c.ID, h.user)
		if err != nil {
			return "", err
		}
		b.WriteString(rendered)
	}
	return b.String(), nil
}

// RunWithGolden executes a scenario, fails t on step or assertion
// mismatches, and compares the snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	var snapshot string
	result, err := run(t.Context(), scenario, func(h *Harness, res *Result) error {
		var err error
		snapshot, err = h.Snapshot(scenario.Name, res)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, []byte(snapshot))
	return result, nil
}
