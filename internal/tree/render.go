package tree

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/roach88/threadkeep/internal/model"
)

const previewRunes = 60

// Render writes the whole forest as an indented outline, one message per
// line. In sibling groups of two or more each line is marked with its
// branch state under branches: shown, hidden or choice.
func Render(w io.Writer, roots []*Node, branches map[string]bool) error {
	ew := &errWriter{w: w}
	renderGroup(ew, roots, branches, 0, false)
	return ew.err
}

func renderGroup(w *errWriter, group []*Node, branches map[string]bool, depth int, marked bool) {
	var res Resolution
	if marked && len(group) > 1 {
		res = Resolve(group, branches)
	}
	for _, n := range group {
		state := ""
		switch {
		case res.NeedsChoice():
			state = " [choice]"
		case res.Shown == n:
			state = " [shown]"
		case res.Shown != nil:
			state = " [hidden]"
		}
		w.printf("%s- %s %s%s: %s\n", strings.Repeat("  ", depth), n.ID(), Author(n.Message), state, Preview(n.Message.Content))
		renderGroup(w, n.Replies, branches, depth+1, true)
	}
}

// Author labels who wrote m: the author id, or llm:<model> for model
// messages ("llm:unknown" when neither is set).
func Author(m model.Message) string {
	switch {
	case m.LLM != nil:
		return "llm:" + *m.LLM
	case m.AuthorID != nil:
		return *m.AuthorID
	default:
		return "llm:unknown"
	}
}

// Preview returns the first line of content, shortened to a fixed width.
func Preview(content string) string {
	line, _, cut := strings.Cut(strings.TrimSpace(content), "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) > previewRunes {
		runes := []rune(line)
		return string(runes[:previewRunes]) + "..."
	}
	if cut {
		return line + " ..."
	}
	return line
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
