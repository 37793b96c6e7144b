package tree

import (
	"time"

	"github.com/roach88/threadkeep/internal/model"
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

// msg builds a message created at t0+minute, replying to parent ("" for a root).
func msg(id, parent string, minute int) model.Message {
	m := model.Message{
		ID:             id,
		ConversationID: "c1",
		AuthorID:       model.Ptr("u1"),
		Content:        "message " + id,
		Created:        t0.Add(time.Duration(minute) * time.Minute),
	}
	if parent != "" {
		m.ReplyToID = model.Ptr(parent)
	}
	return m
}

// shape renders a forest as nested ids, e.g. "A(B(D),C)".
func shape(nodes []*Node) string {
	out := ""
	for i, n := range nodes {
		if i > 0 {
			out += ","
		}
		out += n.ID()
		if len(n.Replies) > 0 {
			out += "(" + shape(n.Replies) + ")"
		}
	}
	return out
}

func nodeIDs(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}
