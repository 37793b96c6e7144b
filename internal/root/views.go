package root

import (
	"time"

	"github.com/roach88/threadkeep/internal/model"
	"github.com/roach88/threadkeep/internal/tree"
)

// DailyWindow is the trailing window of DailyLLMResponseCount.
const DailyWindow = 24 * time.Hour

// MyConversation is a conversation as one member sees it.
type MyConversation struct {
	model.Conversation
	MemberID        string
	LLMsSelected    []string
	MessageBranches map[string]bool
	Hidden          bool
}

// ConversationForUser is one row of the conversation list.
type ConversationForUser struct {
	model.Conversation
	Hidden       bool
	LLMsSelected []string
}

// MyConversation returns the conversation merged with userID's member
// settings. It is absent when either record is missing.
func (r *Root) MyConversation(conversationID, userID string) (MyConversation, bool) {
	res := r.myConversations.Get(memberKey{conversationID, userID}, func() myConversationResult {
		conv, ok := r.conversations.Get(conversationID)
		if !ok {
			return myConversationResult{}
		}
		m, ok := r.members.ForUser(conversationID, userID)
		if !ok {
			return myConversationResult{}
		}
		return myConversationResult{ok: true, view: MyConversation{
			Conversation:    conv,
			MemberID:        m.ID,
			LLMsSelected:    m.LLMsSelected,
			MessageBranches: m.MessageBranches,
			Hidden:          m.Hidden,
		}}
	})
	if !res.ok {
		return MyConversation{}, false
	}
	return res.view.clone(), true
}

func (v MyConversation) clone() MyConversation {
	m := model.Member{LLMsSelected: v.LLMsSelected, MessageBranches: v.MessageBranches}.Clone()
	v.LLMsSelected, v.MessageBranches = m.LLMsSelected, m.MessageBranches
	return v
}

// MessageTree returns the reply forest of one conversation. The forest is
// shared between callers until a message of the conversation changes, so
// it must not be modified.
func (r *Root) MessageTree(conversationID string) []*tree.Node {
	return r.trees.Get(conversationID, func() []*tree.Node {
		return tree.Build(r.messages.ByConversation(conversationID))
	})
}

// ConversationsForUser lists every conversation, most recently modified
// first, with userID's hidden flag and model selection. A conversation
// whose member record has not arrived yet is shown with no models selected.
func (r *Root) ConversationsForUser(userID string) []ConversationForUser {
	convs := r.conversations.Sorted()
	members := r.members.ByUser(userID)

	out := make([]ConversationForUser, 0, len(convs))
	for _, c := range convs {
		row := ConversationForUser{Conversation: c}
		if m, ok := members[c.ID]; ok {
			row.Hidden = m.Hidden
			row.LLMsSelected = m.LLMsSelected
		}
		out = append(out, row)
	}
	return out
}

// DailyLLMResponseCount counts model-authored messages created in the last
// DailyWindow that reply directly to a message by userID. The window is
// evaluated against the clock on every call.
func (r *Root) DailyLLMResponseCount(userID string) int {
	cutoff := r.clock.Now().Add(-DailyWindow)

	count := 0
	for _, m := range r.messages.All() {
		if !m.IsModelAuthored() || !m.Created.After(cutoff) {
			continue
		}
		pid, ok := m.Parent()
		if !ok {
			continue
		}
		parent, ok := r.messages.Get(pid)
		if ok && parent.AuthoredBy(userID) {
			count++
		}
	}
	return count
}

// VisibleThread returns the path through the conversation that userID
// sees under their branch selections.
func (r *Root) VisibleThread(conversationID, userID string) []tree.Step {
	var branches map[string]bool
	if m, ok := r.members.ForUser(conversationID, userID); ok {
		branches = m.MessageBranches
	}
	return tree.Walk(r.MessageTree(conversationID), branches)
}
