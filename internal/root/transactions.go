package root

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/roach88/threadkeep/internal/api"
	"github.com/roach88/threadkeep/internal/model"
	"github.com/roach88/threadkeep/internal/tree"
)

// Transaction names, used in logs and metrics.
const (
	TxCreateConversation = "create_conversation"
	TxCreateMessage      = "create_message"
	TxSelectBranch       = "select_branch"
	TxHideConversation   = "hide_conversation"
	TxShowConversation   = "show_conversation"
	TxSetLLMs            = "set_conversation_llms"
)

// CreateConversationInput describes a new conversation.
type CreateConversationInput struct {
	Title        string
	OwnerID      string
	LLMsSelected []string
}

// CreateMessageInput describes a new human message.
type CreateMessageInput struct {
	ConversationID string
	AuthorID       string
	// ReplyToID is the parent message id; empty starts a new root.
	ReplyToID string
	Content   string
}

// CreateConversation creates a conversation and its owner's member record.
func (r *Root) CreateConversation(ctx context.Context, in CreateConversationInput) (model.Conversation, model.Member, error) {
	if in.OwnerID == "" {
		return model.Conversation{}, model.Member{}, invalidInput("owner id")
	}

	now := r.clock.Now()
	conv := model.Conversation{
		ID:       r.ids.Generate(),
		Title:    in.Title,
		OwnerID:  in.OwnerID,
		Created:  now,
		Modified: now,
	}
	member := model.Member{
		ID:              r.ids.Generate(),
		ConversationID:  conv.ID,
		UserID:          in.OwnerID,
		AddedByID:       in.OwnerID,
		LLMsSelected:    model.NormalizeLLMs(in.LLMsSelected),
		MessageBranches: map[string]bool{},
	}

	if err := r.conversations.Upsert(conv); err != nil {
		return model.Conversation{}, model.Member{}, err
	}
	if err := r.members.Upsert(member); err != nil {
		return model.Conversation{}, model.Member{}, err
	}
	r.logger.Debug("created conversation", "conversation_id", conv.ID, "member_id", member.ID)

	r.remote(ctx, TxCreateConversation, conv.ID, func(a API) error {
		return a.CreateConversation(ctx, api.CreateConversationRequest{Conversation: conv, Member: member})
	})
	return conv, member, nil
}

// CreateMessage adds a message by in.AuthorID. The author must be a member
// of the conversation and the parent, if any, must be one of its messages.
// A reply that forks an existing branch point is selected in the author's
// branches so their new branch is the one shown.
func (r *Root) CreateMessage(ctx context.Context, in CreateMessageInput) (model.Message, error) {
	switch {
	case in.ConversationID == "":
		return model.Message{}, invalidInput("conversation id")
	case in.AuthorID == "":
		return model.Message{}, invalidInput("author id")
	}

	member, ok := r.members.ForUser(in.ConversationID, in.AuthorID)
	if !ok {
		return model.Message{}, notMember(in.ConversationID, in.AuthorID)
	}

	created := r.clock.Now()
	msg := model.Message{
		ID:             r.ids.Generate(),
		ConversationID: in.ConversationID,
		AuthorID:       model.Ptr(in.AuthorID),
		Content:        in.Content,
	}
	if in.ReplyToID != "" {
		parent, ok := r.messages.Get(in.ReplyToID)
		if !ok || parent.ConversationID != in.ConversationID {
			return model.Message{}, unknownMessage(in.ConversationID, in.ReplyToID)
		}
		// A reply is always strictly newer than its parent, even under
		// clock skew.
		if !created.After(parent.Created) {
			created = parent.Created.Add(time.Nanosecond)
		}
		msg.ReplyToID = model.Ptr(in.ReplyToID)
	}
	msg.Created, msg.Modified = created, created

	if err := r.messages.Upsert(msg); err != nil {
		return model.Message{}, err
	}
	r.touchConversation(in.ConversationID, created)

	branches, forked := r.forkBranches(member, msg)
	if forked {
		member.MessageBranches = branches
		if err := r.members.Upsert(member); err != nil {
			return model.Message{}, err
		}
	}
	r.logger.Debug("created message", "conversation_id", msg.ConversationID, "message_id", msg.ID, "forked", forked)

	r.remote(ctx, TxCreateMessage, msg.ConversationID, func(a API) error {
		return a.CreateMessage(ctx, msg)
	})
	if forked {
		r.remote(ctx, TxSelectBranch, msg.ConversationID, func(a API) error {
			return a.UpdateConversation(ctx, api.ConversationPatch{MessageBranches: branches}, msg.ConversationID)
		})
	}
	return msg, nil
}

// forkBranches selects msg among its siblings when it is not the only reply
// to its parent.
func (r *Root) forkBranches(member model.Member, msg model.Message) (map[string]bool, bool) {
	if msg.ReplyToID == nil {
		return nil, false
	}
	siblings, ok := tree.Siblings(r.MessageTree(msg.ConversationID), msg.ID)
	if !ok || len(siblings) < 2 {
		return nil, false
	}
	branches, err := tree.Select(member.MessageBranches, siblings, msg.ID)
	if err != nil {
		return nil, false
	}
	return branches, true
}

func (r *Root) touchConversation(conversationID string, at time.Time) {
	conv, ok := r.conversations.Get(conversationID)
	if !ok || !at.After(conv.Modified) {
		return
	}
	conv.Modified = at
	if err := r.conversations.Upsert(conv); err != nil {
		r.logger.Warn("touch conversation", "conversation_id", conversationID, "error", err)
	}
}

// SelectBranch shows messageID to userID and hides its siblings, as one
// replacement of the member record. messageID must be a reply; thread
// roots, including replies whose parent is unknown, are refused.
func (r *Root) SelectBranch(ctx context.Context, conversationID, userID, messageID string) (model.Member, error) {
	member, ok := r.members.ForUser(conversationID, userID)
	if !ok {
		return model.Member{}, notMember(conversationID, userID)
	}
	roots := r.MessageTree(conversationID)
	node, ok := tree.Find(roots, messageID)
	if !ok {
		return model.Member{}, unknownMessage(conversationID, messageID)
	}
	// Roots are all shown; only replies to one parent compete.
	if slices.Contains(roots, node) {
		return model.Member{}, notABranch(conversationID, messageID)
	}
	siblings, _ := tree.Siblings(roots, messageID)
	branches, err := tree.Select(member.MessageBranches, siblings, messageID)
	if err != nil {
		return model.Member{}, fmt.Errorf("select branch: %w", err)
	}

	member.MessageBranches = branches
	if err := r.members.Upsert(member); err != nil {
		return model.Member{}, err
	}

	r.remote(ctx, TxSelectBranch, conversationID, func(a API) error {
		return a.UpdateConversation(ctx, api.ConversationPatch{MessageBranches: maps.Clone(branches)}, conversationID)
	})
	return member, nil
}

// HideConversation hides the conversation from userID's list.
func (r *Root) HideConversation(ctx context.Context, conversationID, userID string) (model.Member, error) {
	return r.setHidden(ctx, TxHideConversation, conversationID, userID, true)
}

// ShowConversation reverses HideConversation.
func (r *Root) ShowConversation(ctx context.Context, conversationID, userID string) (model.Member, error) {
	return r.setHidden(ctx, TxShowConversation, conversationID, userID, false)
}

func (r *Root) setHidden(ctx context.Context, tx, conversationID, userID string, hidden bool) (model.Member, error) {
	member, ok := r.members.ForUser(conversationID, userID)
	if !ok {
		return model.Member{}, notMember(conversationID, userID)
	}
	member.Hidden = hidden
	if err := r.members.Upsert(member); err != nil {
		return model.Member{}, err
	}

	r.remote(ctx, tx, conversationID, func(a API) error {
		return a.UpdateConversation(ctx, api.ConversationPatch{Hidden: model.Ptr(hidden)}, conversationID)
	})
	return member, nil
}

// SetConversationLLMs replaces userID's model selection. Duplicates are
// dropped; an empty list clears the selection.
func (r *Root) SetConversationLLMs(ctx context.Context, conversationID, userID string, llms []string) (model.Member, error) {
	member, ok := r.members.ForUser(conversationID, userID)
	if !ok {
		return model.Member{}, notMember(conversationID, userID)
	}
	member.LLMsSelected = model.NormalizeLLMs(llms)
	if err := r.members.Upsert(member); err != nil {
		return model.Member{}, err
	}

	selected := member.Clone().LLMsSelected
	r.remote(ctx, TxSetLLMs, conversationID, func(a API) error {
		return a.UpdateConversation(ctx, api.ConversationPatch{LLMsSelected: selected}, conversationID)
	})
	return member, nil
}

// remote makes the best-effort server call of a transaction. Failures are
// logged and never undo local state; a rate-limit rejection also notifies
// the user.
func (r *Root) remote(ctx context.Context, tx, conversationID string, call func(API) error) {
	if r.api == nil {
		return
	}
	err := call(r.api)
	switch {
	case err == nil:
	case api.IsRateLimited(err):
		r.metrics.RateLimitHit(tx)
		r.logger.Warn("transaction rate limited", "transaction", tx, "conversation_id", conversationID, "error", err)
		r.notifier.Warn(ctx, rateLimitMessage(tx))
	default:
		r.logger.Warn("transaction not confirmed by server", "transaction", tx, "conversation_id", conversationID, "error", err)
	}
}

func rateLimitMessage(tx string) string {
	if tx == TxCreateMessage {
		return "You have reached the message limit. Your message was saved locally."
	}
	return "Too many requests. Your change was saved locally."
}
