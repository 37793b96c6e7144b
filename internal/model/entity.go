package model

import (
	"maps"
	"slices"
	"time"
)

// Kind names an entity type. The same strings are used as durable
// collection names and as delta discriminators. Tags are local-only and
// never appear in a delta.
type Kind string

const (
	KindUser         Kind = "user"
	KindConversation Kind = "conversation"
	KindMember       Kind = "member"
	KindMessage      Kind = "message"
	KindTag          Kind = "tag"
)

// Kinds lists every entity kind in dependency order.
var Kinds = []Kind{KindUser, KindConversation, KindMember, KindMessage, KindTag}

// Entity is implemented by every replicated type.
type Entity[T any] interface {
	// Key returns the entity id.
	Key() string
	// ConversationKey returns the owning conversation id, or "" for
	// entities that are not scoped to a conversation.
	ConversationKey() string
	Clone() T
}

// User is a cached identity. The server owns users; the client never
// creates them.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Created   time.Time `json:"created"`
}

func (u User) Key() string             { return u.ID }
func (u User) ConversationKey() string { return "" }
func (u User) Clone() User             { return u }

// Conversation is a titled thread container owned by one user.
type Conversation struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	OwnerID  string    `json:"ownerId"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

func (c Conversation) Key() string             { return c.ID }
func (c Conversation) ConversationKey() string { return c.ID }
func (c Conversation) Clone() Conversation     { return c }

// Member is the seat of one user in one conversation. It owns that user's
// branch visibility, model selection and hidden flag for the conversation.
type Member struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	AddedByID      string `json:"addedById,omitempty"`
	// LLMsSelected is a set; see NormalizeLLMs.
	LLMsSelected []string `json:"llmsSelected,omitempty"`
	// MessageBranches maps message id to shown. A missing key is
	// "no explicit preference".
	MessageBranches map[string]bool `json:"messageBranches,omitempty"`
	Hidden          bool            `json:"hidden"`
}

func (m Member) Key() string             { return m.ID }
func (m Member) ConversationKey() string { return m.ConversationID }

// Normalize returns m with LLMsSelected in set form. A nil selection stays
// nil.
func (m Member) Normalize() Member {
	if m.LLMsSelected != nil {
		m.LLMsSelected = NormalizeLLMs(m.LLMsSelected)
	}
	return m
}

func (m Member) Clone() Member {
	m.LLMsSelected = slices.Clone(m.LLMsSelected)
	m.MessageBranches = maps.Clone(m.MessageBranches)
	return m
}

// Message is one node of a conversation's reply tree. A nil ReplyToID marks a
// root. Human messages carry AuthorID, model messages carry LLM.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	AuthorID       *string    `json:"authorId,omitempty"`
	LLM            *string    `json:"llm,omitempty"`
	ReplyToID      *string    `json:"replyToId,omitempty"`
	LLMCompleted   *time.Time `json:"llmCompleted,omitempty"`
	Tokens         *int       `json:"tokens,omitempty"`
	Content        string     `json:"content"`
	Created        time.Time  `json:"created"`
	Modified       time.Time  `json:"modified"`
}

func (m Message) Key() string             { return m.ID }
func (m Message) ConversationKey() string { return m.ConversationID }

func (m Message) Clone() Message {
	m.AuthorID = clonePtr(m.AuthorID)
	m.LLM = clonePtr(m.LLM)
	m.ReplyToID = clonePtr(m.ReplyToID)
	m.LLMCompleted = clonePtr(m.LLMCompleted)
	m.Tokens = clonePtr(m.Tokens)
	return m
}

// IsModelAuthored reports whether the message was produced by a model. A
// message with neither author nor model is treated as model-authored with an
// unknown model.
func (m Message) IsModelAuthored() bool {
	return m.LLM != nil || m.AuthorID == nil
}

// AuthoredBy reports whether userID wrote the message.
func (m Message) AuthoredBy(userID string) bool {
	return m.AuthorID != nil && *m.AuthorID == userID
}

// Parent returns the id this message replies to and whether it has one.
func (m Message) Parent() (string, bool) {
	if m.ReplyToID == nil {
		return "", false
	}
	return *m.ReplyToID, true
}

// NormalizeLLMs returns llms sorted with duplicates and empty entries removed.
func NormalizeLLMs(llms []string) []string {
	out := make([]string, 0, len(llms))
	for _, l := range llms {
		if l != "" {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
