package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMember_CloneIsIndependent(t *testing.T) {
	m := Member{ID: "m", LLMsSelected: []string{"a"}, MessageBranches: map[string]bool{"x": true}}
	c := m.Clone()

	c.LLMsSelected[0] = "b"
	c.MessageBranches["x"] = false

	assert.Equal(t, "a", m.LLMsSelected[0])
	assert.True(t, m.MessageBranches["x"])
}

func TestMessage_CloneIsIndependent(t *testing.T) {
	m := Message{ID: "m", ReplyToID: Ptr("p"), Tokens: Ptr(3)}
	c := m.Clone()

	*c.ReplyToID = "q"
	*c.Tokens = 4

	assert.Equal(t, "p", *m.ReplyToID)
	assert.Equal(t, 3, *m.Tokens)
}

func TestMessage_IsModelAuthored(t *testing.T) {
	assert.False(t, Message{AuthorID: Ptr("u")}.IsModelAuthored())
	assert.True(t, Message{LLM: Ptr("gpt")}.IsModelAuthored())
	assert.True(t, Message{}.IsModelAuthored(), "both null is model-authored-unknown")
}

func TestMessage_AuthoredBy(t *testing.T) {
	m := Message{AuthorID: Ptr("u1")}
	assert.True(t, m.AuthoredBy("u1"))
	assert.False(t, m.AuthoredBy("u2"))
	assert.False(t, Message{}.AuthoredBy("u1"))
}

func TestNormalizeLLMs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeLLMs([]string{"b", "", "a", "b"}))
	assert.Equal(t, []string{}, NormalizeLLMs(nil))
}
