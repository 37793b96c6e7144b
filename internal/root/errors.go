package root

import (
	"errors"
	"fmt"
)

// PreconditionError is returned when a transaction needs an entity that is
// not in the local replica, or its input is unusable. Nothing was written.
type PreconditionError struct {
	// Code identifies the failed precondition.
	Code PreconditionCode

	// Message is a human-readable description.
	Message string

	// ConversationID is the conversation the transaction targeted.
	ConversationID string

	// Details contains additional context.
	Details map[string]string
}

// PreconditionCode categorizes precondition failures.
type PreconditionCode string

const (
	// CodeNotMember means the acting user has no member record in the
	// conversation.
	CodeNotMember PreconditionCode = "NOT_MEMBER"

	// CodeUnknownMessage means a referenced message is not in the
	// conversation.
	CodeUnknownMessage PreconditionCode = "UNKNOWN_MESSAGE"

	// CodeUnknownConversation means the conversation is not cached.
	CodeUnknownConversation PreconditionCode = "UNKNOWN_CONVERSATION"

	// CodeNotABranch means the message starts a thread rather than being
	// one of several replies to a parent, so there is nothing to select.
	CodeNotABranch PreconditionCode = "NOT_A_BRANCH"

	// CodeUnknownTag means the tag is not in the local replica.
	CodeUnknownTag PreconditionCode = "UNKNOWN_TAG"

	// CodeInvalidInput means a required input field is empty or malformed.
	CodeInvalidInput PreconditionCode = "INVALID_INPUT"
)

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	if e.ConversationID != "" {
		return fmt.Sprintf("%s: %s (conversation=%s)", e.Code, e.Message, e.ConversationID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsPrecondition returns true if err is a PreconditionError.
// Uses errors.As to handle wrapped errors.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// HasCode returns true if err is a PreconditionError with the given code.
func HasCode(err error, code PreconditionCode) bool {
	var pe *PreconditionError
	return errors.As(err, &pe) && pe.Code == code
}

func notMember(conversationID, userID string) *PreconditionError {
	return &PreconditionError{
		Code:           CodeNotMember,
		Message:        "user is not a member of the conversation",
		ConversationID: conversationID,
		Details:        map[string]string{"user_id": userID},
	}
}

func unknownMessage(conversationID, messageID string) *PreconditionError {
	return &PreconditionError{
		Code:           CodeUnknownMessage,
		Message:        "message is not in the conversation",
		ConversationID: conversationID,
		Details:        map[string]string{"message_id": messageID},
	}
}

func notABranch(conversationID, messageID string) *PreconditionError {
	return &PreconditionError{
		Code:           CodeNotABranch,
		Message:        "message is a thread root, not a reply branch",
		ConversationID: conversationID,
		Details:        map[string]string{"message_id": messageID},
	}
}

func invalidInput(field string) *PreconditionError {
	return &PreconditionError{
		Code:    CodeInvalidInput,
		Message: field + " must be set",
		Details: map[string]string{"field": field},
	}
}

func invalidField(field string, err error) *PreconditionError {
	return &PreconditionError{
		Code:    CodeInvalidInput,
		Message: err.Error(),
		Details: map[string]string{"field": field},
	}
}

func unknownTag(tagID string) *PreconditionError {
	return &PreconditionError{
		Code:    CodeUnknownTag,
		Message: "tag is not in the local replica",
		Details: map[string]string{"tag_id": tagID},
	}
}
