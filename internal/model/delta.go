package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Delta is one authoritative entity change from the sync transport.
//
// The set of implementations is closed: ConversationDelta, MessageDelta,
// MemberDelta and UserDelta. A type switch over those four is exhaustive.
type Delta interface {
	Kind() Kind
	// EntityID returns the id of the changed entity.
	EntityID() string
	// Patch returns the JSON object to merge over the cached entity.
	Patch() json.RawMessage

	isDelta()
}

type deltaBody struct {
	ID   string
	Data json.RawMessage
}

func (d deltaBody) EntityID() string       { return d.ID }
func (d deltaBody) Patch() json.RawMessage { return d.Data }
func (deltaBody) isDelta()                 {}

type ConversationDelta struct{ deltaBody }
type MessageDelta struct{ deltaBody }
type MemberDelta struct{ deltaBody }
type UserDelta struct{ deltaBody }

func (ConversationDelta) Kind() Kind { return KindConversation }
func (MessageDelta) Kind() Kind      { return KindMessage }
func (MemberDelta) Kind() Kind       { return KindMember }
func (UserDelta) Kind() Kind         { return KindUser }

func newDelta(kind Kind, id string, data json.RawMessage) (Delta, error) {
	body := deltaBody{ID: id, Data: data}
	switch kind {
	case KindConversation:
		return ConversationDelta{body}, nil
	case KindMessage:
		return MessageDelta{body}, nil
	case KindMember:
		return MemberDelta{body}, nil
	case KindUser:
		return UserDelta{body}, nil
	}
	return nil, &IngestError{Type: string(kind), Err: ErrUnknownDeltaType}
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeDelta decodes one wire envelope.
func DecodeDelta(raw []byte) (Delta, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &IngestError{Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if env.Type == "" {
		return nil, &IngestError{Err: errors.New("missing type")}
	}
	if _, err := decodeObject(env.Data); err != nil {
		return nil, &IngestError{Type: env.Type, Err: err}
	}
	id, err := PatchID(env.Data)
	if err != nil {
		return nil, &IngestError{Type: env.Type, Err: err}
	}
	return newDelta(Kind(env.Type), id, env.Data)
}

// ErrUnknownDeltaType is wrapped by IngestError for unrecognized discriminators.
var ErrUnknownDeltaType = errors.New("unknown delta type")

// IngestError reports a delta that could not be decoded. The delta is
// dropped; the channel keeps processing.
type IngestError struct {
	// Type is the wire discriminator, if one was read.
	Type string
	Err  error
}

func (e *IngestError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("ingest %q delta: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("ingest delta: %v", e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// IsIngestError reports whether err is an IngestError. Uses errors.As to
// handle wrapped errors.
func IsIngestError(err error) bool {
	var ie *IngestError
	return errors.As(err, &ie)
}
