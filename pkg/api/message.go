package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

type (
	// MessageType discriminates the variants of a channel Message
	MessageType string

	// Message is a single frame exchanged over the status channel. Exactly
	// one of Auth, Update, or Error is set, as selected by Type
	Message struct {
		Auth   *AuthRequest
		Update *ExecutionUpdate
		Error  *ErrorNotice
		Type   MessageType
	}

	// AuthRequest is sent by the client once a channel opens
	AuthRequest struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}

	// ErrorNotice is sent by the server to report a problem on the channel
	ErrorNotice struct {
		Message string `json:"message"`
	}

	wireMessage struct {
		Type    MessageType      `json:"type"`
		Token   string           `json:"token,omitempty"`
		UserID  string           `json:"userId,omitempty"`
		Data    *ExecutionUpdate `json:"data,omitempty"`
		Message string           `json:"message,omitempty"`
	}
)

const (
	TypeAuth            MessageType = "auth"
	TypeExecutionUpdate MessageType = "execution_update"
	TypeError           MessageType = "error"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrMissingType      = errors.New("message type is missing")
	ErrUnknownType      = errors.New("unknown message type")
	ErrMissingData      = errors.New("execution update has no data")
	ErrMissingFlowID    = errors.New("execution update has no flow id")
	ErrEmptyMessage     = errors.New("message has no payload")
)

// NewAuthMessage builds the auth frame sent when a channel opens
func NewAuthMessage(token, userID string) *Message {
	return &Message{
		Type: TypeAuth,
		Auth: &AuthRequest{Token: token, UserID: userID},
	}
}

// NewUpdateMessage wraps an execution update in a frame
func NewUpdateMessage(u *ExecutionUpdate) *Message {
	return &Message{
		Type:   TypeExecutionUpdate,
		Update: u,
	}
}

// NewErrorMessage builds an error frame
func NewErrorMessage(msg string) *Message {
	return &Message{
		Type:  TypeError,
		Error: &ErrorNotice{Message: msg},
	}
}

// ParseMessage decodes a channel frame. Invalid JSON, a missing or unknown
// type, and a type whose payload is absent are all reported as errors so
// the caller can drop the frame at the boundary
func ParseMessage(data []byte) (*Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrMalformedMessage
	}

	typ := gjson.GetBytes(data, "type")
	if typ.Type != gjson.String || typ.Str == "" {
		return nil, ErrMissingType
	}

	switch MessageType(typ.Str) {
	case TypeAuth, TypeExecutionUpdate, TypeError:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ.Str)
	}

	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch w.Type {
	case TypeAuth:
		return NewAuthMessage(w.Token, w.UserID), nil
	case TypeError:
		return NewErrorMessage(w.Message), nil
	default:
		if w.Data == nil {
			return nil, ErrMissingData
		}
		if w.Data.FlowID == "" {
			return nil, ErrMissingFlowID
		}
		return NewUpdateMessage(w.Data), nil
	}
}

// MarshalJSON encodes the message in its wire envelope
func (m *Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{Type: m.Type}
	switch m.Type {
	case TypeAuth:
		if m.Auth == nil {
			return nil, fmt.Errorf("%w: %s", ErrEmptyMessage, m.Type)
		}
		w.Token = m.Auth.Token
		w.UserID = m.Auth.UserID
	case TypeExecutionUpdate:
		if m.Update == nil {
			return nil, fmt.Errorf("%w: %s", ErrEmptyMessage, m.Type)
		}
		w.Data = m.Update
	case TypeError:
		if m.Error == nil {
			return nil, fmt.Errorf("%w: %s", ErrEmptyMessage, m.Type)
		}
		w.Message = m.Error.Message
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, m.Type)
	}
	return json.Marshal(w)
}

// UpdateFor returns the execution update if the message is one and it
// concerns the given flow. Anything else yields nil
func (m *Message) UpdateFor(id FlowID) *ExecutionUpdate {
	if m == nil || m.Type != TypeExecutionUpdate || m.Update == nil {
		return nil
	}
	if !m.Update.MatchesFlow(id) {
		return nil
	}
	return m.Update
}
