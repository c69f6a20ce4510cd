// Package v1 defines the arcshell session event protocol v1 contract.
//
// It is shared between the shell's event gateway and its clients (session-watch, UI)
// so the wire format stays authoritative in one place.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Subprotocol is the websocket subprotocol negotiated by the event gateway.
const Subprotocol = "arc.session.v1"

// Type constants (wire-stable).
const (
	// TypeHello starts a stream (client -> server). Optional; the snapshot is sent regardless.
	TypeHello = "hello"

	// TypeSnapshot carries the session state at connect time (server -> client).
	TypeSnapshot = "session.snapshot"
	// TypeChanged carries the session state after a transition (server -> client).
	TypeChanged = "session.changed"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello, TypeSnapshot, TypeChanged, TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// UserPayload mirrors the identity user record.
type UserPayload struct {
	ID          string    `json:"id"`
	Username    *string   `json:"username,omitempty"`
	Email       *string   `json:"email,omitempty"`
	DisplayName *string   `json:"display_name,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// SessionPayload is sent with snapshot and changed envelopes.
type SessionPayload struct {
	State           string       `json:"state"`
	IsAuthenticated bool         `json:"is_authenticated"`
	Loading         bool         `json:"loading"`
	User            *UserPayload `json:"user"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
