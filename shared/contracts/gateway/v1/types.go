// Package v1 defines the tggate wire contract v1.
//
// It covers the JSON bodies of the HTTP send endpoint and the envelopes
// streamed over the pairing websocket. The package is dependency-light so
// that client tools can import it without pulling in the server.
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

// Subprotocol is the websocket subprotocol for the pairing stream.
const Subprotocol = "tggate.pairing.v1"

// Type constants (wire-stable).
const (
	// TypePairingState carries a pairing state snapshot (server -> client).
	TypePairingState = "pairing_state"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper for websocket frames.
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
	case TypePairingState, TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// PairingStatePayload mirrors the pairing state machine.
type PairingStatePayload struct {
	State              string     `json:"state"`
	ChallengeURL       string     `json:"challenge_url,omitempty"`
	ChallengeExpiresAt *time.Time `json:"challenge_expires_at,omitempty"`
	Renewals           int        `json:"renewals"`
	Error              string     `json:"error,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ErrorPayload is the payload of a TypeError envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
