// Package relay implements the room-scoped signaling exchange: a registry
// of rooms holding live endpoints, and the forwarding rules for negotiation
// envelopes between endpoints that share a room. It never touches media
// payloads and keeps no history; signaling is ephemeral exchange-only.
package relay

import (
	"encoding/json"
	"errors"

	"github.com/hiregen/coordinator/internal/domain"
)

type MessageType string

const (
	TypeJoin         MessageType = "join"
	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeICECandidate MessageType = "ice-candidate"
	TypeError        MessageType = "error"
)

var ErrMalformed = errors.New("malformed envelope")

// Envelope is one inbound signaling message.
// Meta is carried opaquely; validating any token inside it is the
// identity collaborator's concern, not the relay's.
type Envelope struct {
	Type    MessageType     `json:"type"`
	RoomID  domain.RoomID   `json:"roomId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Meta    json.RawMessage `json:"meta,omitempty"`
}

// Forwarded is what peers receive: the original type and payload with a
// provenance marker attached.
type Forwarded struct {
	From    string          `json:"from"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseEnvelope decodes an inbound frame. Anything that does not parse as
// the expected structure is ErrMalformed; the caller drops it.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, ErrMalformed
	}
	if env.Type == "" {
		return Envelope{}, ErrMalformed
	}
	return env, nil
}
