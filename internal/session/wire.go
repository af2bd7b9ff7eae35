package session

import "github.com/hiregen/coordinator/internal/relay"

// The controller speaks the relay's wire protocol directly.
type (
	Envelope = relay.Envelope
	Inbound  = relay.Forwarded
)

// Payload shapes carried inside envelopes.
type sdpPayload struct {
	SDP string `json:"sdp"`
}

type candidatePayload struct {
	Candidate string  `json:"candidate"`
	SDPMid    *string `json:"sdpMid,omitempty"`
	SDPMLine  *uint16 `json:"sdpMLineIndex,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinMeta struct {
	Token string `json:"token,omitempty"`
}
