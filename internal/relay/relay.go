package relay

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Relay validates inbound envelopes and forwards them between endpoints
// sharing a room. Malformed input must never crash the relay or a peer
// connection, so every reject path is a silent drop on the wire.
type Relay struct {
	reg *Registry
}

func New(reg *Registry) *Relay {
	return &Relay{reg: reg}
}

// HandleFrame processes one inbound frame from ep. Frames are handled in
// the order the adapter reads them, which preserves the sender's
// per-envelope order toward each peer.
func (r *Relay) HandleFrame(ep Endpoint, data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		log.Warn().Str("module", "relay").Str("endpoint", ep.ID()).Msg("dropping malformed envelope")
		return
	}

	switch env.Type {
	case TypeJoin:
		if env.RoomID == "" {
			log.Warn().Str("module", "relay").Str("endpoint", ep.ID()).Msg("join without room id")
			return
		}
		r.reg.Join(ep, env.RoomID)
	case TypeOffer, TypeAnswer, TypeICECandidate:
		r.forward(ep, env)
	default:
		log.Warn().Str("module", "relay").Str("endpoint", ep.ID()).Str("type", string(env.Type)).Msg("unknown signal type")
	}
}

// forward relays env to every other live endpoint in the sender's room.
// Senders with no room forward nothing. Delivery is best-effort
// at-most-once: a peer whose channel is not writable is skipped, never
// retried or buffered.
func (r *Relay) forward(ep Endpoint, env Envelope) {
	roomID, ok := r.reg.RoomOf(ep.ID())
	if !ok {
		log.Warn().Str("module", "relay").Str("endpoint", ep.ID()).Str("type", string(env.Type)).Msg("signal before join")
		return
	}

	frame, err := json.Marshal(Forwarded{From: "peer", Type: env.Type, Payload: env.Payload})
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("marshal forwarded envelope")
		return
	}

	sent := 0
	for _, peer := range r.reg.Peers(roomID, ep.ID()) {
		if err := peer.TrySend(frame); err != nil {
			log.Debug().Err(err).Str("module", "relay").Str("peer", peer.ID()).Msg("skipping unwritable peer")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "relay").Str("endpoint", ep.ID()).Str("type", string(env.Type)).Int("sent_to", sent).Msg("forwarded")
}

// Disconnect releases ep's room membership. Called unconditionally by the
// adapter on connection close; safe for endpoints that never joined.
func (r *Relay) Disconnect(ep Endpoint) {
	r.reg.Leave(ep)
}
