package relay

import (
	"sync"

	"github.com/hiregen/coordinator/internal/domain"
	"github.com/rs/zerolog/log"
)

// Endpoint is one live connection into the relay. The adapter owns the
// underlying transport and must make TrySend safe after close (an error,
// never a panic).
type Endpoint interface {
	ID() string
	TrySend(frame []byte) error
}

// room holds the member set of a single room. Its mutex makes one room's
// state never observable half-updated; rooms do not share it.
type room struct {
	mu      sync.RWMutex
	members map[string]Endpoint
}

func (r *room) add(ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[ep.ID()] = ep
}

func (r *room) remove(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
	return len(r.members)
}

func (r *room) peers(excluding string) []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.members))
	for id, ep := range r.members {
		if id == excluding {
			continue
		}
		out = append(out, ep)
	}
	return out
}

// Registry maps room ids to their currently connected endpoints.
// An endpoint belongs to at most one room; rooms are created lazily on
// first join and deleted when the last member leaves.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[domain.RoomID]*room
	byEndpoint map[string]domain.RoomID
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[domain.RoomID]*room),
		byEndpoint: make(map[string]domain.RoomID),
	}
}

// Join adds ep to roomID, creating the room if absent. A no-op if ep is
// already a member; if ep is in a different room it is moved.
func (r *Registry) Join(ep Endpoint, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.byEndpoint[ep.ID()]; ok {
		if cur == roomID {
			return
		}
		r.leaveLocked(ep.ID(), cur)
	}

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{members: make(map[string]Endpoint)}
		r.rooms[roomID] = rm
		log.Debug().Str("module", "relay.registry").Str("room", string(roomID)).Msg("room created")
	}
	rm.add(ep)
	r.byEndpoint[ep.ID()] = roomID
	log.Info().Str("module", "relay.registry").Str("endpoint", ep.ID()).Str("room", string(roomID)).Msg("joined room")
}

// Leave removes ep from its current room, if any. Idempotent and
// side-effect-free for endpoints that never joined.
func (r *Registry) Leave(ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.byEndpoint[ep.ID()]
	if !ok {
		return
	}
	r.leaveLocked(ep.ID(), roomID)
	log.Info().Str("module", "relay.registry").Str("endpoint", ep.ID()).Str("room", string(roomID)).Msg("left room")
}

// leaveLocked requires r.mu held. Empty rooms are deleted so nothing leaks.
func (r *Registry) leaveLocked(epID string, roomID domain.RoomID) {
	delete(r.byEndpoint, epID)
	rm, ok := r.rooms[roomID]
	if !ok {
		return
	}
	if rm.remove(epID) == 0 {
		delete(r.rooms, roomID)
		log.Debug().Str("module", "relay.registry").Str("room", string(roomID)).Msg("room deleted")
	}
}

// RoomOf reports the room the endpoint currently holds.
func (r *Registry) RoomOf(epID string) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.byEndpoint[epID]
	return roomID, ok
}

// Peers returns the other live endpoints in roomID at call time. The slice
// is a point-in-time copy, not a snapshot guarantee across concurrent
// mutation. Unknown rooms yield an empty set.
func (r *Registry) Peers(roomID domain.RoomID, excluding string) []Endpoint {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return rm.peers(excluding)
}

// HasRoom reports whether roomID currently exists.
func (r *Registry) HasRoom(roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}
