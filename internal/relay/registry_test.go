package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hiregen/coordinator/internal/domain"
)

func TestJoinMembershipUnique(t *testing.T) {
	reg := NewRegistry()
	a := newFakeEndpoint("a")
	b := newFakeEndpoint("b")

	reg.Join(a, "room-1")
	reg.Join(a, "room-1") // no-op
	reg.Join(b, "room-1")

	peers := reg.Peers("room-1", "b")
	if len(peers) != 1 || peers[0].ID() != "a" {
		t.Fatalf("expected exactly one peer 'a', got %d", len(peers))
	}
}

func TestJoinMovesEndpointBetweenRooms(t *testing.T) {
	reg := NewRegistry()
	a := newFakeEndpoint("a")

	reg.Join(a, "room-1")
	reg.Join(a, "room-2")

	if room, _ := reg.RoomOf("a"); room != "room-2" {
		t.Fatalf("endpoint should be in room-2, got %q", room)
	}
	if reg.HasRoom("room-1") {
		t.Fatalf("vacated room-1 should be deleted")
	}
}

func TestEmptyRoomDeleted(t *testing.T) {
	reg := NewRegistry()
	a := newFakeEndpoint("a")
	b := newFakeEndpoint("b")
	reg.Join(a, "room-1")
	reg.Join(b, "room-1")

	reg.Leave(a)
	if !reg.HasRoom("room-1") {
		t.Fatalf("room with a remaining member must persist")
	}
	reg.Leave(b)
	if reg.HasRoom("room-1") {
		t.Fatalf("room should not outlive its last member")
	}
}

func TestLeaveWithoutJoinIsNoop(t *testing.T) {
	reg := NewRegistry()
	a := newFakeEndpoint("a")
	reg.Leave(a)
	reg.Leave(a)
	if _, ok := reg.RoomOf("a"); ok {
		t.Fatalf("endpoint without a join must have no room")
	}
}

func TestPeersOfUnknownRoomEmpty(t *testing.T) {
	reg := NewRegistry()
	if peers := reg.Peers("nope", "x"); len(peers) != 0 {
		t.Fatalf("unknown room must yield an empty peer set")
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ep := newFakeEndpoint(fmt.Sprintf("ep-%d", i))
			room := domain.RoomID(fmt.Sprintf("room-%d", i%4))
			for j := 0; j < 50; j++ {
				reg.Join(ep, "room-a")
				reg.Peers("room-a", ep.ID())
				reg.Join(ep, room)
				reg.Leave(ep)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		if reg.HasRoom(domain.RoomID(fmt.Sprintf("room-%d", i))) {
			t.Fatalf("room-%d leaked after all members left", i)
		}
	}
}
