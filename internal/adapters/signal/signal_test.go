package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/hiregen/coordinator/internal/config"
	"github.com/hiregen/coordinator/internal/domain"
	"github.com/hiregen/coordinator/internal/relay"
)

type testServer struct {
	srv *httptest.Server
	reg *relay.Registry
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := relay.NewRegistry()
	rel := relay.New(reg)
	ctl := NewController(rel, &config.Config{
		ReadLimit:      32768,
		PingPeriod:     time.Second,
		SendQueueDepth: 8,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/api/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{srv: srv, reg: reg}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/ws/signal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendText(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readForwarded(t *testing.T, conn *websocket.Conn) relay.Forwarded {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var fwd relay.Forwarded
	if err := conn.ReadJSON(&fwd); err != nil {
		t.Fatalf("read forwarded frame: %v", err)
	}
	return fwd
}

func waitMembers(t *testing.T, ts *testServer, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(ts.reg.Peers(domain.RoomID(room), "")) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %q never reached %d members", room, want)
}

func TestOfferRelayedBetweenConnections(t *testing.T) {
	ts := startTestServer(t)
	a := ts.dial(t)
	b := ts.dial(t)

	sendText(t, a, `{"type":"join","roomId":"room-1"}`)
	sendText(t, b, `{"type":"join","roomId":"room-1"}`)
	waitMembers(t, ts, "room-1", 2)

	sendText(t, a, `{"type":"offer","roomId":"room-1","payload":{"sdp":"v=0"}}`)

	fwd := readForwarded(t, b)
	if fwd.From != "peer" || fwd.Type != relay.TypeOffer {
		t.Fatalf("unexpected frame: %+v", fwd)
	}
}

func TestDisconnectedPeerDoesNotBreakRoom(t *testing.T) {
	ts := startTestServer(t)
	a := ts.dial(t)
	b := ts.dial(t)

	sendText(t, a, `{"type":"join","roomId":"room-1"}`)
	sendText(t, b, `{"type":"join","roomId":"room-1"}`)
	waitMembers(t, ts, "room-1", 2)

	b.Close()
	waitMembers(t, ts, "room-1", 1)

	// The survivor keeps signaling; nothing errors server-side.
	sendText(t, a, `{"type":"ice-candidate","roomId":"room-1","payload":{"candidate":"candidate:1"}}`)

	c := ts.dial(t)
	sendText(t, c, `{"type":"join","roomId":"room-1"}`)
	waitMembers(t, ts, "room-1", 2)

	sendText(t, a, `{"type":"answer","roomId":"room-1","payload":{"sdp":"v=0"}}`)
	fwd := readForwarded(t, c)
	if fwd.Type != relay.TypeAnswer {
		t.Fatalf("expected answer, got %+v", fwd)
	}
}

func TestRoomDeletedAfterLastLeave(t *testing.T) {
	ts := startTestServer(t)
	a := ts.dial(t)

	sendText(t, a, `{"type":"join","roomId":"room-1"}`)
	waitMembers(t, ts, "room-1", 1)

	a.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !ts.reg.HasRoom("room-1") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("room-1 should be deleted once its only member disconnects")
}

func TestMalformedFrameKeepsConnectionAlive(t *testing.T) {
	ts := startTestServer(t)
	a := ts.dial(t)
	b := ts.dial(t)

	sendText(t, a, `{"type":"join","roomId":"room-1"}`)
	sendText(t, b, `{"type":"join","roomId":"room-1"}`)
	waitMembers(t, ts, "room-1", 2)

	sendText(t, a, `this is not an envelope`)
	sendText(t, a, `{"type":"offer","roomId":"room-1","payload":{"sdp":"v=0"}}`)

	fwd := readForwarded(t, b)
	if fwd.Type != relay.TypeOffer {
		t.Fatalf("offer after garbage should still relay, got %+v", fwd)
	}
}
