// Package signal adapts websocket connections into relay endpoints.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hiregen/coordinator/internal/config"
	"github.com/hiregen/coordinator/internal/relay"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Relay *relay.Relay

	readLimit  int64
	pingPeriod time.Duration
	queueDepth int
}

func NewController(rel *relay.Relay, cfg *config.Config) *Controller {
	return &Controller{
		Relay:      rel,
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
		queueDepth: cfg.SendQueueDepth,
	}
}

// wsEndpoint implements relay.Endpoint over one websocket connection.
type wsEndpoint struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (e *wsEndpoint) ID() string { return e.id }

// TrySend queues a frame without blocking. A full queue or a closed
// connection is an error the relay treats as "peer not writable".
func (e *wsEndpoint) TrySend(frame []byte) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	select {
	case e.send <- frame:
	default:
		return ErrBackpressure
	}
	return nil
}

func (e *wsEndpoint) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.send)
	_ = e.conn.Close()
	e.mu.Unlock()
}

// HandleSignal upgrades the request and runs the endpoint's pumps.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	ep := &wsEndpoint{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan []byte, ctl.queueDepth),
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}
	log.Info().Str("module", "signal").Str("endpoint", ep.id).Str("client_token", c.GetString("client_token")).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, ep)
	go ctl.readPump(ctx, cancel, ep)
}
