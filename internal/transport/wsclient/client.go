// Package wsclient is the session controller's side of the signaling
// channel: a websocket connection speaking the relay's envelope protocol.
package wsclient

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hiregen/coordinator/internal/relay"
)

type Client struct {
	conn *websocket.Conn
	recv chan relay.Forwarded

	mu     sync.Mutex
	closed bool
}

// Dial connects to the relay's signaling endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn: conn,
		recv: make(chan relay.Forwarded, 32),
	}
	go c.readLoop()
	return c, nil
}

// Send writes one envelope. Serialized by a mutex; gorilla connections
// support one concurrent writer only.
func (c *Client) Send(env relay.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteJSON(env)
}

// Receive yields forwarded envelopes until the connection closes, at
// which point the channel is closed.
func (c *Client) Receive() <-chan relay.Forwarded {
	return c.recv
}

func (c *Client) readLoop() {
	defer close(c.recv)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "wsclient").Msg("signaling read ended")
			return
		}
		var fwd relay.Forwarded
		if err := json.Unmarshal(data, &fwd); err != nil || fwd.Type == "" {
			log.Warn().Str("module", "wsclient").Msg("dropping malformed inbound frame")
			continue
		}
		select {
		case c.recv <- fwd:
		default:
			log.Warn().Str("module", "wsclient").Str("type", string(fwd.Type)).Msg("receive queue full, dropping")
		}
	}
}

// Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
