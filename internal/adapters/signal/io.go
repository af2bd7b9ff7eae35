package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, e *wsEndpoint) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("endpoint", e.id).Msg("writePump ping")
				return
			}
		case data, ok := <-e.send:
			if !ok {
				return
			}
			if err := e.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("endpoint", e.id).Msg("writePump set deadline")
				return
			}
			if err := e.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("endpoint", e.id).Msg("writePump write error")
				return
			}
		}
	}
}

// readPump feeds inbound frames into the relay sequentially, preserving
// the sender's per-envelope order. On any read error the endpoint leaves
// its room unconditionally; Disconnect tolerates never-joined endpoints.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, e *wsEndpoint) {
	defer func() {
		log.Info().Str("module", "signal").Str("endpoint", e.id).Msg("connection closing")
		ctl.Relay.Disconnect(e)
		cancel()
		e.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := e.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("endpoint", e.id).Msg("readPump read error")
				}
				return
			}
			ctl.Relay.HandleFrame(e, data)
		}
	}
}
