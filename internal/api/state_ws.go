/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/caravelradio/maestro/internal/events"
	"github.com/caravelradio/maestro/internal/telemetry"
	ws "nhooyr.io/websocket"
)

// writeTimeout bounds each websocket write so a stalled client drops
// instead of backing up the feed.
const writeTimeout = 5 * time.Second

// wsEvent is the wire framing for the state feed.
type wsEvent struct {
	Type    string         `json:"type"`
	Payload events.Payload `json:"payload"`
}

// handleStateWS streams scheduler events to a display or controller
// surface. Late joiners get a full snapshot followed by the current
// queue projection before the live feed begins.
func (a *API) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Debug().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.WebSocketSubscribers.Inc()
	defer telemetry.WebSocketSubscribers.Dec()

	ctx := r.Context()
	sub := a.bus.Subscribe(events.EventAny)
	defer a.bus.Unsubscribe(events.EventAny, sub)

	if err := a.sendEvent(ctx, conn, wsEvent{
		Type:    string(events.EventSnapshot),
		Payload: a.sched.Snapshot(),
	}); err != nil {
		return
	}
	if err := a.sendEvent(ctx, conn, wsEvent{
		Type:    string(events.EventQueueUpdated),
		Payload: events.Payload{"entries": a.sched.VisibleQueue(ctx)},
	}); err != nil {
		return
	}

	pingTicker := time.NewTicker(15 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return

		case <-pingTicker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case evt, ok := <-sub:
			if !ok {
				conn.Close(ws.StatusNormalClosure, "feed closed")
				return
			}
			if err := a.sendEvent(ctx, conn, wsEvent{
				Type:    string(evt.Type),
				Payload: evt.Payload,
			}); err != nil {
				a.logger.Debug().Err(err).Msg("websocket send failed, dropping subscriber")
				return
			}
		}
	}
}

func (a *API) sendEvent(ctx context.Context, conn *ws.Conn, evt wsEvent) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, ws.MessageText, raw)
}
