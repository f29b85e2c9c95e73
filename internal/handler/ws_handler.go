/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, upgrading
the HTTP connection to WebSocket, registering the connection with the voice room and running
its read and write loops.
*/
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voicerelay/internal/app/voice"
	"voicerelay/internal/pkg/errs"
	"voicerelay/internal/pkg/limiter"
	"voicerelay/internal/pkg/logx"
	"voicerelay/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rateLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", logx.AnonymizeIP(limiter.ClientIP(r)))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := deps.Manager.NewClient(conn)

		if err := deps.Manager.Room().Connect(client); err != nil {
			logx.Warn("WebSocket connection rejected by the room.", "conn_id", client.ID(), "error", err.Error())

			code, reason := websocket.CloseInternalServerErr, "connection rejected"
			if errors.Is(err, voice.ErrRoomClosed) {
				code, reason = websocket.CloseGoingAway, "server shutting down"
			}
			closeMessage := websocket.FormatCloseMessage(code, reason)
			_ = conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}

		logx.Debug("WebSocket connection established.", "conn_id", client.ID())

		go client.WritePump()

		client.ReadPump()
	}
}
