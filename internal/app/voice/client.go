/*
Package voice contains the signaling relay for the shared voice room.

This file defines the Client struct, representing one WebSocket connection. ReadPump
decodes, validates and rate limits inbound frames before handing them to the Room;
WritePump drains the outbound queue and keeps the connection alive with pings.
*/
package voice

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"voicerelay/internal/pkg/errs"
	"voicerelay/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	defaultSendQueueSize  = 256
	defaultMaxMessageSize = 64 * 1024
)

// ClientOptions bounds a single connection.
type ClientOptions struct {
	// SendQueueSize is the capacity of the outbound queue. A client that lets it fill up is evicted.
	SendQueueSize int

	// MaxMessageSize is the read limit for one inbound frame, in bytes.
	MaxMessageSize int64

	// MessageRate and MessageBurst throttle inbound frames. A zero rate disables throttling.
	MessageRate  float64
	MessageBurst int
}

// Client represents an active WebSocket connection.
type Client struct {
	// opaque connection id, never shown to other clients.
	id string

	room *Room

	// underlying WebSocket connection object. Nil in tests that drive the room directly.
	conn *websocket.Conn

	// outbound queue, written and closed only by the room coordinator.
	send chan []byte

	limiter        *rate.Limiter
	maxMessageSize int64

	// state and evicting are owned by the room coordinator.
	state    ConnState
	evicting bool

	logger zerolog.Logger
}

// NewClient constructs a Client bound to room. The caller registers it with Room.Connect
// before starting the pumps.
func NewClient(room *Room, wsConn *websocket.Conn, id string, opts ClientOptions) *Client {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = defaultSendQueueSize
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}

	limit := rate.Inf
	if opts.MessageRate > 0 {
		limit = rate.Limit(opts.MessageRate)
	}
	burst := opts.MessageBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		id:             id,
		room:           room,
		conn:           wsConn,
		send:           make(chan []byte, opts.SendQueueSize),
		limiter:        rate.NewLimiter(limit, burst),
		maxMessageSize: opts.MaxMessageSize,
		logger:         logx.Logger().With().Str("conn_id", id).Logger(),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// ReadPump reads frames until the connection fails, then reports the disconnect.
// It must run on its own goroutine.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(c.maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundMessage(messageBytes)
	}
}

// cleanupOnDisconnect hands the connection back to the room. The disconnect is never dropped.
func (c *Client) cleanupOnDisconnect() {
	c.room.Disconnect(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

func (c *Client) processInboundMessage(messageBytes []byte) {
	if !c.limiter.Allow() {
		c.logger.Warn().Msg("Client exceeded message rate limit")
		c.room.Reject(c, errs.NewError(errs.ErrRateLimitExceeded))
		return
	}

	msg, err := ParseInbound(messageBytes)
	if err != nil {
		c.logger.Debug().
			Int("code", err.Code).
			Str("reason", err.Message).
			Msg("Client sent invalid frame")
		c.room.Reject(c, err)
		return
	}

	c.room.Dispatch(c, msg)
}

// WritePump writes queued frames to the WebSocket until the queue is closed, the room stops
// or a write fails. It must run on its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}

		case <-c.room.Done():
			c.writeClose(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

// writeQueuedMessage returns false when the WritePump loop should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if !ok {
		c.writeClose(websocket.CloseNormalClosure, "")
		return false
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Info().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage returns false when the WritePump loop should terminate.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Info().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

func (c *Client) writeClose(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	closeMessage := websocket.FormatCloseMessage(code, reason)

	if err := c.conn.WriteControl(websocket.CloseMessage, closeMessage, deadline); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing close message")
	}
}
