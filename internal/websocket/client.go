// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package websocket

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/safetrail/safetrail/internal/logging"
)

const maxMessageSize = 64 * 1024 // 64 KB

// Client is a single WebSocket connection registered with the hub.
type Client struct {
	id       string
	identity string
	role     string

	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient wraps an upgraded connection. The identity is the subject
// the connection belongs to (may be empty for anonymous dashboards);
// the role decides which role-addressed broadcasts it receives.
func NewClient(hub *Hub, conn *websocket.Conn, identity, role string) *Client {
	if role == "" {
		role = RoleTourist
	}
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		role:     role,
		hub:      hub,
		conn:     conn,
		send:     make(chan Message, hub.cfg.SendBuffer),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Start registers the client with the hub, sends the connection
// greeting, and launches the read and write pumps.
func (c *Client) Start() {
	c.hub.Register <- c

	greeting := Message{
		Type: MessageTypeConnected,
		Data: ConnectedData{
			ConnectionID: c.id,
			Identity:     c.identity,
			Role:         c.role,
			Timestamp:    time.Now().UTC(),
		},
	}
	select {
	case c.send <- greeting:
	default:
	}

	go c.writePump()
	go c.readPump()
}

// readPump consumes inbound frames until the connection drops, answering
// pings and keeping the read deadline fresh on pongs.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout)); err != nil {
		logging.Error().Err(err).Str("connection_id", c.id).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("connection_id", c.id).Msg("Unexpected WebSocket close")
			}
			return
		}

		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

// writePump drains the send queue to the connection. Every write carries
// a bounded deadline; a write that exceeds it tears the connection down
// rather than wedging the pump.
func (c *Client) writePump() {
	pingPeriod := c.hub.cfg.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout)); err != nil {
				logging.Error().Err(err).Str("connection_id", c.id).Msg("Failed to set write deadline")
				return
			}
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Warn().Err(err).Str("connection_id", c.id).Msg("WebSocket write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
