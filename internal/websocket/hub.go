// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

// Package websocket implements the connection registry and alert fan-out.
//
// Connections are addressable three ways: by connection id, by identity
// (one identity may hold several simultaneous connections), and by role.
// Delivery is best-effort: a connection whose outbound queue is full is
// counted as failed and pruned, never blocking the sender.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/safetrail/safetrail/internal/config"
	"github.com/safetrail/safetrail/internal/logging"
	"github.com/safetrail/safetrail/internal/metrics"
)

// Message types for WebSocket communication.
const (
	MessageTypeAlert     = "alert"
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
)

// Subscriber roles. RolePolice receives every escalated alert.
const (
	RoleTourist = "tourist"
	RolePolice  = "police"
	RoleAdmin   = "admin"
)

// Message is a typed WebSocket payload.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// DeliveryResult reports the outcome of a fan-out, listing connection
// ids that received the message and those that failed and were pruned.
type DeliveryResult struct {
	Delivered []string
	Failed    []string
}

// Hub maintains the registry of active connections.
//
// Invariant: every connection id in identities appears in clients, and an
// identity with no remaining connections has no map entry at all.
type Hub struct {
	cfg config.WebSocketConfig

	mu         sync.RWMutex
	clients    map[string]*Client
	identities map[string][]string

	Register   chan *Client
	Unregister chan *Client
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		cfg:        cfg,
		clients:    make(map[string]*Client),
		identities: make(map[string][]string),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext processes connection lifecycle events until the context
// is canceled, then closes every connection and returns ctx.Err(). Sends
// do not pass through this loop; they take the registry lock directly.
//
// Lifecycle events are drained before each blocking wait so a burst of
// connects and disconnects settles before the loop parks again.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	if client.identity != "" {
		h.identities[client.identity] = append(h.identities[client.identity], client.id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebsocketConnections.Set(float64(total))
	logging.Info().
		Str("connection_id", client.id).
		Str("identity", client.identity).
		Str("role", client.role).
		Int("total_connections", total).
		Msg("WebSocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	removed := h.removeLocked(client.id)
	total := len(h.clients)
	h.mu.Unlock()

	if !removed {
		return
	}
	metrics.WebsocketConnections.Set(float64(total))
	logging.Info().
		Str("connection_id", client.id).
		Int("total_connections", total).
		Msg("WebSocket client disconnected")
}

// removeLocked drops a connection from both maps and closes its send
// channel. Callers must hold the write lock. Returns false when the id
// was not registered (already pruned).
func (h *Hub) removeLocked(id string) bool {
	client, ok := h.clients[id]
	if !ok {
		return false
	}
	delete(h.clients, id)
	close(client.send)

	if client.identity == "" {
		return true
	}
	ids := h.identities[client.identity]
	for i, cid := range ids {
		if cid == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(h.identities, client.identity)
	} else {
		h.identities[client.identity] = ids
	}
	return true
}

// shutdown closes every connection in id order and logs the outcome.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		h.removeLocked(id)
	}
	h.mu.Unlock()

	metrics.WebsocketConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		AnErr("reason", ctx.Err()).
		Int("connections_closed", len(ids)).
		Msg("WebSocket hub stopped")
}

// deliver sends msg to every client matching the filter, in ascending
// connection-id order, then prunes the failures. The send pass runs
// under the read lock so no channel can be closed mid-send; a client
// whose queue is full counts as failed and is removed afterwards.
func (h *Hub) deliver(msg Message, filter func(*Client) bool) DeliveryResult {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if filter == nil || filter(c) {
			clients = append(clients, c)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var result DeliveryResult
	for _, client := range clients {
		select {
		case client.send <- msg:
			result.Delivered = append(result.Delivered, client.id)
			metrics.WebsocketMessagesSent.WithLabelValues(msg.Type).Inc()
		default:
			result.Failed = append(result.Failed, client.id)
			metrics.WebsocketSendFailures.Inc()
		}
	}
	h.mu.RUnlock()

	if len(result.Failed) > 0 {
		h.mu.Lock()
		for _, id := range result.Failed {
			h.removeLocked(id)
		}
		total := len(h.clients)
		h.mu.Unlock()

		metrics.WebsocketConnections.Set(float64(total))
		logging.Warn().
			Strs("pruned", result.Failed).
			Str("message_type", msg.Type).
			Msg("Pruned unresponsive WebSocket connections")
	}
	return result
}

// Broadcast sends a message to every connection.
func (h *Hub) Broadcast(msg Message) DeliveryResult {
	return h.deliver(msg, nil)
}

// SendTo sends a message to a single connection.
func (h *Hub) SendTo(connectionID string, msg Message) DeliveryResult {
	return h.deliver(msg, func(c *Client) bool { return c.id == connectionID })
}

// SendToIdentity sends a message to every connection held by an identity.
func (h *Hub) SendToIdentity(identity string, msg Message) DeliveryResult {
	return h.deliver(msg, func(c *Client) bool { return c.identity == identity })
}

// BroadcastToRole sends a message to every connection with the given
// role. When no connection holds the role the message degrades to a full
// broadcast, so an escalated alert is never silently dropped just
// because no police dashboard is online.
func (h *Hub) BroadcastToRole(role string, msg Message) DeliveryResult {
	hasRole := false
	h.mu.RLock()
	for _, c := range h.clients {
		if c.role == role {
			hasRole = true
			break
		}
	}
	h.mu.RUnlock()

	if !hasRole {
		logging.Warn().
			Str("role", role).
			Str("message_type", msg.Type).
			Msg("No subscribers for role, degrading to broadcast")
		return h.Broadcast(msg)
	}
	return h.deliver(msg, func(c *Client) bool { return c.role == role })
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IdentityConnections returns the connection ids held by an identity.
func (h *Hub) IdentityConnections(identity string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.identities[identity]...)
}

// ConnectedData is the payload of the greeting sent on registration.
type ConnectedData struct {
	ConnectionID string    `json:"connection_id"`
	Identity     string    `json:"identity,omitempty"`
	Role         string    `json:"role"`
	Timestamp    time.Time `json:"timestamp"`
}
