// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package wshub fans typed events out to every connected WebSocket client
// and evicts clients that stop answering keepalive pings (§4.2). The
// broadcast mechanics mirror the non-blocking, mutex-guarded fan-out of
// loom's pkg/communication/bus.go MessageBus/TopicBroadcaster, adapted from
// topic-subscriber delivery to one flat "all clients" registry.
package wshub

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const sendQueueSize = 64

// Frame is any outbound WS payload; every concrete event type embeds Type
// and Timestamp so the hub can inject a timestamp when one is missing.
type Frame map[string]any

func (f Frame) ensureTimestamp() {
	if _, ok := f["timestamp"]; !ok {
		f["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
}

// client is one connected socket's registry entry.
type client struct {
	id       uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
	lastPong atomic.Int64 // unix nanos
	closeOnce sync.Once
}

// Hub maintains the set of connected clients and fans broadcasts out to all
// of them, each over its own buffered send queue and write-pump goroutine
// (goclaw/internal/gateway's Upgrader + per-connection write pump shape).
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	log     *zap.Logger

	delivered atomic.Int64
	dropped   atomic.Int64

	pingInterval      time.Duration
	connectionTimeout time.Duration
	pingLimiter       *rate.Limiter

	stopKeepalive chan struct{}
	keepaliveOnce sync.Once
}

// New builds a Hub. pingInterval/connectionTimeout default to 30s/60s per
// §4.2 when zero.
func New(pingInterval, connectionTimeout time.Duration, log *zap.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if connectionTimeout <= 0 {
		connectionTimeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:           make(map[uuid.UUID]*client),
		log:               log,
		pingInterval:      pingInterval,
		connectionTimeout: connectionTimeout,
		// Floors the keepalive tick rate at pingInterval regardless of how
		// often tick is invoked, so a misconfigured ticker (or a test
		// driving tick directly) can never ping faster than configured.
		pingLimiter:   rate.NewLimiter(rate.Every(pingInterval), 1),
		stopKeepalive: make(chan struct{}),
	}
}

// Connect registers conn, sends the welcome frame, and starts its write
// pump. The returned id is used by Disconnect.
func (h *Hub) Connect(conn *websocket.Conn) uuid.UUID {
	c := &client{id: uuid.New(), conn: conn, send: make(chan []byte, sendQueueSize)}
	c.lastPong.Store(time.Now().UnixNano())

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go h.writePump(c)

	h.sendTo(c, Frame{"type": "connection_established", "client_id": c.id.String()})
	return c.id
}

// Disconnect removes a client and closes its socket.
func (h *Hub) Disconnect(id uuid.UUID) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if ok {
		h.closeClient(c)
	}
}

func (h *Hub) closeClient(c *client) {
	c.closeOnce.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// NotePong records a client's liveness, called from the read pump whenever
// a pong (or any client message) arrives.
func (h *Hub) NotePong(id uuid.UUID) {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if ok {
		c.lastPong.Store(time.Now().UnixNano())
	}
}

// ClientCount reports the number of currently connected clients (for the
// /health endpoint's websocket_connections field).
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast serializes event to JSON and fans it out to every live client;
// a client whose send queue is full is dropped (non-blocking, matching
// communication/bus.go's `select { case ch<-msg: default: dropped++ }`).
func (h *Hub) Broadcast(event Frame) {
	event.ensureTimestamp()
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshal broadcast frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var evicted []uuid.UUID
	for _, c := range targets {
		select {
		case c.send <- payload:
			h.delivered.Add(1)
		default:
			h.dropped.Add(1)
			evicted = append(evicted, c.id)
		}
	}
	for _, id := range evicted {
		h.Disconnect(id)
	}
}

func (h *Hub) sendTo(c *client, event Frame) {
	event.ensureTimestamp()
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (h *Hub) writePump(c *client) {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.Disconnect(c.id)
			return
		}
	}
}

// StartKeepalive launches the background ping loop; stopped by
// StopKeepalive. Safe to call at most once per Hub.
func (h *Hub) StartKeepalive() {
	go func() {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stopKeepalive:
				return
			case <-ticker.C:
				h.tick()
			}
		}
	}()
}

// StopKeepalive halts the ping loop.
func (h *Hub) StopKeepalive() {
	h.keepaliveOnce.Do(func() { close(h.stopKeepalive) })
}

func (h *Hub) tick() {
	if !h.pingLimiter.Allow() {
		return
	}
	h.Broadcast(Frame{"type": "ping"})

	deadline := time.Now().Add(-h.connectionTimeout)

	h.mu.RLock()
	var stale []uuid.UUID
	for id, c := range h.clients {
		if time.Unix(0, c.lastPong.Load()).Before(deadline) {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.log.Warn("evicting stale websocket client", zap.String("client_id", id.String()))
		h.Disconnect(id)
	}
}

// Stats is a snapshot of broadcast delivery counters.
type Stats struct {
	Delivered int64
	Dropped   int64
	Connected int
}

func (h *Hub) Stats() Stats {
	return Stats{Delivered: h.delivered.Load(), Dropped: h.dropped.Load(), Connected: h.ClientCount()}
}
