// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
}

// clientBuffer bounds the per-subscriber queue; a subscriber that falls
// this far behind starts losing events rather than stalling the hub.
const clientBuffer = 64

const writeTimeout = 5 * time.Second

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub is the live event feed: operators subscribe over a websocket and
// receive every lifecycle event as JSON. Publish never blocks; lagging
// subscribers drop events.
//
// Thread Safety: safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *logging.Logger
	closed  bool
}

var _ Dispatcher = (*Hub)(nil)

func NewHub(log *logging.Logger) *Hub {
	return &Hub{clients: make(map[*client]struct{}), log: log}
}

// Publish enqueues the event for every subscriber.
func (h *Hub) Publish(_ context.Context, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.log.Debug("dropping event for slow websocket subscriber", "event_type", ev.Type)
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler upgrades the request and streams events until the client
// disconnects or the hub closes.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(gc *gin.Context) {
		conn, err := upgrader.Upgrade(gc.Writer, gc.Request, nil)
		if err != nil {
			h.log.Error("websocket upgrade failed", "error", err)
			return
		}
		c := &client{conn: conn, send: make(chan Event, clientBuffer)}

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			conn.Close()
			return
		}
		h.clients[c] = struct{}{}
		h.mu.Unlock()
		h.log.Debug("websocket subscriber connected", "remote", conn.RemoteAddr().String())

		go h.writeLoop(c)
		h.readLoop(c)
	}
}

// readLoop drains the connection; the feed is one-way, so any read
// error is just the disconnect signal.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			h.log.Debug("websocket write failed", "error", err)
			h.drop(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "hub closed"))
	c.conn.Close()
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
