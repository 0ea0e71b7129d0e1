package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

// Hub pushes events to connected websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex // per-connection write lock
}

type Stats struct {
	WSClients int `json:"ws_clients"`
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*sync.Mutex)}
}

func (h *Hub) Add(ws *websocket.Conn) {
	h.mu.Lock()
	h.clients[ws] = &sync.Mutex{}
	h.mu.Unlock()
}

func (h *Hub) Remove(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// Publish writes ev to every client; clients that fail the write are dropped.
// Writes happen outside the hub lock, so a slow client only delays itself
// and the publishers queued behind it.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for ws, wmu := range h.clients {
		targets[ws] = wmu
	}
	h.mu.Unlock()

	for ws, wmu := range targets {
		wmu.Lock()
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		err := ws.WriteMessage(websocket.TextMessage, b)
		wmu.Unlock()
		if err != nil {
			h.Remove(ws)
		}
	}
	return nil
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{WSClients: len(h.clients)}
}
