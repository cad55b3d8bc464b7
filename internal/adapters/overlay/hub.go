package overlay

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bonebunny/lootledger/internal/projection"
	"github.com/bonebunny/lootledger/pkg/logger"
	"github.com/bonebunny/lootledger/pkg/metrics"
)

// Hub fans the variable bag out to connected overlay clients. It implements
// the flow's VarSink, so every flow transition pushes the fresh bag without
// the overlay polling for it.
//
// Each connection carries its own write lock: gorilla allows at most one
// concurrent writer per connection, and the replay in ServeWS can race an
// UpdateVars push without it.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex
	last    projection.Vars
	closed  bool

	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewHub creates an empty hub. Only loopback origins may connect.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		log:     logger.Named("overlay.ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, prefix := range []string{"http://localhost:", "http://127.0.0.1:", "http://[::1]:"} {
					if strings.HasPrefix(origin, prefix) {
						return true
					}
				}
				return false
			},
		},
	}
}

// ServeWS upgrades the connection, replays the latest bag, and keeps the
// client registered until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	wmu := &sync.Mutex{}
	h.clients[conn] = wmu
	count := len(h.clients)
	last := h.last
	h.mu.Unlock()
	metrics.UpdateOverlayClients(count)

	if last != nil {
		wmu.Lock()
		err := conn.WriteJSON(last)
		wmu.Unlock()
		if err != nil {
			h.drop(conn)
			return
		}
	}

	// The overlay never sends meaningful frames; the read loop only exists
	// to notice the disconnect.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// UpdateVars caches the bag and pushes it to every connected client.
// Clients that fail a write are dropped.
func (h *Hub) UpdateVars(vars projection.Vars) {
	h.mu.Lock()
	h.last = vars
	conns := make([]*websocket.Conn, 0, len(h.clients))
	locks := make([]*sync.Mutex, 0, len(h.clients))
	for c, wmu := range h.clients {
		conns = append(conns, c)
		locks = append(locks, wmu)
	}
	h.mu.Unlock()

	for i, c := range conns {
		locks[i].Lock()
		err := c.WriteJSON(vars)
		locks[i].Unlock()
		if err != nil {
			h.log.Warn(context.Background(), "overlay push failed, dropping client", logger.Error(err))
			h.drop(c)
			continue
		}
		metrics.RecordOverlayPush()
	}
}

// ClientCount returns the number of connected overlay clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	metrics.UpdateOverlayClients(0)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()
	_ = conn.Close()
	metrics.UpdateOverlayClients(count)
}
