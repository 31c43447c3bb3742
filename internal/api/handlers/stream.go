package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"snail-trail-service/internal/api/dto"
	"snail-trail-service/internal/platform/metrics"
	"snail-trail-service/internal/ports"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientBuffer   = 16
	maxClientFrame = 512
)

type streamClient struct {
	id   uuid.UUID
	send chan []byte
}

// StreamHub fans position snapshots out to WebSocket clients. Clients that
// fall behind lose frames instead of slowing the ticker down.
type StreamHub struct {
	Metrics *metrics.Collector

	// Current, when set, provides the first frame a new client receives.
	Current func() ports.PositionSnapshot

	mu       sync.Mutex
	clients  map[*streamClient]struct{}
	upgrader websocket.Upgrader
}

var _ ports.PositionPublisher = (*StreamHub)(nil)

func NewStreamHub(m *metrics.Collector) *StreamHub {
	return &StreamHub{
		Metrics: m,
		clients: make(map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Native and local map clients do not send a browser Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func encodeFrame(snap ports.PositionSnapshot) ([]byte, error) {
	return json.Marshal(dto.PositionsFrame{
		Type:   dto.FramePositions,
		Tick:   snap.Tick,
		Snails: snap.Snails,
	})
}

// Publish queues one frame per connected client without blocking.
func (h *StreamHub) Publish(ctx context.Context, snap ports.PositionSnapshot) error {
	frame, err := encodeFrame(snap)
	if err != nil {
		return fmt.Errorf("stream publish tick %d: %w", snap.Tick, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slog.DebugContext(ctx, "stream client lagging, frame dropped", "client", c.id, "tick", snap.Tick)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *StreamHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *StreamHub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.Metrics.StreamConnected(1)
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.Metrics.StreamConnected(-1)
	}
}

// ServeHTTP upgrades the request and streams frames until the client goes away.
func (h *StreamHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.DebugContext(r.Context(), "stream upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	c := &streamClient{id: uuid.New(), send: make(chan []byte, clientBuffer)}
	if h.Current != nil {
		if frame, err := encodeFrame(h.Current()); err == nil {
			c.send <- frame
		}
	}

	h.add(c)
	defer h.remove(c)
	slog.DebugContext(r.Context(), "stream client connected", "client", c.id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readLoop(conn)
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			slog.DebugContext(r.Context(), "stream client disconnected", "client", c.id)
			return
		case frame := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.DebugContext(r.Context(), "stream write failed", "client", c.id, "err", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages and returns once the connection fails.
func readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
