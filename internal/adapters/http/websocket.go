package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
	"github.com/samirrijal/crimescope/internal/pkg/geospatial"
	"github.com/samirrijal/crimescope/internal/pkg/metrics"
)

const (
	wsSendBuffer   = 32
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// wsMessage is sent from client to narrow or widen its feed.
type wsMessage struct {
	Type string `json:"type"` // "subscribe" | "unsubscribe"
	BBox string `json:"bbox"` // south,west,north,east; empty means everywhere
}

// wsReply acknowledges a client message.
type wsReply struct {
	Type  string `json:"type"` // "subscribed" | "unsubscribed" | "error"
	BBox  string `json:"bbox,omitempty"`
	Error string `json:"error,omitempty"`
}

// wsEvent wraps a fetch event on the wire.
type wsEvent struct {
	Type  string             `json:"type"`
	Event *domain.FetchEvent `json:"event"`
}

type wsClient struct {
	send chan []byte

	mu     sync.Mutex
	paused bool
	filter *domain.Bounds
}

func (cl *wsClient) wants(b domain.Bounds) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.paused {
		return false
	}
	return cl.filter == nil || cl.filter.Intersects(b)
}

func (cl *wsClient) subscribe(b *domain.Bounds) {
	cl.mu.Lock()
	cl.paused = false
	cl.filter = b
	cl.mu.Unlock()
}

func (cl *wsClient) unsubscribe() {
	cl.mu.Lock()
	cl.paused = true
	cl.mu.Unlock()
}

// handle applies one client frame and returns the acknowledgement.
func (cl *wsClient) handle(raw []byte) wsReply {
	var m wsMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return wsReply{Type: "error", Error: "invalid JSON"}
	}

	switch m.Type {
	case "subscribe":
		if m.BBox == "" {
			cl.subscribe(nil)
			return wsReply{Type: "subscribed"}
		}
		b, err := geospatial.ParseBBox(m.BBox)
		if err != nil {
			return wsReply{Type: "error", Error: err.Error()}
		}
		cl.subscribe(&b)
		return wsReply{Type: "subscribed", BBox: m.BBox}

	case "unsubscribe":
		cl.unsubscribe()
		return wsReply{Type: "unsubscribed"}

	default:
		return wsReply{Type: "error", Error: "unknown message type: " + m.Type}
	}
}

// Hub fans fetch-completed events out to connected WebSocket clients so
// live maps can reload areas that were just fetched. It doubles as an
// EventPublisher when no broker is configured.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

var _ ports.EventPublisher = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

func (h *Hub) register(cl *wsClient) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	metrics.ActiveWebSockets.Inc()
}

func (h *Hub) unregister(cl *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		metrics.ActiveWebSockets.Dec()
	}
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers ev to every client whose filter overlaps the event
// bounds. Slow clients lose the message rather than stall the hub.
func (h *Hub) Broadcast(ctx context.Context, ev *domain.FetchEvent) error {
	data, err := json.Marshal(wsEvent{Type: "fetch.completed", Event: ev})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		if !cl.wants(ev.Bounds) {
			continue
		}
		select {
		case cl.send <- data:
		default:
			slog.WarnContext(ctx, "ws client too slow, dropping event", "event_id", ev.ID)
		}
	}
	return nil
}

// PublishFetchCompleted implements ports.EventPublisher.
func (h *Hub) PublishFetchCompleted(ctx context.Context, ev *domain.FetchEvent) error {
	return h.Broadcast(ctx, ev)
}

// WebSocketHandler upgrades to WebSocket and relays fetch events from the hub.
// New clients receive every event. They send JSON
// {"type":"subscribe","bbox":"51.4,-0.2,51.6,0.1"} to receive only events
// overlapping the box and {"type":"unsubscribe"} to pause the feed.
func WebSocketHandler(hub *Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		cl := &wsClient{send: make(chan []byte, wsSendBuffer)}
		hub.register(cl)
		defer hub.unregister(cl)

		reply := func(r wsReply) {
			data, err := json.Marshal(r)
			if err != nil {
				return
			}
			select {
			case cl.send <- data:
			default:
			}
		}

		// Single writer: events, replies and pings all go through here.
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case msg := <-cl.send:
					_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
					if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				case <-ticker.C:
					_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
					if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			reply(cl.handle(msg))
		}

		close(done)
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
