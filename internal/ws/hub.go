// Package ws fans ingested telemetry out to WebSocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"airsense-server/internal/metrics"
)

// Event names emitted to subscribers.
const (
	EventTelemetryNew = "telemetry:new"
	EventDeviceUpdate = "device:update"
)

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks connected subscribers and fans events out to all of them.
// Emission is fire-and-forget: no subscriber, a slow subscriber or a dead
// transport never blocks or fails the caller.
type Hub struct {
	logger *slog.Logger

	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	upgrader websocket.Upgrader
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The JSON API already handles CORS; the ws endpoint carries no
			// credentials and is read-only for clients.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run owns the client set. It exits when ctx is done, closing every
// remaining subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			metrics.RealtimeClients.Set(0)
			return
		case c := <-h.register:
			h.clients[c] = true
			metrics.RealtimeClients.Set(float64(len(h.clients)))
			h.logger.Debug("realtime subscriber connected", "subscribers", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				metrics.RealtimeClients.Set(float64(len(h.clients)))
				h.logger.Debug("realtime subscriber disconnected", "subscribers", len(h.clients))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Subscriber can't keep up; drop it rather than
					// back-pressure ingestion.
					delete(h.clients, c)
					close(c.send)
				}
			}
			metrics.RealtimeClients.Set(float64(len(h.clients)))
		}
	}
}

// Broadcast queues an event for all current subscribers. It never blocks;
// when the hub is saturated the event is dropped and logged.
func (h *Hub) Broadcast(event string, data any) {
	msg, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error("marshal realtime event", "event", event, "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("realtime broadcast queue full, dropping event", "event", event)
	}
}

// ServeWS upgrades an HTTP request and registers the subscriber.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, 32)}
	h.register <- c
	go c.writePump()
	go c.readPump()
}
