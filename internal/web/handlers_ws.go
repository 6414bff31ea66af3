package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"uzigbee-devices/internal/catalog"
)

// helloEvent is sent to each client on connect, before any catalog event.
const helloEvent = "hello"

type helloData struct {
	Version string `json:"version"`
	Devices int    `json:"devices"`
	Issues  int    `json:"issues"`
}

// WSHub fans catalog events out to WebSocket clients. All client bookkeeping
// happens on the Run goroutine; mu only guards reads from other goroutines.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	logger  *slog.Logger

	register   chan *wsClient
	unregister chan *wsClient
	events     chan catalog.Event

	done     chan struct{}
	stopOnce sync.Once
}

type wsClient struct {
	conn  *websocket.Conn
	send  chan []byte
	types map[string]bool // nil receives every event
}

func (c *wsClient) wants(typ string) bool {
	return c.types == nil || c.types[typ]
}

// NewWSHub creates a hub; call Run to start it.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]struct{}),
		logger:     logger,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		events:     make(chan catalog.Event, 256),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until Stop, then closes every client.
func (h *WSHub) Run() {
	defer h.closeAll()
	for {
		select {
		case <-h.done:
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c, "ws client disconnected")
		case ev := <-h.events:
			h.fanOut(ev)
		}
	}
}

func (h *WSHub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("ws client connected", "total", n)
}

func (h *WSHub) remove(c *wsClient, msg string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug(msg, "total", n)
	}
}

func (h *WSHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// fanOut queues ev for every interested client. A client whose queue is full
// is dropped.
func (h *WSHub) fanOut(ev catalog.Event) {
	var data []byte
	h.mu.RLock()
	var full []*wsClient
	for c := range h.clients {
		if !c.wants(ev.Type) {
			continue
		}
		if data == nil {
			var err error
			if data, err = json.Marshal(ev); err != nil {
				h.mu.RUnlock()
				h.logger.Error("ws marshal", "type", ev.Type, "err", err)
				return
			}
		}
		select {
		case c.send <- data:
		default:
			full = append(full, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range full {
		h.logger.Warn("ws client too slow, dropping", "type", ev.Type)
		h.remove(c, "ws client dropped")
	}
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop shuts the hub down. Safe to call more than once.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast queues ev without blocking; it is dropped when the queue is full.
func (h *WSHub) Broadcast(ev catalog.Event) {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("ws event queue full, dropping event", "type", ev.Type)
	}
}

// eventTypes parses the ?types=a,b filter. No filter means every event.
func eventTypes(r *http.Request) map[string]bool {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return nil
	}
	types := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = true
		}
	}
	if len(types) == 0 {
		return nil
	}
	return types
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}
	conn.SetReadLimit(4096)

	client := &wsClient{
		conn:  conn,
		send:  make(chan []byte, 64),
		types: eventTypes(r),
	}
	client.send <- s.hello()

	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	go s.wsWritePump(client)
	s.wsReadPump(client)
}

func (s *Server) hello() []byte {
	data, _ := json.Marshal(catalog.Event{Type: helloEvent, Data: helloData{
		Version: s.version,
		Devices: s.catalog.Len(),
		Issues:  len(s.catalog.Issues()),
	}})
	return data
}

func (s *Server) wsWritePump(client *wsClient) {
	for msg := range client.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	client.conn.Close(websocket.StatusNormalClosure, "")
}

// wsReadPump drains the connection until it closes; clients only listen.
func (s *Server) wsReadPump(client *wsClient) {
	defer func() {
		select {
		case s.wsHub.unregister <- client:
		case <-s.wsHub.done:
			client.conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-s.wsHub.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if _, _, err := client.conn.Read(ctx); err != nil {
			return
		}
	}
}
