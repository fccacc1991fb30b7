// Package feed streams bus events to WebSocket clients.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

const (
	clientBuffer = 64
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

type client struct {
	id    string
	types map[string]bool
	send  chan []byte
}

func (c *client) wants(kind string) bool {
	return len(c.types) == 0 || c.types[kind]
}

// Hub fans bus events out to the connected clients. Slow clients lose
// messages rather than block the hub.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	origins []string
	log     logger.Logger
	now     func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithOriginPatterns accepts upgrades from cross-origin pages whose host
// matches one of the patterns. Same-origin requests are always accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = append([]string(nil), patterns...) }
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger, opts ...Option) *Hub {
	if log == nil {
		log = logger.Nop{}
	}
	h := &Hub{clients: make(map[string]*client), log: log, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run forwards the events of src until ctx is done.
func (h *Hub) Run(ctx context.Context, src eventbus.Source[eventbus.Event]) <-chan struct{} {
	return eventbus.Listen(ctx, src, h.broadcast)
}

func (h *Hub) broadcast(ev eventbus.Event) {
	kind := events.Name(ev)
	if kind == "" {
		return
	}
	data, err := json.Marshal(Message{Type: kind, Time: h.now(), Payload: ev})
	if err != nil {
		h.log.Errorf("encode %s event: %v", kind, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.wants(kind) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Debugf("feed client %s buffer full, dropping %s", c.id, kind)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Debugf("feed client %s connected", c.id)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	h.log.Debugf("feed client %s disconnected", c.id)
}

// ServeHTTP upgrades the request to a WebSocket. The optional "types" query
// parameter restricts the feed to a comma separated list of event names.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.Warnf("websocket accept from %q failed: %v", r.Header.Get("Origin"), err)
		return
	}
	defer conn.CloseNow()

	c := &client{id: uuid.New().String(), send: make(chan []byte, clientBuffer)}
	if t := r.URL.Query().Get("types"); t != "" {
		c.types = make(map[string]bool)
		for _, k := range strings.Split(t, ",") {
			c.types[strings.TrimSpace(k)] = true
		}
	}
	h.register(c)
	defer h.unregister(c)

	// clients only listen; CloseRead handles control frames
	ctx := conn.CloseRead(r.Context())
	h.writeLoop(ctx, conn, c)
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.log.Debugf("feed client %s write: %v", c.id, err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
