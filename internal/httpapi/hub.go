package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lucsky/cuid"

	"dmxparams/internal/device"
	"dmxparams/internal/logger"
)

const (
	writeWait      = 5 * time.Second
	clientBuffer   = 16
	messageValues  = "values"
	messageInitial = "snapshot"
)

// message is what websocket clients receive.
type message struct {
	Type   string         `json:"type"`
	Values []device.Value `json:"values"`
}

type client struct {
	id   string
	send chan message
	quit chan struct{}
}

// Hub streams parameter changes to websocket clients.
type Hub struct {
	log      *logger.Log
	upgrader websocket.Upgrader
	source   func() []device.Value

	mu      sync.Mutex
	clients map[string]*client
	watcher *device.Watcher
	closed  bool
}

// NewHub creates a hub reading values from source.
func NewHub(log *logger.Log, source func() []device.Value) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		source:  source,
		clients: map[string]*client{},
		watcher: device.NewWatcher(),
	}
}

// Broadcast sends changed values to every client. It is meant to run from the frame loop.
func (h *Hub) Broadcast(time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return
	}
	changed := h.watcher.Diff(h.source())
	if len(changed) == 0 {
		return
	}

	msg := message{Type: messageValues, Values: changed}
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warnf("websocket client %s is slow, dropping update", c.id)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("websocket upgrade: %v", err)
		return
	}

	c := &client{id: cuid.New(), send: make(chan message, clientBuffer), quit: make(chan struct{})}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.log.Debugf("websocket client %s connected", c.id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.unregister(c)
		_ = conn.Close()
		h.log.Debugf("websocket client %s disconnected", c.id)
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-c.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		close(c.quit)
		delete(h.clients, id)
	}
}

// register queues the snapshot and adds c in one step, so a Broadcast
// cannot advance the watcher between the two.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	c.send <- message{Type: messageInitial, Values: h.source()}
	h.clients[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}
