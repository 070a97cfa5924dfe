package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/ayusman/holistic/internal/pipeline"
)

// Wire formats for /api/landmarks. JSON goes out as text messages and
// msgpack as binary messages.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

const (
	clientBuffer = 8
	writeTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type client struct {
	conn   *websocket.Conn
	format string
	send   chan []byte
}

// Hub fans published snapshots out to websocket clients. A client whose
// buffer is full misses frames rather than stalling the publisher.
type Hub struct {
	log     *zap.Logger
	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  *pipeline.Snapshot
	closed  bool
}

// NewHub creates a Hub. A nil logger discards output.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket. ?format=msgpack selects the
// binary encoding; the default is JSON. The latest snapshot, if any, is sent
// immediately.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatMsgpack {
		http.Error(w, "unknown format", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, format: format, send: make(chan []byte, clientBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}
	h.log.Debug("websocket client connected", zap.String("remote", r.RemoteAddr), zap.String("format", format))

	go h.writeLoop(c)

	// Reads only detect the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(c)
	h.log.Debug("websocket client disconnected", zap.String("remote", r.RemoteAddr))
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}

	if h.latest != nil {
		if msg, err := encode(h.latest, c.format); err == nil {
			c.send <- msg
		}
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()

	kind := websocket.TextMessage
	if c.format == FormatMsgpack {
		kind = websocket.BinaryMessage
	}

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(kind, msg); err != nil {
			h.log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Publish queues snap for every connected client. Each format is encoded at
// most once.
func (h *Hub) Publish(snap *pipeline.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.latest = snap

	encoded := make(map[string][]byte, 2)
	for c := range h.clients {
		msg, ok := encoded[c.format]
		if !ok {
			var err error
			msg, err = encode(snap, c.format)
			if err != nil {
				h.log.Warn("encode snapshot failed", zap.String("format", c.format), zap.Error(err))
				return
			}
			encoded[c.format] = msg
		}

		select {
		case c.send <- msg:
		default:
			h.log.Debug("websocket client lagging, frame dropped", zap.Uint64("seq", snap.Seq))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func encode(snap *pipeline.Snapshot, format string) ([]byte, error) {
	if format == FormatMsgpack {
		return msgpack.Marshal(snap)
	}
	return json.Marshal(snap)
}
