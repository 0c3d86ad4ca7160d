// Package live pushes stored-upload notices to websocket subscribers.
//
// The upload server publishes a Notice for every file it stores; clients
// connected to the hub receive it as a JSON text message. The put command's
// --follow flag and the tail command read the feed with Follow.
package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Notice announces one stored upload.
type Notice struct {
	Path        string    `json:"path"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	StoredAt    time.Time `json:"stored_at"`
}

// Config configures a Hub.
type Config struct {
	// WriteTimeout bounds each write to a subscriber.
	WriteTimeout time.Duration

	// PingInterval is how often subscribers are pinged. A subscriber that
	// doesn't answer within two intervals is dropped.
	PingInterval time.Duration

	// QueueSize is the per-subscriber backlog. A subscriber whose backlog
	// is full is dropped rather than slowing publishers down.
	QueueSize int

	// CheckOrigin validates the Origin header. If nil, same-origin
	// requests only, as in websocket.Upgrader.
	CheckOrigin func(r *http.Request) bool

	// OnSubscribers is called with the subscriber count whenever it
	// changes.
	OnSubscribers func(n int)

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		QueueSize:    16,
	}
}

// Hub fans notices out to websocket subscribers.
type Hub struct {
	config   Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub. A nil config uses DefaultConfig.
func NewHub(config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	def := DefaultConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger:  logger.With("component", "live"),
		clients: make(map[*client]struct{}),
	}
}

// Publish sends n to every subscriber without blocking.
func (h *Hub) Publish(n Notice) {
	msg, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("encode notice", "error", err)
		return
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow subscriber", "remote", c.remote)
		h.remove(c)
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams notices until the client
// goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, h.config.QueueSize),
		done:   make(chan struct{}),
		remote: r.RemoteAddr,
	}
	if !h.add(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.config.WriteTimeout))
		conn.Close()
		return
	}

	go h.readLoop(c)
	h.writeLoop(c)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("subscriber connected", "remote", c.remote, "subscribers", n)
	h.notifyCount(n)
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.stop()
	if ok {
		h.logger.Debug("subscriber disconnected", "remote", c.remote, "subscribers", n)
		h.notifyCount(n)
	}
}

func (h *Hub) notifyCount(n int) {
	if h.config.OnSubscribers != nil {
		h.config.OnSubscribers(n)
	}
}

// readLoop discards client messages and notices disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	deadline := 2 * h.config.PingInterval
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				h.logger.Warn("read error", "remote", c.remote, "error", err)
			}
			return
		}
	}
}

// writeLoop is the only writer of c.conn besides the close handshake.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	remote string
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}
