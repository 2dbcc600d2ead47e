package broker

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yamca/yamca/internal/protocol"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	maxFrameSize = 64 << 10
)

var ErrTooManyConnections = errors.New("too many connections")

type client struct {
	conn *websocket.Conn
	send chan []byte
	user string
	done chan struct{}
}

func newClient(conn *websocket.Conn, buffer int, user string) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, buffer),
		user: user,
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// writePump owns all writes to the connection, including pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Hub tracks connected clients and queues outbound messages to them. A
// client whose queue is full is disconnected.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	buffer   int
	maxConns int
	metrics  *Metrics
	logger   zerolog.Logger

	// onRemove runs once for every client that leaves the hub.
	onRemove func(*client)
}

func NewHub(buffer, maxConns int, metrics *Metrics, logger zerolog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		clients:  make(map[*client]bool),
		buffer:   buffer,
		maxConns: maxConns,
		metrics:  metrics,
		logger:   logger,
	}
}

func (h *Hub) AddClient(conn *websocket.Conn, user string) (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxConns > 0 && len(h.clients) >= h.maxConns {
		return nil, ErrTooManyConnections
	}
	c := newClient(conn, h.buffer, user)
	h.clients[c] = true
	h.metrics.Connections.Set(float64(len(h.clients)))
	return c, nil
}

func (h *Hub) RemoveClient(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.close()
		h.metrics.Connections.Set(float64(len(h.clients)))
	}
	h.mu.Unlock()

	if ok && h.onRemove != nil {
		h.onRemove(c)
	}
}

// Send queues env for c. It reports false if c was dropped or already gone.
func (h *Hub) Send(c *client, env protocol.Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(env.Type)).Msg("marshal envelope")
		return false
	}

	// c.send is only closed under the write lock, so sending under the read
	// lock cannot race with RemoveClient.
	h.mu.RLock()
	registered := h.clients[c]
	queued := false
	if registered {
		select {
		case c.send <- data:
			queued = true
		default:
		}
	}
	h.mu.RUnlock()

	if registered && !queued {
		h.logger.Warn().Str("user", c.user).Msg("ws client too slow, disconnecting")
		h.metrics.SlowClients.Inc()
		h.RemoveClient(c)
	}
	return queued
}

// Push sends env to every client in targets except skip.
func (h *Hub) Push(targets []*client, skip *client, env protocol.Envelope) int {
	sent := 0
	for _, c := range targets {
		if c == skip {
			continue
		}
		if h.Send(c, env) {
			sent++
		}
	}
	h.metrics.Pushes.WithLabelValues(string(env.Type)).Add(float64(sent))
	return sent
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.RemoveClient(c)
	}
}
