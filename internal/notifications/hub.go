package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"workit/internal/middleware"
	"workit/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// ErrConnectionLimit is returned when a socket cannot be registered.
var ErrConnectionLimit = errors.New("connection limit reached")

// Hub maps userID -> set of Clients and delivers event envelopes to them.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	presence   *ConnectionManager
	closed     bool
}

// NewHub creates a hub. Presence may be nil when online tracking is not needed.
func NewHub(presence *ConnectionManager) *Hub {
	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		presence: presence,
	}
}

// Presence returns the connection manager backing this hub.
func (h *Hub) Presence() *ConnectionManager {
	return h.presence
}

// Register a connection for a given userID. Returns the Client or an error if limits are exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.New("hub is shut down")
	}
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrConnectionLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrConnectionLimit
	}

	client := newClient(h, conn, userID)
	if h.presence != nil {
		client.OnActivity = func(uid uint) {
			h.presence.Touch(context.Background(), uid)
		}
	}
	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketConnections.Inc()
	if h.presence != nil {
		h.presence.Register(context.Background(), userID)
	}
	return client, nil
}

// UnregisterClient drops a client and starts the presence grace window when
// it was the user's last socket.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if !removed {
		return
	}
	client.close()
	observability.WebSocketConnections.Dec()
	if h.presence != nil {
		h.presence.Unregister(context.Background(), client.UserID)
	}
}

// SendToUser sends message to all connections for userID.
func (h *Hub) SendToUser(userID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[userID] {
		c.TrySend(message)
	}
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(message)
		}
	}
}

// ConnectionCount reports the number of sockets currently registered.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// StartWiring connects the Notifier to this hub: Redis user channels are
// routed to that user's sockets and the broadcast channel to everyone.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == broadcastChannel {
			h.BroadcastAll([]byte(payload))
			return
		}
		userID, ok := parseUserChannel(channel)
		if !ok {
			middleware.Logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		h.SendToUser(userID, []byte(payload))
	})
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := h.conns
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	if h.presence != nil {
		h.presence.Stop()
	}

	// Closing Send makes each WritePump emit a close frame and drop the socket.
	for _, userConns := range conns {
		for client := range userConns {
			observability.WebSocketConnections.Dec()
			client.close()
		}
	}
	return nil
}
