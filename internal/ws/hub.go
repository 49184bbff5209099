package ws

import (
	"context"
	"sort"
	"sync"
	"time"

	"dm-service/internal/logging"
	"dm-service/internal/models"
	"dm-service/internal/observability"
)

// Conn is a live connection handle. Enqueue must not block; it returns false
// when the connection can no longer accept frames.
type Conn interface {
	ID() string
	Enqueue(frame []byte) bool
	Close()
}

// Hub is the presence registry: user id -> live connections. Every change
// to the online set is broadcast to all connections while the lock is held,
// so each connection observes online sets in the order the changes happened.
type Hub struct {
	mu    sync.Mutex
	users map[string]map[Conn]ConnInfo
	log   logging.Logger
}

// NewHub creates an empty registry.
func NewHub(log logging.Logger) *Hub {
	return &Hub{
		users: make(map[string]map[Conn]ConnInfo),
		log:   log,
	}
}

// Register adds conn under userID. Registering the same handle twice keeps
// a single entry. A handle held by another user is moved, so it never
// belongs to two users.
func (h *Hub) Register(userID string, conn Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, mine := h.users[userID][conn]; !mine {
		h.removeLocked(conn)
	}

	conns, ok := h.users[userID]
	if !ok {
		conns = make(map[Conn]ConnInfo)
		h.users[userID] = conns
	}
	if _, exists := conns[conn]; !exists {
		observability.IncWSActive()
	}
	conns[conn] = info
	h.dropLocked(h.broadcastOnlineLocked())
}

// Unregister removes conn from whichever user holds it. Unknown handles are
// ignored.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removeLocked(conn) {
		h.dropLocked(h.broadcastOnlineLocked())
	}
}

// Lookup returns the live connections of userID.
func (h *Hub) Lookup(userID string) []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := make([]Conn, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		conns = append(conns, c)
	}
	return conns
}

// ListOnline returns the ids with at least one live connection, sorted.
func (h *Hub) ListOnline() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.onlineLocked()
}

// IsOnline reports whether userID has a live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users[userID]) > 0
}

// SendTo enqueues frame on every connection of userID and returns how many
// accepted it.
func (h *Hub) SendTo(userID string, frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	var delivered int
	var dead []Conn
	for c := range h.users[userID] {
		if c.Enqueue(frame) {
			delivered++
		} else {
			dead = append(dead, c)
		}
	}
	h.dropLocked(dead)
	return delivered
}

// SendAll enqueues frame on every live connection.
func (h *Hub) SendAll(frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered, dead := h.fanOutLocked(frame)
	h.dropLocked(dead)
	return delivered
}

func (h *Hub) fanOutLocked(frame []byte) (int, []Conn) {
	var delivered int
	var dead []Conn
	for _, conns := range h.users {
		for c := range conns {
			if c.Enqueue(frame) {
				delivered++
			} else {
				dead = append(dead, c)
			}
		}
	}
	return delivered, dead
}

// dropLocked removes connections that refused a frame. Removal changes the
// online set, which is broadcast again until no connection refuses.
func (h *Hub) dropLocked(dead []Conn) {
	for len(dead) > 0 {
		changed := false
		for _, c := range dead {
			if h.removeLocked(c) {
				changed = true
			}
			c.Close()
			observability.IncWSEvent("ws_dropped")
		}
		if !changed {
			return
		}
		dead = h.broadcastOnlineLocked()
	}
}

func (h *Hub) broadcastOnlineLocked() []Conn {
	online := h.onlineLocked()
	frame, err := encodeFrame(models.EventOnlineUsers, online)
	if err != nil {
		h.log.Error(context.Background(), "encode online set", "err", err)
		return nil
	}
	_, dead := h.fanOutLocked(frame)
	return dead
}

func (h *Hub) removeLocked(conn Conn) bool {
	for userID, conns := range h.users {
		info, ok := conns[conn]
		if !ok {
			continue
		}
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
		observability.DecWSActive()
		h.log.Debug(context.Background(), "connection unregistered",
			"user_id", userID, "conn_id", info.ConnID, "duration_ms", time.Since(info.ConnectedAt).Milliseconds())
		return true
	}
	return false
}

func (h *Hub) onlineLocked() []string {
	online := make([]string, 0, len(h.users))
	for userID := range h.users {
		online = append(online, userID)
	}
	sort.Strings(online)
	return online
}
