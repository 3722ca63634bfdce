package relay

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mossy-p/callrelay/internal/models"
)

// Surface names an independent relay channel.
type Surface string

const (
	SurfaceNegotiation Surface = "negotiation"
	SurfaceChat        Surface = "chat"
)

// Conn is one participant connection as seen by the relay. Send must not
// block; a full or closed connection reports an error instead.
type Conn interface {
	ID() string
	Send(data []byte) error
}

type group struct {
	mu      sync.RWMutex
	members map[string]Conn
}

// Hub keeps the per-session groups of one surface.
type Hub struct {
	surface Surface
	log     *zap.Logger

	mu     sync.RWMutex
	groups map[string]*group
}

func NewHub(surface Surface, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		surface: surface,
		log:     log,
		groups:  make(map[string]*group),
	}
}

// Join adds conn to the session group and returns the members that were
// already present. Adding and snapshotting happen under the group lock, so of
// two racing joiners exactly one sees the other.
func (h *Hub) Join(sessionID string, conn Conn) []Conn {
	h.mu.Lock()
	g, exists := h.groups[sessionID]
	if !exists {
		g = &group{members: make(map[string]Conn)}
		h.groups[sessionID] = g
	}
	g.mu.Lock()
	h.mu.Unlock()
	defer g.mu.Unlock()

	others := make([]Conn, 0, len(g.members))
	for id, member := range g.members {
		if id != conn.ID() {
			others = append(others, member)
		}
	}
	g.members[conn.ID()] = conn

	h.log.Debug("joined group",
		zap.String("surface", string(h.surface)),
		zap.String("session", sessionID),
		zap.String("conn", conn.ID()),
		zap.Int("members", len(g.members)))
	return others
}

// Leave removes conn from the session group and drops the group once empty.
func (h *Hub) Leave(sessionID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, exists := h.groups[sessionID]
	if !exists {
		return
	}

	g.mu.Lock()
	delete(g.members, conn.ID())
	count := len(g.members)
	g.mu.Unlock()

	if count == 0 {
		delete(h.groups, sessionID)
		h.log.Debug("removed empty group",
			zap.String("surface", string(h.surface)),
			zap.String("session", sessionID))
	}
}

// Broadcast sends data to every member of the session group except senderID.
// A missing group is not an error.
func (h *Hub) Broadcast(sessionID, senderID string, data []byte) (delivered, dropped int) {
	h.mu.RLock()
	g, exists := h.groups[sessionID]
	if !exists {
		h.mu.RUnlock()
		return 0, 0
	}
	g.mu.RLock()
	h.mu.RUnlock()

	recipients := make([]Conn, 0, len(g.members))
	for id, member := range g.members {
		if id != senderID {
			recipients = append(recipients, member)
		}
	}
	g.mu.RUnlock()

	return h.Deliver(sessionID, recipients, data)
}

// Deliver enqueues data on each recipient. Failures are isolated per
// recipient.
func (h *Hub) Deliver(sessionID string, recipients []Conn, data []byte) (delivered, dropped int) {
	for _, conn := range recipients {
		if err := conn.Send(data); err != nil {
			dropped++
			h.log.Warn("failed to deliver message",
				zap.String("surface", string(h.surface)),
				zap.String("session", sessionID),
				zap.String("conn", conn.ID()),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered, dropped
}

// Members returns the number of connections in the session group.
func (h *Hub) Members(sessionID string) int {
	h.mu.RLock()
	g, exists := h.groups[sessionID]
	h.mu.RUnlock()
	if !exists {
		return 0
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

func (h *Hub) Stats() models.GroupStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := models.GroupStats{Groups: len(h.groups)}
	for _, g := range h.groups {
		g.mu.RLock()
		stats.Members += len(g.members)
		g.mu.RUnlock()
	}
	return stats
}
