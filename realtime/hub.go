// Package realtime fans dispatch lifecycle events out to connected clients.
// Delivery is best-effort per session: clients that care about correctness
// poll the HTTP surface, the push channel only shortens their reaction time.
package realtime

import (
	"sync"
	"time"

	"github.com/carelink/dispatchd/core/logger"
)

// Room names. Coordinators share one room; drivers and families each get a
// room keyed by their id so events stay scoped to the people involved.
const RoomCoordinators = "coordinators"

// RoomDriver returns the room addressing a single driver.
func RoomDriver(driverID string) string { return "driver:" + driverID }

// RoomFamily returns the room addressing an elder's family members.
func RoomFamily(elderID string) string { return "family:" + elderID }

// Envelope is the wire frame pushed to every session in a room.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// NewEnvelope stamps the payload with the current time.
func NewEnvelope(eventType string, data any) Envelope {
	return Envelope{Type: eventType, Data: data, Timestamp: time.Now().Unix()}
}

// Session is one connected client. Send must not block: implementations
// buffer and drop, returning an error only when the session is unusable.
type Session interface {
	ID() string
	Send(env Envelope) error
	Close() error
}

// Hub tracks sessions per room and publishes envelopes to them.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Session
	log   logger.Logger
}

// NewHub creates an empty Hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{rooms: make(map[string]map[string]Session), log: log}
}

// Join adds the session to the room.
func (h *Hub) Join(room string, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Session)
		h.rooms[room] = members
	}
	members[s.ID()] = s
	h.log.Debugf("session %s joined room %s (%d members)", s.ID(), room, len(members))
}

// Leave removes the session from the room. Unknown pairs are a no-op.
func (h *Hub) Leave(room, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// LeaveAll removes the session from every room it joined.
func (h *Hub) LeaveAll(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, members := range h.rooms {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Publish delivers the envelope to every session in the rooms. A failing
// session is evicted so one dead connection cannot keep erroring forever.
func (h *Hub) Publish(env Envelope, rooms ...string) {
	h.mu.RLock()
	var targets []Session
	seen := make(map[string]bool)
	for _, room := range rooms {
		for id, s := range h.rooms[room] {
			if !seen[id] {
				seen[id] = true
				targets = append(targets, s)
			}
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.Send(env); err != nil {
			h.log.Warnf("dropping session %s: %v", s.ID(), err)
			h.LeaveAll(s.ID())
			_ = s.Close()
		}
	}
}

// Count returns the number of sessions in the room.
func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
