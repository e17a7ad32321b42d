package app

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManager tracks named fan-out groups of connections. Rooms exist while
// they have members.
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomName]map[core.ConnID]core.Conn
	byConn map[core.ConnID]map[domain.RoomName]struct{}
	reg    *Registry
}

// NewRoomManager drops connections from every room when reg tears them down.
func NewRoomManager(reg *Registry) *RoomManager {
	m := &RoomManager{
		rooms:  make(map[domain.RoomName]map[core.ConnID]core.Conn),
		byConn: make(map[core.ConnID]map[domain.RoomName]struct{}),
		reg:    reg,
	}
	reg.OnTeardown(func(_ domain.IdentityCode, conn core.Conn) { m.LeaveAll(conn.ID()) })
	return m
}

// Join is idempotent. Joining with an unregistered connection fails so a
// torn down connection can never reappear in a room.
func (m *RoomManager) Join(id core.ConnID, room domain.RoomName) error {
	if room == "" {
		return fmt.Errorf("%w: room is required", domain.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, conn, ok := m.reg.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: connection %s", domain.ErrNotFound, id)
	}
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[core.ConnID]core.Conn)
		m.rooms[room] = members
	}
	if _, ok := members[id]; ok {
		return nil
	}
	members[id] = conn
	joined, ok := m.byConn[id]
	if !ok {
		joined = make(map[domain.RoomName]struct{})
		m.byConn[id] = joined
	}
	joined[room] = struct{}{}
	log.Debug().Str("module", "app.rooms").Str("conn", string(id)).Str("room", string(room)).Int("members", len(members)).Msg("joined")
	return nil
}

// Leave is idempotent.
func (m *RoomManager) Leave(id core.ConnID, room domain.RoomName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(id, room)
}

func (m *RoomManager) LeaveAll(id core.ConnID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for room := range m.byConn[id] {
		m.leaveLocked(id, room)
	}
}

func (m *RoomManager) leaveLocked(id core.ConnID, room domain.RoomName) {
	if members, ok := m.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(m.rooms, room)
			log.Debug().Str("module", "app.rooms").Str("room", string(room)).Msg("room released")
		}
	}
	if joined, ok := m.byConn[id]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(m.byConn, id)
		}
	}
}

// Broadcast sends ev to every member of room except exclude. Membership is
// snapshotted; sends happen outside the lock.
func (m *RoomManager) Broadcast(room domain.RoomName, ev core.Event, exclude core.ConnID) core.PublishResult {
	m.mu.RLock()
	members := m.rooms[room]
	targets := make([]core.Conn, 0, len(members))
	for id, c := range members {
		if id == exclude {
			continue
		}
		targets = append(targets, c)
	}
	m.mu.RUnlock()
	return m.reg.Deliver(targets, ev)
}

func (m *RoomManager) Members(room domain.RoomName) []core.ConnID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.ConnID, 0, len(m.rooms[room]))
	for id := range m.rooms[room] {
		out = append(out, id)
	}
	return out
}

func (m *RoomManager) RoomsOf(id core.ConnID) []domain.RoomName {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.RoomName, 0, len(m.byConn[id]))
	for room := range m.byConn[id] {
		out = append(out, room)
	}
	return out
}

func (m *RoomManager) IsMember(id core.ConnID, room domain.RoomName) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[room][id]
	return ok
}

func (m *RoomManager) List() []core.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for name, members := range m.rooms {
		out = append(out, core.RoomInfo{Name: name, MemberCount: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
