package room

import (
	"sort"
	"sync"
)

// Manager 管理所有房间：首次加入时创建，房间清空时删除
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate returns the room registered under id, creating it when absent.
// Concurrent callers for the same id get the same instance.
func (m *Manager) GetOrCreate(id string) (*Room, bool) {
	m.mutex.RLock()
	room, exists := m.rooms[id]
	m.mutex.RUnlock()
	if exists {
		return room, false
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		return room, false
	}
	room = NewRoom(id)
	m.rooms[id] = room
	return room, true
}

// Get 从管理器中获取一个房间
func (m *Manager) Get(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// Remove drops room from the manager and marks it closed. The caller must hold
// the room lock. A newer room registered under the same id is left alone.
func (m *Manager) Remove(id string, room *Room) {
	room.closed = true

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if current, exists := m.rooms[id]; exists && current == room {
		delete(m.rooms, id)
	}
}

// List returns the registered rooms ordered by id.
func (m *Manager) List() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
