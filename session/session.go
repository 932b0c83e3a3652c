// session/session.go
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/hexarace/network"
	"golang.org/x/time/rate"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSendQueueFull = errors.New("session send queue full")
)

type Options struct {
	SendBuffer int
	RateLimit  float64 // events per second
	RateBurst  int
}

func DefaultOptions() Options {
	return Options{SendBuffer: 64, RateLimit: 10, RateBurst: 20}
}

type outbound struct {
	msgID uint16
	data  []byte
}

// Session 是一条连接。ID 标识连接本身，PlayerID 标识连接背后的玩家。
type Session struct {
	ID        string
	PlayerID  string
	Conn      network.Connection
	CreatedAt time.Time

	rooms      map[string]struct{}
	lastActive time.Time
	limiter    *rate.Limiter
	outbox     chan outbound
	done       chan struct{}
	closeOnce  sync.Once
	mutex      sync.RWMutex
}

func NewSession(id, playerID string, conn network.Connection, opts Options) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		PlayerID:   playerID,
		Conn:       conn,
		CreatedAt:  now,
		rooms:      make(map[string]struct{}),
		lastActive: now,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		outbox:     make(chan outbound, opts.SendBuffer),
		done:       make(chan struct{}),
	}
}

// Send queues a message for the write pump without blocking. A session that
// cannot keep up is closed.
func (s *Session) Send(msgID uint16, data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.outbox <- outbound{msgID: msgID, data: data}:
		return nil
	default:
		s.Close()
		return ErrSendQueueFull
	}
}

// WritePump drains the send queue onto the connection until the session closes.
func (s *Session) WritePump() {
	for {
		select {
		case msg := <-s.outbox:
			if err := s.Conn.Send(msg.msgID, msg.data); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.Conn.Close()
	})
	return err
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Allow reports whether another inbound event fits the rate limit.
func (s *Session) Allow() bool {
	return s.limiter.Allow()
}

func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) AddRoom(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rooms[roomID] = struct{}{}
}

func (s *Session) RemoveRoom(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.rooms, roomID)
}

func (s *Session) InRoom(roomID string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Rooms returns the joined room IDs in sorted order.
func (s *Session) Rooms() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Session) GetID() string {
	return s.ID
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// IdleSince returns sessions whose last activity is older than cutoff.
func (m *Manager) IdleSince(cutoff time.Time) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.LastActive().Before(cutoff) {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}
