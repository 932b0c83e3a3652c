package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/hexarace/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	mu     sync.Mutex
	sent   []uint16
	closed bool
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) Ping() error                          { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }
func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockConnection) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *MockConnection) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func newTestSession(id string, opts Options) (*Session, *MockConnection) {
	conn := &MockConnection{}
	return NewSession(id, "player-"+id, conn, opts), conn
}

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sess, _ := newTestSession("test_session_1", DefaultOptions())

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sess.ID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sess.ID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	if _, exists = manager.Get(sess.ID); exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_IdleSince(t *testing.T) {
	manager := NewManager()

	idle, _ := newTestSession("idle", DefaultOptions())
	idle.lastActive = time.Now().Add(-time.Hour)
	active, _ := newTestSession("active", DefaultOptions())

	manager.Add(idle)
	manager.Add(active)

	got := manager.IdleSince(time.Now().Add(-time.Minute))
	if len(got) != 1 || got[0] != idle {
		t.Errorf("Expected only the idle session, got %d sessions", len(got))
	}

	active.Touch()
	if active.LastActive().Before(time.Now().Add(-time.Second)) {
		t.Error("Touch should refresh LastActive")
	}
}

func TestSession_Rooms(t *testing.T) {
	sess, _ := newTestSession("rooms", DefaultOptions())

	sess.AddRoom("b")
	sess.AddRoom("a")
	sess.AddRoom("a")

	rooms := sess.Rooms()
	if len(rooms) != 2 || rooms[0] != "a" || rooms[1] != "b" {
		t.Errorf("Expected [a b], got %v", rooms)
	}
	if !sess.InRoom("a") {
		t.Error("InRoom should report a joined room")
	}

	sess.RemoveRoom("a")
	if sess.InRoom("a") {
		t.Error("InRoom should not report a left room")
	}
}

func TestSession_WritePump(t *testing.T) {
	sess, conn := newTestSession("pump", DefaultOptions())
	go sess.WritePump()

	for i := 0; i < 3; i++ {
		if err := sess.Send(network.MsgTypeRoomState, []byte("{}")); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for conn.sentCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if conn.sentCount() != 3 {
		t.Errorf("Expected 3 messages written, got %d", conn.sentCount())
	}

	sess.Close()
	if err := sess.Send(network.MsgTypeRoomState, nil); err != ErrSessionClosed {
		t.Errorf("Expected ErrSessionClosed after close, got %v", err)
	}
}

func TestSession_SendQueueFullClosesSession(t *testing.T) {
	opts := DefaultOptions()
	opts.SendBuffer = 1
	sess, conn := newTestSession("slow", opts)

	if err := sess.Send(network.MsgTypeRoomState, nil); err != nil {
		t.Fatalf("First send should fit the queue: %v", err)
	}
	if err := sess.Send(network.MsgTypeRoomState, nil); err != ErrSendQueueFull {
		t.Fatalf("Expected ErrSendQueueFull, got %v", err)
	}
	if !conn.isClosed() {
		t.Error("A session that cannot keep up should be closed")
	}
	select {
	case <-sess.Done():
	default:
		t.Error("Done should be closed")
	}
}

func TestSession_Allow(t *testing.T) {
	sess, _ := newTestSession("limited", Options{SendBuffer: 1, RateLimit: 1, RateBurst: 2})

	if !sess.Allow() || !sess.Allow() {
		t.Fatal("Burst events should be allowed")
	}
	if sess.Allow() {
		t.Error("Event beyond the burst should be rejected")
	}
}

func TestManager_All(t *testing.T) {
	manager := NewManager()
	for _, id := range []string{"a", "b", "c"} {
		sess, _ := newTestSession(id, DefaultOptions())
		manager.Add(sess)
	}
	manager.Remove("b")

	all := manager.All()
	if len(all) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(all))
	}
	for _, sess := range all {
		if sess.ID == "b" {
			t.Error("Removed session should not be listed")
		}
	}
}
