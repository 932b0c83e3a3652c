package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/hexarace/config"
	"github.com/wfunc/hexarace/monitor"
	"github.com/wfunc/hexarace/network"
	"github.com/wfunc/hexarace/room"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddress:   "127.0.0.1:0",
			IdleTimeout:   time.Minute,
			SweepInterval: time.Second,
		},
		Session: config.SessionConfig{SendBuffer: 16, RateLimit: 100, RateBurst: 100},
	}
}

func packet(t *testing.T, msgID uint16, payload any) *network.Packet {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &network.Packet{MsgID: msgID, Data: data, Length: uint16(len(data))}
}

func TestGameServer_ConnectionLifecycle(t *testing.T) {
	rooms := room.NewRoomManager()
	s := NewGameServer(testConfig(), rooms, monitor.NewMonitor("hexarace_conn"), &MockRecorder{})

	conn := newMockConnection()
	done := make(chan struct{})
	go func() {
		s.handleConnection(conn)
		close(done)
	}()

	conn.packets <- packet(t, network.MsgTypeJoinRoom, map[string]any{"roomId": "R", "name": "Ann"})

	var welcome welcomeMessage
	require.Eventually(t, func() bool {
		msgs := conn.messages()
		return len(msgs) >= 2 && msgs[1].msgID == network.MsgTypeRoomState
	}, time.Second, 5*time.Millisecond)

	msgs := conn.messages()
	require.Equal(t, uint16(network.MsgTypeWelcome), msgs[0].msgID)
	require.NoError(t, json.Unmarshal(msgs[0].data, &welcome))
	assert.NotEmpty(t, welcome.ConnectionID)
	assert.NotEqual(t, welcome.ConnectionID, welcome.PlayerID)

	var snap room.Snapshot
	require.NoError(t, json.Unmarshal(msgs[1].data, &snap))
	require.Len(t, snap.Players, 1)
	assert.Equal(t, welcome.PlayerID, snap.Players[0].ID)
	assert.Equal(t, "Ann", snap.Players[0].Name)
	assert.Equal(t, 1, s.sessionManager.Count())

	// closing the transport is an implicit leave
	conn.Close()
	<-done

	_, exists := rooms.Get("R")
	assert.False(t, exists)
	assert.Equal(t, 0, s.sessionManager.Count())
}

func TestGameServer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Session.RateLimit = 0.001
	cfg.Session.RateBurst = 1
	rooms := room.NewRoomManager()
	s := NewGameServer(cfg, rooms, monitor.NewMonitor("hexarace_rate"), &MockRecorder{})

	conn := newMockConnection()
	done := make(chan struct{})
	go func() {
		s.handleConnection(conn)
		close(done)
	}()

	conn.packets <- packet(t, network.MsgTypeJoinRoom, map[string]any{"roomId": "A"})
	conn.packets <- packet(t, network.MsgTypeJoinRoom, map[string]any{"roomId": "B"})

	require.Eventually(t, func() bool {
		_, joined := rooms.Get("A")
		return joined && len(conn.packets) == 0
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, exists := rooms.Get("B")
	assert.False(t, exists, "the second event exceeds the burst and is dropped")

	conn.Close()
	<-done
}

func TestGameServer_SweepIdle(t *testing.T) {
	cfg := testConfig()
	cfg.Server.IdleTimeout = time.Millisecond
	s := NewGameServer(cfg, room.NewRoomManager(), monitor.NewMonitor("hexarace_sweep"), &MockRecorder{})

	conn := newMockConnection()
	done := make(chan struct{})
	go func() {
		s.handleConnection(conn)
		close(done)
	}()
	require.Eventually(t, func() bool { return s.sessionManager.Count() == 1 }, time.Second, time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	s.sweepIdle()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("idle session should have been closed")
	}
	assert.Equal(t, 0, s.sessionManager.Count())
}

// pongConnection reports heartbeat replies the way WSConnection does.
type pongConnection struct {
	*MockConnection
	mu     sync.Mutex
	onPong func()
}

func (p *pongConnection) OnPong(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPong = fn
}

func (p *pongConnection) pong() {
	p.mu.Lock()
	fn := p.onPong
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func TestGameServer_SweepIdleKeepsSilentLiveConnection(t *testing.T) {
	cfg := testConfig()
	cfg.Server.IdleTimeout = 50 * time.Millisecond
	rooms := room.NewRoomManager()
	s := NewGameServer(cfg, rooms, monitor.NewMonitor("hexarace_pong"), &MockRecorder{})

	conn := &pongConnection{MockConnection: newMockConnection()}
	done := make(chan struct{})
	go func() {
		s.handleConnection(conn)
		close(done)
	}()

	conn.packets <- packet(t, network.MsgTypeJoinRoom, map[string]any{"roomId": "LOBBY", "name": "Host"})
	require.Eventually(t, func() bool {
		_, ok := rooms.Get("LOBBY")
		return ok
	}, time.Second, time.Millisecond)

	// no events for longer than the idle timeout, but heartbeats keep arriving
	time.Sleep(60 * time.Millisecond)
	conn.pong()
	s.sweepIdle()

	_, exists := rooms.Get("LOBBY")
	assert.True(t, exists)
	assert.Equal(t, 1, s.sessionManager.Count())

	conn.Close()
	<-done
}

func TestGameServer_WebSocket(t *testing.T) {
	rooms := room.NewRoomManager()
	s := NewGameServer(testConfig(), rooms, monitor.NewMonitor("hexarace_ws"), &MockRecorder{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Shutdown()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	dial := func() *websocket.Conn {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		return c
	}
	read := func(c *websocket.Conn, want uint16) []byte {
		t.Helper()
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			_, data, err := c.ReadMessage()
			require.NoError(t, err)
			p, err := network.Decode(data)
			require.NoError(t, err)
			if p.MsgID == want {
				return p.Data
			}
		}
	}
	write := func(c *websocket.Conn, msgID uint16, payload any) {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		frame, err := network.Encode(msgID, data)
		require.NoError(t, err)
		require.NoError(t, c.WriteMessage(websocket.BinaryMessage, frame))
	}

	host := dial()
	defer host.Close()
	read(host, network.MsgTypeWelcome)
	write(host, network.MsgTypeJoinRoom, map[string]any{"roomId": "WS", "name": "Host"})
	read(host, network.MsgTypeRoomState)

	write(host, network.MsgTypeGameStart, map[string]any{"roomId": "WS"})
	var em errorMessage
	require.NoError(t, json.Unmarshal(read(host, network.MsgTypeRoomError), &em))
	assert.Equal(t, room.CodeNeedTwo, em.Code)

	guest := dial()
	defer guest.Close()
	read(guest, network.MsgTypeWelcome)
	write(guest, network.MsgTypeJoinRoom, map[string]any{"roomId": "WS", "name": "Guest"})

	var snap room.Snapshot
	require.NoError(t, json.Unmarshal(read(host, network.MsgTypeRoomState), &snap))
	require.Len(t, snap.Players, 2)
	assert.Equal(t, "Guest", snap.Players[1].Name)

	guest.Close()
	require.NoError(t, json.Unmarshal(read(host, network.MsgTypeRoomState), &snap))
	assert.Len(t, snap.Players, 1)
}

func TestGameServer_UndecodableFrameKeepsConnection(t *testing.T) {
	rooms := room.NewRoomManager()
	s := NewGameServer(testConfig(), rooms, monitor.NewMonitor("hexarace_frame"), &MockRecorder{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Shutdown()

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte{0x00}))
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte{0x00, 0x65, 0x00, 0x09, '{'}))

	data, err := json.Marshal(map[string]any{"roomId": "F", "name": "Ann"})
	require.NoError(t, err)
	frame, err := network.Encode(network.MsgTypeJoinRoom, data)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, frame))

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, msg, err := c.ReadMessage()
		require.NoError(t, err, "connection should survive undecodable frames")
		p, err := network.Decode(msg)
		require.NoError(t, err)
		if p.MsgID == network.MsgTypeRoomState {
			break
		}
	}
	_, exists := rooms.Get("F")
	assert.True(t, exists)
}
