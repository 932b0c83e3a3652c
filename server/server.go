package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/hexarace/broadcast"
	"github.com/wfunc/hexarace/config"
	"github.com/wfunc/hexarace/logger"
	"github.com/wfunc/hexarace/monitor"
	"github.com/wfunc/hexarace/network"
	"github.com/wfunc/hexarace/room"
	"github.com/wfunc/hexarace/session"
	"github.com/wfunc/hexarace/timer"
)

const heartbeatInterval = 30 * time.Second

// pongNotifier is implemented by transports that see heartbeat replies.
type pongNotifier interface {
	OnPong(fn func())
}

type GameServer struct {
	cfg            config.ServerConfig
	sessionOpts    session.Options
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	handler        *ConnectionHandler
	monitor        *monitor.Monitor
	timers         *timer.TimerManager
	httpServer     *http.Server
}

func NewGameServer(cfg *config.Config, rooms *room.Manager, mon *monitor.Monitor, matches MatchRecorder) *GameServer {
	sessions := session.NewManager()
	s := &GameServer{
		cfg: cfg.Server,
		sessionOpts: session.Options{
			SendBuffer: cfg.Session.SendBuffer,
			RateLimit:  cfg.Session.RateLimit,
			RateBurst:  cfg.Session.RateBurst,
		},
		roomManager:    rooms,
		sessionManager: sessions,
		monitor:        mon,
		timers:         timer.NewTimerManager(0),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.handler = NewConnectionHandler(rooms, broadcast.NewRoomBroadcaster(sessions), room.RandomDice{}, mon, matches)
	return s
}

func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start serves /ws until ctx is cancelled.
func (s *GameServer) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.timers.AddTimer(s.cfg.SweepInterval, s.cfg.SweepInterval, s.sweepIdle)
	go s.timers.Run(ctx)

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	logger.Log.Infof("Game server listening on %s", s.cfg.HTTPAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and closes every open session.
func (s *GameServer) Shutdown() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
	// 已升级的 websocket 连接不受 http.Server.Shutdown 管理
	for _, sess := range s.sessionManager.All() {
		sess.Close()
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)
	s.handleConnection(wsConn)
}

func (s *GameServer) handleConnection(conn network.Connection) {
	sess := session.NewSession(uuid.NewString(), uuid.NewString(), conn, s.sessionOpts)
	// 心跳回复也算活跃，静默等待的玩家不会被空闲清理
	if pn, ok := conn.(pongNotifier); ok {
		pn.OnPong(sess.Touch)
	}
	s.sessionManager.Add(sess)
	s.monitor.IncOnlineConnections()
	go sess.WritePump()
	go s.keepAlive(sess)

	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())
		s.handler.Disconnect(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlineConnections()
		sess.Close()
	}()

	welcome, _ := json.Marshal(welcomeMessage{ConnectionID: sess.ID, PlayerID: sess.PlayerID})
	if err := sess.Send(network.MsgTypeWelcome, welcome); err != nil {
		return
	}

	for {
		packet, err := conn.ReadPacket()
		if errors.Is(err, io.ErrShortBuffer) {
			// 无法解包的帧直接丢弃，连接保持
			sess.Touch()
			logger.Log.Debugf("Dropped undecodable frame from session %s", sess.ID)
			continue
		}
		if err != nil {
			return
		}
		sess.Touch()
		if !sess.Allow() {
			s.handler.reject(sess, packet.MsgID, errRateLimited)
			continue
		}
		s.handler.Handle(sess, packet)
	}
}

func (s *GameServer) keepAlive(sess *session.Session) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sess.Conn.Ping(); err != nil {
				sess.Close()
				return
			}
		case <-sess.Done():
			return
		}
	}
}

// sweepIdle 关闭长时间没有消息的连接，读循环随之退出并走正常的断线流程
func (s *GameServer) sweepIdle() {
	cutoff := time.Now().Add(-s.cfg.IdleTimeout)
	for _, sess := range s.sessionManager.IdleSince(cutoff) {
		logger.Log.Infof("Closing idle session %s (last active %s)", sess.ID, sess.LastActive().Format(time.RFC3339))
		sess.Close()
	}
	s.monitor.SetActiveRooms(s.roomManager.Count())
}
