package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/wfunc/hexarace/logger"
	"github.com/wfunc/hexarace/models"
	"github.com/wfunc/hexarace/monitor"
	"github.com/wfunc/hexarace/network"
	"github.com/wfunc/hexarace/room"
	"github.com/wfunc/hexarace/session"
)

// MatchRecorder receives finished races; services.MatchService implements it.
type MatchRecorder interface {
	Record(record *models.MatchRecord) error
}

// ConnectionHandler 处理单个连接上的房间事件。每个事件在持有房间锁期间完成校验、修改与广播。
type ConnectionHandler struct {
	rooms       *room.Manager
	broadcaster room.Broadcaster
	dice        room.Dice
	monitor     *monitor.Monitor
	matches     MatchRecorder
}

func NewConnectionHandler(rooms *room.Manager, broadcaster room.Broadcaster, dice room.Dice, mon *monitor.Monitor, matches MatchRecorder) *ConnectionHandler {
	return &ConnectionHandler{
		rooms:       rooms,
		broadcaster: broadcaster,
		dice:        dice,
		monitor:     mon,
		matches:     matches,
	}
}

// Handle dispatches one inbound packet.
func (h *ConnectionHandler) Handle(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	h.monitor.IncEventsReceived(network.EventName(packet.MsgID))
	defer func() {
		h.monitor.ObserveEventLatency(time.Since(start))
	}()

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		// Touch 已在读循环中完成
	case network.MsgTypeJoinRoom:
		h.handleJoin(sess, packet.Data)
	case network.MsgTypeLeaveRoom:
		h.handleLeave(sess, packet.Data)
	case network.MsgTypeGameStart,
		network.MsgTypeGameSettings,
		network.MsgTypeGameRoll,
		network.MsgTypeGameGift:
		h.handleGame(sess, packet.MsgID, packet.Data)
	default:
		h.reject(sess, packet.MsgID, errUnknownEvent)
	}
}

func (h *ConnectionHandler) handleJoin(sess *session.Session, data []byte) {
	var req joinRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		h.reject(sess, network.MsgTypeJoinRoom, errMalformed)
		return
	}

	for {
		r, created := h.rooms.GetOrCreate(req.RoomID)
		r.Lock()
		if r.Closed() {
			// 房间刚被清空删除，重新获取
			r.Unlock()
			continue
		}

		err := r.Join(room.JoinRequest{
			PlayerID: sess.PlayerID,
			ConnID:   sess.ID,
			Name:     req.Name,
			Mode:     room.Mode(req.Mode),
			Circles:  req.Circles,
		})
		if err != nil {
			r.Unlock()
			h.reject(sess, network.MsgTypeJoinRoom, err)
			return
		}

		sess.AddRoom(r.ID)
		if created {
			h.monitor.SetActiveRooms(h.rooms.Count())
			logger.Log.Infof("Room %s created by session %s", r.ID, sess.ID)
		}
		logger.Log.Debugw("Player joined", "room", r.ID, "player", sess.PlayerID, "players", len(r.Order))
		h.broadcastState(r)
		r.Unlock()
		return
	}
}

func (h *ConnectionHandler) handleLeave(sess *session.Session, data []byte) {
	roomID, ok := roomIDOf(data)
	if !ok {
		h.reject(sess, network.MsgTypeLeaveRoom, errMalformed)
		return
	}
	r, ok := h.rooms.Get(roomID)
	if !ok {
		h.reject(sess, network.MsgTypeLeaveRoom, errUnknownRoom)
		return
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		h.reject(sess, network.MsgTypeLeaveRoom, errUnknownRoom)
		return
	}
	if err := routes[network.MsgTypeLeaveRoom].check(r, sess.PlayerID); err != nil {
		h.reject(sess, network.MsgTypeLeaveRoom, err)
		return
	}
	h.leave(sess, r)
}

// Disconnect removes the session's player from every room it joined.
func (h *ConnectionHandler) Disconnect(sess *session.Session) {
	for _, roomID := range sess.Rooms() {
		r, ok := h.rooms.Get(roomID)
		if !ok {
			sess.RemoveRoom(roomID)
			continue
		}
		r.Lock()
		if !r.Closed() {
			h.leave(sess, r)
		}
		r.Unlock()
	}
}

// leave must be called with the room locked.
func (h *ConnectionHandler) leave(sess *session.Session, r *room.Room) {
	sess.RemoveRoom(r.ID)
	if !r.Leave(sess.PlayerID) {
		return
	}
	logger.Log.Debugw("Player left", "room", r.ID, "player", sess.PlayerID, "players", len(r.Order))

	if r.Empty() {
		h.rooms.Remove(r.ID, r)
		h.monitor.SetActiveRooms(h.rooms.Count())
		logger.Log.Infof("Room %s closed", r.ID)
		return
	}
	h.broadcastState(r)
}

func (h *ConnectionHandler) handleGame(sess *session.Session, msgID uint16, data []byte) {
	roomID, ok := roomIDOf(data)
	if !ok {
		h.reject(sess, msgID, errMalformed)
		return
	}
	var settings settingsRequest
	if msgID == network.MsgTypeGameSettings {
		if err := json.Unmarshal(data, &settings); err != nil {
			h.reject(sess, msgID, errMalformed)
			return
		}
	}

	r, ok := h.rooms.Get(roomID)
	if !ok {
		h.reject(sess, msgID, errUnknownRoom)
		return
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		h.reject(sess, msgID, errUnknownRoom)
		return
	}
	if err := routes[msgID].check(r, sess.PlayerID); err != nil {
		h.reject(sess, msgID, err)
		return
	}

	var err error
	switch msgID {
	case network.MsgTypeGameStart:
		if err = r.Start(); err == nil {
			logger.Log.Infof("Room %s started with %d players", r.ID, len(r.Order))
		}
	case network.MsgTypeGameSettings:
		err = r.UpdateSettings(room.Settings{
			Circles:    settings.Circles,
			MaxPlayers: settings.MaxPlayers,
			Anonymous:  truthy(settings.Anonymous),
		})
	case network.MsgTypeGameGift:
		err = r.Gift()
	case network.MsgTypeGameRoll:
		err = h.roll(r)
	}
	if err != nil {
		h.reject(sess, msgID, err)
		return
	}
	h.broadcastState(r)
}

// roll must be called with the room locked.
func (h *ConnectionHandler) roll(r *room.Room) error {
	res, err := r.Roll(h.dice)
	if err != nil {
		return err
	}
	h.monitor.IncRolls(string(r.Config.Mode))

	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err := h.broadcaster.Broadcast(r.ConnIDs(), network.MsgTypeGameRolled, data); err != nil {
		logger.Log.Debugf("Broadcast game:rolled in room %s: %v", r.ID, err)
	}

	if res.Win {
		h.monitor.IncMatchesFinished()
		if err := h.matches.Record(matchRecord(r, res.By)); err != nil {
			logger.Log.Debugf("Record match of room %s: %v", r.ID, err)
		}
		logger.Log.Infof("Room %s won by %s after %d rolls", r.ID, res.By, r.Rolls())
	}
	return nil
}

func matchRecord(r *room.Room, winnerID string) *models.MatchRecord {
	rec := &models.MatchRecord{
		RoomID:     r.ID,
		Mode:       string(r.Config.Mode),
		Circles:    r.Config.Circles,
		WinnerID:   winnerID,
		WinnerName: r.Players[winnerID].Name,
		Rolls:      r.Rolls(),
		GiftStacks: r.Weighted.GiftStacks,
		StartedAt:  r.StartedAt(),
		FinishedAt: time.Now(),
	}
	for _, id := range r.Order {
		p := r.Players[id]
		rec.Players = append(rec.Players, models.MatchPlayer{
			PlayerID: p.ID,
			Name:     p.Name,
			Position: p.Pos,
			Winner:   p.ID == winnerID,
		})
	}
	return rec
}

// broadcastState must be called with the room locked.
func (h *ConnectionHandler) broadcastState(r *room.Room) {
	data, err := json.Marshal(r.Snapshot())
	if err != nil {
		logger.Log.Errorf("Failed to encode snapshot of room %s: %v", r.ID, err)
		return
	}
	if err := h.broadcaster.Broadcast(r.ConnIDs(), network.MsgTypeRoomState, data); err != nil {
		logger.Log.Debugf("Broadcast room:state in room %s: %v", r.ID, err)
	}
}

// reject replies with room:error for coded failures and drops everything else.
func (h *ConnectionHandler) reject(sess *session.Session, msgID uint16, err error) {
	var code room.Code
	if !errors.As(err, &code) {
		logger.Log.Debugw("Event dropped", "event", network.EventName(msgID), "session", sess.ID, "reason", err)
		return
	}

	h.monitor.IncRejection(string(code))
	data, _ := json.Marshal(errorMessage{Code: code})
	if err := h.broadcaster.SendTo(sess.ID, network.MsgTypeRoomError, data); err != nil {
		logger.Log.Debugf("Send room:error to %s: %v", sess.ID, err)
	}
}
