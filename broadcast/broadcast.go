// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/hexarace/logger"
	"github.com/wfunc/hexarace/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// 基于会话的广播器，实现 room.Broadcaster
type RoomBroadcaster struct {
	sessionManager *session.Manager
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
	}
}

// Broadcast queues data on every listed connection. Failures on one
// connection do not stop delivery to the rest; the first error is returned.
func (b *RoomBroadcaster) Broadcast(connIDs []string, msgID uint16, data []byte) error {
	var firstErr error
	for _, id := range connIDs {
		if err := b.SendTo(id, msgID, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *RoomBroadcaster) SendTo(connID string, msgID uint16, data []byte) error {
	s, exists := b.sessionManager.Get(connID)
	if !exists {
		return ErrSessionNotFound
	}
	if err := s.Send(msgID, data); err != nil {
		// 发送失败的会话已被关闭，断线流程会将其移出房间
		logger.Log.Warnf("Dropping message %d for session %s: %v", msgID, connID, err)
		return err
	}
	return nil
}
