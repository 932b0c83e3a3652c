package network

const (
	MsgTypeHeartbeat = 1
	MsgTypeWelcome   = 2

	MsgTypeJoinRoom  = 101
	MsgTypeLeaveRoom = 102
	MsgTypeRoomState = 103
	MsgTypeRoomError = 104

	MsgTypeGameStart    = 201
	MsgTypeGameSettings = 202
	MsgTypeGameRoll     = 203
	MsgTypeGameGift     = 204
	MsgTypeGameRolled   = 205
)

var eventNames = map[uint16]string{
	MsgTypeHeartbeat:    "heartbeat",
	MsgTypeWelcome:      "session:welcome",
	MsgTypeJoinRoom:     "room:join",
	MsgTypeLeaveRoom:    "room:leave",
	MsgTypeRoomState:    "room:state",
	MsgTypeRoomError:    "room:error",
	MsgTypeGameStart:    "game:start",
	MsgTypeGameSettings: "game:settings",
	MsgTypeGameRoll:     "game:roll",
	MsgTypeGameGift:     "game:gift",
	MsgTypeGameRolled:   "game:rolled",
}

// EventName returns the logical event name of a message ID, or "unknown".
func EventName(msgID uint16) string {
	if name, ok := eventNames[msgID]; ok {
		return name
	}
	return "unknown"
}
