package server

import (
	"encoding/json"

	"github.com/wfunc/hexarace/room"
)

type roomRequest struct {
	RoomID string `json:"roomId"`
}

type joinRequest struct {
	RoomID  string      `json:"roomId"`
	Name    string      `json:"name"`
	Mode    string      `json:"mode"`
	Circles room.Number `json:"circles"`
}

type settingsRequest struct {
	RoomID     string      `json:"roomId"`
	Circles    room.Number `json:"circles"`
	MaxPlayers room.Number `json:"maxPlayers"`
	Anonymous  any         `json:"anonymous"`
}

type errorMessage struct {
	Code room.Code `json:"code"`
}

type welcomeMessage struct {
	ConnectionID string `json:"connectionId"`
	PlayerID     string `json:"playerId"`
}

// truthy 按客户端的习惯解释布尔字段：缺省、false、0、空串为假
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// roomIDOf extracts roomId from any game event payload.
func roomIDOf(data []byte) (string, bool) {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		return "", false
	}
	return req.RoomID, true
}
