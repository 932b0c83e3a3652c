package room

import "errors"

// Code 是发送给客户端的错误码，同时实现 error 接口
type Code string

const (
	CodeRoomFull      Code = "ROOM_FULL"
	CodeNeedTwo       Code = "NEED_2_PLAYERS"
	CodeNotStarted    Code = "NOT_STARTED"
	CodeConfigLocked  Code = "CONFIG_LOCKED"
	CodeNotApplicable Code = "NOT_APPLICABLE"
	CodeLimitReached  Code = "LIMIT_REACHED"
)

func (c Code) Error() string {
	return string(c)
}

// ErrNoTurnHolder is returned when a turn action reaches an empty room.
var ErrNoTurnHolder = errors.New("room has no turn holder")
