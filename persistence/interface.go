// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/wfunc/hexarace/models"
)

// Database 比赛归档接口
type Database interface {
	SaveMatch(ctx context.Context, record *models.MatchRecord) error
	PlayerStats(ctx context.Context, name string) (*models.PlayerStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidRecord  = errors.New("invalid match record")
)

func validateRecord(record *models.MatchRecord) error {
	if record == nil || record.RoomID == "" || record.WinnerID == "" || len(record.Players) == 0 {
		return ErrInvalidRecord
	}
	return nil
}
