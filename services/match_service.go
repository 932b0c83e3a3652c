// services/match_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/hexarace/logger"
	"github.com/wfunc/hexarace/models"
	"github.com/wfunc/hexarace/persistence"
)

const (
	defaultQueueSize = 256
	saveTimeout      = 5 * time.Second
)

var ErrQueueFull = errors.New("match queue full")

// MatchService 异步归档结束的比赛，房间处理流程从不等待数据库
type MatchService struct {
	db    persistence.Database
	queue chan *models.MatchRecord
}

func NewMatchService(db persistence.Database, queueSize int) *MatchService {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &MatchService{
		db:    db,
		queue: make(chan *models.MatchRecord, queueSize),
	}
}

// Record enqueues a finished match without blocking.
func (s *MatchService) Record(record *models.MatchRecord) error {
	select {
	case s.queue <- record:
		return nil
	default:
		logger.Log.Warnf("Match queue full, dropping record for room %s", record.RoomID)
		return ErrQueueFull
	}
}

// Run writes queued records until ctx is cancelled, then drains what is left.
func (s *MatchService) Run(ctx context.Context) {
	for {
		select {
		case rec := <-s.queue:
			s.save(context.Background(), rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-s.queue:
					s.save(context.Background(), rec)
				default:
					return
				}
			}
		}
	}
}

func (s *MatchService) save(ctx context.Context, rec *models.MatchRecord) {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	if err := s.db.SaveMatch(ctx, rec); err != nil {
		logger.Log.Errorw("Failed to save match", "room", rec.RoomID, "winner", rec.WinnerName, "error", err)
		return
	}
	logger.Log.Infow("Match saved", "room", rec.RoomID, "winner", rec.WinnerName,
		"rolls", rec.Rolls, "duration", rec.Duration())
}

// PlayerStats 获取玩家统计
func (s *MatchService) PlayerStats(ctx context.Context, name string) (*models.PlayerStats, error) {
	return s.db.PlayerStats(ctx, name)
}
