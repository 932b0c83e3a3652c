// persistence/memory.go
package persistence

import (
	"context"
	"sync"

	"github.com/wfunc/hexarace/models"
)

// Memory 进程内实现，database.driver=memory 时使用，重启后数据丢失
type Memory struct {
	records []models.MatchRecord
	nextID  uint
	mutex   sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) SaveMatch(ctx context.Context, record *models.MatchRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	record.ID = m.nextID
	m.nextID++

	stored := *record
	stored.Players = append([]models.MatchPlayer(nil), record.Players...)
	for i := range stored.Players {
		stored.Players[i].MatchID = stored.ID
	}
	m.records = append(m.records, stored)
	return nil
}

func (m *Memory) PlayerStats(ctx context.Context, name string) (*models.PlayerStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := &models.PlayerStats{Name: name}
	for _, rec := range m.records {
		for _, p := range rec.Players {
			if p.Name != name {
				continue
			}
			stats.TotalGames++
			if p.Winner {
				stats.Wins++
			}
		}
	}
	if stats.TotalGames == 0 {
		return nil, ErrRecordNotFound
	}
	stats.Losses = stats.TotalGames - stats.Wins
	return stats, nil
}

// Matches returns a copy of the stored records in insertion order.
func (m *Memory) Matches() []models.MatchRecord {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]models.MatchRecord(nil), m.records...)
}

func (m *Memory) Close() error {
	return nil
}
