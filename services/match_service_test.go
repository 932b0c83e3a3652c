package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/hexarace/models"
	"github.com/wfunc/hexarace/persistence"
)

// MockDatabase is a persistence.Database that fails on demand.
type MockDatabase struct {
	mu    sync.Mutex
	saved []*models.MatchRecord
	err   error
}

func (m *MockDatabase) SaveMatch(ctx context.Context, record *models.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, record)
	return nil
}

func (m *MockDatabase) PlayerStats(ctx context.Context, name string) (*models.PlayerStats, error) {
	return nil, persistence.ErrRecordNotFound
}

func (m *MockDatabase) Close() error { return nil }

func (m *MockDatabase) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func record(room, winner string) *models.MatchRecord {
	return &models.MatchRecord{
		RoomID:     room,
		Mode:       "race-uniform",
		Circles:    10,
		WinnerID:   "id-" + winner,
		WinnerName: winner,
		FinishedAt: time.Now(),
		Players: []models.MatchPlayer{
			{PlayerID: "id-" + winner, Name: winner, Position: 10, Winner: true},
			{PlayerID: "id-other", Name: "other", Position: 4},
		},
	}
}

func TestMatchService_RecordAndStats(t *testing.T) {
	db := persistence.NewMemory()
	svc := NewMatchService(db, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	require.NoError(t, svc.Record(record("R1", "alice")))
	require.NoError(t, svc.Record(record("R2", "alice")))

	require.Eventually(t, func() bool { return len(db.Matches()) == 2 }, time.Second, 5*time.Millisecond)

	stats, err := svc.PlayerStats(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 0, stats.Losses)

	cancel()
	<-done
}

func TestMatchService_QueueFull(t *testing.T) {
	svc := NewMatchService(&MockDatabase{}, 1)

	require.NoError(t, svc.Record(record("R1", "a")))
	assert.ErrorIs(t, svc.Record(record("R2", "b")), ErrQueueFull)
}

func TestMatchService_DrainsOnShutdown(t *testing.T) {
	db := &MockDatabase{}
	svc := NewMatchService(db, 4)
	for _, room := range []string{"R1", "R2", "R3"} {
		require.NoError(t, svc.Record(record(room, "a")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Run(ctx)

	assert.Equal(t, 3, db.count())
}

func TestMatchService_SaveErrorIsLogged(t *testing.T) {
	db := &MockDatabase{err: errors.New("connection refused")}
	svc := NewMatchService(db, 4)
	require.NoError(t, svc.Record(record("R1", "a")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { svc.Run(ctx) })
	assert.Equal(t, 0, db.count())
}
