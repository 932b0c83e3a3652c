package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runManager(t *testing.T, m *TimerManager) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestTimerManager_OneShot(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	runManager(t, m)

	var fired atomic.Int32
	m.AddTimer(10*time.Millisecond, 0, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, m.Len(), "one-shot task should leave the queue")

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestTimerManager_Repeating(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	runManager(t, m)

	var fired atomic.Int32
	id := m.AddTimer(0, 10*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, m.RemoveTimer(id))
	assert.False(t, m.RemoveTimer(id))
}

func TestTimerManager_Order(t *testing.T) {
	m := NewTimerManager(time.Millisecond)
	m.AddTimer(30*time.Millisecond, 0, func() {})
	first := m.AddTimer(10*time.Millisecond, 0, func() {})
	m.AddTimer(20*time.Millisecond, 0, func() {})

	fired := m.due(time.Now().Add(15 * time.Millisecond))
	require.Len(t, fired, 1)
	assert.Equal(t, first, fired[0].Id)

	fired = m.due(time.Now().Add(time.Second))
	assert.Len(t, fired, 2)
	assert.Equal(t, 0, m.Len())
}
