package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quote-ticker/src/logger"
	"quote-ticker/src/models"

	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	refreshes atomic.Int32
	reads     atomic.Int32

	mu       sync.Mutex
	interval time.Duration
}

func (f *fakeRefresher) Settings(context.Context) models.MQuoteSettings {
	f.reads.Add(1)
	return models.MQuoteSettings{}
}

func (f *fakeRefresher) RefreshInterval() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interval
}

func (f *fakeRefresher) SetInterval(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interval = d
}

func (f *fakeRefresher) Refresh(context.Context, []string) ([]models.MQuote, error) {
	f.refreshes.Add(1)
	return nil, nil
}

func newTestScheduler(f *fakeRefresher) *Scheduler {
	s := NewScheduler(f, logger.NewLogger("test"))
	s.MinInterval = 0
	return s
}

func TestStartRefreshesImmediately(t *testing.T) {
	t.Parallel()

	// Arrange: an interval long enough that no tick fires during the test.
	f := &fakeRefresher{interval: time.Hour}
	s := newTestScheduler(f)

	// Act
	s.Start(context.Background())
	defer s.Stop()

	// Assert
	require.Eventually(t, func() bool { return f.refreshes.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTicksAtInterval(t *testing.T) {
	t.Parallel()

	f := &fakeRefresher{interval: 10 * time.Millisecond}
	s := newTestScheduler(f)

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return f.refreshes.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
}

func TestFloorIsApplied(t *testing.T) {
	t.Parallel()

	f := &fakeRefresher{interval: time.Millisecond}
	s := NewScheduler(f, logger.NewLogger("test"))
	require.Equal(t, 5*time.Minute, s.MinInterval)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return f.refreshes.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	require.Equal(t, int32(1), f.refreshes.Load())
}

func TestRestartRereadsIntervalWithoutExtraRefresh(t *testing.T) {
	t.Parallel()

	// Arrange
	f := &fakeRefresher{interval: time.Hour}
	s := newTestScheduler(f)
	s.Start(context.Background())
	defer s.Stop()
	require.Eventually(t, func() bool { return f.refreshes.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Act
	f.SetInterval(10 * time.Millisecond)
	s.Restart(context.Background())

	// Assert
	require.Equal(t, int32(2), f.reads.Load())
	require.Eventually(t, func() bool { return f.refreshes.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestRestartBeforeStartIsNoop(t *testing.T) {
	t.Parallel()

	f := &fakeRefresher{interval: 10 * time.Millisecond}
	s := newTestScheduler(f)

	s.Restart(context.Background())
	time.Sleep(30 * time.Millisecond)

	require.Zero(t, f.refreshes.Load())
	require.Zero(t, f.reads.Load())
}

func TestStopHaltsTicks(t *testing.T) {
	t.Parallel()

	f := &fakeRefresher{interval: 5 * time.Millisecond}
	s := newTestScheduler(f)
	s.Start(context.Background())
	require.Eventually(t, func() bool { return f.refreshes.Load() >= 2 }, time.Second, time.Millisecond)

	s.Stop()
	after := f.refreshes.Load()
	time.Sleep(30 * time.Millisecond)

	require.Equal(t, after, f.refreshes.Load())
}
