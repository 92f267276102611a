package scheduler

import (
	"context"
	"sync"
	"time"

	"quote-ticker/src/logger"
	"quote-ticker/src/models"
	"quote-ticker/src/utils"

	"github.com/hako/durafmt"
)

// Refresher is the part of the engine the loop drives.
type Refresher interface {
	Settings(ctx context.Context) models.MQuoteSettings
	RefreshInterval() time.Duration
	Refresh(ctx context.Context, symbols []string) ([]models.MQuote, error)
}

// Scheduler refreshes the watchlist at the configured interval.
type Scheduler struct {
	Logger *logger.Logger
	// MinInterval is the floor applied to the configured interval.
	MinInterval time.Duration

	engine Refresher

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewScheduler(engine Refresher, log *logger.Logger) *Scheduler {
	return &Scheduler{
		Logger:      log,
		MinInterval: utils.MinRefreshMinutes * time.Minute,
		engine:      engine,
	}
}

// -----------------------------------------------------------------------------

// Start runs one refresh right away, then one per interval until ctx is done
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parent = ctx
	s.launch(ctx, true)
}

// -----------------------------------------------------------------------------

// Restart cancels the pending tick and schedules the next one a full interval
// from now, reading the interval again. A refresh already running completes.
func (s *Scheduler) Restart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parent == nil {
		return
	}
	s.launch(ctx, false)
}

// -----------------------------------------------------------------------------

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.parent = nil
	s.mu.Unlock()
	s.wg.Wait()
}

// -----------------------------------------------------------------------------

// launch must be called with s.mu held.
func (s *Scheduler) launch(settingsCtx context.Context, immediate bool) {
	if s.cancel != nil {
		s.cancel()
	}

	s.engine.Settings(settingsCtx)
	interval := s.engine.RefreshInterval()
	if interval < s.MinInterval {
		interval = s.MinInterval
	}

	loopCtx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	s.Logger.Info("Starting scheduler (every %s)", durafmt.Parse(interval).LimitFirstN(2).String())

	s.wg.Add(1)
	go s.loop(loopCtx, interval, immediate)
}

// -----------------------------------------------------------------------------

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, immediate bool) {
	defer s.wg.Done()

	if immediate {
		s.tick(ctx, "Initial")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, "Scheduled")
		}
	}
}

// -----------------------------------------------------------------------------

func (s *Scheduler) tick(ctx context.Context, kind string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	// A cancelled loop still lets the running refresh finish.
	quotes, err := s.engine.Refresh(context.WithoutCancel(ctx), nil)
	if err != nil {
		s.Logger.Error("%s refresh failed: %v", kind, err)
		return
	}
	s.Logger.Debug("%s refresh broadcast %d quotes in %s", kind, len(quotes),
		durafmt.Parse(time.Since(start)).LimitFirstN(2).String())
}
