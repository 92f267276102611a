package engine

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	datasource "quote-ticker/src/data_source"
	"quote-ticker/src/helpers"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"
	"quote-ticker/src/utils"
)

// -----------------------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// -----------------------------------------------------------------------------

// memoryStore keeps JSON documents in a map, like the real stores do on disk.
type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Initialize(context.Context) error { return nil }
func (s *memoryStore) Close() error                     { return nil }

func (s *memoryStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

// Set fails on a done context, as the database-backed stores do.
func (s *memoryStore) Set(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------

type fetchFunc func(call int, symbol string) (*models.MQuote, error)

type fakeProvider struct {
	name  string
	calls atomic.Int32

	mu sync.Mutex
	fn fetchFunc
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Set(fn fetchFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn = fn
}

func (p *fakeProvider) Calls() int { return int(p.calls.Load()) }

func (p *fakeProvider) Fetch(_ context.Context, symbol string) (*models.MQuote, error) {
	n := int(p.calls.Add(1))
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn == nil {
		return nil, helpers.NewNoData(p.name, symbol)
	}
	return fn(n, symbol)
}

// -----------------------------------------------------------------------------

type emitted struct {
	event  string
	quotes []models.MQuote
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []emitted
}

func (b *recordingBroadcaster) Emit(event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	quotes, _ := payload.([]models.MQuote)
	b.events = append(b.events, emitted{event: event, quotes: quotes})
}

func (b *recordingBroadcaster) Events() []emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]emitted(nil), b.events...)
}

// -----------------------------------------------------------------------------

type countingScheduler struct {
	restarts atomic.Int32
}

func (s *countingScheduler) Restart(context.Context) { s.restarts.Add(1) }

// -----------------------------------------------------------------------------

type harness struct {
	engine    *QuoteEngine
	clock     *fakeClock
	store     *memoryStore
	primary   *fakeProvider
	secondary *fakeProvider
	crypto    *fakeProvider
	bus       *recordingBroadcaster
	sched     *countingScheduler
}

var epoch = time.Date(2024, time.June, 5, 15, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, store *memoryStore) *harness {
	t.Helper()

	h := &harness{
		clock:     &fakeClock{now: epoch},
		store:     store,
		primary:   &fakeProvider{name: "yahoo"},
		secondary: &fakeProvider{name: "alphavantage"},
		crypto:    &fakeProvider{name: "coingecko"},
		bus:       &recordingBroadcaster{},
		sched:     &countingScheduler{},
	}

	log := logger.NewLogger("test")
	chain := datasource.NewDefaultChain(
		h.primary,
		h.secondary,
		func() bool { return h.engine.APIKey() != "" },
		h.crypto,
		utils.IsCrypto,
		log,
	)
	h.engine = NewQuoteEngine(context.Background(), store, chain, Defaults{
		Symbols:        []string{"AAPL", "BTC-USD"},
		RefreshMinutes: 10,
	}, log, WithClock(h.clock.Now), WithBroadcaster(h.bus))
	h.engine.SetScheduler(h.sched)
	return h
}

// priced answers every symbol with price, stamping market time from the clock.
func (h *harness) priced(price float64, source string) fetchFunc {
	return func(_ int, symbol string) (*models.MQuote, error) {
		return &models.MQuote{
			Symbol:     symbol,
			Price:      price,
			Currency:   "USD",
			MarketTime: h.clock.Now().UnixMilli(),
			Source:     source,
		}, nil
	}
}

func failing(_ int, symbol string) (*models.MQuote, error) {
	return nil, helpers.NewProviderUnavailable("fake", symbol, nil)
}
