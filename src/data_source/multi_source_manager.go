package datasource

import (
	"context"
	"sync"

	"quote-ticker/src/helpers"
	"quote-ticker/src/interfaces"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"
)

// Step is one attempt in the fallback order.
type Step struct {
	Name     string
	Provider interfaces.IQuoteProvider
	// When gates the step; nil means always.
	When func(symbol string) bool
}

// SourceStats counts outcomes per provider.
type SourceStats struct {
	Name      string `json:"name"`
	Successes int64  `json:"successes"`
	Failures  int64  `json:"failures"`
}

// MultiSourceManager walks an ordered list of providers and returns the first
// valid quote. Attempts are strictly sequential.
type MultiSourceManager struct {
	Logger  *logger.Logger
	steps   []Step
	primary interfaces.IQuoteProvider

	mu    sync.Mutex
	stats map[string]*SourceStats
	order []string
}

// -----------------------------------------------------------------------------

func NewMultiSourceManager(primary interfaces.IQuoteProvider, steps []Step, log *logger.Logger) *MultiSourceManager {
	m := &MultiSourceManager{
		Logger:  log,
		steps:   append([]Step(nil), steps...),
		primary: primary,
		stats:   make(map[string]*SourceStats),
	}
	for _, st := range steps {
		m.track(st.Provider.Name())
	}
	m.track(primary.Name())
	return m
}

// -----------------------------------------------------------------------------

// NewDefaultChain builds the standard order: secondary (when enabled), primary,
// primary again, then the crypto fallback for crypto pairs.
func NewDefaultChain(
	primary interfaces.IQuoteProvider,
	secondary interfaces.IQuoteProvider,
	secondaryEnabled func() bool,
	cryptoFallback interfaces.IQuoteProvider,
	isCrypto func(string) bool,
	log *logger.Logger,
) *MultiSourceManager {
	steps := []Step{
		{Name: "secondary", Provider: secondary, When: func(string) bool { return secondaryEnabled() }},
		{Name: "primary", Provider: primary},
		{Name: "primary-retry", Provider: primary},
		{Name: "crypto-fallback", Provider: cryptoFallback, When: isCrypto},
	}
	return NewMultiSourceManager(primary, steps, log)
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) track(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stats[name]; !ok {
		m.stats[name] = &SourceStats{Name: name}
		m.order = append(m.order, name)
	}
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) record(name string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats[name]
	if s == nil {
		return
	}
	if ok {
		s.Successes++
	} else {
		s.Failures++
	}
}

// -----------------------------------------------------------------------------

// Steps returns the configured order.
func (m *MultiSourceManager) Steps() []Step {
	return append([]Step(nil), m.steps...)
}

// -----------------------------------------------------------------------------

// Stats returns per-provider counters in registration order.
func (m *MultiSourceManager) Stats() []SourceStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SourceStats, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, *m.stats[name])
	}
	return out
}

// -----------------------------------------------------------------------------

// Fetch tries each applicable step in order.
func (m *MultiSourceManager) Fetch(ctx context.Context, symbol string) (*models.MQuote, error) {
	for _, st := range m.steps {
		if st.When != nil && !st.When(symbol) {
			continue
		}
		if ctx.Err() != nil {
			return nil, helpers.NewProviderUnavailable(st.Provider.Name(), symbol, ctx.Err())
		}

		quote, ok := m.attempt(ctx, st.Name, st.Provider, symbol)
		if ok {
			return quote, nil
		}
	}
	return nil, helpers.NewNoData("all providers", symbol)
}

// -----------------------------------------------------------------------------

// FetchPrimary makes a single primary attempt, used to verify large moves.
func (m *MultiSourceManager) FetchPrimary(ctx context.Context, symbol string) (*models.MQuote, error) {
	quote, ok := m.attempt(ctx, "primary-verify", m.primary, symbol)
	if !ok {
		return nil, helpers.NewNoData(m.primary.Name(), symbol)
	}
	return quote, nil
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) attempt(ctx context.Context, step string, p interfaces.IQuoteProvider, symbol string) (*models.MQuote, bool) {
	quote, err := p.Fetch(ctx, symbol)
	if err != nil {
		m.record(p.Name(), false)
		m.Logger.Debug("%s (%s) failed for %s: %v", step, p.Name(), symbol, err)
		return nil, false
	}
	if !quote.Valid() {
		m.record(p.Name(), false)
		m.Logger.Warning("%s (%s) returned an invalid quote for %s", step, p.Name(), symbol)
		return nil, false
	}
	m.record(p.Name(), true)
	return quote, true
}
