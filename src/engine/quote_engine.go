package engine

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"quote-ticker/src/analysis"
	"quote-ticker/src/helpers"
	"quote-ticker/src/interfaces"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"
	"quote-ticker/src/utils"

	"golang.org/x/sync/singleflight"
)

// Defaults seed the settings when the store has nothing yet.
type Defaults struct {
	Symbols        []string
	RefreshMinutes int
	APIKey         string
}

// Option configures a QuoteEngine.
type Option func(*QuoteEngine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *QuoteEngine) { e.now = now }
}

// WithBroadcaster sets the channel Refresh publishes to.
func WithBroadcaster(b interfaces.IBroadcaster) Option {
	return func(e *QuoteEngine) { e.broadcaster = b }
}

// QuoteEngine owns the per-symbol cache, the in-flight fetches and the last
// broadcast snapshot.
type QuoteEngine struct {
	Logger *logger.Logger

	store       interfaces.ISettingsStore
	chain       interfaces.IQuoteChain
	broadcaster interfaces.IBroadcaster
	scheduler   interfaces.IScheduler
	defaults    Defaults
	now         func() time.Time

	inflight singleflight.Group

	mu            sync.RWMutex
	cache         map[string]models.MQuote
	lastBroadcast []models.MQuote
	lastRefresh   time.Time
	interval      time.Duration
	apiKey        string
}

// -----------------------------------------------------------------------------

// NewQuoteEngine builds the engine and loads the persisted snapshot so that
// clients get something before the first live fetch.
func NewQuoteEngine(
	ctx context.Context,
	store interfaces.ISettingsStore,
	chain interfaces.IQuoteChain,
	defaults Defaults,
	log *logger.Logger,
	opts ...Option,
) *QuoteEngine {
	if defaults.RefreshMinutes <= 0 {
		defaults.RefreshMinutes = utils.DefaultRefreshMinutes
	}
	if len(defaults.Symbols) == 0 {
		defaults.Symbols = utils.DefaultSymbols
	}
	defaults.Symbols = utils.NormalizeSymbols(defaults.Symbols)
	defaults.APIKey = strings.TrimSpace(defaults.APIKey)

	e := &QuoteEngine{
		Logger:   log,
		store:    store,
		chain:    chain,
		defaults: defaults,
		now:      time.Now,
		cache:    make(map[string]models.MQuote),
		interval: time.Duration(utils.ClampRefreshMinutes(float64(defaults.RefreshMinutes))) * time.Minute,
		apiKey:   defaults.APIKey,
	}
	for _, opt := range opts {
		opt(e)
	}

	snapshot, err := GetSetting(ctx, store, utils.KeyQuotesCache, []models.MQuote{})
	if err != nil {
		e.Logger.Warning("Failed to load cached quotes: %v", err)
	}
	e.lastBroadcast = snapshot
	e.Settings(ctx)

	e.Logger.Info("Quote engine ready (%d cached quotes)", len(snapshot))
	return e
}

// -----------------------------------------------------------------------------

// SetBroadcaster wires the broadcast channel after construction.
func (e *QuoteEngine) SetBroadcaster(b interfaces.IBroadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcaster = b
}

// -----------------------------------------------------------------------------

// SetScheduler wires the refresh loop restarted by UpdateSettings.
func (e *QuoteEngine) SetScheduler(s interfaces.IScheduler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduler = s
}

// -----------------------------------------------------------------------------
// Settings
// -----------------------------------------------------------------------------

// Settings reads the effective settings from the store and refreshes the
// in-memory copy used by the fast path and by the keyed provider.
func (e *QuoteEngine) Settings(ctx context.Context) models.MQuoteSettings {
	symbols, err := GetSetting(ctx, e.store, utils.KeySymbols, e.defaults.Symbols)
	if err != nil {
		e.Logger.Warning("Failed to read %s: %v", utils.KeySymbols, err)
	}
	symbols = utils.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		symbols = append([]string(nil), e.defaults.Symbols...)
	}

	minutes, err := GetSetting(ctx, e.store, utils.KeyRefreshInterval, float64(e.defaults.RefreshMinutes))
	if err != nil {
		e.Logger.Warning("Failed to read %s: %v", utils.KeyRefreshInterval, err)
	}
	interval := utils.ClampRefreshMinutes(minutes)

	key, err := GetSetting(ctx, e.store, utils.KeyAlphaAPIKey, e.defaults.APIKey)
	if err != nil {
		e.Logger.Warning("Failed to read %s: %v", utils.KeyAlphaAPIKey, err)
	}
	key = strings.TrimSpace(key)

	e.mu.Lock()
	e.interval = time.Duration(interval) * time.Minute
	e.apiKey = key
	e.mu.Unlock()

	return models.MQuoteSettings{Symbols: symbols, RefreshIntervalMinutes: interval, APIKey: key}
}

// -----------------------------------------------------------------------------

// APIKey returns the secondary provider key from the last settings read.
func (e *QuoteEngine) APIKey() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.apiKey
}

// -----------------------------------------------------------------------------

// RefreshInterval returns the interval from the last settings read.
func (e *QuoteEngine) RefreshInterval() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.interval
}

// -----------------------------------------------------------------------------

// ValidateSettingsUpdate rejects values that cannot be applied.
func ValidateSettingsUpdate(update models.MQuoteSettingsUpdate) error {
	if update.RefreshIntervalMinutes != nil {
		v := *update.RefreshIntervalMinutes
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return helpers.NewInvalidInput("refreshIntervalMinutes must be a finite number")
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// UpdateSettings persists the provided fields, restarts the scheduler and runs
// an immediate refresh with the resulting symbols.
func (e *QuoteEngine) UpdateSettings(ctx context.Context, update models.MQuoteSettingsUpdate) (models.MQuoteSettings, error) {
	if err := ValidateSettingsUpdate(update); err != nil {
		return models.MQuoteSettings{}, err
	}

	var symbols []string
	if update.Symbols != nil {
		symbols = utils.NormalizeSymbols(*update.Symbols)
		if err := SetSetting(ctx, e.store, utils.KeySymbols, symbols); err != nil {
			return models.MQuoteSettings{}, err
		}
	}
	if update.RefreshIntervalMinutes != nil {
		minutes := utils.ClampRefreshMinutes(*update.RefreshIntervalMinutes)
		if err := SetSetting(ctx, e.store, utils.KeyRefreshInterval, minutes); err != nil {
			return models.MQuoteSettings{}, err
		}
	}
	if update.APIKey != nil {
		if err := SetSetting(ctx, e.store, utils.KeyAlphaAPIKey, strings.TrimSpace(*update.APIKey)); err != nil {
			return models.MQuoteSettings{}, err
		}
	}

	settings := e.Settings(ctx)
	e.Logger.Info("Settings updated: %d symbols, every %d min, api key set: %t",
		len(settings.Symbols), settings.RefreshIntervalMinutes, settings.APIKey != "")

	e.mu.RLock()
	sched := e.scheduler
	e.mu.RUnlock()
	if sched != nil {
		sched.Restart(ctx)
	}

	if _, err := e.Refresh(ctx, symbols); err != nil {
		e.Logger.Warning("Refresh after settings update failed: %v", err)
	}
	return settings, nil
}

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

// GetQuote returns the quote for one symbol. A cache entry younger than the
// refresh interval is served without I/O; concurrent misses for the same
// symbol share one upstream fetch.
func (e *QuoteEngine) GetQuote(ctx context.Context, symbol string) (models.MQuote, error) {
	sym := utils.NormalizeSymbol(symbol)
	if sym == "" {
		return models.MQuote{}, helpers.NewInvalidInput("symbol must not be empty")
	}

	if cached, ok := e.fresh(sym); ok {
		return cached, nil
	}
	return e.fetchShared(ctx, sym)
}

// -----------------------------------------------------------------------------

// fresh returns the cached quote when it is younger than the refresh interval.
func (e *QuoteEngine) fresh(sym string) (models.MQuote, bool) {
	now := e.now()
	cached, ok := e.cached(sym)
	if !ok || now.UnixMilli()-cached.LastUpdated >= e.RefreshInterval().Milliseconds() {
		return models.MQuote{}, false
	}
	return MarkStale(cached, now), true
}

// -----------------------------------------------------------------------------

// fetchShared joins or starts the in-flight fetch for sym. The cache is checked
// again inside the flight: a flight that finished between the caller's miss and
// this call has already stored a fresh quote.
func (e *QuoteEngine) fetchShared(ctx context.Context, sym string) (models.MQuote, error) {
	// The fetch outlives a cancelled caller so the cache still gets populated.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := e.inflight.Do(sym, func() (interface{}, error) {
		if cached, ok := e.fresh(sym); ok {
			return cached, nil
		}
		return e.resolve(fetchCtx, sym)
	})
	if err != nil {
		return models.MQuote{}, err
	}
	if shared {
		e.Logger.Debug("Joined in-flight fetch for %s", sym)
	}
	return v.(models.MQuote).Clone(), nil
}

// -----------------------------------------------------------------------------

func (e *QuoteEngine) resolve(ctx context.Context, sym string) (models.MQuote, error) {
	previous, hasPrevious := e.cached(sym)

	fetched, err := e.chain.Fetch(ctx, sym)
	if err != nil {
		if !hasPrevious {
			return models.MQuote{}, err
		}
		stale := previous.Clone()
		stale.IsStale = true
		stale = MarkStale(stale, e.now())
		e.putQuote(sym, stale)
		e.Logger.Warning("No provider answered for %s, serving cached quote as stale", sym)
		return stale, nil
	}

	quote := fetched.Clone()
	if hasPrevious && !utils.IsCrypto(sym) {
		quote = e.verifyLargeMove(ctx, sym, previous, quote)
	}

	quote.Symbol = sym
	quote.LastUpdated = e.now().UnixMilli()
	quote.IsStale = false
	quote = MarkStale(quote, e.now())
	e.putQuote(sym, quote)
	return quote, nil
}

// -----------------------------------------------------------------------------

// verifyLargeMove asks the primary provider once more when the price moved by
// more than LargeMoveRatio. A valid answer replaces the candidate; otherwise the
// move is accepted.
func (e *QuoteEngine) verifyLargeMove(ctx context.Context, sym string, previous, candidate models.MQuote) models.MQuote {
	if !analysis.IsLargeMove(candidate.Price, previous.Price, utils.LargeMoveRatio) {
		return candidate
	}
	delta := analysis.RelativeMove(candidate.Price, previous.Price)

	e.Logger.Warning("Large move detected for %s (%.1f%%), retrying once", sym, delta*100)
	retry, err := e.chain.FetchPrimary(ctx, sym)
	if err == nil && retry != nil && retry.Price > 0 {
		return retry.Clone()
	}
	e.Logger.Warning("Accepting large move for %s after retry", sym)
	return candidate
}

// -----------------------------------------------------------------------------

func (e *QuoteEngine) cached(sym string) (models.MQuote, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q, ok := e.cache[sym]
	return q, ok
}

// -----------------------------------------------------------------------------

func (e *QuoteEngine) putQuote(sym string, q models.MQuote) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache[sym] = q
}

// -----------------------------------------------------------------------------

// RefreshAll resolves symbols one after another. Failed symbols are omitted.
// When nothing resolves the previous snapshot is served, stale-marked.
func (e *QuoteEngine) RefreshAll(ctx context.Context, symbols []string) ([]models.MQuote, error) {
	normalized := utils.NormalizeSymbols(symbols)
	start := e.now()

	results := make([]models.MQuote, 0, len(normalized))
	failures := 0
	for _, sym := range normalized {
		quote, err := e.GetQuote(ctx, sym)
		if err != nil {
			failures++
			e.Logger.Debug("No quote for %s: %v", sym, err)
			continue
		}
		results = append(results, MarkStale(quote, e.now()))
	}

	e.Logger.Info("Refresh %d symbols -> %d ok, %d errors (%s)",
		len(normalized), len(results), failures, e.now().Sub(start))

	if len(results) > 0 {
		e.mu.Lock()
		e.lastBroadcast = results
		e.lastRefresh = e.now()
		e.mu.Unlock()
		if err := SetSetting(context.WithoutCancel(ctx), e.store, utils.KeyQuotesCache, results); err != nil {
			e.Logger.Warning("Failed to persist quote snapshot: %v", err)
		}
		return cloneQuotes(results), nil
	}

	if previous := e.CachedQuotes(); len(previous) > 0 {
		e.Logger.Warning("Using cached quotes due to fetch errors")
		return previous, nil
	}
	return []models.MQuote{}, helpers.NewTotalRefreshFailure(len(normalized))
}

// -----------------------------------------------------------------------------

// Refresh runs RefreshAll over symbols, or the configured watchlist when
// symbols is empty, and broadcasts the result.
func (e *QuoteEngine) Refresh(ctx context.Context, symbols []string) ([]models.MQuote, error) {
	effective := utils.NormalizeSymbols(symbols)
	if len(effective) == 0 {
		effective = e.Settings(ctx).Symbols
	}

	quotes, err := e.RefreshAll(ctx, effective)
	if err != nil && !errors.Is(err, helpers.ErrTotalRefreshFailure) {
		return nil, err
	}

	snapshot := MarkAllStale(quotes, e.now())
	e.mu.Lock()
	e.lastBroadcast = snapshot
	b := e.broadcaster
	e.mu.Unlock()

	if b != nil {
		b.Emit(models.EventQuotesUpdate, cloneQuotes(snapshot))
	}
	return cloneQuotes(snapshot), err
}

// -----------------------------------------------------------------------------

// CachedQuotes returns the last broadcast snapshot, stale-marked for now.
func (e *QuoteEngine) CachedQuotes() []models.MQuote {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return MarkAllStale(e.lastBroadcast, e.now())
}

// -----------------------------------------------------------------------------

// Status is a read-only view for health and control endpoints.
type Status struct {
	CachedSymbols []string
	LastRefresh   time.Time
	Interval      time.Duration
}

// -----------------------------------------------------------------------------

// Status reports the cached symbols and the last successful refresh.
func (e *QuoteEngine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	symbols := make([]string, 0, len(e.cache))
	for sym := range e.cache {
		symbols = append(symbols, sym)
	}
	slices.Sort(symbols)
	return Status{CachedSymbols: symbols, LastRefresh: e.lastRefresh, Interval: e.interval}
}

// -----------------------------------------------------------------------------

func cloneQuotes(quotes []models.MQuote) []models.MQuote {
	out := make([]models.MQuote, len(quotes))
	for i, q := range quotes {
		out[i] = q.Clone()
	}
	return out
}
