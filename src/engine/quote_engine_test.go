package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"quote-ticker/src/helpers"
	"quote-ticker/src/models"
	"quote-ticker/src/utils"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCacheHitPerformsOneFetch(t *testing.T) {
	t.Parallel()

	// Arrange
	h := newHarness(t, newMemoryStore())
	h.primary.Set(h.priced(190.12, models.SourcePrimary))
	ctx := context.Background()

	// Act
	first, err1 := h.engine.GetQuote(ctx, "AAPL")
	h.clock.Advance(2 * time.Minute)
	second, err2 := h.engine.GetQuote(ctx, "aapl")

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, 1, h.primary.Calls())
	require.Equal(t, first.Price, second.Price)
	require.Equal(t, first.LastUpdated, second.LastUpdated)
}

func TestConcurrentCallersShareOneFetch(t *testing.T) {
	t.Parallel()

	// Arrange: the provider blocks until released.
	h := newHarness(t, newMemoryStore())
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	h.primary.Set(func(call int, symbol string) (*models.MQuote, error) {
		entered <- struct{}{}
		<-release
		return &models.MQuote{Symbol: symbol, Price: 42, Currency: "USD", MarketTime: epoch.UnixMilli()}, nil
	})

	const callers = 16
	results := make([]models.MQuote, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	// Act
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.engine.GetQuote(context.Background(), "MSFT")
		}(i)
	}
	<-entered
	close(release)
	wg.Wait()

	// Assert
	require.Equal(t, 1, h.primary.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Empty(t, cmp.Diff(results[0], results[i]))
	}
}

func TestFlightFinishedBeforeJoinServesCache(t *testing.T) {
	t.Parallel()

	// Arrange: a first caller completes its fetch.
	h := newHarness(t, newMemoryStore())
	h.primary.Set(h.priced(310.5, models.SourcePrimary))
	ctx := context.Background()
	first, err := h.engine.GetQuote(ctx, "MSFT")
	require.NoError(t, err)

	// Act: a second caller that missed the cache before that flight ended now
	// reaches the shared fetch.
	h.clock.Advance(time.Minute)
	late, err := h.engine.fetchShared(ctx, "MSFT")

	// Assert
	require.NoError(t, err)
	require.Equal(t, 1, h.primary.Calls())
	require.Equal(t, first.LastUpdated, late.LastUpdated)
}

func TestSharedFetchRefetchesExpiredEntry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newMemoryStore())
	h.primary.Set(h.priced(310.5, models.SourcePrimary))
	ctx := context.Background()
	_, err := h.engine.GetQuote(ctx, "MSFT")
	require.NoError(t, err)

	h.clock.Advance(11 * time.Minute)
	_, err = h.engine.fetchShared(ctx, "MSFT")

	require.NoError(t, err)
	require.Equal(t, 2, h.primary.Calls())
}

func TestSnapshotPersistsAfterCallerCancels(t *testing.T) {
	t.Parallel()

	// Arrange
	store := newMemoryStore()
	h := newHarness(t, store)
	h.primary.Set(h.priced(190.12, models.SourcePrimary))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	quotes, err := h.engine.RefreshAll(ctx, []string{"AAPL"})

	// Assert
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	var persisted []models.MQuote
	found, err := store.Get(context.Background(), utils.KeyQuotesCache, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, persisted, 1)
	require.Equal(t, "AAPL", persisted[0].Symbol)
}

func TestInvalidPriceNeverReplacesCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newMemoryStore())
	ctx := context.Background()
	h.primary.Set(h.priced(100, models.SourcePrimary))
	_, err := h.engine.GetQuote(ctx, "AAPL")
	require.NoError(t, err)

	// Both primary attempts now return a zero price.
	h.primary.Set(h.priced(0, models.SourcePrimary))
	h.clock.Advance(11 * time.Minute)

	quote, err := h.engine.GetQuote(ctx, "AAPL")

	require.NoError(t, err)
	require.InDelta(t, 100.0, quote.Price, 1e-9)
	require.True(t, quote.IsStale)
	require.Equal(t, 3, h.primary.Calls())
}

func TestInvalidPriceWithoutHistoryIsNoData(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newMemoryStore())
	h.primary.Set(h.priced(-5, models.SourcePrimary))

	_, err := h.engine.GetQuote(context.Background(), "AAPL")

	require.ErrorIs(t, err, helpers.ErrNoData)
}

func TestLargeMoveTriggersExactlyOneRetry(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		retry     fetchFunc
		wantPrice float64
	}{
		"retry confirms": {
			retry:     func(_ int, s string) (*models.MQuote, error) { return quoteAt(s, 160), nil },
			wantPrice: 160,
		},
		"retry corrects": {
			retry:     func(_ int, s string) (*models.MQuote, error) { return quoteAt(s, 101), nil },
			wantPrice: 101,
		},
		"retry fails, move accepted": {
			retry:     failing,
			wantPrice: 160,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// Arrange: cached at 100, next fetch says 160.
			h := newHarness(t, newMemoryStore())
			ctx := context.Background()
			h.primary.Set(h.priced(100, models.SourcePrimary))
			_, err := h.engine.GetQuote(ctx, "AAPL")
			require.NoError(t, err)

			h.clock.Advance(11 * time.Minute)
			h.primary.Set(func(call int, s string) (*models.MQuote, error) {
				if call == 2 {
					return quoteAt(s, 160), nil
				}
				return tc.retry(call, s)
			})

			// Act
			quote, err := h.engine.GetQuote(ctx, "AAPL")

			// Assert
			require.NoError(t, err)
			require.Equal(t, 3, h.primary.Calls())
			require.InDelta(t, tc.wantPrice, quote.Price, 1e-9)
		})
	}
}

func TestSmallMoveAndCryptoSkipVerification(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newMemoryStore())
	ctx := context.Background()
	h.primary.Set(h.priced(100, models.SourcePrimary))
	_, err := h.engine.RefreshAll(ctx, []string{"AAPL", "BTC-USD"})
	require.NoError(t, err)
	require.Equal(t, 2, h.primary.Calls())

	h.clock.Advance(11 * time.Minute)
	h.primary.Set(func(_ int, s string) (*models.MQuote, error) {
		if s == "BTC-USD" {
			return quoteAt(s, 250), nil
		}
		return quoteAt(s, 140), nil
	})

	quotes, err := h.engine.RefreshAll(ctx, []string{"AAPL", "BTC-USD"})

	require.NoError(t, err)
	require.Equal(t, 4, h.primary.Calls())
	require.InDelta(t, 140.0, quotes[0].Price, 1e-9)
	require.InDelta(t, 250.0, quotes[1].Price, 1e-9)
}

func TestStalenessIsDerivedOnRead(t *testing.T) {
	t.Parallel()

	// Arrange: a long refresh interval keeps the entry on the fast path.
	store := newMemoryStore()
	require.NoError(t, store.Set(context.Background(), utils.KeyRefreshInterval, 60))
	h := newHarness(t, store)
	h.primary.Set(h.priced(190.12, models.SourcePrimary))

	fresh, err := h.engine.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.False(t, fresh.IsStale)

	// Act
	h.clock.Advance(25 * time.Minute)
	later, err := h.engine.GetQuote(context.Background(), "AAPL")

	// Assert
	require.NoError(t, err)
	require.Equal(t, 1, h.primary.Calls())
	require.True(t, later.IsStale)
}

func TestSymbolsAreNormalizedAndDeduplicated(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newMemoryStore())
	h.primary.Set(h.priced(10, models.SourcePrimary))

	quotes, err := h.engine.RefreshAll(context.Background(), []string{"aapl", "AAPL", " aapl "})

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.Equal(t, "AAPL", quotes[0].Symbol)
	require.Equal(t, 1, h.primary.Calls())

	_, err = h.engine.GetQuote(context.Background(), "   ")
	require.ErrorIs(t, err, helpers.ErrInvalidInput)
}

func TestEmptyRefreshFallsBackToSnapshot(t *testing.T) {
	t.Parallel()

	// Arrange
	h := newHarness(t, newMemoryStore())
	ctx := context.Background()
	h.primary.Set(h.priced(190, models.SourcePrimary))
	_, err := h.engine.RefreshAll(ctx, []string{"AAPL"})
	require.NoError(t, err)

	h.primary.Set(failing)
	h.clock.Advance(25 * time.Minute)

	// Act: nothing for MSFT has ever been cached.
	quotes, err := h.engine.RefreshAll(ctx, []string{"MSFT"})

	// Assert
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.Equal(t, "AAPL", quotes[0].Symbol)
	require.True(t, quotes[0].IsStale)
}

func TestColdTotalFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newMemoryStore())

	quotes, err := h.engine.RefreshAll(context.Background(), []string{"AAPL", "MSFT"})

	require.ErrorIs(t, err, helpers.ErrTotalRefreshFailure)
	require.NotNil(t, quotes)
	require.Empty(t, quotes)
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	first := newHarness(t, store)
	first.primary.Set(first.priced(190, models.SourcePrimary))
	_, err := first.engine.RefreshAll(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	second := newHarness(t, store)

	cached := second.engine.CachedQuotes()
	require.Len(t, cached, 1)
	require.Equal(t, "AAPL", cached[0].Symbol)
	require.Zero(t, second.primary.Calls())
}

func TestTickerScenario(t *testing.T) {
	t.Parallel()

	// Arrange: watchlist AAPL + BTC-USD, 10 minute interval, no api key.
	h := newHarness(t, newMemoryStore())
	ctx := context.Background()
	h.primary.Set(func(_ int, s string) (*models.MQuote, error) {
		price := 190.12
		if s == "BTC-USD" {
			price = 58000
		}
		q := quoteAt(s, price)
		q.MarketTime = h.clock.Now().UnixMilli()
		return q, nil
	})

	// Act 1: live fetch.
	quotes, err := h.engine.RefreshAll(ctx, []string{"AAPL", "BTC-USD"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	for _, q := range quotes {
		require.Equal(t, models.SourcePrimary, q.Source)
		require.Equal(t, "USD", q.Currency)
	}
	require.InDelta(t, 190.12, quotes[0].Price, 1e-9)
	require.InDelta(t, 58000.0, quotes[1].Price, 1e-9)

	var persisted []models.MQuote
	found, err := h.store.Get(ctx, utils.KeyQuotesCache, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, persisted, 2)
	require.Zero(t, h.secondary.Calls())

	// Act 2: two minutes later, served from cache.
	h.clock.Advance(2 * time.Minute)
	calls := h.primary.Calls()
	quotes, err = h.engine.RefreshAll(ctx, []string{"AAPL", "BTC-USD"})
	require.NoError(t, err)
	require.Equal(t, calls, h.primary.Calls())
	for _, q := range quotes {
		require.False(t, q.IsStale)
	}

	// Act 3: 25 minutes on, every provider fails.
	h.clock.Advance(25 * time.Minute)
	h.primary.Set(failing)
	h.crypto.Set(failing)
	quotes, err = h.engine.RefreshAll(ctx, []string{"AAPL", "BTC-USD"})

	// Assert
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	for _, q := range quotes {
		require.True(t, q.IsStale, q.Symbol)
	}
	require.InDelta(t, 58000.0, quotes[1].Price, 1e-9)
	require.Equal(t, 1, h.crypto.Calls())
}

func TestRefreshBroadcastsConfiguredWatchlist(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newMemoryStore())
	h.primary.Set(h.priced(10, models.SourcePrimary))

	quotes, err := h.engine.Refresh(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, quotes, 2)
	events := h.bus.Events()
	require.Len(t, events, 1)
	require.Equal(t, models.EventQuotesUpdate, events[0].event)
	require.Empty(t, cmp.Diff(quotes, events[0].quotes))
	require.Empty(t, cmp.Diff(quotes, h.engine.CachedQuotes()))
}

func TestUpdateSettings(t *testing.T) {
	t.Parallel()

	// Arrange
	h := newHarness(t, newMemoryStore())
	h.primary.Set(h.priced(10, models.SourcePrimary))
	symbols := []string{" msft ", "MSFT", "aapl"}
	minutes := 2.4
	key := "  av-key  "

	// Act
	settings, err := h.engine.UpdateSettings(context.Background(), models.MQuoteSettingsUpdate{
		Symbols:                &symbols,
		RefreshIntervalMinutes: &minutes,
		APIKey:                 &key,
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, models.MQuoteSettings{
		Symbols:                []string{"MSFT", "AAPL"},
		RefreshIntervalMinutes: utils.MinRefreshMinutes,
		APIKey:                 "av-key",
	}, settings)
	require.Equal(t, int32(1), h.sched.restarts.Load())
	require.Equal(t, "av-key", h.engine.APIKey())
	require.Equal(t, 5*time.Minute, h.engine.RefreshInterval())

	// The key enables the secondary provider for the immediate refresh.
	require.Equal(t, 2, h.secondary.Calls())
	events := h.bus.Events()
	require.Len(t, events, 1)
	require.Len(t, events[0].quotes, 2)
	require.Equal(t, "MSFT", events[0].quotes[0].Symbol)

	require.Empty(t, cmp.Diff(settings, h.engine.Settings(context.Background())))
}

func TestUpdateSettingsPartialAndInvalid(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newMemoryStore())
	ctx := context.Background()

	minutes := 7.6
	settings, err := h.engine.UpdateSettings(ctx, models.MQuoteSettingsUpdate{RefreshIntervalMinutes: &minutes})
	require.NoError(t, err)
	require.Equal(t, 8, settings.RefreshIntervalMinutes)
	require.Equal(t, []string{"AAPL", "BTC-USD"}, settings.Symbols)
	require.Empty(t, settings.APIKey)

	nan := math.NaN()
	_, err = h.engine.UpdateSettings(ctx, models.MQuoteSettingsUpdate{RefreshIntervalMinutes: &nan})
	require.ErrorIs(t, err, helpers.ErrInvalidInput)
	require.Equal(t, int32(1), h.sched.restarts.Load())
}

func TestMarkStale(t *testing.T) {
	t.Parallel()

	now := epoch
	base := models.MQuote{LastUpdated: now.UnixMilli(), MarketTime: now.UnixMilli()}

	require.False(t, MarkStale(base, now).IsStale)
	require.False(t, MarkStale(base, now.Add(20*time.Minute)).IsStale)
	require.True(t, MarkStale(base, now.Add(20*time.Minute+time.Millisecond)).IsStale)

	oldMarket := base
	oldMarket.MarketTime = now.Add(-21 * time.Minute).UnixMilli()
	require.True(t, MarkStale(oldMarket, now).IsStale)

	flagged := base
	flagged.IsStale = true
	require.True(t, MarkStale(flagged, now).IsStale)
}

func quoteAt(symbol string, price float64) *models.MQuote {
	return &models.MQuote{Symbol: symbol, Price: price, Currency: "USD", MarketTime: epoch.UnixMilli(), Source: models.SourcePrimary}
}
