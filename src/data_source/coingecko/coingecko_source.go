package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quote-ticker/src/helpers"
	"quote-ticker/src/interfaces"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"
	"quote-ticker/src/utils"
)

const (
	Name           = "coingecko"
	DefaultBaseURL = "https://api.coingecko.com"
)

// CoinGeckoSource is the key-less crypto fallback. Only pairs with a known
// asset id are served; anything else is rejected before any I/O.
type CoinGeckoSource struct {
	BaseURL string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
	now     func() time.Time
}

type Option func(*CoinGeckoSource)

func WithClock(now func() time.Time) Option {
	return func(s *CoinGeckoSource) { s.now = now }
}

func WithBaseURL(base string) Option {
	return func(s *CoinGeckoSource) {
		if base != "" {
			s.BaseURL = strings.TrimRight(base, "/")
		}
	}
}

// -----------------------------------------------------------------------------

func NewCoinGeckoSource(netMgr interfaces.INetworkManager, opts ...Option) *CoinGeckoSource {
	s := &CoinGeckoSource{
		BaseURL: DefaultBaseURL,
		Network: netMgr,
		Logger:  logger.NewLogger("CoinGeckoSource"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -----------------------------------------------------------------------------

func (s *CoinGeckoSource) Name() string {
	return Name
}

// -----------------------------------------------------------------------------

func (s *CoinGeckoSource) Fetch(ctx context.Context, symbol string) (*models.MQuote, error) {
	id, ok := utils.CoinGeckoID(symbol)
	if !ok {
		return nil, helpers.NewNoData(Name, symbol)
	}

	vs := "usd"
	if _, to, ok := utils.SplitPair(symbol); ok {
		vs = strings.ToLower(to)
	}

	body, err := s.Network.Get(ctx, s.BaseURL+"/api/v3/simple/price", map[string]string{
		"ids":                     id,
		"vs_currencies":           vs,
		"include_last_updated_at": "true",
		"include_24hr_change":     "true",
	})
	if err != nil {
		return nil, helpers.NewProviderUnavailable(Name, symbol, err)
	}

	// {"bitcoin": {"usd": 58000, "usd_24h_change": 1.2, "last_updated_at": 1717599500}}
	var payload map[string]map[string]float64
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, helpers.NewProviderUnavailable(Name, symbol, fmt.Errorf("json unmarshal failed: %w", err))
	}

	entry, ok := payload[id]
	if !ok {
		return nil, helpers.NewNoData(Name, symbol)
	}
	price := entry[vs]
	if price <= 0 {
		return nil, helpers.NewNoData(Name, symbol)
	}

	now := s.now()
	marketTime := now.UnixMilli()
	if ts := entry["last_updated_at"]; ts > 0 {
		marketTime = int64(ts) * 1000
	}

	quote := &models.MQuote{
		Symbol:      symbol,
		DisplayName: id,
		Price:       price,
		Currency:    strings.ToUpper(vs),
		MarketTime:  marketTime,
		Source:      models.SourceCryptoFallback,
		LastUpdated: now.UnixMilli(),
	}
	if pct, ok := entry[vs+"_24h_change"]; ok {
		quote.ChangePct = models.Float(pct)
		quote.ChangeAbs = models.Float(price * pct / 100)
	}

	return quote, nil
}
