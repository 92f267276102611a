package alphavantage

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

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	Name           = "alphavantage"
	DefaultBaseURL = "https://www.alphavantage.co"
)

// AlphaVantageSource is the key-gated secondary provider. Crypto pairs go to
// CURRENCY_EXCHANGE_RATE, everything else to GLOBAL_QUOTE.
type AlphaVantageSource struct {
	BaseURL string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
	// APIKey is read on every call so settings changes apply without a rebuild.
	APIKey  func() string
	Limiter *rate.Limiter
	Hours   *utils.MarketHours
	now     func() time.Time
}

// Option customizes an AlphaVantageSource.
type Option func(*AlphaVantageSource)

func WithClock(now func() time.Time) Option {
	return func(s *AlphaVantageSource) { s.now = now }
}

func WithBaseURL(base string) Option {
	return func(s *AlphaVantageSource) {
		if base != "" {
			s.BaseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithRequestsPerMinute caps outgoing calls; zero disables the cap.
func WithRequestsPerMinute(n int) Option {
	return func(s *AlphaVantageSource) {
		if n <= 0 {
			s.Limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

func WithMarketHours(mh *utils.MarketHours) Option {
	return func(s *AlphaVantageSource) { s.Hours = mh }
}

// -----------------------------------------------------------------------------

func NewAlphaVantageSource(netMgr interfaces.INetworkManager, apiKey func() string, opts ...Option) *AlphaVantageSource {
	s := &AlphaVantageSource{
		BaseURL: DefaultBaseURL,
		Network: netMgr,
		Logger:  logger.NewLogger("AlphaVantageSource"),
		APIKey:  apiKey,
		Limiter: rate.NewLimiter(rate.Every(12*time.Second), 5),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -----------------------------------------------------------------------------

func (s *AlphaVantageSource) Name() string {
	return Name
}

// -----------------------------------------------------------------------------

// Enabled reports whether an API key is configured.
func (s *AlphaVantageSource) Enabled() bool {
	return s.key() != ""
}

// -----------------------------------------------------------------------------

func (s *AlphaVantageSource) key() string {
	if s.APIKey == nil {
		return ""
	}
	return strings.TrimSpace(s.APIKey())
}

// -----------------------------------------------------------------------------

func (s *AlphaVantageSource) Fetch(ctx context.Context, symbol string) (*models.MQuote, error) {
	if utils.IsCrypto(symbol) {
		return s.FetchExchangeRate(ctx, symbol)
	}
	return s.FetchGlobalQuote(ctx, symbol)
}

// -----------------------------------------------------------------------------

// alphaPayload keeps the provider's field names; values stay strings until validated.
type alphaPayload struct {
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
	ErrorMessage string            `json:"Error Message"`
	GlobalQuote  map[string]string `json:"Global Quote"`
	ExchangeRate map[string]string `json:"Realtime Currency Exchange Rate"`
}

func (p *alphaPayload) rateLimited() bool {
	return p.Note != "" || p.Information != "" || p.ErrorMessage != ""
}

// -----------------------------------------------------------------------------

func (s *AlphaVantageSource) query(ctx context.Context, symbol string, params map[string]string) (*alphaPayload, error) {
	key := s.key()
	if key == "" {
		return nil, helpers.NewNoData(Name, symbol)
	}
	if s.Limiter != nil && !s.Limiter.Allow() {
		s.Logger.Debug("Local rate limit reached, skipping %s", symbol)
		return nil, helpers.NewProviderUnavailable(Name, symbol, fmt.Errorf("client rate limit"))
	}

	params["apikey"] = key
	body, err := s.Network.Get(ctx, s.BaseURL+"/query", params)
	if err != nil {
		return nil, helpers.NewProviderUnavailable(Name, symbol, err)
	}

	var payload alphaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, helpers.NewProviderUnavailable(Name, symbol, fmt.Errorf("json unmarshal failed: %w", err))
	}
	if payload.rateLimited() {
		s.Logger.Warning("Alpha Vantage rate limited for %s", symbol)
		return nil, helpers.NewProviderUnavailable(Name, symbol, fmt.Errorf("upstream rate limit"))
	}
	return &payload, nil
}

// -----------------------------------------------------------------------------

// FetchGlobalQuote calls GLOBAL_QUOTE.
func (s *AlphaVantageSource) FetchGlobalQuote(ctx context.Context, symbol string) (*models.MQuote, error) {
	payload, err := s.query(ctx, symbol, map[string]string{
		"function": "GLOBAL_QUOTE",
		"symbol":   symbol,
	})
	if err != nil {
		return nil, err
	}

	gq := payload.GlobalQuote
	price, ok := parsePositive(gq["05. price"])
	if !ok {
		return nil, helpers.NewNoData(Name, symbol)
	}

	now := s.now()
	marketTime := now.UnixMilli()
	if day := gq["07. latest trading day"]; day != "" {
		if t, err := time.Parse(time.RFC3339, day+"T16:00:00Z"); err == nil {
			marketTime = t.UnixMilli()
		}
	}

	displayName := gq["01. symbol"]
	if displayName == "" {
		displayName = symbol
	}

	marketState := utils.MarketStateRegular
	if s.Hours != nil {
		marketState = s.Hours.State(symbol, now)
	}

	return &models.MQuote{
		Symbol:      symbol,
		DisplayName: displayName,
		Price:       price,
		Currency:    utils.InferCurrency(symbol),
		ChangeAbs:   parseOptional(gq["09. change"]),
		ChangePct:   parseOptional(strings.TrimSuffix(strings.TrimSpace(gq["10. change percent"]), "%")),
		MarketTime:  marketTime,
		MarketState: marketState,
		Source:      models.SourceSecondary,
		LastUpdated: now.UnixMilli(),
	}, nil
}

// -----------------------------------------------------------------------------

// FetchExchangeRate calls CURRENCY_EXCHANGE_RATE for a FROM-TO pair.
func (s *AlphaVantageSource) FetchExchangeRate(ctx context.Context, symbol string) (*models.MQuote, error) {
	from, to, ok := utils.SplitPair(symbol)
	if !ok {
		return nil, helpers.NewNoData(Name, symbol)
	}

	payload, err := s.query(ctx, symbol, map[string]string{
		"function":      "CURRENCY_EXCHANGE_RATE",
		"from_currency": from,
		"to_currency":   to,
	})
	if err != nil {
		return nil, err
	}

	fx := payload.ExchangeRate
	price, ok := parsePositive(fx["5. Exchange Rate"])
	if !ok {
		return nil, helpers.NewNoData(Name, symbol)
	}

	now := s.now()
	marketTime := now.UnixMilli()
	if refreshed := fx["6. Last Refreshed"]; refreshed != "" {
		if t, err := time.ParseInLocation(time.DateTime, refreshed, time.UTC); err == nil {
			marketTime = t.UnixMilli()
		}
	}

	return &models.MQuote{
		Symbol:      symbol,
		DisplayName: from + "/" + to,
		Price:       price,
		Currency:    to,
		MarketTime:  marketTime,
		MarketState: utils.MarketStateRegular,
		Source:      models.SourceSecondary,
		LastUpdated: now.UnixMilli(),
	}, nil
}

// -----------------------------------------------------------------------------

func parsePositive(raw string) (float64, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsPositive() {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// -----------------------------------------------------------------------------

func parseOptional(raw string) *float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return models.Float(d.InexactFloat64())
}
