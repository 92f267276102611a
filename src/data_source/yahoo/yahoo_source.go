package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"quote-ticker/src/analysis"
	"quote-ticker/src/helpers"
	"quote-ticker/src/interfaces"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"
)

const (
	Name           = "yahoo"
	DefaultBaseURL = "https://query1.finance.yahoo.com"
)

type YahooFinanceSource struct {
	BaseURL string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
	now     func() time.Time
}

// Option customizes a YahooFinanceSource.
type Option func(*YahooFinanceSource)

// WithClock overrides the wall clock used for lastUpdated and session detection.
func WithClock(now func() time.Time) Option {
	return func(s *YahooFinanceSource) { s.now = now }
}

// WithBaseURL points the source at another host (tests, mirrors).
func WithBaseURL(base string) Option {
	return func(s *YahooFinanceSource) {
		if base != "" {
			s.BaseURL = strings.TrimRight(base, "/")
		}
	}
}

// -----------------------------------------------------------------------------

func NewYahooFinanceSource(netMgr interfaces.INetworkManager, opts ...Option) *YahooFinanceSource {
	s := &YahooFinanceSource{
		BaseURL: DefaultBaseURL,
		Network: netMgr,
		Logger:  logger.NewLogger("YahooFinanceSource"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) Name() string {
	return Name
}

// -----------------------------------------------------------------------------

// Fetch reads the latest regular-session quote from the v8 chart endpoint.
func (s *YahooFinanceSource) Fetch(ctx context.Context, symbol string) (*models.MQuote, error) {
	params := map[string]string{
		"interval":       "1d",
		"range":          "1d",
		"includePrePost": "false",
	}
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", s.BaseURL, url.PathEscape(symbol))

	respBytes, err := s.Network.Get(ctx, endpoint, params)
	if err != nil {
		return nil, helpers.NewProviderUnavailable(Name, symbol, err)
	}

	return s.parseChartResponse(symbol, respBytes)
}

// -----------------------------------------------------------------------------

type tradingPeriod struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency             string  `json:"currency"`
				Symbol               string  `json:"symbol"`
				ExchangeName         string  `json:"exchangeName"`
				ShortName            string  `json:"shortName"`
				LongName             string  `json:"longName"`
				RegularMarketTime    int64   `json:"regularMarketTime"`
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				PreviousClose        float64 `json:"previousClose"`
				CurrentTradingPeriod struct {
					Pre     tradingPeriod `json:"pre"`
					Regular tradingPeriod `json:"regular"`
					Post    tradingPeriod `json:"post"`
				} `json:"currentTradingPeriod"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) parseChartResponse(symbol string, data []byte) (*models.MQuote, error) {
	var resp YahooChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, helpers.NewProviderUnavailable(Name, symbol, fmt.Errorf("json unmarshal failed: %w", err))
	}

	if resp.Chart.Error != nil {
		s.Logger.Debug("yahoo api error for %s: %s - %s", symbol, resp.Chart.Error.Code, resp.Chart.Error.Description)
		return nil, helpers.NewNoData(Name, symbol)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, helpers.NewNoData(Name, symbol)
	}

	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 || meta.Currency == "" {
		s.Logger.Debug("Rejecting %s: price=%f currency=%q", symbol, meta.RegularMarketPrice, meta.Currency)
		return nil, helpers.NewNoData(Name, symbol)
	}

	now := s.now()
	marketTime := now.UnixMilli()
	if meta.RegularMarketTime > 0 {
		marketTime = meta.RegularMarketTime * 1000
	}

	displayName := meta.ShortName
	if displayName == "" {
		displayName = meta.LongName
	}

	quote := &models.MQuote{
		Symbol:      symbol,
		DisplayName: displayName,
		Price:       meta.RegularMarketPrice,
		Currency:    meta.Currency,
		MarketTime:  marketTime,
		MarketState: sessionState(meta.CurrentTradingPeriod.Pre, meta.CurrentTradingPeriod.Regular, meta.CurrentTradingPeriod.Post, now.Unix()),
		Source:      models.SourcePrimary,
		LastUpdated: now.UnixMilli(),
	}

	prevClose := meta.ChartPreviousClose
	if prevClose <= 0 {
		prevClose = meta.PreviousClose
	}
	if prevClose > 0 {
		quote.ChangeAbs = models.Float(meta.RegularMarketPrice - prevClose)
		quote.ChangePct = models.Float(analysis.ChangePercent(meta.RegularMarketPrice, prevClose))
	}

	return quote, nil
}

// -----------------------------------------------------------------------------

// sessionState maps the exchange's current trading periods onto a market state.
func sessionState(pre, regular, post tradingPeriod, nowUnix int64) string {
	in := func(p tradingPeriod) bool { return p.End > p.Start && nowUnix >= p.Start && nowUnix < p.End }
	switch {
	case regular.End == 0 && pre.End == 0 && post.End == 0:
		return ""
	case in(regular):
		return "REGULAR"
	case in(pre):
		return "PRE"
	case in(post):
		return "POST"
	default:
		return "CLOSED"
	}
}
