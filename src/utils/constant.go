package utils

import "time"

// -----------------------------------------------------------------------------

// Refresh and staleness policy.
const (
	DefaultRefreshMinutes = 10
	MinRefreshMinutes     = 5
	MaxRefreshMinutes     = 60 * 24

	StaleAfter = 20 * time.Minute

	// LargeMoveRatio is the relative price change that triggers a verification fetch.
	LargeMoveRatio = 0.5
)

// Settings store keys.
const (
	KeySymbols         = "topbar.symbols"
	KeyRefreshInterval = "quotes.refreshIntervalMinutes"
	KeyAlphaAPIKey     = "quotes.alphaApiKey"
	KeyQuotesCache     = "quotes.cache"
)

// DefaultSymbols seeds the watchlist on first start.
var DefaultSymbols = []string{"AAPL", "MSFT", "BTC-USD", "ETH-USD"}
