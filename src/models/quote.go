package models

// -----------------------------------------------------------------------------
// Quote Structure
// -----------------------------------------------------------------------------

// Quote sources
const (
	SourcePrimary        = "primary"
	SourceSecondary      = "secondary"
	SourceCryptoFallback = "crypto-fallback"
)

// MQuote is a point-in-time price observation. Timestamps are epoch millis.
type MQuote struct {
	Symbol      string   `json:"symbol"`
	DisplayName string   `json:"displayName,omitempty"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	ChangeAbs   *float64 `json:"changeAbs,omitempty"`
	ChangePct   *float64 `json:"changePct,omitempty"`
	MarketTime  int64    `json:"marketTime"`
	MarketState string   `json:"marketState,omitempty"`
	Source      string   `json:"source"`
	LastUpdated int64    `json:"lastUpdated"`
	IsStale     bool     `json:"isStale"`
}

// -----------------------------------------------------------------------------

// Valid reports whether the quote may enter the cache.
func (q *MQuote) Valid() bool {
	return q != nil && q.Price > 0 && q.Currency != ""
}

// -----------------------------------------------------------------------------

// Clone returns a copy that shares no pointers with q.
func (q MQuote) Clone() MQuote {
	if q.ChangeAbs != nil {
		v := *q.ChangeAbs
		q.ChangeAbs = &v
	}
	if q.ChangePct != nil {
		v := *q.ChangePct
		q.ChangePct = &v
	}
	return q
}

// -----------------------------------------------------------------------------

// Float returns a pointer to v, for the optional change fields.
func Float(v float64) *float64 {
	return &v
}
