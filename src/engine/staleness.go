package engine

import (
	"time"

	"quote-ticker/src/models"
	"quote-ticker/src/utils"
)

// -----------------------------------------------------------------------------

// MarkStale returns a copy of q with IsStale derived for the instant now.
// A quote already flagged stale stays stale.
func MarkStale(q models.MQuote, now time.Time) models.MQuote {
	out := q.Clone()
	nowMs := now.UnixMilli()
	limit := utils.StaleAfter.Milliseconds()
	out.IsStale = q.IsStale || nowMs-q.LastUpdated > limit || nowMs-q.MarketTime > limit
	return out
}

// -----------------------------------------------------------------------------

// MarkAllStale applies MarkStale to every quote.
func MarkAllStale(quotes []models.MQuote, now time.Time) []models.MQuote {
	out := make([]models.MQuote, len(quotes))
	for i, q := range quotes {
		out[i] = MarkStale(q, now)
	}
	return out
}
