package interfaces

import (
	"context"

	"quote-ticker/src/models"
)

// -----------------------------------------------------------------------------
// IQuoteProvider fetches a single quote from one upstream.
// -----------------------------------------------------------------------------

type IQuoteProvider interface {

	// Name identifies the provider in logs and status output.
	Name() string

	// -----------------------------------------------------------------------------

	// Fetch returns a validated quote, or an error matching
	// helpers.ErrNoData / helpers.ErrProviderUnavailable. It never returns (nil, nil).
	Fetch(ctx context.Context, symbol string) (*models.MQuote, error)
}
