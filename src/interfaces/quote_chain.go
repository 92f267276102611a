package interfaces

import (
	"context"

	"quote-ticker/src/models"
)

// -----------------------------------------------------------------------------
// IQuoteChain resolves a symbol across every configured provider.
// -----------------------------------------------------------------------------

type IQuoteChain interface {

	// Fetch walks the fallback order and returns the first valid quote.
	Fetch(ctx context.Context, symbol string) (*models.MQuote, error)

	// -----------------------------------------------------------------------------

	// FetchPrimary asks only the primary provider, once.
	FetchPrimary(ctx context.Context, symbol string) (*models.MQuote, error)
}
