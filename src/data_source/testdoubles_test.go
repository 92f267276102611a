package datasource

import (
	"context"
	"sync"

	"quote-ticker/src/helpers"
	"quote-ticker/src/models"
)

// scriptedProvider replays queued results and records the symbols it saw.
type scriptedProvider struct {
	name string

	mu      sync.Mutex
	results []*models.MQuote
	calls   []string
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Fetch(_ context.Context, symbol string) (*models.MQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, symbol)
	if len(p.results) == 0 {
		return nil, helpers.NewNoData(p.name, symbol)
	}
	q := p.results[0]
	p.results = p.results[1:]
	if q == nil {
		return nil, helpers.NewNoData(p.name, symbol)
	}
	return q, nil
}

func (p *scriptedProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func quoteOf(symbol string, price float64, source string) *models.MQuote {
	return &models.MQuote{Symbol: symbol, Price: price, Currency: "USD", Source: source}
}
