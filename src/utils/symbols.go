package utils

import (
	"math"
	"strings"
)

// coinGeckoIDs doubles as the set of recognized crypto pairs.
var coinGeckoIDs = map[string]string{
	"BTC-USD": "bitcoin",
	"ETH-USD": "ethereum",
}

var suffixCurrencies = []struct {
	suffix   string
	currency string
}{
	{".DE", "EUR"},
	{".PA", "EUR"},
	{".L", "GBP"},
}

// -----------------------------------------------------------------------------

// NormalizeSymbol trims and uppercases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// -----------------------------------------------------------------------------

// NormalizeSymbols normalizes, drops empties and removes duplicates keeping the
// first occurrence.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		n := NormalizeSymbol(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// -----------------------------------------------------------------------------

// IsCrypto reports whether symbol is a recognized crypto pair.
func IsCrypto(symbol string) bool {
	_, ok := coinGeckoIDs[NormalizeSymbol(symbol)]
	return ok
}

// -----------------------------------------------------------------------------

// CoinGeckoID maps a crypto pair to the CoinGecko asset id.
func CoinGeckoID(symbol string) (string, bool) {
	id, ok := coinGeckoIDs[NormalizeSymbol(symbol)]
	return id, ok
}

// -----------------------------------------------------------------------------

// SplitPair splits "FROM-TO". ok is false unless both halves are present.
func SplitPair(symbol string) (from, to string, ok bool) {
	parts := strings.Split(NormalizeSymbol(symbol), "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// -----------------------------------------------------------------------------

// InferCurrency guesses the quote currency from the exchange suffix.
func InferCurrency(symbol string) string {
	upper := NormalizeSymbol(symbol)
	for _, sc := range suffixCurrencies {
		if strings.HasSuffix(upper, sc.suffix) {
			return sc.currency
		}
	}
	return "USD"
}

// -----------------------------------------------------------------------------

// ClampRefreshMinutes rounds and clamps a requested interval.
func ClampRefreshMinutes(minutes float64) int {
	if math.IsNaN(minutes) {
		return MinRefreshMinutes
	}
	m := int(math.Round(minutes))
	if m < MinRefreshMinutes {
		return MinRefreshMinutes
	}
	if m > MaxRefreshMinutes {
		return MaxRefreshMinutes
	}
	return m
}
