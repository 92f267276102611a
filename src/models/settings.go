package models

// -----------------------------------------------------------------------------
// Quote Settings
// -----------------------------------------------------------------------------

// MQuoteSettings is the effective refresh configuration.
type MQuoteSettings struct {
	Symbols                []string `json:"symbols"`
	RefreshIntervalMinutes int      `json:"refreshIntervalMinutes"`
	APIKey                 string   `json:"apiKey,omitempty"`
}

// MQuoteSettingsUpdate is a partial settings change. Nil fields are left untouched.
type MQuoteSettingsUpdate struct {
	Symbols                *[]string `json:"symbols,omitempty"`
	RefreshIntervalMinutes *float64  `json:"refreshIntervalMinutes,omitempty"`
	APIKey                 *string   `json:"apiKey,omitempty"`
}
