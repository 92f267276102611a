package models

// -----------------------------------------------------------------------------
// WebSocket Envelope
// -----------------------------------------------------------------------------

// Broadcast events
const (
	EventQuotesUpdate    = "quotes:update"
	EventQuotesSubscribe = "quotes:subscribe"
)

// MEvent is the frame exchanged with real-time clients.
type MEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}
