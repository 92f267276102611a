package interfaces

import "context"

// -----------------------------------------------------------------------------
// ISettingsStore is the durable key-value store behind the quote settings.
// Values are JSON documents.
// -----------------------------------------------------------------------------

type ISettingsStore interface {

	// Initialize sets up the schema or connection.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Get decodes the value stored under key into dest. found is false when the
	// key does not exist.
	Get(ctx context.Context, key string, dest interface{}) (found bool, err error)

	// -----------------------------------------------------------------------------

	// Set upserts value under key.
	Set(ctx context.Context, key string, value interface{}) error

	// -----------------------------------------------------------------------------

	// Close the underlying connection
	Close() error
}
