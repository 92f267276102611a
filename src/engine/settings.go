package engine

import (
	"context"

	"quote-ticker/src/interfaces"
)

// -----------------------------------------------------------------------------

// GetSetting decodes key into a T. Missing keys and read failures yield fallback;
// the error is returned so callers can log it.
func GetSetting[T any](ctx context.Context, store interfaces.ISettingsStore, key string, fallback T) (T, error) {
	var value T
	found, err := store.Get(ctx, key, &value)
	if err != nil || !found {
		return fallback, err
	}
	return value, nil
}

// -----------------------------------------------------------------------------

// SetSetting persists value under key.
func SetSetting[T any](ctx context.Context, store interfaces.ISettingsStore, key string, value T) error {
	return store.Set(ctx, key, value)
}
