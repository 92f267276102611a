package storage

import (
	"encoding/json"
	"fmt"

	"quote-ticker/src/helpers"
	"quote-ticker/src/interfaces"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"
)

// -----------------------------------------------------------------------------

func encodeValue(key string, value interface{}) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, helpers.NewDatabaseError("encode "+key, err)
	}
	return raw, nil
}

// -----------------------------------------------------------------------------

func decodeValue(key string, raw []byte, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return helpers.NewDatabaseError("decode "+key, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// NewSettingsStore picks the backend named by storage.db_type.
func NewSettingsStore(cfg *models.MConfig, log *logger.Logger) (interfaces.ISettingsStore, error) {
	switch cfg.Storage.DBType {
	case "", "sqlite":
		return NewSQLiteSettingsStore(cfg, log)
	case "postgres":
		return NewPostgresSettingsStore(cfg, log)
	case "redis":
		return NewRedisSettingsStore(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported db_type %q", cfg.Storage.DBType)
	}
}
