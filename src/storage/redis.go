package storage

import (
	"context"
	"errors"

	"quote-ticker/src/helpers"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// -----------------------------------------------------------------------------

// RedisSettingsStore keeps each setting as a JSON string under a prefixed key.
// With no redis_addr configured it runs an in-process server instead.
type RedisSettingsStore struct {
	Config *models.MConfig
	Client *redis.Client
	Prefix string
	Logger *logger.Logger

	embedded *miniredis.Miniredis
}

// -----------------------------------------------------------------------------

func NewRedisSettingsStore(cfg *models.MConfig, log *logger.Logger) (*RedisSettingsStore, error) {
	return &RedisSettingsStore{
		Config: cfg,
		Prefix: schemaName(cfg.Name) + ":settings:",
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *RedisSettingsStore) Initialize(ctx context.Context) error {
	addr := d.Config.Storage.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return helpers.NewDatabaseError("start embedded redis", err)
		}
		d.embedded = mr
		addr = mr.Addr()
		d.Logger.Warning("No redis_addr configured, settings live in memory at %s", addr)
	}

	d.Client = redis.NewClient(&redis.Options{Addr: addr})
	if err := d.Client.Ping(ctx).Err(); err != nil {
		_ = d.Close()
		return helpers.NewDatabaseError("ping redis", err)
	}

	d.Logger.Info("Redis settings store ready at %s", addr)
	return nil
}

// -----------------------------------------------------------------------------

func (d *RedisSettingsStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := d.Client.Get(ctx, d.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, helpers.NewDatabaseError("read "+key, err)
	}
	return true, decodeValue(key, raw, dest)
}

// -----------------------------------------------------------------------------

func (d *RedisSettingsStore) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := encodeValue(key, value)
	if err != nil {
		return err
	}
	if err := d.Client.Set(ctx, d.Prefix+key, raw, 0).Err(); err != nil {
		return helpers.NewDatabaseError("write "+key, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *RedisSettingsStore) Close() error {
	var err error
	if d.Client != nil {
		err = d.Client.Close()
		d.Client = nil
	}
	if d.embedded != nil {
		d.embedded.Close()
		d.embedded = nil
	}
	return err
}
