package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"quote-ticker/src/helpers"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresSettingsStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresSettingsStore keeps the settings table in a schema named after
// the service, so several deployments can share one database.
func NewPostgresSettingsStore(cfg *models.MConfig, log *logger.Logger) (*PostgresSettingsStore, error) {
	if cfg.Storage.DBConnectionString == "" {
		return nil, fmt.Errorf("postgres store needs storage.db_connection_string")
	}
	return &PostgresSettingsStore{
		Config: cfg,
		Schema: schemaName(cfg.Name),
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

// schemaName maps a service name to a lowercase identifier.
func schemaName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "quote_ticker"
	}
	return b.String()
}

// -----------------------------------------------------------------------------

func (d *PostgresSettingsStore) table() string {
	return fmt.Sprintf(`"%s"."settings"`, d.Schema)
}

// -----------------------------------------------------------------------------

func (d *PostgresSettingsStore) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError("create schema "+d.Schema, err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewDatabaseError("create settings table", err)
	}

	d.Logger.Info("Postgres settings store ready (schema %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresSettingsStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	var raw []byte
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, d.table())
	err := d.DB.QueryRowContext(ctx, query, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, helpers.NewDatabaseError("read "+key, err)
	}
	return true, decodeValue(key, raw, dest)
}

// -----------------------------------------------------------------------------

func (d *PostgresSettingsStore) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := encodeValue(key, value)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at) VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query, key, string(raw), time.Now().UTC()); err != nil {
		return helpers.NewDatabaseError("write "+key, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresSettingsStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
