package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quote-ticker/src/helpers"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"

	_ "modernc.org/sqlite"
)

const memoryDSN = ":memory:"

// -----------------------------------------------------------------------------

type SQLiteSettingsStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteSettingsStore(cfg *models.MConfig, log *logger.Logger) (*SQLiteSettingsStore, error) {
	if cfg.Storage.DBPath == "" {
		return nil, fmt.Errorf("sqlite store needs storage.db_path")
	}
	return &SQLiteSettingsStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteSettingsStore) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBPath
	if dsn != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return helpers.NewDatabaseError("create data dir", err)
		}
	}

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}
	if dsn == memoryDSN {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	query := `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return helpers.NewDatabaseError("create settings table", err)
	}

	d.Logger.Info("SQLite settings store ready at %s", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteSettingsStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	var raw string
	err := d.DB.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, helpers.NewDatabaseError("read "+key, err)
	}
	return true, decodeValue(key, []byte(raw), dest)
}

// -----------------------------------------------------------------------------

func (d *SQLiteSettingsStore) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := encodeValue(key, value)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := d.DB.ExecContext(ctx, query, key, string(raw), time.Now().UnixMilli()); err != nil {
		return helpers.NewDatabaseError("write "+key, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteSettingsStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
