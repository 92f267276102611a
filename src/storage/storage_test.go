package storage

import (
	"context"
	"path/filepath"
	"testing"

	"quote-ticker/src/helpers"
	"quote-ticker/src/interfaces"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testConfig(storage models.MStorageConfig) *models.MConfig {
	return &models.MConfig{Name: "quote-ticker", Storage: storage}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store interfaces.ISettingsStore) {
	t.Helper()
	ctx := context.Background()

	// Missing key
	var symbols []string
	found, err := store.Get(ctx, "topbar.symbols", &symbols)
	require.NoError(t, err)
	require.False(t, found)

	// Round trip and overwrite
	require.NoError(t, store.Set(ctx, "topbar.symbols", []string{"AAPL", "MSFT"}))
	require.NoError(t, store.Set(ctx, "topbar.symbols", []string{"BTC-USD"}))
	found, err = store.Get(ctx, "topbar.symbols", &symbols)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"BTC-USD"}, symbols)

	// Structured values
	snapshot := []models.MQuote{{
		Symbol:     "AAPL",
		Price:      190.12,
		Currency:   "USD",
		ChangeAbs:  models.Float(2),
		MarketTime: 1717599600000,
		Source:     models.SourcePrimary,
	}}
	require.NoError(t, store.Set(ctx, "quotes.cache", snapshot))
	var loaded []models.MQuote
	found, err = store.Get(ctx, "quotes.cache", &loaded)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, cmp.Diff(snapshot, loaded))

	// Shape mismatch surfaces as a database error
	var wrong int
	_, err = store.Get(ctx, "quotes.cache", &wrong)
	require.Error(t, err)
	var dbErr *helpers.DatabaseError
	require.ErrorAs(t, err, &dbErr)
}

func TestSQLiteSettingsStore(t *testing.T) {
	t.Parallel()

	// Arrange
	path := filepath.Join(t.TempDir(), "nested", "settings.db")
	store, err := NewSQLiteSettingsStore(testConfig(models.MStorageConfig{DBPath: path}), logger.NewLogger("test"))
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	// Act + Assert
	exerciseStore(t, store)
}

func TestSQLiteSettingsStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig(models.MStorageConfig{DBPath: filepath.Join(t.TempDir(), "settings.db")})

	first, err := NewSQLiteSettingsStore(cfg, logger.NewLogger("test"))
	require.NoError(t, err)
	require.NoError(t, first.Initialize(ctx))
	require.NoError(t, first.Set(ctx, "quotes.refreshIntervalMinutes", 15))
	require.NoError(t, first.Close())

	second, err := NewSQLiteSettingsStore(cfg, logger.NewLogger("test"))
	require.NoError(t, err)
	require.NoError(t, second.Initialize(ctx))
	defer second.Close()

	var minutes int
	found, err := second.Get(ctx, "quotes.refreshIntervalMinutes", &minutes)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 15, minutes)
}

func TestSQLiteInMemory(t *testing.T) {
	t.Parallel()

	store, err := NewSQLiteSettingsStore(testConfig(models.MStorageConfig{DBPath: ":memory:"}), logger.NewLogger("test"))
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	exerciseStore(t, store)
}

func TestRedisSettingsStore(t *testing.T) {
	t.Parallel()

	// Arrange
	mr := miniredis.RunT(t)
	store, err := NewRedisSettingsStore(testConfig(models.MStorageConfig{RedisAddr: mr.Addr()}), logger.NewLogger("test"))
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	// Act
	exerciseStore(t, store)

	// Assert: keys are namespaced and JSON encoded.
	raw, err := mr.Get("quote_ticker:settings:topbar.symbols")
	require.NoError(t, err)
	require.JSONEq(t, `["BTC-USD"]`, raw)
}

func TestRedisEmbeddedFallback(t *testing.T) {
	t.Parallel()

	store, err := NewRedisSettingsStore(testConfig(models.MStorageConfig{}), logger.NewLogger("test"))
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	exerciseStore(t, store)
}

func TestNewSettingsStore(t *testing.T) {
	t.Parallel()

	log := logger.NewLogger("test")

	s, err := NewSettingsStore(testConfig(models.MStorageConfig{DBPath: "x.db"}), log)
	require.NoError(t, err)
	require.IsType(t, &SQLiteSettingsStore{}, s)

	s, err = NewSettingsStore(testConfig(models.MStorageConfig{DBType: "postgres", DBConnectionString: "postgres://localhost/db"}), log)
	require.NoError(t, err)
	require.Equal(t, "quote_ticker", s.(*PostgresSettingsStore).Schema)

	s, err = NewSettingsStore(testConfig(models.MStorageConfig{DBType: "redis"}), log)
	require.NoError(t, err)
	require.IsType(t, &RedisSettingsStore{}, s)

	_, err = NewSettingsStore(testConfig(models.MStorageConfig{DBType: "mongo"}), log)
	require.Error(t, err)

	_, err = NewSettingsStore(testConfig(models.MStorageConfig{DBType: "postgres"}), log)
	require.Error(t, err)
}
