package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"eve-jita-price/internal/config"
)

// openTestDB opens an in-memory SQLite DB and runs migrations (for testing only).
func openTestDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	// Each pooled connection would get its own empty :memory: database.
	sqlDB.SetMaxOpenConns(1)
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpen_MigratesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price.db")

	d, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, 2, d.Version())
	require.NoError(t, d.Close())

	d, err = Open(path)
	require.NoError(t, err)
	defer d.Close()
	require.Equal(t, 2, d.Version())
}

func TestLoadConfig_EmptyReturnsBase(t *testing.T) {
	d := openTestDB(t)
	base := config.Default()
	base.MaxSearch = 4

	got := d.LoadConfig(base)
	if got == base {
		t.Error("LoadConfig returned base itself, want a copy")
	}
	if got.MaxSearch != 4 {
		t.Errorf("MaxSearch = %d, want 4", got.MaxSearch)
	}
}

func TestConfig_RoundTrip(t *testing.T) {
	d := openTestDB(t)

	no := false
	cfg := config.Default()
	cfg.MaxSearch = 25
	cfg.PreDecompression = false
	cfg.TypesPath = "/data/types.json.gz"
	cfg.PriceCommands = []config.PriceCommand{
		{Command: "jita", Location: 10000002},
		{Command: "amarr", Location: 10000043},
	}
	cfg.SpecialFields = []config.SpecialField{
		{MonitoringContent: "help", Response: "usage"},
		{MonitoringContent: "PLEX", Response: "PLEX!", DirectOutput: &no},
	}
	require.NoError(t, d.SaveConfig(cfg))

	got := d.LoadConfig(config.Default())
	require.Equal(t, 25, got.MaxSearch)
	require.False(t, got.PreDecompression)
	require.Equal(t, "/data/types.json.gz", got.TypesPath)
	require.Equal(t, cfg.PriceCommands, got.PriceCommands)
	require.Len(t, got.SpecialFields, 2)
	require.True(t, got.SpecialFields[0].Direct())
	require.False(t, got.SpecialFields[1].Direct())

	// Settings outside the store keep the base value.
	base := config.Default()
	base.ReportLanguage = "en"
	require.Equal(t, "en", d.LoadConfig(base).ReportLanguage)
}

func TestSaveConfig_Overwrites(t *testing.T) {
	d := openTestDB(t)

	cfg := config.Default()
	cfg.MaxSearch = 3
	require.NoError(t, d.SaveConfig(cfg))
	cfg.MaxSearch = 8
	require.NoError(t, d.SaveConfig(cfg))

	var n int
	require.NoError(t, d.sql.QueryRow("SELECT COUNT(*) FROM config WHERE key = ?", keyMaxSearch).Scan(&n))
	require.Equal(t, 1, n)
	require.Equal(t, 8, d.LoadConfig(config.Default()).MaxSearch)
}

func TestLoadConfig_SkipsBadValues(t *testing.T) {
	d := openTestDB(t)

	_, err := d.sql.Exec(`INSERT INTO config (key, value) VALUES
		('max_search', 'lots'),
		('pre_decompression', 'maybe'),
		('special_fields', '{not json'),
		('price_commands', '[]')`)
	require.NoError(t, err)

	base := config.Default()
	got := d.LoadConfig(base)
	require.Equal(t, base.MaxSearch, got.MaxSearch)
	require.Equal(t, base.PreDecompression, got.PreDecompression)
	require.Equal(t, base.PriceCommands, got.PriceCommands)
	require.Empty(t, got.SpecialFields)
}

func TestLoadConfig_InvalidOverlayFallsBack(t *testing.T) {
	d := openTestDB(t)

	_, err := d.sql.Exec(`INSERT INTO config (key, value) VALUES
		('price_commands', '[{"command":"jita","location":1},{"command":"jita","location":2}]')`)
	require.NoError(t, err)

	got := d.LoadConfig(config.Default())
	require.Equal(t, config.Default().PriceCommands, got.PriceCommands)
}
