package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"PORT", "DATABASE_PATH", "DB_HOST", "JWT_SECRET",
		"DOCUMENTS_DIR", "SHAREPOINT_LIBRARY", "ENVIRONMENT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8501", cfg.Port)
	assert.Equal(t, "data/bids.db", cfg.DatabasePath)
	assert.Empty(t, cfg.DBHost)
	assert.Equal(t, "your-secret-key", cfg.JWTSecret)
	assert.Equal(t, "documents", cfg.DocumentsDir)
	assert.Equal(t, "Shared Documents", cfg.SharePointLibrary)
	assert.Equal(t, "development", cfg.Environment)
	assert.Same(t, cfg, AppConfig)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_PATH", "custom/bids.db")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "custom/bids.db", cfg.DatabasePath)
	assert.Equal(t, "production", cfg.Environment)
}

func TestEnsureDataDirs(t *testing.T) {
	base := t.TempDir()
	AppConfig = &Config{
		DatabasePath: filepath.Join(base, "data", "bids.db"),
		DocumentsDir: filepath.Join(base, "documents"),
	}

	require.NoError(t, EnsureDataDirs())

	info, err := os.Stat(filepath.Join(base, "data"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = os.Stat(filepath.Join(base, "documents"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestInitDBSQLite(t *testing.T) {
	base := t.TempDir()
	AppConfig = &Config{
		DatabasePath: filepath.Join(base, "data", "bids.db"),
		Environment:  "production",
	}

	db, err := InitDB()
	require.NoError(t, err)
	require.NotNil(t, db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.NoError(t, sqlDB.Ping())

	// The database directory is created on demand
	_, err = os.Stat(filepath.Join(base, "data"))
	assert.NoError(t, err)
}

func TestMaskHost(t *testing.T) {
	assert.Equal(t, "***", maskHost("db"))
	assert.Equal(t, "***", maskHost("abc"))
	assert.Equal(t, "loc***", maskHost("localhost"))
	assert.Equal(t, "db.examp***e-pool.com", maskHost("db.example-pool.com"))
}

func TestGetEnv(t *testing.T) {
	t.Setenv("SOME_TEST_KEY", "value")
	assert.Equal(t, "value", getEnv("SOME_TEST_KEY", "fallback"))

	t.Setenv("SOME_TEST_KEY", "")
	assert.Equal(t, "fallback", getEnv("SOME_TEST_KEY", "fallback"))
}
