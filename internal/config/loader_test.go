package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	EnvConfigPath,
	EnvHTTPPort,
	EnvSQLiteDSN,
	EnvSessionSecret,
	EnvSessionTTL,
	EnvPrivilegedStatsTTL,
	EnvUserStatsTTL,
	EnvCollectTimeout,
	EnvRefreshTimeout,
	EnvCollectConcurrency,
	EnvCacheMaxEntries,
	EnvLogLevel,
}

// clearEnv blanks every variable for the duration of the test. Blank values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvSessionSecret, "super-secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, Config{
			HTTPPort:           8080,
			SQLiteDSN:          DefaultSQLiteDSN,
			SessionSecret:      "super-secret",
			SessionTTL:         24 * time.Hour,
			PrivilegedStatsTTL: 30 * time.Minute,
			UserStatsTTL:       5 * time.Minute,
			CollectTimeout:     10 * time.Second,
			RefreshTimeout:     2 * time.Minute,
			CollectConcurrency: 8,
			CacheMaxEntries:    512,
			LogLevel:           slog.LevelInfo,
		}, cfg)
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, "zorunlu yapılandırma değerleri eksik: CAMPSTATS_SESSION_SECRET", err.Error())
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvSessionSecret, "secret-value")
		t.Setenv(EnvHTTPPort, "9090")
		t.Setenv(EnvSQLiteDSN, "file:/tmp/campstats.db")
		t.Setenv(EnvSessionTTL, "12h")
		t.Setenv(EnvPrivilegedStatsTTL, "45m")
		t.Setenv(EnvUserStatsTTL, "90s")
		t.Setenv(EnvCollectTimeout, "3s")
		t.Setenv(EnvRefreshTimeout, "45s")
		t.Setenv(EnvCollectConcurrency, "16")
		t.Setenv(EnvCacheMaxEntries, "64")
		t.Setenv(EnvLogLevel, "debug")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.HTTPPort)
		assert.Equal(t, "file:/tmp/campstats.db", cfg.SQLiteDSN)
		assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
		assert.Equal(t, 45*time.Minute, cfg.PrivilegedStatsTTL)
		assert.Equal(t, 90*time.Second, cfg.UserStatsTTL)
		assert.Equal(t, 3*time.Second, cfg.CollectTimeout)
		assert.Equal(t, 45*time.Second, cfg.RefreshTimeout)
		assert.Equal(t, 16, cfg.CollectConcurrency)
		assert.Equal(t, 64, cfg.CacheMaxEntries)
		assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	})

	t.Run("rejects a refresh timeout shorter than one collection", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvSessionSecret, "secret-value")
		t.Setenv(EnvCollectTimeout, "30s")
		t.Setenv(EnvRefreshTimeout, "10s")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, "yapılandırma değerleri geçersiz: CAMPSTATS_REFRESH_TIMEOUT", err.Error())
	})

	t.Run("derives the refresh timeout from a long collect timeout", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvSessionSecret, "secret-value")
		t.Setenv(EnvCollectTimeout, "5m")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, time.Hour, cfg.RefreshTimeout)
	})

	t.Run("reports missing and invalid values together", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvHTTPPort, "-1")
		t.Setenv(EnvUserStatsTTL, "five minutes")
		t.Setenv(EnvLogLevel, "loud")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t,
			"zorunlu yapılandırma değerleri eksik: CAMPSTATS_SESSION_SECRET; "+
				"yapılandırma değerleri geçersiz: CAMPSTATS_HTTP_PORT, CAMPSTATS_USER_STATS_TTL, CAMPSTATS_LOG_LEVEL",
			err.Error())
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	t.Run("file values sit between defaults and environment", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "campstats.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
http_port: 7070
session_secret: from-file
privileged_stats_ttl: 20m
refresh_timeout: 5m
cache_max_entries: 128
log_level: warn
`), 0o600))
		t.Setenv(EnvConfigPath, path)
		t.Setenv(EnvCacheMaxEntries, "256")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.HTTPPort)
		assert.Equal(t, "from-file", cfg.SessionSecret)
		assert.Equal(t, 20*time.Minute, cfg.PrivilegedStatsTTL)
		assert.Equal(t, 5*time.Minute, cfg.UserStatsTTL)
		assert.Equal(t, 5*time.Minute, cfg.RefreshTimeout)
		assert.Equal(t, 256, cfg.CacheMaxEntries)
		assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	})

	t.Run("invalid file values are reported by key", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "campstats.yaml")
		require.NoError(t, os.WriteFile(path, []byte("session_secret: s\ncollect_timeout: soon\n"), 0o600))
		t.Setenv(EnvConfigPath, path)

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, "yapılandırma değerleri geçersiz: CAMPSTATS_COLLECT_TIMEOUT", err.Error())
	})

	t.Run("unreadable file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "yapılandırma dosyası okunamadı")
	})

	t.Run("malformed file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "campstats.yaml")
		require.NoError(t, os.WriteFile(path, []byte("http_port: [1, 2"), 0o600))
		t.Setenv(EnvConfigPath, path)

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "yapılandırma dosyası çözümlenemedi")
	})
}
