package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfigPath         = "CAMPSTATS_CONFIG_PATH"
	EnvHTTPPort           = "CAMPSTATS_HTTP_PORT"
	EnvSQLiteDSN          = "CAMPSTATS_SQLITE_DSN"
	EnvSessionSecret      = "CAMPSTATS_SESSION_SECRET"
	EnvSessionTTL         = "CAMPSTATS_SESSION_TTL"
	EnvPrivilegedStatsTTL = "CAMPSTATS_PRIVILEGED_STATS_TTL"
	EnvUserStatsTTL       = "CAMPSTATS_USER_STATS_TTL"
	EnvCollectTimeout     = "CAMPSTATS_COLLECT_TIMEOUT"
	EnvRefreshTimeout     = "CAMPSTATS_REFRESH_TIMEOUT"
	EnvCollectConcurrency = "CAMPSTATS_COLLECT_CONCURRENCY"
	EnvCacheMaxEntries    = "CAMPSTATS_CACHE_MAX_ENTRIES"
	EnvLogLevel           = "CAMPSTATS_LOG_LEVEL"
)

// refreshPerCollect derives an unset refresh timeout from a long collect timeout.
const refreshPerCollect = 12

// DefaultSQLiteDSN is used when no DSN is configured.
const DefaultSQLiteDSN = "file:campstats.db?_pragma=foreign_keys(1)"

// Config captures the configuration values of the statistics service.
// RefreshTimeout bounds a whole background recomputation and may not be
// shorter than CollectTimeout, which bounds a single camp.
type Config struct {
	HTTPPort           int
	SQLiteDSN          string
	SessionSecret      string
	SessionTTL         time.Duration
	PrivilegedStatsTTL time.Duration
	UserStatsTTL       time.Duration
	CollectTimeout     time.Duration
	RefreshTimeout     time.Duration
	CollectConcurrency int
	CacheMaxEntries    int
	LogLevel           slog.Level
}

// fileConfig mirrors Config in the optional YAML file. Durations are written
// as Go duration strings such as "30m".
type fileConfig struct {
	HTTPPort           int    `yaml:"http_port"`
	SQLiteDSN          string `yaml:"sqlite_dsn"`
	SessionSecret      string `yaml:"session_secret"`
	SessionTTL         string `yaml:"session_ttl"`
	PrivilegedStatsTTL string `yaml:"privileged_stats_ttl"`
	UserStatsTTL       string `yaml:"user_stats_ttl"`
	CollectTimeout     string `yaml:"collect_timeout"`
	RefreshTimeout     string `yaml:"refresh_timeout"`
	CollectConcurrency int    `yaml:"collect_concurrency"`
	CacheMaxEntries    int    `yaml:"cache_max_entries"`
	LogLevel           string `yaml:"log_level"`
}

// Load applies defaults, then the YAML file named by CAMPSTATS_CONFIG_PATH
// when set, then environment overrides.
//
// Missing required values and invalid values are reported together with
// localized messages.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:           8080,
		SQLiteDSN:          DefaultSQLiteDSN,
		SessionTTL:         24 * time.Hour,
		PrivilegedStatsTTL: 30 * time.Minute,
		UserStatsTTL:       5 * time.Minute,
		CollectTimeout:     10 * time.Second,
		RefreshTimeout:     2 * time.Minute,
		CollectConcurrency: 8,
		CacheMaxEntries:    512,
		LogLevel:           slog.LevelInfo,
	}

	values := make(map[string]string)
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		file, err := loadFromFile(path)
		if err != nil {
			return Config{}, err
		}
		file.collect(values)
	}
	for _, key := range []string{
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
	} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			values[key] = value
		}
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	parsePositiveInt(values, EnvHTTPPort, &cfg.HTTPPort, &invalid)
	parsePositiveInt(values, EnvCollectConcurrency, &cfg.CollectConcurrency, &invalid)
	parsePositiveInt(values, EnvCacheMaxEntries, &cfg.CacheMaxEntries, &invalid)
	parseDuration(values, EnvSessionTTL, &cfg.SessionTTL, &invalid)
	parseDuration(values, EnvPrivilegedStatsTTL, &cfg.PrivilegedStatsTTL, &invalid)
	parseDuration(values, EnvUserStatsTTL, &cfg.UserStatsTTL, &invalid)
	parseDuration(values, EnvCollectTimeout, &cfg.CollectTimeout, &invalid)
	parseDuration(values, EnvRefreshTimeout, &cfg.RefreshTimeout, &invalid)

	if cfg.RefreshTimeout < cfg.CollectTimeout {
		if _, set := values[EnvRefreshTimeout]; set {
			invalid = append(invalid, EnvRefreshTimeout)
		} else {
			cfg.RefreshTimeout = refreshPerCollect * cfg.CollectTimeout
		}
	}

	if dsn := values[EnvSQLiteDSN]; dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := values[EnvSessionSecret]; secret == "" {
		missing = append(missing, EnvSessionSecret)
	} else {
		cfg.SessionSecret = secret
	}

	if level := values[EnvLogLevel]; level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			invalid = append(invalid, EnvLogLevel)
		}
	}

	problems := make([]string, 0, 2)
	if len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("zorunlu yapılandırma değerleri eksik: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		problems = append(problems, fmt.Sprintf("yapılandırma değerleri geçersiz: %s", strings.Join(invalid, ", ")))
	}
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func loadFromFile(path string) (fileConfig, error) {
	var file fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("yapılandırma dosyası okunamadı: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("yapılandırma dosyası çözümlenemedi: %w", err)
	}
	return file, nil
}

// collect copies the values set in the file into values, keyed by the
// environment variable they correspond to.
func (f fileConfig) collect(values map[string]string) {
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			values[key] = value
		}
	}
	setInt := func(key string, value int) {
		if value != 0 {
			values[key] = strconv.Itoa(value)
		}
	}
	setInt(EnvHTTPPort, f.HTTPPort)
	set(EnvSQLiteDSN, f.SQLiteDSN)
	set(EnvSessionSecret, f.SessionSecret)
	set(EnvSessionTTL, f.SessionTTL)
	set(EnvPrivilegedStatsTTL, f.PrivilegedStatsTTL)
	set(EnvUserStatsTTL, f.UserStatsTTL)
	set(EnvCollectTimeout, f.CollectTimeout)
	set(EnvRefreshTimeout, f.RefreshTimeout)
	setInt(EnvCollectConcurrency, f.CollectConcurrency)
	setInt(EnvCacheMaxEntries, f.CacheMaxEntries)
	set(EnvLogLevel, f.LogLevel)
}

func parsePositiveInt(values map[string]string, key string, target *int, invalid *[]string) {
	raw, ok := values[key]
	if !ok {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		*invalid = append(*invalid, key)
		return
	}
	*target = value
}

func parseDuration(values map[string]string, key string, target *time.Duration, invalid *[]string) {
	raw, ok := values[key]
	if !ok {
		return
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		*invalid = append(*invalid, key)
		return
	}
	*target = value
}
