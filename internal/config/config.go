package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL        = "http://127.0.0.1:7433"
	DefaultReviewBaseURL = "http://127.0.0.1:7433/review"
	DefaultDBFileName    = ".fieldsign.db"
	DefaultTier          = "free"
	DefaultLogLevel      = "info"
	DefaultSweepSchedule = "*/15 * * * *"
	DefaultFlushInterval = time.Minute

	configDirEnvKey = "FIELDSIGN_CONFIG_DIR"
	jwtSecretEnvKey = "FIELDSIGN_JWT_SECRET"

	configFileName = ".fieldsign.toml"
)

// MirrorConfig defines the optional best-effort Postgres mirror.
type MirrorConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	FlushInterval string `toml:"flush_interval"`
}

// Config defines runtime configuration for fieldsign. The JWT secret is
// deliberately env-only; it never lives in a config file.
type Config struct {
	APIURL          string       `toml:"api_url"`
	DBPath          string       `toml:"db_path"`
	ReviewBaseURL   string       `toml:"review_base_url"`
	TierCatalogPath string       `toml:"tier_catalog"`
	DefaultTier     string       `toml:"default_tier"`
	SweepSchedule   string       `toml:"sweep_schedule"`
	LogLevel        string       `toml:"log_level"`
	Mirror          MirrorConfig `toml:"mirror"`
	JWTSecret       string       `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:        DefaultAPIURL,
		ReviewBaseURL: DefaultReviewBaseURL,
		DefaultTier:   DefaultTier,
		SweepSchedule: DefaultSweepSchedule,
	}
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"review_base_url",
	"tier_catalog",
	"default_tier",
	"sweep_schedule",
	"log_level",
	"mirror.enabled",
	"mirror.dsn",
	"mirror.flush_interval",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "review_base_url":
		return c.ReviewBaseURL, nil
	case "tier_catalog":
		return c.TierCatalogPath, nil
	case "default_tier":
		return c.DefaultTier, nil
	case "sweep_schedule":
		return c.SweepSchedule, nil
	case "log_level":
		return c.LogLevel, nil
	case "mirror.enabled":
		return strconv.FormatBool(c.Mirror.Enabled), nil
	case "mirror.dsn":
		return c.Mirror.DSN, nil
	case "mirror.flush_interval":
		return c.Mirror.FlushInterval, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// FlushInterval parses the mirror flush interval, falling back to the
// default for empty or malformed values.
func (c *Config) FlushInterval() time.Duration {
	raw := strings.TrimSpace(c.Mirror.FlushInterval)
	if raw == "" {
		return DefaultFlushInterval
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return DefaultFlushInterval
	}
	return parsed
}

// Path returns the path to the config file.
func Path() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from .env, the config file, and env overrides, in
// increasing precedence.
func Load() (*Config, error) {
	// A missing .env is not an error.
	_ = godotenv.Load()

	cfg := Default()

	path, err := Path()
	if err == nil {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.DefaultTier == "" {
		cfg.DefaultTier = DefaultTier
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultSweepSchedule
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIELDSIGN_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("FIELDSIGN_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FIELDSIGN_REVIEW_BASE_URL"); v != "" {
		cfg.ReviewBaseURL = v
	}
	if v := os.Getenv("FIELDSIGN_TIER_CATALOG"); v != "" {
		cfg.TierCatalogPath = v
	}
	if v := os.Getenv("FIELDSIGN_DEFAULT_TIER"); v != "" {
		cfg.DefaultTier = v
	}
	if v := os.Getenv("FIELDSIGN_SWEEP_SCHEDULE"); v != "" {
		cfg.SweepSchedule = v
	}
	if v := os.Getenv("FIELDSIGN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FIELDSIGN_MIRROR_DSN"); v != "" {
		cfg.Mirror.DSN = v
		cfg.Mirror.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("FIELDSIGN_MIRROR_ENABLED")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Mirror.Enabled = parsed
		}
	}
	cfg.JWTSecret = strings.TrimSpace(os.Getenv(jwtSecretEnvKey))
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "mirror.enabled":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "mirror.flush_interval":
		if _, err := time.ParseDuration(value); err != nil {
			return nil, fmt.Errorf("%s must be a duration like 30s or 5m", key)
		}
		return value, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
