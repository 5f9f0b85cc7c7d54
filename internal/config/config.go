package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service settings. Values come from an optional YAML file
// and are then overridden by environment variables.
type Config struct {
	Port            string        `yaml:"port"`
	DataDir         string        `yaml:"data_dir"`
	LogLevel        string        `yaml:"log_level"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`

	Admin     AdminConfig     `yaml:"admin"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Rankings  RankingsConfig  `yaml:"rankings"`

	// RetentionDays removes reports and feedback older than this many days. 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// AdminConfig configures the moderation console login.
type AdminConfig struct {
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// RedisConfig configures the optional distributed rate limiter backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig configures per-IP limits on the public write endpoints.
type RateLimitConfig struct {
	SubmissionsPerMin int `yaml:"submissions_per_min"`
	LoginsPerMin      int `yaml:"logins_per_min"`
	BurstMultiplier   int `yaml:"burst_multiplier"`
}

// RankingsConfig configures the ranking cache.
type RankingsConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	HomeLimit       int           `yaml:"home_limit"`
	RecentDays      int           `yaml:"recent_days"`
}

// Default returns the configuration used when neither file nor environment set a value.
func Default() *Config {
	return &Config{
		Port:            "8080",
		DataDir:         "./data",
		LogLevel:        "info",
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
		Admin: AdminConfig{
			Username:   "admin-x",
			Password:   "pass-x",
			JWTSecret:  "change-me-in-production",
			SessionTTL: 12 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			SubmissionsPerMin: 10,
			LoginsPerMin:      5,
			BurstMultiplier:   1,
		},
		Rankings: RankingsConfig{
			CacheTTL:        5 * time.Minute,
			RefreshInterval: 10 * time.Minute,
			HomeLimit:       5,
			RecentDays:      7,
		},
	}
}

// Load reads the YAML file at path (if it exists), applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
			slog.Debug("Config file not found, using defaults", "path", path)
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.DataDir == "" {
		return errors.New("DATA_DIR is required")
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return errors.New("admin credentials are required")
	}
	if c.Admin.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Admin.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.RateLimit.SubmissionsPerMin <= 0 || c.RateLimit.LoginsPerMin <= 0 {
		return errors.New("rate limits must be positive")
	}
	if c.RateLimit.BurstMultiplier < 1 {
		c.RateLimit.BurstMultiplier = 1
	}
	if c.Rankings.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	if c.RetentionDays < 0 {
		return errors.New("RETENTION_DAYS must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a textual log level onto slog.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", level)
	}
}

func (c *Config) applyEnvOverrides() error {
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.DataDir = getEnvOrDefault("DATA_DIR", c.DataDir)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.Admin.Username = getEnvOrDefault("ADMIN_USERNAME", c.Admin.Username)
	c.Admin.Password = getEnvOrDefault("ADMIN_PASSWORD", c.Admin.Password)
	c.Admin.JWTSecret = getEnvOrDefault("JWT_SECRET", c.Admin.JWTSecret)
	c.Redis.Addr = getEnvOrDefault("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", c.Redis.Password)

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REQUEST_TIMEOUT", &c.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
		{"SESSION_TTL", &c.Admin.SessionTTL},
		{"CACHE_TTL", &c.Rankings.CacheTTL},
		{"CACHE_REFRESH_INTERVAL", &c.Rankings.RefreshInterval},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("invalid %s", d.key)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &c.Redis.DB},
		{"RATE_LIMIT_PER_MIN", &c.RateLimit.SubmissionsPerMin},
		{"LOGIN_LIMIT_PER_MIN", &c.RateLimit.LoginsPerMin},
		{"RETENTION_DAYS", &c.RetentionDays},
	}
	for _, i := range ints {
		v := os.Getenv(i.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s", i.key)
		}
		*i.dst = n
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
