// Package config loads client configuration from an optional YAML file, a
// .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	SessionFile   = "file"
	SessionRedis  = "redis"
	SessionMemory = "memory"
)

type Config struct {
	Supabase SupabaseConfig `yaml:"supabase"`
	Storage  StorageConfig  `yaml:"storage"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
	Reports  ReportsConfig  `yaml:"reports"`
}

type SupabaseConfig struct {
	URL     string        `yaml:"url"`
	AnonKey string        `yaml:"anon_key"`
	Timeout time.Duration `yaml:"timeout"`
	// Retries is the number of extra attempts for reads that hit a gateway
	// error. Zero sends every request once.
	Retries int `yaml:"retries"`
}

type StorageConfig struct {
	Bucket string `yaml:"bucket"`
}

type SessionConfig struct {
	Backend       string        `yaml:"backend"`
	Path          string        `yaml:"path"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	TTL           time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ReportsConfig struct {
	// Cron is a standard 5-field schedule for the monthly digest.
	Cron string `yaml:"cron"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Supabase: SupabaseConfig{Timeout: 30 * time.Second},
		Storage:  StorageConfig{Bucket: "files"},
		Session: SessionConfig{
			Backend:     SessionFile,
			Path:        defaultSessionPath(),
			RedisAddr:   "localhost:6379",
			RedisPrefix: "sas:session:",
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Reports: ReportsConfig{Cron: "0 8 1 * *"},
	}
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".sas-finance", "session.json")
	}
	return filepath.Join(home, ".sas-finance", "session.json")
}

// LoadEnvFile loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration: defaults, then the YAML file at path (when
// path is non-empty), then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Supabase.URL, "SUPABASE_URL")
	setString(&c.Supabase.AnonKey, "SUPABASE_ANON_KEY")
	setString(&c.Storage.Bucket, "SAS_STORAGE_BUCKET")
	setString(&c.Session.Backend, "SAS_SESSION_BACKEND")
	setString(&c.Session.Path, "SAS_SESSION_PATH")
	setString(&c.Session.RedisAddr, "SAS_REDIS_ADDR")
	setString(&c.Session.RedisPassword, "SAS_REDIS_PASSWORD")
	setString(&c.Log.Level, "SAS_LOG_LEVEL")
	setString(&c.Log.Format, "SAS_LOG_FORMAT")
	setString(&c.Reports.Cron, "SAS_REPORT_CRON")

	if v := strings.TrimSpace(os.Getenv("SAS_REDIS_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SAS_REDIS_DB: %w", err)
		}
		c.Session.RedisDB = db
	}
	if v := strings.TrimSpace(os.Getenv("SAS_HTTP_RETRIES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SAS_HTTP_RETRIES: %w", err)
		}
		c.Supabase.Retries = n
	}
	if v := strings.TrimSpace(os.Getenv("SAS_HTTP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SAS_HTTP_TIMEOUT: %w", err)
		}
		c.Supabase.Timeout = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Supabase.URL == "" {
		return fmt.Errorf("supabase url is required (SUPABASE_URL)")
	}
	u, err := url.Parse(c.Supabase.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid supabase url: %q", c.Supabase.URL)
	}
	if c.Supabase.AnonKey == "" {
		return fmt.Errorf("supabase anon key is required (SUPABASE_ANON_KEY)")
	}
	if c.Supabase.Timeout < 0 {
		return fmt.Errorf("supabase timeout must not be negative")
	}
	if c.Supabase.Retries < 0 {
		return fmt.Errorf("supabase retries must not be negative")
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return fmt.Errorf("storage bucket is required")
	}

	switch c.Session.Backend {
	case SessionFile:
		if c.Session.Path == "" {
			return fmt.Errorf("session path is required for the file backend")
		}
	case SessionRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	case SessionMemory:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	if _, err := cron.ParseStandard(c.Reports.Cron); err != nil {
		return fmt.Errorf("invalid report schedule %q: %w", c.Reports.Cron, err)
	}
	return nil
}
