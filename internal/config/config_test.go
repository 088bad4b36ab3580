package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://demo.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
}

func TestLoad_DefaultsWithEnv(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://demo.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, "files", cfg.Storage.Bucket)
	assert.Equal(t, SessionFile, cfg.Session.Backend)
	assert.Equal(t, "session.json", filepath.Base(cfg.Session.Path))
	assert.Equal(t, 30*time.Second, cfg.Supabase.Timeout)
	assert.Equal(t, "0 8 1 * *", cfg.Reports.Cron)
	assert.Zero(t, cfg.Supabase.Retries)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
supabase:
  url: https://file.supabase.co
  anon_key: from-file
  timeout: 5s
storage:
  bucket: receipts
session:
  backend: redis
  redis_addr: cache:6379
  redis_db: 2
reports:
  cron: "30 7 * * 1"
`), 0o600))

	t.Setenv("SUPABASE_ANON_KEY", "from-env")
	t.Setenv("SAS_HTTP_TIMEOUT", "12s")
	t.Setenv("SAS_HTTP_RETRIES", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, "from-env", cfg.Supabase.AnonKey)
	assert.Equal(t, 12*time.Second, cfg.Supabase.Timeout)
	assert.Equal(t, 3, cfg.Supabase.Retries)
	assert.Equal(t, "receipts", cfg.Storage.Bucket)
	assert.Equal(t, SessionRedis, cfg.Session.Backend)
	assert.Equal(t, "cache:6379", cfg.Session.RedisAddr)
	assert.Equal(t, 2, cfg.Session.RedisDB)
	assert.Equal(t, "30 7 * * 1", cfg.Reports.Cron)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		setRequired(t)
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "failed to read config")
	})

	t.Run("bad yaml", func(t *testing.T) {
		setRequired(t)
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("supabase: ["), 0o600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "failed to parse config")
	})

	t.Run("bad timeout", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SAS_HTTP_TIMEOUT", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "SAS_HTTP_TIMEOUT")
	})

	t.Run("bad redis db", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SAS_REDIS_DB", "zero")
		_, err := Load("")
		assert.ErrorContains(t, err, "SAS_REDIS_DB")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Supabase.URL = "https://demo.supabase.co"
		cfg.Supabase.AnonKey = "anon"
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"no url":           {func(c *Config) { c.Supabase.URL = "" }, "url is required"},
		"relative url":     {func(c *Config) { c.Supabase.URL = "demo.supabase.co" }, "invalid supabase url"},
		"no key":           {func(c *Config) { c.Supabase.AnonKey = "" }, "anon key is required"},
		"negative retries": {func(c *Config) { c.Supabase.Retries = -1 }, "retries must not be negative"},
		"no bucket":        {func(c *Config) { c.Storage.Bucket = " " }, "bucket is required"},
		"unknown backend":  {func(c *Config) { c.Session.Backend = "sqlite" }, "unknown session backend"},
		"no path":          {func(c *Config) { c.Session.Path = "" }, "session path"},
		"no redis addr": {func(c *Config) {
			c.Session.Backend = SessionRedis
			c.Session.RedisAddr = ""
		}, "redis address"},
		"bad cron": {func(c *Config) { c.Reports.Cron = "monthly" }, "invalid report schedule"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(""))
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SAS_STORAGE_BUCKET=from-dotenv\nSUPABASE_URL=https://dotenv.supabase.co\n"), 0o600))
	t.Setenv("SAS_STORAGE_BUCKET", "")
	os.Unsetenv("SAS_STORAGE_BUCKET")
	t.Setenv("SUPABASE_URL", "https://already.set")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-dotenv", os.Getenv("SAS_STORAGE_BUCKET"))
	assert.Equal(t, "https://already.set", os.Getenv("SUPABASE_URL"))
}
