package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ROULETTE_AUTH_TOKEN_SECRET", "from-env")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":3001", cfg.Server.HTTPAddress)
	assert.Equal(t, 64, cfg.Server.SendBuffer)
	assert.Equal(t, BackendMemory, cfg.Auth.Backend)
	assert.Equal(t, "from-env", cfg.Auth.TokenSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []UserConfig{
		{ID: "QuickClient", Secret: "quick", Role: "player"},
		{ID: "LukasTech", Secret: "lukas", Role: "observer"},
	}, cfg.Auth.Users)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "roulette", cfg.Metrics.Namespace)
}

func TestLoadConfig_File(t *testing.T) {
	dir := writeConfig(t, `
log:
  level: debug
server:
  http_address: ":9000"
  allowed_origins: ["https://table.example"]
auth:
  backend: database
  token_secret: s3cret
  token_ttl: 1h
  timeout: 2s
database:
  enabled: true
  driver: sql
  postgres:
    host: db
    port: 6543
    dbname: tables
`)
	t.Setenv("ROULETTE_SERVER_HTTP_ADDRESS", ":9100")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Server.HTTPAddress, "environment wins over file")
	assert.Equal(t, []string{"https://table.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, BackendDatabase, cfg.Auth.Backend)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 2*time.Second, cfg.Auth.Timeout)
	assert.Equal(t, DriverSQL, cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Postgres.Host)
	assert.Equal(t, 6543, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
}

func TestLoadConfig_Malformed(t *testing.T) {
	dir := writeConfig(t, "server: [unclosed")
	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server: ServerConfig{HTTPAddress: ":3001"},
			Auth: AuthConfig{
				Backend:     BackendMemory,
				TokenSecret: "s",
				TokenTTL:    time.Hour,
				Users:       []UserConfig{{ID: "a", Secret: "b", Role: "player"}},
			},
			Database: DatabaseConfig{Driver: DriverGorm},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"missing secret", func(c *Config) { c.Auth.TokenSecret = "" }, false},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, false},
		{"no users", func(c *Config) { c.Auth.Users = nil }, false},
		{"unknown backend", func(c *Config) { c.Auth.Backend = "ldap" }, false},
		{"database backend without database", func(c *Config) { c.Auth.Backend = BackendDatabase }, false},
		{"database backend", func(c *Config) {
			c.Auth.Backend = BackendDatabase
			c.Database.Enabled = true
		}, true},
		{"unknown driver", func(c *Config) {
			c.Database.Enabled = true
			c.Database.Driver = "mysql"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
