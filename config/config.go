package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	HTTPAddress    string   `mapstructure:"http_address"`
	RPCAddress     string   `mapstructure:"rpc_address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SendBuffer     int      `mapstructure:"send_buffer"`
	MessageRate    float64  `mapstructure:"message_rate"`
	MessageBurst   int      `mapstructure:"message_burst"`
	MaxMessageSize int64    `mapstructure:"max_message_size"`
}

type AuthConfig struct {
	Backend     string        `mapstructure:"backend"`
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Users       []UserConfig  `mapstructure:"users"`
}

type UserConfig struct {
	ID     string `mapstructure:"id"`
	Secret string `mapstructure:"secret"`
	Role   string `mapstructure:"role"`
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Auth backends and database drivers.
const (
	BackendMemory   = "memory"
	BackendDatabase = "database"
	DriverGorm      = "gorm"
	DriverSQL       = "sql"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("server.http_address", ":3001")
	v.SetDefault("server.rpc_address", "127.0.0.1:3002")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.send_buffer", 64)
	v.SetDefault("server.message_rate", 20)
	v.SetDefault("server.message_burst", 40)
	v.SetDefault("server.max_message_size", 8192)

	v.SetDefault("auth.backend", BackendMemory)
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.timeout", 5*time.Second)
	v.SetDefault("auth.users", []map[string]string{
		{"id": "QuickClient", "secret": "quick", "role": "player"},
		{"id": "LukasTech", "secret": "lukas", "role": "observer"},
	})

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", DriverGorm)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "roulette")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("metrics.namespace", "roulette")
}

// LoadConfig reads config.yaml from path if present, then applies ROULETTE_*
// environment overrides (server.http_address -> ROULETTE_SERVER_HTTP_ADDRESS).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ROULETTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.HTTPAddress == "" {
		errs = append(errs, errors.New("server.http_address is required"))
	}
	if c.Auth.TokenSecret == "" {
		errs = append(errs, errors.New("auth.token_secret is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}

	switch c.Auth.Backend {
	case BackendMemory:
		if len(c.Auth.Users) == 0 {
			errs = append(errs, errors.New("auth.users is empty"))
		}
	case BackendDatabase:
		if !c.Database.Enabled {
			errs = append(errs, errors.New("auth.backend database requires database.enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth.backend %q", c.Auth.Backend))
	}

	if c.Database.Enabled && c.Database.Driver != DriverGorm && c.Database.Driver != DriverSQL {
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
