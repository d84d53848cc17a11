package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/xaenox/keep-migrate/internal/migrate"
	"github.com/xaenox/keep-migrate/internal/secrets"
	"github.com/xaenox/keep-migrate/internal/session"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Source      AccountConfig   `mapstructure:"source"`
	Destination AccountConfig   `mapstructure:"destination"`
	Backend     BackendConfig   `mapstructure:"backend"`
	Secrets     SecretsConfig   `mapstructure:"secrets"`
	Migration   MigrationConfig `mapstructure:"migration"`
	Breaker     BreakerConfig   `mapstructure:"breaker"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
}

type AccountConfig struct {
	Account string `mapstructure:"account"`
}

type BackendConfig struct {
	Type     string `mapstructure:"type"`
	DSN      string `mapstructure:"dsn"`
	Fixture  string `mapstructure:"fixture"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SecretsConfig struct {
	Service string `mapstructure:"service"`
}

type MigrationConfig struct {
	DelaySeconds float64 `mapstructure:"delay_seconds"`
	// RetryBaseSeconds falls back to DelaySeconds when unset.
	RetryBaseSeconds *float64 `mapstructure:"retry_base_seconds"`
	MaxRetries       int      `mapstructure:"max_retries"`
	FlushEvery       int      `mapstructure:"flush_every"`
}

type BreakerConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	MaxFailures int     `mapstructure:"max_failures"`
	OpenSeconds float64 `mapstructure:"open_seconds"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

func parseDatabaseURL(dbURL string) (session.DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return session.DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return session.DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}
	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return session.DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads path, or ./config.yaml when path is empty. Only an
// explicitly named file has to exist. A .env file next to the config is
// loaded first; variables already set in the environment win.
func LoadConfig(path string) (*Config, error) {
	dir := "."
	if path != "" {
		dir = filepath.Dir(path)
	}
	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		_ = godotenv.Load(envPath)
	}

	v := viper.New()

	v.SetDefault("source.account", "")
	v.SetDefault("destination.account", "")
	v.SetDefault("backend.type", BackendMemory)
	v.SetDefault("backend.fixture", "")
	v.SetDefault("backend.host", "localhost")
	v.SetDefault("backend.port", 5432)
	v.SetDefault("backend.user", "postgres")
	v.SetDefault("backend.password", "")
	v.SetDefault("backend.dbname", "keep")
	v.SetDefault("backend.sslmode", "disable")
	v.SetDefault("secrets.service", secrets.DefaultService)
	v.SetDefault("migration.delay_seconds", 2)
	v.SetDefault("migration.max_retries", 3)
	v.SetDefault("migration.flush_every", 20)
	v.SetDefault("breaker.enabled", false)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_seconds", 60)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetEnvPrefix("KEEP_MIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default only reach Unmarshal when bound.
	v.BindEnv("migration.retry_base_seconds")
	v.BindEnv("backend.dsn", "KEEP_MIGRATE_BACKEND_DSN", "DATABASE_URL")
	v.BindEnv("telegram.token", "KEEP_MIGRATE_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &config, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (c *Config) Validate() error {
	var errs []error

	src := strings.TrimSpace(c.Source.Account)
	dst := strings.TrimSpace(c.Destination.Account)
	if src == "" {
		errs = append(errs, errors.New("source.account is required"))
	}
	if dst == "" {
		errs = append(errs, errors.New("destination.account is required"))
	}
	if src != "" && strings.EqualFold(src, dst) {
		errs = append(errs, errors.New("source and destination must be different accounts"))
	}

	switch c.Backend.Type {
	case BackendMemory, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown backend.type %q", c.Backend.Type))
	}

	m := c.Migration
	if m.DelaySeconds < 0 {
		errs = append(errs, errors.New("migration.delay_seconds must not be negative"))
	}
	if m.RetryBaseSeconds != nil && *m.RetryBaseSeconds < 0 {
		errs = append(errs, errors.New("migration.retry_base_seconds must not be negative"))
	}
	if m.MaxRetries < 1 {
		errs = append(errs, errors.New("migration.max_retries must be at least 1"))
	}
	if m.FlushEvery < 1 {
		errs = append(errs, errors.New("migration.flush_every must be at least 1"))
	}

	if c.Breaker.Enabled && c.Breaker.MaxFailures < 1 {
		errs = append(errs, errors.New("breaker.max_failures must be at least 1"))
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("telegram.chat_id is required when a telegram token is set"))
	}

	return errors.Join(errs...)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Options returns the pacing of a run.
func (c *Config) Options() migrate.Options {
	opts := migrate.DefaultOptions()
	opts.Delay = seconds(c.Migration.DelaySeconds)
	opts.RetryBase = opts.Delay
	if c.Migration.RetryBaseSeconds != nil {
		opts.RetryBase = seconds(*c.Migration.RetryBaseSeconds)
	}
	opts.MaxRetries = c.Migration.MaxRetries
	opts.FlushEvery = c.Migration.FlushEvery
	return opts
}

func (c *Config) BreakerConfig() session.BreakerConfig {
	return session.BreakerConfig{
		MaxFailures: uint32(c.Breaker.MaxFailures),
		OpenTimeout: seconds(c.Breaker.OpenSeconds),
	}
}

// Database returns the connection settings of the postgres backend. A
// postgres:// URL in backend.dsn takes precedence over the discrete fields.
func (c *Config) Database() (session.DatabaseConfig, error) {
	b := c.Backend
	if b.DSN != "" {
		if strings.Contains(b.DSN, "://") {
			db, err := parseDatabaseURL(b.DSN)
			if err != nil {
				return session.DatabaseConfig{}, fmt.Errorf("failed to parse database URL: %w", err)
			}
			return db, nil
		}
		return session.DatabaseConfig{DSN: b.DSN}, nil
	}
	return session.DatabaseConfig{
		Host:     b.Host,
		Port:     b.Port,
		User:     b.User,
		Password: b.Password,
		DBName:   b.DBName,
		SSLMode:  b.SSLMode,
	}, nil
}
