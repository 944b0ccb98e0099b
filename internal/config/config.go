// Package config defines the dualtrack configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by DUALTRACK_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Oracle     OracleConfig     `toml:"oracle"`
	Anchor     AnchorConfig     `toml:"anchor"`
	Settlement SettlementConfig `toml:"settlement"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds the ledger database connection.
type PostgresConfig struct {
	DSN            string   `toml:"dsn"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Database       string   `toml:"database"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	SSLMode        string   `toml:"ssl_mode"`
	PoolMaxConns   int      `toml:"pool_max_conns"`
	PoolMinConns   int      `toml:"pool_min_conns"`
	ConnectTimeout duration `toml:"connect_timeout"`
	RunMigrations  bool     `toml:"run_migrations"`
}

// RedisConfig holds the cache, lock and bus connection.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds the snapshot bucket.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OracleConfig configures the price sources. The CoinMarketCap key is taken
// from api_key or, when empty, decrypted from encrypted_api_key_path.
type OracleConfig struct {
	CoinMarketCapURL    string   `toml:"coinmarketcap_url"`
	APIKey              string   `toml:"api_key"`
	EncryptedAPIKeyPath string   `toml:"encrypted_api_key_path"`
	KeyPassword         string   `toml:"key_password"`
	RequestsPerMinute   int      `toml:"requests_per_minute"`
	Timeout             duration `toml:"timeout"`
	BinanceEnabled      bool     `toml:"binance_enabled"`
	BinanceURL          string   `toml:"binance_url"`
	CacheTTL            duration `toml:"cache_ttl"`
	StaleAfter          duration `toml:"stale_after"`
}

// AnchorConfig fixes the reference prices used to value the initial coin
// holdings. Prices are decimal strings.
type AnchorConfig struct {
	Date string `toml:"date"` // YYYY-MM-DD
	BTC  string `toml:"btc"`
	ETH  string `toml:"eth"`
}

// Parse returns the anchor date at UTC midnight and the two prices.
func (a AnchorConfig) Parse() (time.Time, decimal.Decimal, decimal.Decimal, error) {
	date, err := time.Parse("2006-01-02", strings.TrimSpace(a.Date))
	if err != nil {
		return time.Time{}, decimal.Zero, decimal.Zero, fmt.Errorf("anchor: date %q: %w", a.Date, err)
	}
	btc, err := decimal.NewFromString(strings.TrimSpace(a.BTC))
	if err != nil {
		return time.Time{}, decimal.Zero, decimal.Zero, fmt.Errorf("anchor: btc %q: %w", a.BTC, err)
	}
	eth, err := decimal.NewFromString(strings.TrimSpace(a.ETH))
	if err != nil {
		return time.Time{}, decimal.Zero, decimal.Zero, fmt.Errorf("anchor: eth %q: %w", a.ETH, err)
	}
	if !btc.IsPositive() || !eth.IsPositive() {
		return time.Time{}, decimal.Zero, decimal.Zero, fmt.Errorf("anchor: prices must be > 0")
	}
	return date, btc, eth, nil
}

// SettlementConfig configures the scheduled scan.
type SettlementConfig struct {
	Enabled bool     `toml:"enabled"`
	Cron    string   `toml:"cron"` // six fields, seconds first
	LockTTL duration `toml:"lock_ttl"`
}

// ArchiveConfig configures ledger snapshots to S3.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	Cron          string `toml:"cron"`
	RetentionDays int    `toml:"retention_days"`
}

// Retention is RetentionDays as a duration.
func (a ArchiveConfig) Retention() time.Duration {
	return time.Duration(a.RetentionDays) * 24 * time.Hour
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	APIKey          string   `toml:"api_key"`
	CORSOrigins     []string `toml:"cors_origins"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML strings like "5m" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with every default applied. They match
// config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "dualtrack",
			User:           "postgres",
			SSLMode:        "disable",
			PoolMaxConns:   10,
			PoolMinConns:   1,
			ConnectTimeout: duration{10 * time.Second},
			RunMigrations:  true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "dualtrack",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "dualtrack-archive",
			ForcePathStyle: true,
		},
		Oracle: OracleConfig{
			CoinMarketCapURL:  "https://pro-api.coinmarketcap.com",
			RequestsPerMinute: 30,
			Timeout:           duration{10 * time.Second},
			BinanceEnabled:    true,
			CacheTTL:          duration{24 * time.Hour},
			StaleAfter:        duration{15 * time.Minute},
		},
		Anchor: AnchorConfig{
			Date: "2025-01-01",
			BTC:  "93500",
			ETH:  "3350",
		},
		Settlement: SettlementConfig{
			Enabled: true,
			Cron:    "0 */5 * * * *",
			LockTTL: duration{2 * time.Minute},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Cron:          "0 0 3 * * *",
			RetentionDays: 0,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimit:       60,
			RateLimitWindow: duration{time.Minute},
			ShutdownTimeout: duration{15 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_settled", "scan_failed", "price_degraded"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"settle":  true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, settle, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Oracle.APIKey == "" && c.Oracle.EncryptedAPIKeyPath == "" && !c.Oracle.BinanceEnabled {
		errs = append(errs, "oracle: set api_key, encrypted_api_key_path or binance_enabled")
	}
	if c.Oracle.EncryptedAPIKeyPath != "" && c.Oracle.KeyPassword == "" {
		errs = append(errs, "oracle: key_password is required when encrypted_api_key_path is set")
	}
	if c.Oracle.RequestsPerMinute < 1 {
		errs = append(errs, "oracle: requests_per_minute must be >= 1")
	}
	if c.Oracle.Timeout.Duration <= 0 {
		errs = append(errs, "oracle: timeout must be > 0")
	}
	if c.Oracle.StaleAfter.Duration < 0 {
		errs = append(errs, "oracle: stale_after must be >= 0")
	}

	if _, _, _, err := c.Anchor.Parse(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Settlement.Enabled && strings.TrimSpace(c.Settlement.Cron) == "" {
		errs = append(errs, "settlement: cron must not be empty when enabled")
	}
	if c.Settlement.LockTTL.Duration <= 0 {
		errs = append(errs, "settlement: lock_ttl must be > 0")
	}

	needsArchive := c.Archive.Enabled || strings.EqualFold(c.Mode, "archive")
	if needsArchive {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty for archiving")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty for archiving")
		}
		if c.Archive.RetentionDays < 0 {
			errs = append(errs, "archive: retention_days must be >= 0")
		}
	}
	if c.Archive.Enabled && strings.TrimSpace(c.Archive.Cron) == "" {
		errs = append(errs, "archive: cron must not be empty when enabled")
	}

	if strings.EqualFold(c.Mode, "server") && c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
		errs = append(errs, "server: rate_limit_window must be > 0 when rate_limit is set")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
