package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DUALTRACK_"

// Load merges the TOML file at path (skipped when path is empty) over
// Defaults, loads .env if present, then applies DUALTRACK_* overrides.
// Unknown TOML keys are an error. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg, os.Getenv)
	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose DUALTRACK_* variable is set and
// parses. Secrets are normally injected this way.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	e := envReader{getenv: getenv}

	e.str(&cfg.Postgres.DSN, "POSTGRES_DSN")
	e.str(&cfg.Postgres.Host, "POSTGRES_HOST")
	e.int(&cfg.Postgres.Port, "POSTGRES_PORT")
	e.str(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	e.str(&cfg.Postgres.User, "POSTGRES_USER")
	e.str(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	e.str(&cfg.Postgres.SSLMode, "POSTGRES_SSL_MODE")
	e.int(&cfg.Postgres.PoolMaxConns, "POSTGRES_POOL_MAX_CONNS")
	e.int(&cfg.Postgres.PoolMinConns, "POSTGRES_POOL_MIN_CONNS")
	e.bool(&cfg.Postgres.RunMigrations, "POSTGRES_RUN_MIGRATIONS")

	e.str(&cfg.Redis.Addr, "REDIS_ADDR")
	e.str(&cfg.Redis.Password, "REDIS_PASSWORD")
	e.int(&cfg.Redis.DB, "REDIS_DB")
	e.bool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	e.str(&cfg.Redis.KeyPrefix, "REDIS_KEY_PREFIX")

	e.str(&cfg.S3.Endpoint, "S3_ENDPOINT")
	e.str(&cfg.S3.Region, "S3_REGION")
	e.str(&cfg.S3.Bucket, "S3_BUCKET")
	e.str(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	e.str(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	e.bool(&cfg.S3.UseSSL, "S3_USE_SSL")
	e.bool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")

	e.str(&cfg.Oracle.APIKey, "ORACLE_API_KEY")
	e.str(&cfg.Oracle.APIKey, "CMC_API_KEY")
	e.str(&cfg.Oracle.EncryptedAPIKeyPath, "ORACLE_ENCRYPTED_API_KEY_PATH")
	e.str(&cfg.Oracle.KeyPassword, "ORACLE_KEY_PASSWORD")
	e.str(&cfg.Oracle.CoinMarketCapURL, "ORACLE_COINMARKETCAP_URL")
	e.bool(&cfg.Oracle.BinanceEnabled, "ORACLE_BINANCE_ENABLED")
	e.dur(&cfg.Oracle.StaleAfter, "ORACLE_STALE_AFTER")

	e.str(&cfg.Anchor.Date, "ANCHOR_DATE")
	e.str(&cfg.Anchor.BTC, "ANCHOR_BTC")
	e.str(&cfg.Anchor.ETH, "ANCHOR_ETH")

	e.bool(&cfg.Settlement.Enabled, "SETTLEMENT_ENABLED")
	e.str(&cfg.Settlement.Cron, "SETTLEMENT_CRON")
	e.dur(&cfg.Settlement.LockTTL, "SETTLEMENT_LOCK_TTL")

	e.bool(&cfg.Archive.Enabled, "ARCHIVE_ENABLED")
	e.str(&cfg.Archive.Cron, "ARCHIVE_CRON")
	e.int(&cfg.Archive.RetentionDays, "ARCHIVE_RETENTION_DAYS")

	e.str(&cfg.Server.Addr, "SERVER_ADDR")
	e.str(&cfg.Server.APIKey, "SERVER_API_KEY")
	e.list(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")
	e.int(&cfg.Server.RateLimit, "SERVER_RATE_LIMIT")

	e.str(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	e.str(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	e.str(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	e.list(&cfg.Notify.Events, "NOTIFY_EVENTS")

	e.str(&cfg.Mode, "MODE")
	e.str(&cfg.LogLevel, "LOG_LEVEL")
}

// envReader reads prefixed variables. Each setter leaves dst alone when the
// variable is empty or does not parse.
type envReader struct {
	getenv func(string) string
}

func (e envReader) get(key string) string {
	return strings.TrimSpace(e.getenv(EnvPrefix + key))
}

func (e envReader) str(dst *string, key string) {
	if v := e.get(key); v != "" {
		*dst = v
	}
}

func (e envReader) int(dst *int, key string) {
	if n, err := strconv.Atoi(e.get(key)); err == nil {
		*dst = n
	}
}

func (e envReader) bool(dst *bool, key string) {
	if b, err := strconv.ParseBool(e.get(key)); err == nil {
		*dst = b
	}
}

func (e envReader) dur(dst *duration, key string) {
	if d, err := time.ParseDuration(e.get(key)); err == nil {
		dst.Duration = d
	}
}

func (e envReader) list(dst *[]string, key string) {
	v := e.get(key)
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
