package config

import (
	"errors"

	"github.com/alanyoungcy/dualtrack/internal/crypto"
)

// OracleAPIKey resolves the CoinMarketCap key: the plain api_key, else the
// sealed file. An unconfigured key returns "" with no error.
func (c *Config) OracleAPIKey() (string, error) {
	key, err := crypto.LoadSecret(crypto.SecretSource{
		Plain:    c.Oracle.APIKey,
		Path:     c.Oracle.EncryptedAPIKeyPath,
		Password: c.Oracle.KeyPassword,
	})
	if errors.Is(err, crypto.ErrNoSecret) {
		return "", nil
	}
	return key, err
}

const redacted = "***"

// RedactedConfig returns a copy of cfg with secrets replaced by "***" for
// logging.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Oracle.APIKey)
	redact(&out.Oracle.KeyPassword)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
