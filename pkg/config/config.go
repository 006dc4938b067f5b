package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains server parameters. Secrets and endpoints come from the
// environment; bind address and file locations are usually set via flags
// and only fall back to these values.
type Config struct {
	BindAddress     string        `env:"POD_SERVER_BIND" envDefault:"127.0.0.1"`
	Port            uint16        `env:"POD_SERVER_PORT" envDefault:"8080"`
	APIKey          string        `env:"POD_SERVER_API_KEY"`
	VerifyURL       string        `env:"POD_SERVER_IAS_VERIFY_URL"`
	SigrlURL        string        `env:"POD_SERVER_IAS_SIGRL_URL"`
	CookieHashKey   string        `env:"POD_SERVER_COOKIE_HASH_KEY"`
	CookieBlockKey  string        `env:"POD_SERVER_COOKIE_BLOCK_KEY"`
	DatabasePath    string        `env:"POD_SERVER_DB" envDefault:"pod_users.db"`
	HTMLDir         string        `env:"POD_SERVER_HTML_DIR" envDefault:"./html"`
	TLSCert         string        `env:"POD_SERVER_TLS_CERT"`
	TLSKey          string        `env:"POD_SERVER_TLS_KEY"`
	TicketRetention time.Duration `env:"POD_SERVER_TICKET_RETENTION" envDefault:"5m"`
}

// ErrMissingAPIKey is returned when no attestation service credential is
// configured.
var ErrMissingAPIKey = errors.New("POD_SERVER_API_KEY is not set")

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// CookieKeys decodes the configured cookie keys. Keys must be base64 encoded
// 32 byte blobs; when unset, both returned values are zero and ok is false so
// the caller can generate ephemeral keys instead.
func (c *Config) CookieKeys() (hashKey [32]byte, blockKey [32]byte, ok bool, err error) {
	if c.CookieHashKey == "" || c.CookieBlockKey == "" {
		return hashKey, blockKey, false, nil
	}
	if err = decodeKey(c.CookieHashKey, hashKey[:]); err != nil {
		return hashKey, blockKey, false, fmt.Errorf("POD_SERVER_COOKIE_HASH_KEY: %w", err)
	}
	if err = decodeKey(c.CookieBlockKey, blockKey[:]); err != nil {
		return hashKey, blockKey, false, fmt.Errorf("POD_SERVER_COOKIE_BLOCK_KEY: %w", err)
	}
	return hashKey, blockKey, true, nil
}

func decodeKey(encoded string, out []byte) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	if len(raw) != len(out) {
		return fmt.Errorf("expected %d key bytes, got %d", len(out), len(raw))
	}
	copy(out, raw)
	return nil
}
