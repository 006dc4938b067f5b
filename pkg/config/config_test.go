package config

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.BindAddress)
	assert.Equal(t, uint16(8080), cfg.Port)
	assert.Equal(t, "pod_users.db", cfg.DatabasePath)
	assert.Equal(t, 5*time.Minute, cfg.TicketRetention)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POD_SERVER_BIND", "0.0.0.0")
	t.Setenv("POD_SERVER_PORT", "9443")
	t.Setenv("POD_SERVER_API_KEY", "012345abcdef")
	t.Setenv("POD_SERVER_TICKET_RETENTION", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.BindAddress)
	assert.Equal(t, uint16(9443), cfg.Port)
	assert.Equal(t, "012345abcdef", cfg.APIKey)
	assert.Equal(t, 30*time.Second, cfg.TicketRetention)
}

func TestCookieKeys(t *testing.T) {
	var raw [32]byte
	_, err := rand.Read(raw[:])
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(raw[:])

	t.Setenv("POD_SERVER_COOKIE_HASH_KEY", encoded)
	t.Setenv("POD_SERVER_COOKIE_BLOCK_KEY", encoded)

	cfg, err := Load()
	require.NoError(t, err)

	hashKey, blockKey, ok, err := cfg.CookieKeys()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, raw, hashKey)
	assert.Equal(t, raw, blockKey)
}

func TestCookieKeysUnset(t *testing.T) {
	cfg := &Config{}
	_, _, ok, err := cfg.CookieKeys()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCookieKeysWrongLength(t *testing.T) {
	cfg := &Config{
		CookieHashKey:  base64.StdEncoding.EncodeToString([]byte("short")),
		CookieBlockKey: base64.StdEncoding.EncodeToString([]byte("short")),
	}
	_, _, _, err := cfg.CookieKeys()
	assert.Error(t, err)
}
