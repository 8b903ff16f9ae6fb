package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
http:
  addr: ":8080"
auth:
  jwt:
    secret: s3cr3t
`))
	require.NoError(t, err)

	assert.Equal(t, "chat-service", cfg.Logging.Service)
	assert.Equal(t, "dev", cfg.Logging.Env)
	assert.Equal(t, "std", cfg.Logging.Backend)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, int64(64*1024), cfg.WS.MaxFrameBytes())
	assert.Equal(t, 15*time.Second, cfg.WS.PingInterval)
	assert.Equal(t, 64, cfg.WS.SendBuffer)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, "chat-service", cfg.Postgres.ApplicationName)
	assert.Equal(t, "HS256", cfg.Auth.JWT.Alg)
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("TEST_CHAT_SECRET", "from-env")
	cfg, err := Parse([]byte(`
http:
  addr: ":8080"
auth:
  jwt:
    secret: "${TEST_CHAT_SECRET}"
    clockSkew: 30s
ws:
  maxFrameSize: 1MB
`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWT.Secret)
	assert.Equal(t, 30*time.Second, cfg.Auth.JWT.ClockSkew)
	assert.Equal(t, int64(1000*1000), cfg.WS.MaxFrameBytes())
}

func TestParseValidation(t *testing.T) {
	cases := map[string]string{
		"no http addr": `
auth: {jwt: {secret: x}}`,
		"no jwt key": `
http: {addr: ":1"}`,
		"skew too large": `
http: {addr: ":1"}
auth: {jwt: {secret: x, clockSkew: 5m}}`,
		"bucket without base url": `
http: {addr: ":1"}
auth: {jwt: {secret: x}}
storage: {bucket: media}`,
		"rs256 without key": `
http: {addr: ":1"}
auth: {jwt: {alg: RS256, secret: x}}`,
		"unknown alg": `
http: {addr: ":1"}
auth: {jwt: {alg: none, secret: x}}`,
		"bad frame size": `
http: {addr: ":1"}
auth: {jwt: {secret: x}}
ws: {maxFrameSize: lots}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: {addr: \":9000\"}\nauth: {jwt: {secret: x}}\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
}
