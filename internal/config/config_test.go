package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixsense.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validYAML = `
sessions:
  - key: acme-prod
    host: fix.acme.example
    port: 9876
    begin_string: "FIX.4.4"
    sender_comp_id: OURS
    target_comp_id: ACME
    heartbeat_interval_sec: 30
    logon_strategy: standard
`

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Sessions, 1)
	assert.Equal(t, "acme-prod", cfg.Sessions[0].Key)
	assert.Equal(t, 9876, cfg.Sessions[0].Port)
}

func TestLoadReportsEveryProblemAtOnce(t *testing.T) {
	const broken = `
sessions:
  - key: bad-one
    heartbeat_interval_sec: 0
`
	path := writeTempConfig(t, broken)

	_, err := Load(path)
	require.Error(t, err)

	cerr, ok := err.(*ConfigError)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(cerr.Problems), 4)
}

func TestLoadRejectsDuplicateKeys(t *testing.T) {
	const dup = `
sessions:
  - key: dup
    host: a
    port: 1
    begin_string: "FIX.4.4"
    sender_comp_id: A
    target_comp_id: B
    heartbeat_interval_sec: 30
  - key: dup
    host: a
    port: 1
    begin_string: "FIX.4.4"
    sender_comp_id: A
    target_comp_id: B
    heartbeat_interval_sec: 30
`
	path := writeTempConfig(t, dup)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestLoadRejectsRedisBackendWithoutRedisAddr(t *testing.T) {
	const cfg = `
sessions:
  - key: needs-redis
    host: a
    port: 1
    begin_string: "FIX.4.4"
    sender_comp_id: A
    target_comp_id: B
    heartbeat_interval_sec: 30
    registry_backend: redis
`
	path := writeTempConfig(t, cfg)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry_backend redis requires redis.addr")
}

func TestEnvOverrideAppliesToNamedSession(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	t.Setenv("FIXSENSE_ACME_PROD_HOST", "override.example")
	t.Setenv("FIXSENSE_ACME_PROD_PORT", "1234")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override.example", cfg.Sessions[0].Host)
	assert.Equal(t, 1234, cfg.Sessions[0].Port)
}

func TestSessionByKeyLookup(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	s, ok := cfg.SessionByKey("acme-prod")
	require.True(t, ok)
	assert.Equal(t, "OURS", s.SenderCompID)

	_, ok = cfg.SessionByKey("missing")
	assert.False(t, ok)
}
