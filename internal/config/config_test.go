package config

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PLAYBOOK_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, 24*time.Hour, cfg.CleanupMaxAge)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: redis
log_level: debug
redis:
  addr: cache:6379
  db: 2
catalog:
  dir: ./protocols
cleanup_max_age: 2h
vars:
  code_root: /src
`), 0o644))

	t.Setenv("PLAYBOOK_REDIS_DB", "5")
	t.Setenv("PLAYBOOK_METRICS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Redis.DB, "env wins over file")
	assert.Equal(t, "playbook:", cfg.Redis.Prefix, "defaults survive partial files")
	assert.Equal(t, "./protocols", cfg.Catalog.Dir)
	assert.Equal(t, 2*time.Hour, cfg.CleanupMaxAge)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, map[string]string{"code_root": "/src"}, cfg.Vars)
}

func TestLoad_DiscoversWorkingDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("PLAYBOOK_CONFIG", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("store: memory\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [oops"), 0o644))
	_, err = Load(path)
	require.Error(t, err)

	t.Setenv("PLAYBOOK_STORE", "etcd")
	chdir(t, t.TempDir())
	t.Setenv("PLAYBOOK_CONFIG", "")
	_, err = Load("")
	assert.ErrorContains(t, err, "unknown store")
}

func TestLoad_SecurityFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PLAYBOOK_CONFIG", "")
	active := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
	old := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{2}, 32))
	t.Setenv("PLAYBOOK_SECURITY_ENCRYPTION_KEY", active)
	t.Setenv("PLAYBOOK_SECURITY_FALLBACK_KEYS", old)
	t.Setenv("PLAYBOOK_SECURITY_REDACT", "password,token")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"password", "token"}, cfg.Security.Redact)

	key, fallback, err := cfg.Security.Keys()
	require.NoError(t, err)
	assert.Len(t, key, 32)
	require.Len(t, fallback, 1)
	assert.Equal(t, byte(2), fallback[0][0])
}

func TestSecurityConfig_Keys(t *testing.T) {
	key, fallback, err := SecurityConfig{}.Keys()
	require.NoError(t, err)
	assert.Nil(t, key)
	assert.Nil(t, fallback)

	_, _, err = SecurityConfig{EncryptionKey: "not base64!"}.Keys()
	assert.Error(t, err)

	_, _, err = SecurityConfig{EncryptionKey: base64.StdEncoding.EncodeToString([]byte("short"))}.Keys()
	assert.Error(t, err)

	cfg := Default()
	cfg.Security.EncryptionKey = "bad"
	assert.Error(t, cfg.Validate())
}
