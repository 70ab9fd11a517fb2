package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET_KEY=from-file\nPORT=8088\n"), 0o600))

	t.Setenv("JWT_SECRET_KEY", "from-shell")
	unsetenv(t, "PORT")
	t.Setenv("LUNA_ADDR", "")

	require.NoError(t, LoadEnvFile(path))

	cfg := FromEnv()
	assert.Equal(t, "from-shell", cfg.JWTSecret, "the shell wins over .env")
	assert.Equal(t, ":8088", cfg.Addr, "unset variables come from .env")
	assert.False(t, cfg.InsecureJWTSecret())
}

// unsetenv removes key for the rest of the test and restores it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadEnvFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	assert.NoError(t, LoadEnvFile(""), "missing default .env is ignored")
	assert.Error(t, LoadEnvFile("does-not-exist.env"), "missing explicit file is an error")
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("PORT", "")
	t.Setenv("LUNA_ADDR", "")

	cfg := FromEnv()
	assert.Equal(t, ":5001", cfg.Addr)
	assert.True(t, cfg.InsecureJWTSecret())
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.Positive(t, cfg.LoginBurst)
}

func TestFromEnvAddrOverride(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LUNA_ADDR", "127.0.0.1:7000")

	assert.Equal(t, "127.0.0.1:7000", FromEnv().Addr)
}

func TestFromEnvTrustProxy(t *testing.T) {
	t.Setenv("LUNA_TRUST_PROXY", "true")
	assert.True(t, FromEnv().TrustProxy)

	t.Setenv("LUNA_TRUST_PROXY", "nope")
	assert.False(t, FromEnv().TrustProxy)
}
