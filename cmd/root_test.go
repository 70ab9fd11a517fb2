package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lunareading/internal/auth"
	"github.com/abhisek/lunareading/internal/store"
)

func init() {
	auth.Iterations = 1000
}

// execute runs the root command with args in an isolated environment and
// returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{"LUNA_DB", "LUNA_DB_DRIVER", "LUNA_MYSQL_DSN", "CLOUDSQL_INSTANCE_CONNECTION_NAME", "XDG_DATA_HOME"} {
		t.Setenv(k, "")
	}
	return filepath.Join(dir, "luna.db")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "lunareading (devel)\n", out)
}

func TestDBInitAndStatus(t *testing.T) {
	db := isolate(t)

	out, err := execute(t, "db", "init", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite "+db)

	out, err = execute(t, "db", "status", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Status:    connected")
	assert.Contains(t, out, "Users:     0")
}

func TestUserCommands(t *testing.T) {
	db := isolate(t)

	out, err := execute(t, "user", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No users found.")

	st, err := store.Open(context.Background(), store.Config{Driver: store.DriverSQLite, Path: db})
	require.NoError(t, err)
	hash, err := auth.HashPassword("old")
	require.NoError(t, err)
	require.NoError(t, st.Users().Create(context.Background(), &store.User{
		Username: "fern", Email: "fern@example.com", PasswordHash: hash, GradeLevel: 4, ReadingLevel: 3.2,
	}))
	require.NoError(t, st.Close())

	out, err = execute(t, "user", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "fern@example.com")
	assert.Contains(t, out, "3.2")

	out, err = execute(t, "user", "reset-password", "fern", "--password", "new", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Password updated for fern.")

	st, err = store.Open(context.Background(), store.Config{Driver: store.DriverSQLite, Path: db})
	require.NoError(t, err)
	defer st.Close()
	u, err := st.Users().ByUsername(context.Background(), "fern")
	require.NoError(t, err)
	ok, err := auth.CheckPassword(u.PasswordHash, "new")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = execute(t, "user", "reset-password", "nobody", "--password", "x", "--db", db)
	assert.Error(t, err)
}

func TestLLMListEmpty(t *testing.T) {
	db := isolate(t)

	out, err := execute(t, "llm", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No LLM events found.")

	out, err = execute(t, "llm", "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No LLM usage recorded yet.")
}

func TestLLMPingWithMock(t *testing.T) {
	db := isolate(t)
	t.Setenv("LUNA_LLM_PROVIDER", "mock")

	out, err := execute(t, "llm", "ping", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "mock (mock) answered in")
	assert.Contains(t, out, `{"ok": true}`)
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	db := isolate(t)
	t.Setenv("PORT", "8080")

	_, err := execute(t, "version", "--addr", "127.0.0.1:9999", "--db", db, "--debug")
	require.NoError(t, err)

	cfg, err := loadConfig(versionCmd)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Addr)
	assert.Equal(t, store.DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, db, cfg.DB.Path)
	assert.True(t, cfg.Debug)
}
