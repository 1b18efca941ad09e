package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/evaldash/internal/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeedCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "n.db")
	cfg := writeFile(t, dir, "config.yaml", "api:\n  sqlite_path: "+db+"\nlog:\n  level: error\n")
	fixtures := writeFile(t, dir, "fixtures.json", `[
		{"type": "achievement", "school_name": "Riverside", "title": "Science fair"},
		{"type": "performance", "school_name": "Riverside", "title": "Term report"}
	]`)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfg, "seed", fixtures})
	require.NoError(t, cmd.Execute())

	st, err := store.NewSQLiteStore(db)
	require.NoError(t, err)
	defer st.Close()

	got, err := st.ListNotifications(context.Background(), store.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSeedCommandRejectsBadFixtures(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "api:\n  sqlite_path: "+filepath.Join(dir, "n.db")+"\n")
	fixtures := writeFile(t, dir, "fixtures.json", `[{"type": "rumour", "title": "x"}]`)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfg, "seed", fixtures})
	assert.ErrorContains(t, cmd.Execute(), "unknown notification type")
}

func TestLogLevelOverride(t *testing.T) {
	dir := t.TempDir()
	opts := &rootOptions{
		configPath: writeFile(t, dir, "config.yaml", "log:\n  level: info\n"),
		logLevel:   "debug",
	}

	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}
