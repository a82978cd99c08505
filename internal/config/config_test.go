package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPrefersFlagOverEnvOverDefault(t *testing.T) {
	t.Setenv("HINDSIGHT_DATABASE", "/from/env/hindsight.db")
	t.Setenv("HINDSIGHT_WORKSPACE", "")

	cfg, err := Load(Overrides{Database: "/from/flag/hindsight.db"})
	require.NoError(t, err)
	require.Equal(t, "/from/flag/hindsight.db", cfg.DatabasePath)
}

func TestLoadFallsBackToEnvWhenFlagUnset(t *testing.T) {
	t.Setenv("HINDSIGHT_DATABASE", "/from/env/hindsight.db")
	cfg, err := Load(Overrides{})
	require.NoError(t, err)
	require.Equal(t, "/from/env/hindsight.db", cfg.DatabasePath)
}

func TestDefaultDatabasePathEndsInHindsightDB(t *testing.T) {
	path, err := DefaultDatabasePath()
	require.NoError(t, err)
	require.Equal(t, "hindsight.db", filepath.Base(path))
}

func TestLoadResolvesWorkspaceToAbsolutePath(t *testing.T) {
	cfg, err := Load(Overrides{Workspace: "."})
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(cfg.WorkspacePath))
}

func TestLoadReadsConfigFileWhenFlagAndEnvUnset(t *testing.T) {
	t.Setenv("HINDSIGHT_DATABASE", "")
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hindsight"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ".hindsight", "config.toml"),
		[]byte("database = \"/from/file/hindsight.db\"\n"),
		0o644,
	))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load(Overrides{})
	require.NoError(t, err)
	require.Equal(t, "/from/file/hindsight.db", cfg.DatabasePath)
}

func TestLoadFlagOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hindsight"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ".hindsight", "config.toml"),
		[]byte("database = \"/from/file/hindsight.db\"\n"),
		0o644,
	))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load(Overrides{Database: "/from/flag/hindsight.db"})
	require.NoError(t, err)
	require.Equal(t, "/from/flag/hindsight.db", cfg.DatabasePath)
}
