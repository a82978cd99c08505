// Package config resolves the database path, workspace path, and logging
// verbosity from CLI flags, environment variables, an optional
// .hindsight/config.toml in the working directory, and platform defaults, in
// that priority order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// fileOverrides mirrors the subset of Overrides that can be set from
// .hindsight/config.toml. Only database/workspace paths and verbosity are
// exposed here; a file is easy to forget about, so it only ever fills in
// what flags and env vars left unset.
type fileOverrides struct {
	Database  string `toml:"database"`
	Workspace string `toml:"workspace"`
	Verbose   bool   `toml:"verbose"`
	Quiet     bool   `toml:"quiet"`
}

// loadConfigFile reads .hindsight/config.toml under dir, if present. A
// missing file is not an error; a malformed one is.
func loadConfigFile(dir string) (fileOverrides, error) {
	var fo fileOverrides
	path := filepath.Join(dir, ".hindsight", "config.toml")
	if _, err := os.Stat(path); err != nil {
		return fo, nil
	}
	if _, err := toml.DecodeFile(path, &fo); err != nil {
		return fo, fmt.Errorf("parse %s: %w", path, err)
	}
	return fo, nil
}

// Config holds the resolved runtime configuration for a single invocation.
type Config struct {
	DatabasePath string
	WorkspacePath string
	Verbose       bool
	Quiet         bool
	SkipInit      bool
}

// Overrides carries the values parsed from CLI flags; zero values mean
// "not set", so environment variables and defaults can still apply.
type Overrides struct {
	Database string
	Workspace string
	Verbose   bool
	Quiet     bool
	SkipInit  bool
}

// Load resolves a Config from flag overrides, environment variables, the
// optional .hindsight/config.toml, and platform defaults, in descending
// priority.
func Load(o Overrides) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve workspace path: %w", err)
	}
	fo, err := loadConfigFile(wd)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Verbose:  o.Verbose || fo.Verbose,
		Quiet:    o.Quiet || fo.Quiet,
		SkipInit: o.SkipInit,
	}

	dbPath := o.Database
	if dbPath == "" {
		dbPath = os.Getenv("HINDSIGHT_DATABASE")
	}
	if dbPath == "" {
		dbPath = fo.Database
	}
	if dbPath == "" {
		def, err := DefaultDatabasePath()
		if err != nil {
			return nil, err
		}
		dbPath = def
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	cfg.DatabasePath = abs

	ws := o.Workspace
	if ws == "" {
		ws = os.Getenv("HINDSIGHT_WORKSPACE")
	}
	if ws == "" {
		ws = fo.Workspace
	}
	if ws == "" {
		ws = wd
	}
	wsAbs, err := filepath.Abs(ws)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace path: %w", err)
	}
	cfg.WorkspacePath = wsAbs

	return cfg, nil
}

// DefaultDatabasePath returns the platform-specific default database
// location: macOS uses Application Support, Windows uses %LOCALAPPDATA%,
// Linux/BSD use $XDG_DATA_HOME (falling back to ~/.local/share).
func DefaultDatabasePath() (string, error) {
	dir, err := defaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hindsight.db"), nil
}

func defaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "hindsight"), nil
	case "windows":
		if v := os.Getenv("LOCALAPPDATA"); v != "" {
			return filepath.Join(v, "hindsight"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "AppData", "Local", "hindsight"), nil
	default:
		if v := os.Getenv("XDG_DATA_HOME"); v != "" {
			return filepath.Join(v, "hindsight"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "hindsight"), nil
	}
}

// ChatSessionsDir returns the platform-default VS Code chat-session storage
// directory glob root for the given workspace-storage id, or an error on
// platforms with no known default path.
func ChatSessionsDir(wsStorageID string) (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "Code", "User",
			"workspaceStorage", wsStorageID, "chatSessions"), nil
	case "windows":
		if v := os.Getenv("APPDATA"); v != "" {
			return filepath.Join(v, "Code", "User", "workspaceStorage", wsStorageID, "chatSessions"), nil
		}
		return "", fmt.Errorf("no default chat sessions path: %%APPDATA%% is unset")
	case "linux":
		dir := os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config")
		}
		return filepath.Join(dir, "Code", "User", "workspaceStorage", wsStorageID, "chatSessions"), nil
	default:
		return "", fmt.Errorf("no default chat sessions path for platform %q", runtime.GOOS)
	}
}
