// Package config loads goclangd's configuration: hardcoded defaults,
// optionally overridden by a project ".goclangd.kdl" file, and finally by
// CLI flags (applied by the caller after Load returns).
package config

import (
	"os"
	"path/filepath"
)

// Config is the full set of knobs goclangd reads at startup.
type Config struct {
	Project     Project
	Index       Index
	Performance Performance
	Exclude     []string
}

// Project describes the workspace being indexed.
type Project struct {
	Root string // absolute path to the directory containing the manifest
}

// Index controls manifest discovery and watch-mode behavior.
type Index struct {
	ManifestName    string // default "compile_commands.json"
	DBName          string // default "goclangd_index.db"
	WatchMode       bool   // fall back to fsnotify when the editor sends no didSave
	WatchDebounceMs int
}

// Performance controls worker concurrency.
type Performance struct {
	Jobs int // parallel worker goroutines; <=0 means 1
}

const (
	DefaultManifestName    = "compile_commands.json"
	DefaultDBName          = "goclangd_index.db"
	DefaultWatchDebounceMs = 300
	ConfigFileName         = ".goclangd.kdl"
	LibPathEnvVar          = "PYCLANGD_LIB_PATH"
)

// Default returns a Config populated with goclangd's hardcoded defaults,
// rooted at the current working directory.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Project: Project{Root: cwd},
		Index: Index{
			ManifestName:    DefaultManifestName,
			DBName:          DefaultDBName,
			WatchMode:       true,
			WatchDebounceMs: DefaultWatchDebounceMs,
		},
		Performance: Performance{Jobs: 1},
		Exclude: []string{
			"**/.git/**",
			"**/build/**",
			"**/out/**",
			"**/cmake-build-*/**",
			"**/*.o",
			"**/*.obj",
		},
	}
}

// Load reads ".goclangd.kdl" (if present) from dir and layers it over the
// defaults. dir is typically the project root passed via -d/--directory.
func Load(dir string) (*Config, error) {
	cfg := Default()
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		cfg.Project.Root = abs
	}

	kdlCfg, err := LoadKDL(cfg.Project.Root)
	if err != nil {
		return nil, err
	}
	if kdlCfg != nil {
		cfg = mergeKDL(cfg, kdlCfg)
	}

	if err := NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ManifestPath returns the absolute path to the compile-command manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Project.Root, c.Index.ManifestName)
}

// DBPath returns the absolute path to the persisted index.
func (c *Config) DBPath() string {
	return filepath.Join(c.Project.Root, c.Index.DBName)
}

// LibPath resolves the AST library path: the explicit flag value if set,
// else the PYCLANGD_LIB_PATH environment fallback from spec.md §6.
func LibPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(LibPathEnvVar)
}
