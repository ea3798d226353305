package config

import (
	"os"
	"path/filepath"

	"github.com/lucasnoah/reprofactory/internal/workspace"
)

// Config is the top-level configuration structure parsed from repro.yaml.
type Config struct {
	Repro Repro `yaml:"repro"`

	// baseDir is the directory of the file the config was loaded from.
	// Relative roots resolve against it.
	baseDir string
}

// Repro describes where the repository and its snapshots live and how issue
// directories are interpreted.
type Repro struct {
	Root             string             `yaml:"root"`
	Snapshots        Snapshots          `yaml:"snapshots"`
	SyncFiles        SyncFiles          `yaml:"sync_files"`
	IssuePattern     string             `yaml:"issue_pattern"`
	ArtifactPatterns []string           `yaml:"artifact_patterns"`
	Markers          []workspace.Marker `yaml:"markers"`
	History          History            `yaml:"history"`
	Serve            Serve              `yaml:"serve"`
}

// Snapshots holds the two snapshot paths, relative to the root unless absolute.
type Snapshots struct {
	Current  string `yaml:"current"`
	Baseline string `yaml:"baseline"`
}

// SyncFiles names the per-issue files that mark an issue as synced.
type SyncFiles struct {
	Metadata     string `yaml:"metadata"`
	InitialState string `yaml:"initial_state"`
}

// History configures the evaluation history database.
type History struct {
	DSN string `yaml:"dsn"`
}

// Serve configures the JSON API server.
type Serve struct {
	Port int `yaml:"port"`
}

// RootDir returns the repository root as an absolute-or-relative path,
// resolving a relative root against the config file's directory.
func (c *Config) RootDir() string {
	root := c.Repro.Root
	if root == "" {
		root = "."
	}
	if filepath.IsAbs(root) || c.baseDir == "" {
		return filepath.Clean(root)
	}
	return filepath.Join(c.baseDir, root)
}

// CurrentPath returns the resolved current snapshot path.
func (c *Config) CurrentPath() string {
	return c.underRoot(c.Repro.Snapshots.Current)
}

// BaselinePath returns the resolved baseline snapshot path.
func (c *Config) BaselinePath() string {
	return c.underRoot(c.Repro.Snapshots.Baseline)
}

func (c *Config) underRoot(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RootDir(), p)
}

// HistoryDSN returns the configured DSN, defaulting to ~/.repro/history.db.
func (c *Config) HistoryDSN() string {
	if c.Repro.History.DSN != "" {
		return c.Repro.History.DSN
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".repro", "history.db")
	}
	return filepath.Join(home, ".repro", "history.db")
}

// WorkspaceOptions converts the config into workspace options.
func (c *Config) WorkspaceOptions() workspace.Options {
	return workspace.Options{
		Root:             c.RootDir(),
		IssuePattern:     c.Repro.IssuePattern,
		ArtifactPatterns: c.Repro.ArtifactPatterns,
		Markers:          c.Repro.Markers,
		MetadataFile:     c.Repro.SyncFiles.Metadata,
		InitialStateFile: c.Repro.SyncFiles.InitialState,
	}
}
