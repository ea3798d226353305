package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lucasnoah/reprofactory/internal/workspace"
)

const (
	DefaultCurrentSnapshot  = "results/current.json"
	DefaultBaselineSnapshot = "results/baseline.json"
	DefaultPort             = 8420
)

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a configuration from the given YAML file path.
// Unset fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.baseDir = abs
	}
	return cfg, nil
}

// Parse decodes YAML config bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the
// first one found. Search order: ./repro.yaml, ~/.repro/config.yaml. When
// none exists the built-in defaults are returned.
func LoadDefault() (*Config, string, error) {
	candidates := []string{"repro.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".repro", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}

	return Default(), "", nil
}

// applyDefaults fills every unset field. An explicit empty markers list is
// kept so a repository can disable markers entirely.
func applyDefaults(cfg *Config) {
	r := &cfg.Repro

	if r.Root == "" {
		r.Root = "."
	}
	if r.Snapshots.Current == "" {
		r.Snapshots.Current = DefaultCurrentSnapshot
	}
	if r.Snapshots.Baseline == "" {
		r.Snapshots.Baseline = DefaultBaselineSnapshot
	}
	if r.SyncFiles.Metadata == "" {
		r.SyncFiles.Metadata = workspace.DefaultMetadataFile
	}
	if r.SyncFiles.InitialState == "" {
		r.SyncFiles.InitialState = workspace.DefaultInitialStateFile
	}
	if r.IssuePattern == "" {
		r.IssuePattern = workspace.DefaultIssuePattern
	}
	if len(r.ArtifactPatterns) == 0 {
		r.ArtifactPatterns = append([]string(nil), workspace.DefaultArtifactPatterns...)
	}
	if r.Markers == nil {
		r.Markers = workspace.DefaultMarkers()
	}
	if r.Serve.Port == 0 {
		r.Serve.Port = DefaultPort
	}
}
