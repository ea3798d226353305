package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
repro:
  root: repo
  snapshots:
    current: out/current.json
    baseline: /abs/baseline.json
  sync_files:
    metadata: meta.json
    initial_state: start.json
  issue_pattern: '^gh-(\d+)$'
  artifact_patterns:
    - "*.csproj"
    - "*.fsproj"
  markers:
    - file: .skip
      reason: Ignored
    - file: .wip
      reason: WIP
  history:
    dsn: postgres://localhost/repro
  serve:
    port: 9000
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "repro.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	r := cfg.Repro
	if r.IssuePattern != `^gh-(\d+)$` {
		t.Errorf("IssuePattern = %q, want %q", r.IssuePattern, `^gh-(\d+)$`)
	}
	if len(r.ArtifactPatterns) != 2 {
		t.Errorf("len(ArtifactPatterns) = %d, want 2", len(r.ArtifactPatterns))
	}
	if len(r.Markers) != 2 || r.Markers[0].File != ".skip" {
		t.Errorf("Markers = %+v, want .skip first", r.Markers)
	}
	if r.Serve.Port != 9000 {
		t.Errorf("Port = %d, want 9000", r.Serve.Port)
	}
	if cfg.HistoryDSN() != "postgres://localhost/repro" {
		t.Errorf("HistoryDSN() = %q", cfg.HistoryDSN())
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestPathResolution(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	dir := filepath.Dir(path)
	wantRoot := filepath.Join(dir, "repo")
	if got := cfg.RootDir(); got != wantRoot {
		t.Errorf("RootDir() = %q, want %q", got, wantRoot)
	}
	if got, want := cfg.CurrentPath(), filepath.Join(wantRoot, "out", "current.json"); got != want {
		t.Errorf("CurrentPath() = %q, want %q", got, want)
	}
	if got := cfg.BaselinePath(); got != "/abs/baseline.json" {
		t.Errorf("BaselinePath() = %q, want absolute path kept", got)
	}

	opts := cfg.WorkspaceOptions()
	if opts.Root != wantRoot || opts.MetadataFile != "meta.json" || opts.InitialStateFile != "start.json" {
		t.Errorf("WorkspaceOptions() = %+v", opts)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	r := cfg.Repro

	if r.Root != "." {
		t.Errorf("Root = %q, want %q", r.Root, ".")
	}
	if r.Snapshots.Current != DefaultCurrentSnapshot {
		t.Errorf("Current = %q, want %q", r.Snapshots.Current, DefaultCurrentSnapshot)
	}
	if r.Snapshots.Baseline != DefaultBaselineSnapshot {
		t.Errorf("Baseline = %q, want %q", r.Snapshots.Baseline, DefaultBaselineSnapshot)
	}
	if r.SyncFiles.Metadata != "issue.json" || r.SyncFiles.InitialState != "initial-state.json" {
		t.Errorf("SyncFiles = %+v", r.SyncFiles)
	}
	if len(r.Markers) != 6 {
		t.Errorf("len(Markers) = %d, want 6", len(r.Markers))
	}
	if len(r.ArtifactPatterns) != 1 || r.ArtifactPatterns[0] != "*.csproj" {
		t.Errorf("ArtifactPatterns = %v", r.ArtifactPatterns)
	}
	if r.Serve.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", r.Serve.Port, DefaultPort)
	}
	if !strings.HasSuffix(cfg.HistoryDSN(), filepath.Join(".repro", "history.db")) {
		t.Errorf("HistoryDSN() = %q, want ~/.repro/history.db", cfg.HistoryDSN())
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("Validate(Default()) = %v, want no errors", errs)
	}
}

func TestEmptyMarkersListIsKept(t *testing.T) {
	cfg, err := Parse([]byte("repro:\n  markers: []\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Repro.Markers == nil || len(cfg.Repro.Markers) != 0 {
		t.Errorf("Markers = %#v, want empty non-nil slice", cfg.Repro.Markers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v, want reading config file", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTestConfig(t, "repro: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}

func TestLoadDefaultFindsLocalFile(t *testing.T) {
	dir := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty when nothing found", path)
	}
	if cfg.Repro.Serve.Port != DefaultPort {
		t.Errorf("Port = %d, want default", cfg.Repro.Serve.Port)
	}

	if err := os.WriteFile(filepath.Join(dir, "repro.yaml"), []byte("repro:\n  serve:\n    port: 1234\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, path, err = LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if path != "repro.yaml" {
		t.Errorf("path = %q, want repro.yaml", path)
	}
	if cfg.Repro.Serve.Port != 1234 {
		t.Errorf("Port = %d, want 1234", cfg.Repro.Serve.Port)
	}
}

func TestValidateErrors(t *testing.T) {
	cfg := Default()
	cfg.Repro.Root = ""
	cfg.Repro.Snapshots.Baseline = cfg.Repro.Snapshots.Current
	cfg.Repro.IssuePattern = `^\d+$`
	cfg.Repro.ArtifactPatterns = []string{"[bad"}
	cfg.Repro.Markers = append(cfg.Repro.Markers, cfg.Repro.Markers[0])
	cfg.Repro.Markers = append(cfg.Repro.Markers, cfg.Repro.Markers[0])
	cfg.Repro.Markers[len(cfg.Repro.Markers)-1].Reason = ""
	cfg.Repro.Serve.Port = 70000

	errs := Validate(cfg)
	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{
		"repro.root",
		"repro.snapshots.baseline",
		"repro.issue_pattern",
		"repro.artifact_patterns[0]",
		"repro.markers[6].file",
		"repro.markers[7].reason",
		"repro.serve.port",
	} {
		if !fields[want] {
			t.Errorf("missing validation error for %s (got %v)", want, errs)
		}
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Field: "repro.root", Message: "is required"}
	if e.Error() != "repro.root: is required" {
		t.Errorf("Error() = %q", e.Error())
	}
}
