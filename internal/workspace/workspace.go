// Package workspace inspects the repository tree: which issue directories
// exist, which carry skip markers, which artifacts they contain and whether
// their sync files are present.
package workspace

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/lucasnoah/reprofactory/internal/aggregate"
	"github.com/lucasnoah/reprofactory/internal/state"
)

const (
	DefaultIssuePattern     = `^(?i:issue)?[-_]?(\d+)$`
	DefaultMetadataFile     = "issue.json"
	DefaultInitialStateFile = "initial-state.json"
)

// DefaultArtifactPatterns are the glob patterns matched against file names.
var DefaultArtifactPatterns = []string{"*.csproj"}

// Marker maps a marker file name to the skip reason it stands for.
type Marker struct {
	File   string `yaml:"file" json:"file"`
	Reason string `yaml:"reason" json:"reason"`
}

// DefaultMarkers returns the built-in marker table in lookup order.
func DefaultMarkers() []Marker {
	return []Marker{
		{File: ".ignore", Reason: state.ReasonIgnored},
		{File: ".explicit", Reason: state.ReasonExplicit},
		{File: ".wip", Reason: state.ReasonWIP},
		{File: ".gui", Reason: state.ReasonGUI},
		{File: ".closed-not-planned", Reason: state.ReasonClosedNotPlanned},
		{File: ".closed-as-not-planned", Reason: state.ReasonClosedAsNotPlanned},
	}
}

// Options configures a Workspace. Zero fields fall back to the defaults.
type Options struct {
	Root             string
	IssuePattern     string
	ArtifactPatterns []string
	Markers          []Marker
	MetadataFile     string
	InitialStateFile string
}

// Workspace answers questions about issue directories under one root.
// It implements state.MarkerLookup, state.ArtifactLister and
// state.SyncChecker.
type Workspace struct {
	fs       afero.Fs
	root     string
	issueRe  *regexp.Regexp
	patterns []string
	markers  []Marker
	metadata string
	initial  string
	logger   *slog.Logger
}

var (
	_ state.MarkerLookup   = (*Workspace)(nil)
	_ state.ArtifactLister = (*Workspace)(nil)
	_ state.SyncChecker    = (*Workspace)(nil)
)

// New builds a Workspace over fsys.
func New(fsys afero.Fs, opts Options, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.IssuePattern == "" {
		opts.IssuePattern = DefaultIssuePattern
	}
	if len(opts.ArtifactPatterns) == 0 {
		opts.ArtifactPatterns = DefaultArtifactPatterns
	}
	if opts.Markers == nil {
		opts.Markers = DefaultMarkers()
	}
	if opts.MetadataFile == "" {
		opts.MetadataFile = DefaultMetadataFile
	}
	if opts.InitialStateFile == "" {
		opts.InitialStateFile = DefaultInitialStateFile
	}

	re, err := CompileIssuePattern(opts.IssuePattern)
	if err != nil {
		return nil, err
	}
	for _, p := range opts.ArtifactPatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("artifact pattern %q: %w", p, err)
		}
	}

	return &Workspace{
		fs:       fsys,
		root:     filepath.Clean(opts.Root),
		issueRe:  re,
		patterns: opts.ArtifactPatterns,
		markers:  opts.Markers,
		metadata: opts.MetadataFile,
		initial:  opts.InitialStateFile,
		logger:   logger,
	}, nil
}

// CompileIssuePattern compiles an issue directory pattern. The first capture
// group must hold the issue number.
func CompileIssuePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile issue pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("issue pattern %q has no capture group", pattern)
	}
	return re, nil
}

// Root returns the cleaned root directory.
func (w *Workspace) Root() string { return w.root }

// ParseIssueNumber extracts the issue number from a directory name.
func (w *Workspace) ParseIssueNumber(name string) (int, bool) {
	m := w.issueRe.FindStringSubmatch(name)
	if m == nil || m[1] == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Issues lists the issue directories under the root, ordered by number.
// Directory names that do not parse are skipped. When two directories map to
// the same number the first in name order wins.
func (w *Workspace) Issues() ([]aggregate.Issue, error) {
	entries, err := afero.ReadDir(w.fs, w.root)
	if err != nil {
		return nil, fmt.Errorf("read root %s: %w", w.root, err)
	}

	seen := make(map[int]bool)
	var issues []aggregate.Issue
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, ok := w.ParseIssueNumber(e.Name())
		if !ok {
			continue
		}
		if seen[n] {
			w.logger.Debug("duplicate issue directory ignored", "issue", n, "dir", e.Name())
			continue
		}
		seen[n] = true
		issues = append(issues, aggregate.Issue{Number: n, Location: filepath.Join(w.root, e.Name())})
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Number < issues[j].Number })
	return issues, nil
}

// ShouldSkip reports whether any configured marker file exists in location.
func (w *Workspace) ShouldSkip(location string) bool {
	_, ok := w.marker(location)
	return ok
}

// Reason returns the reason of the first configured marker present in
// location, or "" when there is none.
func (w *Workspace) Reason(location string) string {
	m, _ := w.marker(location)
	return m.Reason
}

func (w *Workspace) marker(location string) (Marker, bool) {
	for _, m := range w.markers {
		if w.isFile(filepath.Join(location, m.File)) {
			return m, true
		}
	}
	return Marker{}, false
}

// ListArtifacts walks location for files matching the artifact patterns,
// skipping build output and hidden directories. Paths are slash-separated,
// relative to the root and sorted.
func (w *Workspace) ListArtifacts(location string) []string {
	var out []string
	err := afero.Walk(w.fs, location, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			w.logger.Debug("artifact walk error", "path", path, "error", err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if path != location && skipDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.matches(info.Name()) {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			rel = path
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		w.logger.Warn("artifact discovery failed", "location", location, "error", err)
	}
	sort.Strings(out)
	return out
}

func (w *Workspace) matches(name string) bool {
	for _, p := range w.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func skipDir(name string) bool {
	switch strings.ToLower(name) {
	case "bin", "obj":
		return true
	}
	return strings.HasPrefix(name, ".")
}

// HasMetadata reports whether the metadata sync file exists in location.
func (w *Workspace) HasMetadata(location string) bool {
	return w.isFile(filepath.Join(location, w.metadata))
}

// HasInitialState reports whether the initial-state sync file exists in location.
func (w *Workspace) HasInitialState(location string) bool {
	return w.isFile(filepath.Join(location, w.initial))
}

func (w *Workspace) MetadataName() string     { return w.metadata }
func (w *Workspace) InitialStateName() string { return w.initial }

func (w *Workspace) isFile(path string) bool {
	info, err := w.fs.Stat(path)
	return err == nil && !info.IsDir()
}
