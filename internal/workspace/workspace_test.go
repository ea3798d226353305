package workspace

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasnoah/reprofactory/internal/aggregate"
	"github.com/lucasnoah/reprofactory/internal/state"
)

func touch(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte("x"), 0o644))
}

func newTestWorkspace(t *testing.T, fs afero.Fs, opts Options) *Workspace {
	t.Helper()
	if opts.Root == "" {
		opts.Root = "/repo"
	}
	w, err := New(fs, opts, nil)
	require.NoError(t, err)
	return w
}

func TestIssues(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, d := range []string{"issue-12", "Issue_3", "7", "issue-12-old", "docs", "issue-0"} {
		require.NoError(t, fs.MkdirAll("/repo/"+d, 0o755))
	}
	touch(t, fs, "/repo/issue-99")

	w := newTestWorkspace(t, fs, Options{})
	issues, err := w.Issues()
	require.NoError(t, err)
	assert.Equal(t, []aggregate.Issue{
		{Number: 3, Location: "/repo/Issue_3"},
		{Number: 7, Location: "/repo/7"},
		{Number: 12, Location: "/repo/issue-12"},
	}, issues)
}

func TestIssues_DuplicateNumberFirstWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/repo/5", 0o755))
	require.NoError(t, fs.MkdirAll("/repo/issue-5", 0o755))

	issues, err := newTestWorkspace(t, fs, Options{}).Issues()
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "/repo/5", issues[0].Location)
}

func TestIssues_MissingRoot(t *testing.T) {
	_, err := newTestWorkspace(t, afero.NewMemMapFs(), Options{Root: "/nowhere"}).Issues()
	assert.Error(t, err)
}

func TestNew_BadOptions(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), Options{IssuePattern: `(`}, nil)
	assert.Error(t, err)
	_, err = New(afero.NewMemMapFs(), Options{IssuePattern: `^\d+$`}, nil)
	assert.ErrorContains(t, err, "no capture group")
	_, err = New(afero.NewMemMapFs(), Options{ArtifactPatterns: []string{"[a-"}}, nil)
	assert.Error(t, err)
}

func TestMarkers(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/repo/issue-1", 0o755))
	touch(t, fs, "/repo/issue-2/.wip")
	touch(t, fs, "/repo/issue-3/.gui")
	touch(t, fs, "/repo/issue-3/.ignore")
	require.NoError(t, fs.MkdirAll("/repo/issue-4/.explicit", 0o755))

	w := newTestWorkspace(t, fs, Options{})
	assert.False(t, w.ShouldSkip("/repo/issue-1"))
	assert.Empty(t, w.Reason("/repo/issue-1"))

	assert.True(t, w.ShouldSkip("/repo/issue-2"))
	assert.Equal(t, state.ReasonWIP, w.Reason("/repo/issue-2"))

	// Lookup order follows the marker table, not the file system.
	assert.Equal(t, state.ReasonIgnored, w.Reason("/repo/issue-3"))

	// A directory named like a marker is not a marker.
	assert.False(t, w.ShouldSkip("/repo/issue-4"))
}

func TestMarkers_Custom(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/repo/issue-1/SKIP")
	w := newTestWorkspace(t, fs, Options{Markers: []Marker{{File: "SKIP", Reason: "Manual"}}})
	assert.Equal(t, "Manual", w.Reason("/repo/issue-1"))

	none := newTestWorkspace(t, fs, Options{Markers: []Marker{}})
	assert.False(t, none.ShouldSkip("/repo/issue-1"))
}

func TestListArtifacts(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/repo/issue-1/src/App/App.csproj")
	touch(t, fs, "/repo/issue-1/Lib.csproj")
	touch(t, fs, "/repo/issue-1/bin/Debug/Copy.csproj")
	touch(t, fs, "/repo/issue-1/obj/Gen.csproj")
	touch(t, fs, "/repo/issue-1/.vs/Hidden.csproj")
	touch(t, fs, "/repo/issue-1/readme.md")

	w := newTestWorkspace(t, fs, Options{})
	assert.Equal(t, []string{
		"issue-1/Lib.csproj",
		"issue-1/src/App/App.csproj",
	}, w.ListArtifacts("/repo/issue-1"))

	assert.Empty(t, w.ListArtifacts("/repo/issue-2"))
}

func TestListArtifacts_CustomPatterns(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/repo/issue-1/a.fsproj")
	touch(t, fs, "/repo/issue-1/b.vbproj")
	touch(t, fs, "/repo/issue-1/c.csproj")

	w := newTestWorkspace(t, fs, Options{ArtifactPatterns: []string{"*.fsproj", "*.vbproj"}})
	assert.Equal(t, []string{"issue-1/a.fsproj", "issue-1/b.vbproj"}, w.ListArtifacts("/repo/issue-1"))
}

func TestSyncFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/repo/issue-1/issue.json")
	touch(t, fs, "/repo/issue-1/initial-state.json")
	touch(t, fs, "/repo/issue-2/issue.json")

	w := newTestWorkspace(t, fs, Options{})
	assert.True(t, w.HasMetadata("/repo/issue-1"))
	assert.True(t, w.HasInitialState("/repo/issue-1"))
	assert.True(t, w.HasMetadata("/repo/issue-2"))
	assert.False(t, w.HasInitialState("/repo/issue-2"))
	assert.Equal(t, "issue.json", w.MetadataName())
	assert.Equal(t, "initial-state.json", w.InitialStateName())
}

func TestWorkspaceFeedsResolver(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/repo/issue-1/App.csproj")
	touch(t, fs, "/repo/issue-1/issue.json")

	w := newTestWorkspace(t, fs, Options{})
	s := state.Collect("/repo/issue-1", nil, w, w, w)
	got := state.Resolve(s)
	assert.Equal(t, state.NotSynced, got.State)
	assert.Equal(t, "Missing initial-state.json", got.Reason)
}
