// Package snapshot reads and writes result snapshots: JSON arrays of step
// results stored on disk as current.json and baseline.json.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/reprofactory/internal/result"
)

// Read parses the snapshot at path. A missing file or content that is not a
// JSON array is returned as an error. Rows that fail to decode are skipped
// and logged through slog.Default.
func Read(fsys afero.Fs, path string) (result.Snapshot, error) {
	snap, _, err := read(fsys, path, slog.Default())
	return snap, err
}

func read(fsys afero.Fs, path string, logger *slog.Logger) (result.Snapshot, []byte, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, nil, err
	}
	snap, err := Decode(data, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return snap, data, nil
}

// Decode parses a snapshot document row by row. Only a document that is not
// a JSON array fails; a row that does not decode is logged with its index
// and skipped, as are null rows.
func Decode(data []byte, logger *slog.Logger) (result.Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	snap := make(result.Snapshot, 0, len(raw))
	for i, msg := range raw {
		if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			continue
		}
		var row result.StepResult
		if err := json.Unmarshal(msg, &row); err != nil {
			logger.Warn("snapshot row skipped", "index", i, "error", err)
			continue
		}
		snap = append(snap, row)
	}
	return snap, nil
}

// Load reads the snapshot at path and never fails: a missing file or
// malformed content yields an empty snapshot and a log line.
func Load(fsys afero.Fs, path string, logger *slog.Logger) result.Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	snap, _, err := read(fsys, path, logger.With("path", path))
	switch {
	case err == nil:
		return snap
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("snapshot missing", "path", path)
	default:
		logger.Warn("snapshot unreadable, treating as empty", "path", path, "error", err)
	}
	return result.Snapshot{}
}

// Pair holds the two snapshots an evaluation compares.
type Pair struct {
	Current  result.Snapshot
	Baseline result.Snapshot
}

// LoadPair loads the current and baseline snapshots concurrently.
func LoadPair(ctx context.Context, fsys afero.Fs, currentPath, baselinePath string, logger *slog.Logger) (Pair, error) {
	var p Pair
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.Current = Load(fsys, currentPath, logger)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.Baseline = Load(fsys, baselinePath, logger)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Pair{}, fmt.Errorf("load snapshots: %w", err)
	}
	return p, nil
}

// Write stores snap as pretty-printed JSON at path. The file is replaced
// atomically so readers never observe a partial snapshot.
func Write(fsys afero.Fs, path string, snap result.Snapshot) error {
	if snap == nil {
		snap = result.Snapshot{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')
	return WriteAtomic(fsys, path, data)
}

// Promote accepts the current snapshot as the new baseline. The current
// snapshot must parse; an unreadable current file leaves the baseline as is.
// The bytes are copied unchanged. It returns the number of rows that decode.
func Promote(fsys afero.Fs, currentPath, baselinePath string) (int, error) {
	snap, data, err := read(fsys, currentPath, slog.Default())
	if err != nil {
		return 0, fmt.Errorf("read current snapshot: %w", err)
	}
	if err := WriteAtomic(fsys, baselinePath, data); err != nil {
		return 0, fmt.Errorf("write baseline snapshot: %w", err)
	}
	return len(snap), nil
}

// WriteAtomic writes data to a temp file in the target directory, then
// renames it over path.
func WriteAtomic(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fsys, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if tmpName != "" {
			fsys.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := fsys.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	tmpName = ""
	return nil
}
