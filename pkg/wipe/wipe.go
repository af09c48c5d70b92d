// Package wipe maintains the registry of protected paths and performs
// secure overwrite-then-delete of their contents when destruction is
// triggered. File contents are overwritten with random data and synced to
// durable storage before the file is unlinked, so a crash mid-wipe leaves
// destroyed content behind, never recoverable plaintext.
package wipe

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Status of a single registered path after one destruct invocation.
type Status string

const (
	// StatusWiped: contents overwritten, synced and removed.
	StatusWiped Status = "wiped"
	// StatusSkipped: the path no longer exists. Repeated destructs over
	// already-destroyed paths report skipped, never an error.
	StatusSkipped Status = "skipped"
	// StatusFailed: the path could not be fully wiped; Reason carries the
	// per-path detail. Other paths in the batch are unaffected.
	StatusFailed Status = "failed"
)

// PathResult is one path's entry in a destruct outcome.
type PathResult struct {
	Path   string
	Status Status
	Reason string
}

// Outcome reports one destruct invocation. EventID correlates the
// callback payload with log output. Results are ordered by path.
type Outcome struct {
	EventID string
	Results []PathResult
}

// Wiped returns the paths that were successfully destroyed.
func (o Outcome) Wiped() []string {
	var paths []string
	for _, r := range o.Results {
		if r.Status == StatusWiped {
			paths = append(paths, r.Path)
		}
	}
	return paths
}

// Manager holds the protected-path set and executes destruction. The
// registry and the destruct path share one mutex so a wipe in progress
// can never interleave with registration or a second wipe.
type Manager struct {
	mu     sync.Mutex
	paths  map[string]struct{}
	passes int
	log    zerolog.Logger
}

// NewManager creates a manager performing the given number of random
// overwrite passes per file. Values below one are raised to one.
func NewManager(passes int, log zerolog.Logger) *Manager {
	if passes < 1 {
		passes = 1
	}
	return &Manager{
		paths:  make(map[string]struct{}),
		passes: passes,
		log:    log,
	}
}

// Register adds path to the protected set. Registration is idempotent;
// the set never contains duplicates.
func (m *Manager) Register(path string) {
	p := filepath.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[p] = struct{}{}
}

// Registered returns a sorted snapshot of the protected set.
func (m *Manager) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedPaths()
}

// Destruct wipes every registered path independently and returns the
// aggregated outcome. A failure on one path is recorded in that path's
// entry and never aborts the rest of the batch. Destruct is idempotent:
// already-missing paths report skipped.
func (m *Manager) Destruct() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Outcome{EventID: uuid.NewString()}
	for _, p := range m.sortedPaths() {
		res := m.destructPath(p)
		switch res.Status {
		case StatusWiped:
			m.log.Info().Str("path", p).Msg("securely wiped")
		case StatusSkipped:
			m.log.Debug().Str("path", p).Msg("protected path not found, skipping")
		case StatusFailed:
			m.log.Warn().Str("path", p).Str("reason", res.Reason).Msg("wipe failed")
		}
		out.Results = append(out.Results, res)
	}
	return out
}

// sortedPaths returns the registered paths in deterministic order.
// Caller holds m.mu.
func (m *Manager) sortedPaths() []string {
	paths := make([]string, 0, len(m.paths))
	for p := range m.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// destructPath wipes a single registered path. Caller holds m.mu.
func (m *Manager) destructPath(path string) PathResult {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return PathResult{Path: path, Status: StatusSkipped, Reason: "not found"}
	}
	if err != nil {
		return failed(path, err)
	}

	switch {
	case info.IsDir():
		if err := m.wipeDir(path); err != nil {
			return failed(path, err)
		}
	case info.Mode().IsRegular():
		if err := m.wipeFile(path, info.Size()); err != nil {
			return failed(path, err)
		}
	default:
		// Symlinks and special files carry no recoverable content of
		// their own; remove without overwriting, never follow.
		if err := os.Remove(path); err != nil {
			return failed(path, err)
		}
	}

	return PathResult{Path: path, Status: StatusWiped}
}

func failed(path string, err error) PathResult {
	reason := err.Error()
	if errors.Is(err, fs.ErrPermission) {
		reason = fmt.Sprintf("permission denied: %v", err)
	}
	return PathResult{Path: path, Status: StatusFailed, Reason: reason}
}

// wipeFile overwrites the file's full current length with random bytes,
// syncs each pass to durable storage, evicts the wiped pages from the
// page cache, then removes the file. The overwrite is fully synced before
// removal is attempted: a crash in between leaves a destroyed-but-present
// file, which is the safe degraded state.
func (m *Manager) wipeFile(path string, size int64) error {
	if size > 0 {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("wipe: open %s for overwrite: %w", path, err)
		}

		if err := m.overwrite(f, size); err != nil {
			f.Close()
			return fmt.Errorf("wipe: overwrite %s: %w", path, err)
		}

		// Best effort: drop the now-overwritten pages from the cache so
		// the random data, not stale plaintext, is what remains anywhere.
		_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED)
		f.Close()
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("wipe: remove %s: %w", path, err)
	}
	return nil
}

// overwrite writes m.passes full-length passes of random data, syncing
// after each pass.
func (m *Manager) overwrite(f *os.File, size int64) error {
	buf := make([]byte, 4096)
	defer Shred(buf)

	for pass := 0; pass < m.passes; pass++ {
		if _, err := f.Seek(0, 0); err != nil {
			return fmt.Errorf("seek failed on pass %d: %w", pass, err)
		}

		remaining := size
		for remaining > 0 {
			n := int64(len(buf))
			if remaining < n {
				n = remaining
			}
			if _, err := rand.Read(buf[:n]); err != nil {
				return fmt.Errorf("rand read failed: %w", err)
			}
			written, err := f.Write(buf[:n])
			if err != nil {
				return fmt.Errorf("write failed on pass %d: %w", pass, err)
			}
			remaining -= int64(written)
		}

		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync failed on pass %d: %w", pass, err)
		}
	}
	return nil
}

// wipeDir depth-first wipes every regular file under dir, then removes
// the emptied tree. Symlinks are removed but never followed. Individual
// failures are collected and the remaining entries still processed.
func (m *Manager) wipeDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("wipe: read directory %s: %w", dir, err)
	}

	var errs []error
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		switch {
		case entry.IsDir():
			if err := m.wipeDir(full); err != nil {
				errs = append(errs, err)
			}
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				errs = append(errs, fmt.Errorf("wipe: stat %s: %w", full, err))
				continue
			}
			if err := m.wipeFile(full, info.Size()); err != nil {
				errs = append(errs, err)
			}
		default:
			if err := os.Remove(full); err != nil {
				errs = append(errs, fmt.Errorf("wipe: remove %s: %w", full, err))
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("wipe: remove directory %s: %w", dir, err)
	}
	return nil
}
