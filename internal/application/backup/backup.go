// Package backup keeps rolling snapshots of the ledger and category files.
// A snapshot is taken automatically before destructive operations and can
// be restored later, so a bad import or a corrupted file never costs data.
package backup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spendwell/spendwell/internal/infrastructure/atomicfile"
)

// stampLayout names snapshot directories. Lexicographic order equals
// chronological order, and the fractional seconds keep two snapshots in
// the same second from colliding.
const stampLayout = "20060102_150405.000000"

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// ErrNoSuchSnapshot means the named snapshot does not exist.
var ErrNoSuchSnapshot = errors.New("no such backup snapshot")

// Options configures the backup service.
type Options struct {
	// Dir holds one subdirectory per snapshot.
	Dir string
	// Keep bounds how many snapshots are retained. Older ones are pruned
	// after each new snapshot. Defaults to 5.
	Keep int
}

// Snapshot describes one retained backup.
type Snapshot struct {
	Name      string
	CreatedAt time.Time
	Files     int
}

// Service copies data files into timestamped snapshot directories and
// restores them. It backs up whichever of its paths exist; the connection
// file with its tokens is deliberately not among them.
type Service struct {
	dir    string
	keep   int
	paths  []string
	logger *slog.Logger
	now    func() time.Time
}

// New creates a backup service over the given data files.
func New(opts Options, paths []string, logger *slog.Logger) *Service {
	if opts.Keep <= 0 {
		opts.Keep = 5
	}
	return &Service{
		dir:    opts.Dir,
		keep:   opts.Keep,
		paths:  paths,
		logger: logger,
		now:    time.Now,
	}
}

// Create snapshots every data file that exists and prunes snapshots beyond
// the retention limit. Returns the snapshot name, or "" when no data file
// exists yet.
func (s *Service) Create() (string, error) {
	name := s.now().UTC().Format(stampLayout)
	target := filepath.Join(s.dir, name)

	copied := 0
	for _, path := range s.paths {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		if copied == 0 {
			if err := os.MkdirAll(target, dirPerm); err != nil {
				return "", fmt.Errorf("create snapshot dir: %w", err)
			}
		}
		dest := filepath.Join(target, filepath.Base(path))
		if err := os.WriteFile(dest, data, filePerm); err != nil {
			return "", fmt.Errorf("write %s: %w", dest, err)
		}
		copied++
	}
	if copied == 0 {
		s.logger.Debug("No data files to back up")
		return "", nil
	}

	if err := s.prune(); err != nil {
		s.logger.Warn("Pruning old backups failed", "error", err)
	}
	s.logger.Info("Backup created", "name", name, "files", copied)
	return name, nil
}

// List returns the retained snapshots, newest first. Directories that do
// not look like snapshots are ignored.
func (s *Service) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var out []Snapshot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		created, err := time.Parse(stampLayout, e.Name())
		if err != nil {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", e.Name(), err)
		}
		out = append(out, Snapshot{Name: e.Name(), CreatedAt: created, Files: len(files)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// Restore copies a snapshot's files back over the live data files. The
// current state is snapshotted first, so a restore can itself be undone.
// A data file the snapshot predates is left as it is.
func (s *Service) Restore(name string) error {
	src := filepath.Join(s.dir, name)
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoSuchSnapshot, name)
	}

	// Read the snapshot up front; the pre-restore snapshot below may prune
	// the directory being restored once it falls past the retention limit.
	contents := make(map[string][]byte)
	for _, path := range s.paths {
		data, err := os.ReadFile(filepath.Join(src, filepath.Base(path)))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read snapshot %s: %w", name, err)
		}
		contents[path] = data
	}

	if _, err := s.Create(); err != nil {
		return fmt.Errorf("snapshot current state before restore: %w", err)
	}

	for path, data := range contents {
		if err := atomicfile.WriteBytes(path, filePerm, data); err != nil {
			return fmt.Errorf("restore %s: %w", path, err)
		}
	}
	s.logger.Info("Backup restored", "name", name, "files", len(contents))
	return nil
}

// prune removes the oldest snapshots beyond the retention limit.
func (s *Service) prune() error {
	snaps, err := s.List()
	if err != nil {
		return err
	}
	if len(snaps) <= s.keep {
		return nil
	}
	for _, snap := range snaps[s.keep:] {
		if err := os.RemoveAll(filepath.Join(s.dir, snap.Name)); err != nil {
			return err
		}
	}
	s.logger.Debug("Pruned old backups", "removed", len(snaps)-s.keep)
	return nil
}
