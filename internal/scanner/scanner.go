// Package scanner walks a watched directory tree and builds its ordered file
// inventory.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"filescleaner/internal/inventory"
	"filescleaner/internal/logging"
)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("scan root is not a directory")

// Stats summarises one walk.
type Stats struct {
	Files       int
	Skipped     int
	Directories int
}

// Scanner builds inventories from a filesystem.
type Scanner struct {
	fs     afero.Fs
	native bool
	logger *slog.Logger
}

// New returns a scanner over fsys. A nil fsys scans the host filesystem.
func New(fsys afero.Fs, logger *slog.Logger) *Scanner {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	_, native := fsys.(*afero.OsFs)
	return &Scanner{
		fs:     fsys,
		native: native,
		logger: logging.NewComponentLogger(logger, "scanner"),
	}
}

// Scan walks root without following symbolic links and records every regular
// file. A root that is itself a symlink is resolved first, but records keep
// paths under root as given. Unreadable subtrees and files that vanish
// mid-walk are skipped; only a failure to stat root itself is returned.
func (s *Scanner) Scan(ctx context.Context, root string) (*inventory.Inventory, Stats, error) {
	var stats Stats

	info, err := s.fs.Stat(root)
	if err != nil {
		return nil, stats, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, stats, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	walkRoot, err := s.resolveRoot(root)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve %s: %w", root, err)
	}

	var records []inventory.FileRecord
	walkErr := afero.Walk(s.fs, walkRoot, func(path string, info fs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.skip(path, info, err, &stats)
			return nil
		}
		if info.IsDir() {
			stats.Directories++
			return nil
		}
		if !info.Mode().IsRegular() {
			stats.Skipped++
			return nil
		}
		records = append(records, inventory.FileRecord{
			Path:      rebase(path, walkRoot, root),
			Size:      info.Size(),
			CreatedAt: createdAt(path, info, s.native),
		})
		stats.Files++
		return nil
	})
	if walkErr != nil {
		return nil, stats, walkErr
	}

	return inventory.Build(records), stats, nil
}

// maxLinkHops bounds symlink chains on filesystems without EvalSymlinks.
const maxLinkHops = 40

// resolveRoot follows root to the directory it names when root is a symlink.
// afero.Walk lstats its root, so an unresolved link would be skipped whole.
func (s *Scanner) resolveRoot(root string) (string, error) {
	if s.native {
		return filepath.EvalSymlinks(root)
	}
	lstater, ok := s.fs.(afero.Lstater)
	if !ok {
		return root, nil
	}
	reader, ok := s.fs.(afero.LinkReader)
	if !ok {
		return root, nil
	}

	current := root
	for hop := 0; hop < maxLinkHops; hop++ {
		info, _, err := lstater.LstatIfPossible(current)
		if err != nil {
			return "", err
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			return current, nil
		}
		target, err := reader.ReadlinkIfPossible(current)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = filepath.Clean(target)
	}
	return "", fmt.Errorf("too many levels of symbolic links")
}

func rebase(path, from, to string) string {
	if from == to {
		return path
	}
	rel, err := filepath.Rel(from, path)
	if err != nil {
		return path
	}
	return filepath.Join(to, rel)
}

func (s *Scanner) skip(path string, info fs.FileInfo, err error, stats *Stats) {
	stats.Skipped++
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("entry vanished during scan", logging.String(logging.FieldPath, path))
		return
	}
	if info != nil && info.IsDir() {
		logging.WarnWithContext(s.logger, "skipping unreadable directory", "scan_directory_unreadable",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "grant the cleaner read and execute access to this directory"),
		)
		return
	}
	logging.WarnWithContext(s.logger, "skipping unreadable entry", "scan_entry_unreadable",
		logging.String(logging.FieldPath, filepath.Clean(path)),
		logging.Error(err),
	)
}
