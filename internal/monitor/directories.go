package monitor

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"filescleaner/internal/config"
	"filescleaner/internal/scanner"
	"filescleaner/internal/watch"
)

// BuildDirectories constructs a watch.Directory for every configured path.
// A nil fsys uses the host filesystem.
func BuildDirectories(cfg *config.Config, fsys afero.Fs, logger *slog.Logger) ([]*watch.Directory, error) {
	specs, err := cfg.Watched()
	if err != nil {
		return nil, err
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	scan := scanner.New(fsys, logger)

	dirs := make([]*watch.Directory, 0, len(specs))
	for _, spec := range specs {
		dir, err := watch.New(watch.Settings{
			Path:         spec.Path,
			MaxSize:      spec.MaxSize,
			DiskSize:     spec.DiskSize,
			ScanInterval: cfg.ScanInterval(),
		}, watch.Deps{
			Scanner: scan,
			Remover: fsys,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("configure %s: %w", spec.Path, err)
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}
