// Package archive relocates rotated log files out of the working directory.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/pratititech/ai-service/internal/rotate"
)

// Archiver moves every file of SourceDir whose name starts with BaseName,
// except BaseName itself, into Dir. Nothing else in SourceDir is touched.
type Archiver struct {
	SourceDir string
	BaseName  string
	Dir       string
	// Layout is the backup suffix layout used to recognise dated backups in Dir.
	Layout string
	// Keep bounds the dated backups retained in Dir; 0 keeps all.
	Keep int
}

// AfterRotate is a rotate.Hook.
func (a *Archiver) AfterRotate(rotate.Rotation) error {
	_, err := a.Archive()
	return err
}

// Archive moves matching files and prunes Dir. It returns the new paths of
// the moved files. A failed move does not stop the remaining ones.
func (a *Archiver) Archive() ([]string, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	same, err := sameDir(a.SourceDir, a.Dir)
	if err != nil {
		return nil, err
	}

	var moved []string
	var errs error
	if !same {
		moved, errs = a.move()
	}

	if a.Keep > 0 {
		layout := a.Layout
		if layout == "" {
			layout = rotate.Midnight.Layout()
		}
		if err := rotate.Prune(a.Dir, a.BaseName, layout, a.Keep); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("prune archive: %w", err))
		}
	}

	return moved, errs
}

func (a *Archiver) move() ([]string, error) {
	entries, err := os.ReadDir(a.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", a.SourceDir, err)
	}

	var moved []string
	var errs error
	for _, entry := range entries {
		name := entry.Name()
		if name == a.BaseName || !strings.HasPrefix(name, a.BaseName) || !entry.Type().IsRegular() {
			continue
		}

		dst := filepath.Join(a.Dir, name)
		if err := os.Rename(filepath.Join(a.SourceDir, name), dst); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("move %s: %w", name, err))
			continue
		}
		moved = append(moved, dst)
	}

	return moved, errs
}

func sameDir(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", a, err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", b, err)
	}
	return absA == absB, nil
}
