package render

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/dustmap/internal/fsutil"
)

// WriteFile creates path on fsys, including parent directories, and
// streams draw's output into it.
func WriteFile(fsys fsutil.FileSystem, path string, draw func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := draw(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
