package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalSink stores archive copies in status-named subfolders of a base
// directory on the local filesystem.
type LocalSink struct {
	root string
}

// newLocalSink creates a local sink rooted at the given directory. The
// directory is created lazily on first store.
func newLocalSink(root string) *LocalSink {
	return &LocalSink{root: root}
}

// Store copies the source file to root/folder/name and returns the
// destination path.
func (s *LocalSink) Store(ctx context.Context, sourcePath, folder, name string) (string, error) {
	targetDir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive dir: %w", err)
	}

	dest := filepath.Join(targetDir, name)
	if err := copyFile(sourcePath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// cleanupAged deletes archived copies modified before the cutoff and
// returns how many were removed. Subfolders themselves are kept.
func (s *LocalSink) cleanupAged(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read archive dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		dir := filepath.Join(s.root, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(filepath.Join(dir, f.Name())); err == nil {
					removed++
				}
			}
		}
	}
	return removed, nil
}

// Close is a no-op for the local sink.
func (s *LocalSink) Close() error {
	return nil
}
