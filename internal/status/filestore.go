package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/granarylabs/granary/internal/domain"
)

// FileBackend stores records as a single JSON document, replaced atomically
// via a temp file and rename.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend writing to path. The parent directory is
// created on first write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// ReadAll loads the status document. A missing file is an empty state, not an
// error.
func (b *FileBackend) ReadAll(ctx context.Context) ([]domain.FileRecord, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status file %s: %w", b.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []domain.FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse status file %s: %w", b.path, err)
	}
	return records, nil
}

// WriteAll replaces the status document. The new content lands in a temp file
// first so a crash never leaves a half-written document behind.
func (b *FileBackend) WriteAll(ctx context.Context, records []domain.FileRecord) error {
	if records == nil {
		records = []domain.FileRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status records: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return fmt.Errorf("failed to create status temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write status temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close status temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace status file %s: %w", b.path, err)
	}
	return nil
}
