package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/granarylabs/granary/internal/domain"
)

// FileInfo is one entry of a folder snapshot.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Scan lists the regular files directly under folder whose extension matches
// exts (case-insensitive). Subdirectories are not descended into; staging
// layouts put files flat in the drop folder. Paths in the result are
// normalized absolute paths.
func Scan(folder string, exts []string) ([]FileInfo, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read source folder %s: %w", folder, err)
	}

	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = true
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !allowed[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// File disappeared between listing and stat. The next pass
			// will see the folder's current contents.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, FileInfo{
			Path:    domain.NormalizePath(filepath.Join(folder, entry.Name())),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return files, nil
}
