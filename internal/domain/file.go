package domain

import (
	"path/filepath"
	"time"
)

// FileStatus represents the processing status of a tracked source file.
// Values include FileStatusPending, FileStatusProcessing, FileStatusSuccess,
// FileStatusPartial, FileStatusFailed, and FileStatusSkipped.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusSuccess    FileStatus = "success"
	FileStatusPartial    FileStatus = "partial_success"
	FileStatusFailed     FileStatus = "failed"
	FileStatusSkipped    FileStatus = "skipped"
)

// IsTerminal reports whether the status is a final outcome for the current
// version of the file. Terminal records are re-armed only when the source
// file's modification time advances.
func (s FileStatus) IsTerminal() bool {
	switch s {
	case FileStatusSuccess, FileStatusPartial, FileStatusFailed, FileStatusSkipped:
		return true
	}
	return false
}

// FileRecord is the durable status entry for one source file. The normalized
// absolute path is the unique key; at most one record exists per path.
type FileRecord struct {
	Path            string     `json:"path"`
	Status          FileStatus `json:"status"`
	FileSize        int64      `json:"file_size"`
	LastModified    time.Time  `json:"last_modified"`
	ProcessTime     *time.Time `json:"process_time,omitempty"`
	RetryCount      int        `json:"retry_count"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	TableCount      int        `json:"table_count"`
	ImportedRows    int64      `json:"imported_rows"`
	DestinationPath string     `json:"destination_path,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Eligible reports whether the record should be picked up by the next pass:
// pending records always, failed records while their retry budget lasts.
func (r *FileRecord) Eligible(maxRetries int) bool {
	switch r.Status {
	case FileStatusPending:
		return true
	case FileStatusFailed:
		return r.RetryCount < maxRetries
	}
	return false
}

// NormalizePath converts a path to its canonical absolute form used as the
// FileRecord key. Relative paths are resolved against the working directory.
func NormalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}
