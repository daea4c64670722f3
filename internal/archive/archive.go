package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/granarylabs/granary/internal/config"
	"github.com/granarylabs/granary/internal/domain"
)

// Sink stores a copy of a processed drop file under a label such as
// "success" or "failed". The original file is never touched.
type Sink interface {
	// Store copies the file at sourcePath under folder/name and returns
	// the destination location.
	Store(ctx context.Context, sourcePath, folder, name string) (string, error)

	// Close releases any resources held by the sink.
	Close() error
}

// agedCleaner is implemented by sinks that can purge old copies. Object
// store backends leave retention to bucket lifecycle rules.
type agedCleaner interface {
	cleanupAged(ctx context.Context, cutoff time.Time) (int, error)
}

// Archiver copies terminal files into status-named folders of the
// configured sink and stages failed files for retry. Copies carry a
// timestamp suffix so repeated imports of the same file never collide.
type Archiver struct {
	sink     Sink
	retryDir string
	now      func() time.Time
}

// New creates an Archiver backed by the configured sink.
// Parameters:
//   - cfg: archive configuration including backend selection and credentials.
// Returns:
//   - *Archiver: initialized archiver.
//   - error: non-nil if the backend is unknown or cannot be created.
func New(cfg *config.ArchiveConfig) (*Archiver, error) {
	sink, err := newSink(cfg)
	if err != nil {
		return nil, err
	}

	return &Archiver{
		sink:     sink,
		retryDir: cfg.RetryDir,
		now:      time.Now,
	}, nil
}

// newSink selects the sink implementation from the configuration.
func newSink(cfg *config.ArchiveConfig) (Sink, error) {
	switch cfg.Backend {
	case "local":
		return newLocalSink(cfg.Dir), nil
	case "s3":
		return newS3Sink(&cfg.S3)
	case "minio":
		return newMinIOSink(&cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive backend: %q", cfg.Backend)
	}
}

// Archive copies the source file into the folder named after its terminal
// status and returns the destination location.
func (a *Archiver) Archive(ctx context.Context, sourcePath string, status domain.FileStatus) (string, error) {
	name := stampName(filepath.Base(sourcePath), a.now())
	dest, err := a.sink.Store(ctx, sourcePath, string(status), name)
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", sourcePath, err)
	}
	return dest, nil
}

// StageRetry copies a failed file into the retry staging folder under its
// original name, replacing any copy from an earlier attempt. Staging is
// always a local folder so operators can re-drop from it directly.
func (a *Archiver) StageRetry(ctx context.Context, sourcePath string) (string, error) {
	if err := os.MkdirAll(a.retryDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create retry dir: %w", err)
	}

	dest := filepath.Join(a.retryDir, filepath.Base(sourcePath))
	if err := copyFile(sourcePath, dest); err != nil {
		return "", fmt.Errorf("failed to stage %s for retry: %w", sourcePath, err)
	}
	return dest, nil
}

// CleanupAged removes archived copies older than the retention window.
// Returns the number of copies removed. Sinks without local retention
// report zero.
func (a *Archiver) CleanupAged(ctx context.Context, olderThan time.Duration) (int, error) {
	cleaner, ok := a.sink.(agedCleaner)
	if !ok {
		return 0, nil
	}
	return cleaner.cleanupAged(ctx, a.now().Add(-olderThan))
}

// Close releases the underlying sink.
func (a *Archiver) Close() error {
	return a.sink.Close()
}

// stampName inserts a timestamp between the file stem and its extension.
func stampName(base string, at time.Time) string {
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return fmt.Sprintf("%s_%s%s", stem, at.Format("20060102_150405"), ext)
}

// copyFile copies src to dest, truncating any existing file. The source
// is opened read-only and left in place.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	return out.Close()
}
