package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/granarylabs/granary/internal/config"
)

// MinIOSink stores archive copies in a MinIO bucket.
type MinIOSink struct {
	client   *minio.Client
	bucket   string
	endpoint string
	prefix   string
	useSSL   bool
}

// newMinIOSink creates a MinIO archive sink from the configuration.
func newMinIOSink(cfg *config.S3Config) (*MinIOSink, error) {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOSink{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: endpoint,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		useSSL:   cfg.UseSSL,
	}, nil
}

// Store uploads the source file under prefix/folder/name and returns the
// object URL.
func (m *MinIOSink) Store(ctx context.Context, sourcePath, folder, name string) (string, error) {
	in, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat source file: %w", err)
	}

	key := path.Join(m.prefix, folder, name)
	opts := minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}
	if _, err := m.client.PutObject(ctx, m.bucket, key, in, info.Size(), opts); err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	scheme := "http"
	if m.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.endpoint, m.bucket, key), nil
}

// Close is a no-op for the MinIO client.
func (m *MinIOSink) Close() error {
	return nil
}
