package status

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/granarylabs/granary/internal/config"
	"github.com/granarylabs/granary/internal/domain"
)

// RedisBackend stores records in one Redis hash, path → JSON record. The hash
// is replaced inside a MULTI/EXEC pipeline so readers never observe a partial
// set.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend connects a backend to the configured Redis instance.
func NewRedisBackend(cfg *config.RedisConfig) *RedisBackend {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisBackend{client: client, key: cfg.Key}
}

// NewRedisBackendWithClient wraps an existing client. Used by tests.
func NewRedisBackendWithClient(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

// ReadAll loads every record from the hash.
func (b *RedisBackend) ReadAll(ctx context.Context) ([]domain.FileRecord, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read status hash %s: %w", b.key, err)
	}

	records := make([]domain.FileRecord, 0, len(fields))
	for path, raw := range fields {
		var rec domain.FileRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to parse status record for %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteAll replaces the hash with the given records.
func (b *RedisBackend) WriteAll(ctx context.Context, records []domain.FileRecord) error {
	fields := make(map[string]interface{}, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode status record for %s: %w", rec.Path, err)
		}
		fields[rec.Path] = raw
	}

	pipe := b.client.TxPipeline()
	pipe.Del(ctx, b.key)
	if len(fields) > 0 {
		pipe.HSet(ctx, b.key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write status hash %s: %w", b.key, err)
	}
	return nil
}

// Close releases the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
