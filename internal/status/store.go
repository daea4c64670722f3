package status

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/logger"
	"github.com/granarylabs/granary/internal/source"
)

// Store is the durable file-status map. All mutations go through its
// transition methods, which hold one mutex and persist after every change, so
// concurrent workers never interleave partial writes.
type Store struct {
	mu         sync.Mutex
	backend    Backend
	records    map[string]*domain.FileRecord
	maxRetries int
}

// NewStore creates a store over the given backend. maxRetries bounds how
// often a failed file stays eligible.
func NewStore(backend Backend, maxRetries int) *Store {
	return &Store{
		backend:    backend,
		records:    make(map[string]*domain.FileRecord),
		maxRetries: maxRetries,
	}
}

// Load reads persisted records. Records for files that no longer exist are
// discarded, and records stuck in Processing from a dead process are reset to
// Pending. A backend read failure degrades to a cold start instead of
// blocking the pass.
func (s *Store) Load(ctx context.Context) {
	records, err := s.backend.ReadAll(ctx)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to load status records, starting empty: %v", err)
		records = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*domain.FileRecord, len(records))
	for i := range records {
		rec := records[i]
		if _, err := os.Stat(rec.Path); err != nil {
			logger.CtxDebug(ctx, "Dropping status record for missing file %s", rec.Path)
			continue
		}
		if rec.Status == domain.FileStatusProcessing {
			// The process that owned this record is gone.
			rec.Status = domain.FileStatusPending
			rec.UpdatedAt = time.Now()
		}
		s.records[rec.Path] = &rec
	}
}

// Reconcile merges a folder snapshot into the record set: unseen files become
// Pending, and files whose modification time advanced are re-armed as Pending
// with outcome fields cleared. Records whose file left the folder are kept;
// Load discards them on the next process start and Cleanup purges aged ones.
func (s *Store) Reconcile(ctx context.Context, files []source.FileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	for _, fi := range files {
		rec, ok := s.records[fi.Path]
		if !ok {
			s.records[fi.Path] = &domain.FileRecord{
				Path:         fi.Path,
				Status:       domain.FileStatusPending,
				FileSize:     fi.Size,
				LastModified: fi.ModTime,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			continue
		}

		if fi.ModTime.After(rec.LastModified) {
			// New file version: prior outcome no longer applies.
			rec.Status = domain.FileStatusPending
			rec.ErrorMessage = ""
			rec.RetryCount = 0
			rec.TableCount = 0
			rec.ImportedRows = 0
			rec.DestinationPath = ""
			rec.LastModified = fi.ModTime
			rec.UpdatedAt = now
		}
		rec.FileSize = fi.Size
	}

	s.persistLocked(ctx)
}

// Cleanup removes terminal records older than olderThan whose source file is
// gone from disk, and returns how many were removed. Records whose file still
// exists are always kept, so an unchanged file is never re-imported.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for path, rec := range s.records {
		if !rec.Status.IsTerminal() || rec.UpdatedAt.After(cutoff) {
			continue
		}
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		delete(s.records, path)
		removed++
	}

	if removed > 0 {
		logger.CtxInfo(ctx, "Removed %d aged status records", removed)
		s.persistLocked(ctx)
	}
	return removed
}

// Eligible returns the files the next pass should process: Pending records
// plus Failed records with retry budget left, ordered by path.
func (s *Store) Eligible() []domain.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.FileRecord
	for _, rec := range s.records {
		if rec.Eligible(s.maxRetries) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Get returns a copy of one record.
func (s *Store) Get(path string) (domain.FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	if !ok {
		return domain.FileRecord{}, false
	}
	return *rec, true
}

// All returns copies of every record, ordered by path.
func (s *Store) All() []domain.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Stats counts records per status.
func (s *Store) Stats() map[domain.FileStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[domain.FileStatus]int)
	for _, rec := range s.records {
		stats[rec.Status]++
	}
	return stats
}

// MaxRetries returns the configured retry bound.
func (s *Store) MaxRetries() int {
	return s.maxRetries
}

// MarkProcessing transitions a file to Processing at the start of an attempt.
func (s *Store) MarkProcessing(ctx context.Context, path string) (domain.FileRecord, error) {
	return s.transition(ctx, path, func(rec *domain.FileRecord, now time.Time) {
		rec.Status = domain.FileStatusProcessing
		rec.ProcessTime = &now
	})
}

// MarkSuccess records a fully successful import and clears retry state.
func (s *Store) MarkSuccess(ctx context.Context, path string, tableCount int, rows int64) (domain.FileRecord, error) {
	return s.transition(ctx, path, func(rec *domain.FileRecord, now time.Time) {
		rec.Status = domain.FileStatusSuccess
		rec.TableCount = tableCount
		rec.ImportedRows = rows
		rec.ErrorMessage = ""
		rec.RetryCount = 0
	})
}

// MarkPartial records an import where some tables failed. The message
// summarizes the failed tables.
func (s *Store) MarkPartial(ctx context.Context, path, message string, tableCount int, rows int64) (domain.FileRecord, error) {
	return s.transition(ctx, path, func(rec *domain.FileRecord, now time.Time) {
		rec.Status = domain.FileStatusPartial
		rec.TableCount = tableCount
		rec.ImportedRows = rows
		rec.ErrorMessage = message
	})
}

// MarkFailed records a failed attempt and spends one retry.
func (s *Store) MarkFailed(ctx context.Context, path, message string) (domain.FileRecord, error) {
	return s.transition(ctx, path, func(rec *domain.FileRecord, now time.Time) {
		rec.Status = domain.FileStatusFailed
		rec.ErrorMessage = message
		rec.RetryCount++
	})
}

// MarkSkipped records that the file was not processed this pass. Skipping is
// not a failure, so the retry counter is untouched.
func (s *Store) MarkSkipped(ctx context.Context, path, reason string) (domain.FileRecord, error) {
	return s.transition(ctx, path, func(rec *domain.FileRecord, now time.Time) {
		rec.Status = domain.FileStatusSkipped
		rec.ErrorMessage = reason
	})
}

// SetDestination records where the archival copy of the file landed.
func (s *Store) SetDestination(ctx context.Context, path, destination string) (domain.FileRecord, error) {
	return s.transition(ctx, path, func(rec *domain.FileRecord, now time.Time) {
		rec.DestinationPath = destination
	})
}

// transition applies one atomic read-modify-write to a single record and
// persists the full set.
func (s *Store) transition(ctx context.Context, path string, mutate func(*domain.FileRecord, time.Time)) (domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[path]
	if !ok {
		return domain.FileRecord{}, fmt.Errorf("no status record for %s", path)
	}

	now := time.Now()
	mutate(rec, now)
	rec.UpdatedAt = now

	s.persistLocked(ctx)
	return *rec, nil
}

// persistLocked writes the full record set through the backend. A failed
// write is retried once and then surfaced as a warning; the in-memory state
// stays authoritative for this run.
func (s *Store) persistLocked(ctx context.Context) {
	records := make([]domain.FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	if err := s.backend.WriteAll(ctx, records); err != nil {
		if err = s.backend.WriteAll(ctx, records); err != nil {
			logger.CtxWarn(ctx, "Failed to persist status records: %v", err)
		}
	}
}
