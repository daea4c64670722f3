package status

import (
	"context"

	"github.com/granarylabs/granary/internal/domain"
)

// Backend persists the full set of file records. Implementations replace the
// stored set wholesale on every write; the store above them owns merging and
// transitions.
type Backend interface {
	// ReadAll loads every persisted record. A backend with no prior state
	// returns an empty slice and no error.
	ReadAll(ctx context.Context) ([]domain.FileRecord, error)

	// WriteAll replaces the persisted set with records. The replacement is
	// atomic: a crash mid-write must leave either the old or the new set,
	// never a mix.
	WriteAll(ctx context.Context, records []domain.FileRecord) error
}
