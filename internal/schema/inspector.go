package schema

import (
	"fmt"

	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/source"
)

// Describe returns the cursor's column descriptors in source order. A cursor
// exposing no metadata fails with ErrSchemaUnavailable; callers treat that as
// a per-table failure, not a file failure.
func Describe(table string, cur source.Cursor) ([]domain.ColumnDescriptor, error) {
	cols := cur.Columns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s reports no columns", source.ErrSchemaUnavailable, table)
	}
	return cols, nil
}
