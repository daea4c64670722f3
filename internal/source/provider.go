package source

import (
	"context"
	"errors"

	"github.com/granarylabs/granary/internal/domain"
)

// Sentinel errors reported by providers. Callers classify them to decide
// between skipping a file and failing it.
var (
	// ErrFileLocked indicates the source file is exclusively held by another
	// process and cannot be opened right now.
	ErrFileLocked = errors.New("source file is locked")

	// ErrSchemaUnavailable indicates the file was opened but its table layout
	// could not be read.
	ErrSchemaUnavailable = errors.New("source schema unavailable")
)

// Provider opens source files of one format and exposes their tabular content.
type Provider interface {
	// GetFormatID returns the unique identifier for this format.
	// Parameters: none.
	// Returns:
	//   - string: stable format identifier (e.g. "sqlite", "csv").
	GetFormatID() string

	// GetDisplayName returns a human-readable name for this format.
	// Parameters: none.
	// Returns:
	//   - string: display-friendly format name.
	GetDisplayName() string

	// Extensions returns the file extensions this provider claims,
	// lower-cased and including the leading dot.
	// Parameters: none.
	// Returns:
	//   - []string: claimed extensions.
	Extensions() []string

	// Open opens the file at path for reading.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - path: absolute path of the source file.
	// Returns:
	//   - Connection: handle for table enumeration and reading.
	//   - error: ErrFileLocked when the file is held elsewhere, or another
	//     error when the file cannot be opened.
	Open(ctx context.Context, path string) (Connection, error)
}

// Connection is an open source file. Connections are not safe for concurrent
// use; each worker opens its own.
type Connection interface {
	// Tables lists the user tables in the file, excluding any internal
	// bookkeeping tables of the format itself.
	Tables(ctx context.Context) ([]string, error)

	// OpenCursor starts a streaming read over one table.
	OpenCursor(ctx context.Context, table string) (Cursor, error)

	// Close releases the underlying file handle.
	Close() error
}

// Cursor streams the rows of a single table in source order.
type Cursor interface {
	// Columns describes the table's columns. The slice order matches the
	// value order returned by Next.
	Columns() []domain.ColumnDescriptor

	// Next returns the next row, or io.EOF after the last one. Values use
	// Go types matching the column's logical type; nil means SQL NULL.
	Next() ([]interface{}, error)

	// Close releases the cursor.
	Close() error
}
