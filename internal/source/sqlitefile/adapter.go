package sqlitefile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/source"
)

const (
	FormatID   = "sqlite"
	FormatName = "SQLite database"
)

// busyTimeoutMs bounds how long a read waits on a writer's lock before the
// file is reported as locked.
const busyTimeoutMs = 1000

// Adapter implements the source Provider interface for SQLite database files.
type Adapter struct {
	extensions []string
}

// NewAdapter creates a new SQLite file adapter. With no arguments it claims
// the common SQLite extensions.
func NewAdapter(extensions ...string) *Adapter {
	if len(extensions) == 0 {
		extensions = []string{".sqlite", ".sqlite3", ".db"}
	}
	return &Adapter{extensions: extensions}
}

// GetFormatID returns the unique identifier for this format
func (a *Adapter) GetFormatID() string {
	return FormatID
}

// GetDisplayName returns a human-readable name for this format
func (a *Adapter) GetDisplayName() string {
	return FormatName
}

// Extensions returns the file extensions this adapter claims
func (a *Adapter) Extensions() []string {
	return a.extensions
}

// Open opens the database file read-only and verifies it is readable
func (a *Adapter) Open(ctx context.Context, path string) (source.Connection, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// A single connection keeps every cursor on the same file handle.
	db.SetMaxOpenConns(1)

	// sql.Open is lazy; force a real read so lock and corruption errors
	// surface here instead of during table enumeration.
	if _, err := db.ExecContext(ctx, "PRAGMA schema_version"); err != nil {
		db.Close()
		return nil, classify(err)
	}

	return &conn{db: db, path: path}, nil
}

// conn is an open SQLite file.
type conn struct {
	db   *sql.DB
	path string
}

// Tables lists user tables, excluding SQLite's internal bookkeeping tables
func (c *conn) Tables(ctx context.Context) ([]string, error) {
	const q = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %s: %w", c.path, classify(err))
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables in %s: %w", c.path, classify(err))
	}
	return tables, nil
}

// OpenCursor reads the table schema and starts a streaming row query
func (c *conn) OpenCursor(ctx context.Context, table string) (source.Cursor, error) {
	cols, err := c.describe(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s has no columns", source.ErrSchemaUnavailable, table)
	}

	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = quoteIdent(col.Name)
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), quoteIdent(table))
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, classify(err))
	}

	return &cursor{rows: rows, cols: cols}, nil
}

// Close releases the underlying file handle
func (c *conn) Close() error {
	return c.db.Close()
}

// describe builds column descriptors from PRAGMA table_info.
func (c *conn) describe(ctx context.Context, table string) ([]domain.ColumnDescriptor, error) {
	q := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table))
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, classify(err))
	}
	defer rows.Close()

	var cols []domain.ColumnDescriptor
	pkCount := 0
	pkDecl := ""
	for rows.Next() {
		var (
			cid      int
			name     string
			declType string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}

		logical, maxLen := mapDeclaredType(declType)
		col := domain.ColumnDescriptor{
			Name:         name,
			Type:         logical,
			Nullable:     notNull == 0 && pk == 0,
			MaxLength:    maxLen,
			IsPrimaryKey: pk > 0,
		}
		if pk > 0 {
			pkCount++
			pkDecl = strings.ToUpper(strings.TrimSpace(declType))
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, classify(err))
	}

	// A lone INTEGER primary key is the rowid alias, which SQLite
	// auto-assigns. Composite keys never are.
	if pkCount == 1 && pkDecl == "INTEGER" {
		for i := range cols {
			if cols[i].IsPrimaryKey {
				cols[i].IsIdentity = true
			}
		}
	}
	return cols, nil
}

// cursor streams rows from one table.
type cursor struct {
	rows *sql.Rows
	cols []domain.ColumnDescriptor
}

// Columns describes the table's columns in value order
func (c *cursor) Columns() []domain.ColumnDescriptor {
	return c.cols
}

// Next returns the next row or io.EOF after the last one
func (c *cursor) Next() ([]interface{}, error) {
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read row: %w", classify(err))
		}
		return nil, io.EOF
	}

	values := make([]interface{}, len(c.cols))
	ptrs := make([]interface{}, len(c.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	// Byte slices alias the driver's buffer and go stale on the next
	// rows.Next call.
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = append([]byte(nil), b...)
		}
	}
	return values, nil
}

// Close releases the cursor
func (c *cursor) Close() error {
	return c.rows.Close()
}

// classify maps SQLite error codes onto the source package's sentinel errors.
func classify(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", source.ErrFileLocked, err)
		case sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return fmt.Errorf("%w: %v", source.ErrSchemaUnavailable, err)
		}
	}
	return err
}

// quoteIdent quotes an identifier for direct use in SQL text.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// mapDeclaredType converts a SQLite declared column type to the logical type
// used for destination mapping. The rules follow SQLite's own affinity
// matching, refined with the size hints common in exported schemas. The
// second return value is the declared text length, when one is present.
func mapDeclaredType(decl string) (domain.LogicalType, int) {
	upper := strings.ToUpper(strings.TrimSpace(decl))
	if upper == "" {
		return domain.TypeBinary, 0
	}

	switch {
	case strings.Contains(upper, "BIGINT") || strings.Contains(upper, "INT8"):
		return domain.TypeBigInt, 0
	case strings.Contains(upper, "SMALLINT") || strings.Contains(upper, "TINYINT") || strings.Contains(upper, "INT2"):
		return domain.TypeSmallInt, 0
	case strings.Contains(upper, "INT"):
		return domain.TypeInteger, 0
	case strings.Contains(upper, "CHAR") || strings.Contains(upper, "CLOB") || strings.Contains(upper, "TEXT"):
		return domain.TypeString, declaredLength(upper)
	case strings.Contains(upper, "BLOB"):
		return domain.TypeBinary, 0
	case strings.Contains(upper, "MONEY") || strings.Contains(upper, "CURRENCY"):
		return domain.TypeCurrency, 0
	case strings.Contains(upper, "DECIMAL") || strings.Contains(upper, "NUMERIC"):
		return domain.TypeDecimal, 0
	case strings.Contains(upper, "REAL") || strings.Contains(upper, "FLOA") || strings.Contains(upper, "DOUB"):
		return domain.TypeDouble, 0
	case strings.Contains(upper, "BOOL"):
		return domain.TypeBoolean, 0
	case strings.Contains(upper, "DATE") || strings.Contains(upper, "TIME"):
		return domain.TypeDateTime, 0
	case strings.Contains(upper, "GUID") || strings.Contains(upper, "UUID") ||
		strings.Contains(upper, "UNIQUEIDENTIFIER"):
		return domain.TypeGUID, 0
	}
	return domain.TypeString, 0
}

// declaredLength extracts N from declarations like VARCHAR(N).
func declaredLength(upper string) int {
	start := strings.IndexByte(upper, '(')
	end := strings.IndexByte(upper, ')')
	if start == -1 || end == -1 || end <= start+1 {
		return 0
	}
	inner := upper[start+1 : end]
	if comma := strings.IndexByte(inner, ','); comma != -1 {
		inner = inner[:comma]
	}
	n, err := strconv.Atoi(strings.TrimSpace(inner))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
