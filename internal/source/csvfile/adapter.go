package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/source"
)

const (
	FormatID   = "csv"
	FormatName = "CSV file"
)

// defaultSampleSize is how many rows are read ahead to infer column types.
const defaultSampleSize = 200

// timeLayouts are tried in order when inferring and parsing datetime cells.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Adapter implements the source Provider interface for CSV files. Each file
// holds exactly one table named after the file, with column types inferred
// from a sample of leading rows.
type Adapter struct {
	extensions []string
	sampleSize int
}

// NewAdapter creates a new CSV file adapter.
func NewAdapter(extensions ...string) *Adapter {
	if len(extensions) == 0 {
		extensions = []string{".csv"}
	}
	return &Adapter{extensions: extensions, sampleSize: defaultSampleSize}
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

// Open opens the CSV file and reads its header row
func (a *Adapter) Open(ctx context.Context, path string) (source.Connection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	table := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &conn{
		file:       f,
		path:       path,
		table:      table,
		sampleSize: a.sampleSize,
	}, nil
}

// conn is an open CSV file.
type conn struct {
	file       *os.File
	path       string
	table      string
	sampleSize int
}

// Tables returns the single table this file holds, named after the file
func (c *conn) Tables(ctx context.Context) ([]string, error) {
	return []string{c.table}, nil
}

// OpenCursor reads the header, samples rows for type inference, and starts
// streaming from the first data row
func (c *conn) OpenCursor(ctx context.Context, table string) (source.Cursor, error) {
	if table != c.table {
		return nil, fmt.Errorf("unknown table %s in %s", table, c.path)
	}

	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", c.path, err)
	}
	r := csv.NewReader(c.file)

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s has no header row", source.ErrSchemaUnavailable, c.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", c.path, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: %s header column %d is empty", source.ErrSchemaUnavailable, c.path, i+1)
		}
	}

	// Read ahead to infer types, then replay the buffered rows before
	// continuing from the reader.
	var sample [][]string
	for len(sample) < c.sampleSize {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to sample %s: %w", c.path, err)
		}
		sample = append(sample, row)
	}

	cols := inferColumns(header, sample)
	return &cursor{
		reader:   r,
		cols:     cols,
		buffered: sample,
		path:     c.path,
		line:     1,
	}, nil
}

// Close releases the underlying file handle
func (c *conn) Close() error {
	return c.file.Close()
}

// cursor streams converted rows from the CSV reader.
type cursor struct {
	reader   *csv.Reader
	cols     []domain.ColumnDescriptor
	buffered [][]string
	path     string
	line     int
}

// Columns describes the inferred columns in header order
func (c *cursor) Columns() []domain.ColumnDescriptor {
	return c.cols
}

// Next returns the next converted row or io.EOF after the last one
func (c *cursor) Next() ([]interface{}, error) {
	var record []string
	if len(c.buffered) > 0 {
		record = c.buffered[0]
		c.buffered = c.buffered[1:]
	} else {
		var err error
		record, err = c.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", c.path, err)
		}
	}
	c.line++

	if len(record) != len(c.cols) {
		return nil, fmt.Errorf("%s line %d has %d fields, want %d", c.path, c.line, len(record), len(c.cols))
	}

	values := make([]interface{}, len(record))
	for i, cell := range record {
		v, err := convertCell(cell, c.cols[i].Type)
		if err != nil {
			return nil, fmt.Errorf("%s line %d column %s: %w", c.path, c.line, c.cols[i].Name, err)
		}
		values[i] = v
	}
	return values, nil
}

// Close is a no-op; the connection owns the file handle
func (c *cursor) Close() error {
	return nil
}

// inferColumns derives a column descriptor per header field from the sampled
// rows. A column keeps a candidate type only while every non-empty sampled
// cell parses as that type; ties resolve to the narrowest survivor. Columns
// with no usable sample stay strings. CSV carries no constraint metadata, so
// every column is nullable and lengths are unbounded.
func inferColumns(header []string, sample [][]string) []domain.ColumnDescriptor {
	type candidates struct {
		boolean  bool
		integer  bool
		float    bool
		datetime bool
		needsBig bool
		nonEmpty int
	}

	states := make([]candidates, len(header))
	for i := range states {
		states[i] = candidates{boolean: true, integer: true, float: true, datetime: true}
	}

	for _, row := range sample {
		if len(row) != len(header) {
			continue
		}
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			st := &states[i]
			st.nonEmpty++

			if st.boolean && !isBool(cell) {
				st.boolean = false
			}
			if st.integer {
				if n, err := strconv.ParseInt(cell, 10, 64); err != nil {
					st.integer = false
				} else if n > math.MaxInt32 || n < math.MinInt32 {
					st.needsBig = true
				}
			}
			if st.float {
				if _, err := strconv.ParseFloat(cell, 64); err != nil {
					st.float = false
				}
			}
			if st.datetime && !isDateTime(cell) {
				st.datetime = false
			}
		}
	}

	cols := make([]domain.ColumnDescriptor, len(header))
	for i, name := range header {
		st := states[i]
		col := domain.ColumnDescriptor{Name: strings.TrimSpace(name), Type: domain.TypeString, Nullable: true}
		if st.nonEmpty > 0 {
			switch {
			case st.boolean:
				col.Type = domain.TypeBoolean
			case st.integer && st.needsBig:
				col.Type = domain.TypeBigInt
			case st.integer:
				col.Type = domain.TypeInteger
			case st.float:
				col.Type = domain.TypeDouble
			case st.datetime:
				col.Type = domain.TypeDateTime
			}
		}
		cols[i] = col
	}
	return cols
}

// convertCell parses a cell according to the column's inferred type. Empty
// cells become NULL. Rows past the inference sample can still disagree with
// the inferred type; that surfaces here as an error.
func convertCell(cell string, t domain.LogicalType) (interface{}, error) {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil, nil
	}

	switch t {
	case domain.TypeBoolean:
		switch strings.ToLower(trimmed) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("cannot parse %q as boolean", cell)
	case domain.TypeInteger, domain.TypeBigInt:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as integer", cell)
		}
		return n, nil
	case domain.TypeDouble:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as number", cell)
		}
		return f, nil
	case domain.TypeDateTime:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, trimmed); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("cannot parse %q as datetime", cell)
	}
	return cell, nil
}

func isBool(cell string) bool {
	switch strings.ToLower(cell) {
	case "true", "false":
		return true
	}
	return false
}

func isDateTime(cell string) bool {
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, cell); err == nil {
			return true
		}
	}
	return false
}
