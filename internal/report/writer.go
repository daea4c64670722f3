package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/granarylabs/granary/internal/domain"
)

// Writer persists one CSV report per pass, listing every failed table and
// skipped file with its message, closed by a summary row.
type Writer struct {
	dir string
}

// NewWriter creates a report writer rooted at dir. The directory is
// created on first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WritePass writes the report for one pass and returns the file path.
func (w *Writer) WritePass(result *domain.PassResult) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("pass_%s.csv", result.StartTime.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}

	csvWriter := csv.NewWriter(f)
	csvWriter.Write([]string{"file", "table", "rows", "error"})

	for _, file := range result.Files {
		switch file.Status {
		case domain.FileStatusSkipped:
			csvWriter.Write([]string{file.Path, "", "0", file.ErrorMessage})
		case domain.FileStatusFailed, domain.FileStatusPartial:
			for _, table := range file.Tables {
				if table.Status != domain.TableStatusFailed {
					continue
				}
				csvWriter.Write([]string{
					file.Path,
					table.TableName,
					strconv.FormatInt(table.RowsImported, 10),
					table.ErrorMessage,
				})
			}
		}
	}

	summary := fmt.Sprintf("total=%d success=%d partial_success=%d failed=%d skipped=%d",
		result.Total, result.Succeeded, result.Partial, result.Failed, result.Skipped)
	csvWriter.Write([]string{"summary", "", strconv.FormatInt(result.RowsImported, 10), summary})

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close report file: %w", err)
	}
	return path, nil
}
