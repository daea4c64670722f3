package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/granarylabs/granary/internal/schema"
	"github.com/granarylabs/granary/internal/sink"
	"github.com/granarylabs/granary/internal/source"
)

const defaultBatchSize = 500

// TransferEngine moves rows from a source cursor into a destination table in
// bounded batches. Each table is one destination transaction: either all of
// its rows commit or none do, so sibling tables in the same file are never
// affected by a failure here.
type TransferEngine struct {
	sink      sink.Sink
	batchSize int
}

// NewTransferEngine creates a transfer engine
//
// Parameters:
//   - s: destination sink providing transactions and bulk inserts
//   - batchSize: rows per insert call; values below 1 use the default
//
// Returns:
//   - *TransferEngine: configured transfer engine instance
func NewTransferEngine(s sink.Sink, batchSize int) *TransferEngine {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	return &TransferEngine{sink: s, batchSize: batchSize}
}

// Transfer streams every row of cur into the plan's destination table and
// returns the exact number of rows the destination reports as inserted.
// Cancellation is honored between batches; a batch already handed to the
// driver completes first. On any error the transaction rolls back and zero
// rows are reported.
func (e *TransferEngine) Transfer(ctx context.Context, plan schema.TablePlan, cur source.Cursor) (int64, error) {
	var total int64

	err := e.sink.WithinTx(ctx, func(tx sink.Tx) error {
		batch := make([]map[string]interface{}, 0, e.batchSize)

		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, err := tx.BulkInsert(ctx, plan.DestTable, batch)
			if err != nil {
				return fmt.Errorf("failed to insert batch into %s: %w", plan.DestTable, err)
			}
			total += n
			batch = batch[:0]
			return nil
		}

		for {
			row, err := cur.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to read row from table %s: %w", plan.SourceTable, err)
			}

			values, err := rowValues(plan, row)
			if err != nil {
				return err
			}
			batch = append(batch, values)

			if len(batch) < e.batchSize {
				continue
			}
			if err := flush(); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("transfer cancelled: %w", err)
			}
		}

		return flush()
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// rowValues maps one cursor row onto destination column names. The cursor
// contract guarantees value order matches the column order the plan was built
// from; a mismatched width means the cursor is misbehaving and fails the
// table.
func rowValues(plan schema.TablePlan, row []interface{}) (map[string]interface{}, error) {
	if len(row) != len(plan.Columns) {
		return nil, fmt.Errorf("table %s returned a row with %d values, want %d",
			plan.SourceTable, len(row), len(plan.Columns))
	}
	values := make(map[string]interface{}, len(row))
	for i, col := range plan.Columns {
		values[col.DestName] = row[i]
	}
	return values, nil
}
