package sink

import "context"

// Sink is the destination database surface used by schema synchronization and
// the transfer engine. Implementations wrap one connection pool and stay open
// across passes.
type Sink interface {
	// Dialect identifies the destination SQL dialect ("postgres" or
	// "sqlite") for DDL type mapping.
	Dialect() string

	// TableExists reports whether the destination table is present.
	TableExists(ctx context.Context, table string) (bool, error)

	// ListColumns returns the destination table's column names in
	// definition order.
	ListColumns(ctx context.Context, table string) ([]string, error)

	// ExecDDL runs a single DDL statement outside any transfer transaction.
	ExecDDL(ctx context.Context, ddl string) error

	// WithinTx runs fn inside one destination transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the connection pool.
	Close() error
}

// Tx is the per-transaction surface handed to transfer code.
type Tx interface {
	// BulkInsert inserts one batch of rows into table. Every row map holds
	// the same column set, with nil values for SQL NULL. It returns the
	// number of rows the destination reports as inserted.
	BulkInsert(ctx context.Context, table string, rows []map[string]interface{}) (int64, error)
}
