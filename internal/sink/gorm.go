package sink

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/granarylabs/granary/internal/config"
)

// GormSink implements Sink on a gorm connection pool.
type GormSink struct {
	db      *gorm.DB
	dialect string
}

// Open initializes the destination database connection based on configuration.
// Parameters:
//   - cfg: destination configuration including driver and connection settings.
// Returns:
//   - *GormSink: initialized destination handle.
//   - error: non-nil if the connection cannot be established.
func Open(cfg *config.DestinationConfig) (*GormSink, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var db *gorm.DB
	var err error

	log.Printf("[SINK] Initializing destination with driver: %q", cfg.Driver)

	switch cfg.Driver {
	case "postgres":
		db, err = openPostgres(cfg, gormConfig)
	case "sqlite":
		db, err = openSQLite(cfg, gormConfig)
	default:
		return nil, fmt.Errorf("unsupported destination driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &GormSink{db: db, dialect: cfg.Driver}, nil
}

// openPostgres initializes a PostgreSQL connection using the unified DSN
func openPostgres(cfg *config.DestinationConfig, gormConfig *gorm.Config) (*gorm.DB, error) {
	// PreferSimpleProtocol supports transaction poolers by disabling
	// implicit prepared statements.
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return db, nil
}

// openSQLite initializes a SQLite destination file
func openSQLite(cfg *config.DestinationConfig, gormConfig *gorm.Config) (*gorm.DB, error) {
	// Ensure the directory exists
	if cfg.Path != "" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create destination directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// WAL keeps readers usable while a transfer transaction is open
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA foreign_keys=ON")

	return db, nil
}

// NewWithDB wraps an existing gorm handle. Used by tests to run the sink
// against an in-memory SQLite database.
func NewWithDB(db *gorm.DB, dialect string) *GormSink {
	return &GormSink{db: db, dialect: dialect}
}

// Dialect identifies the destination SQL dialect
func (s *GormSink) Dialect() string {
	return s.dialect
}

// TableExists reports whether the destination table is present
func (s *GormSink) TableExists(ctx context.Context, table string) (bool, error) {
	return s.db.WithContext(ctx).Migrator().HasTable(table), nil
}

// ListColumns returns the destination table's column names in definition order
func (s *GormSink) ListColumns(ctx context.Context, table string) ([]string, error) {
	types, err := s.db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Name()
	}
	return names, nil
}

// ExecDDL runs a single DDL statement
func (s *GormSink) ExecDDL(ctx context.Context, ddl string) error {
	if err := s.db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("failed to execute DDL: %w", err)
	}
	return nil
}

// WithinTx runs fn inside one destination transaction
func (s *GormSink) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

// Close releases the connection pool
func (s *GormSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	return sqlDB.Close()
}

// gormTx adapts a gorm transaction to the Tx interface.
type gormTx struct {
	db *gorm.DB
}

// BulkInsert inserts one batch of row maps into table
func (t *gormTx) BulkInsert(ctx context.Context, table string, rows []map[string]interface{}) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := t.db.WithContext(ctx).Table(table).Create(rows)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}
