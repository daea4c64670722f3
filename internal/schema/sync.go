package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/sink"
)

// ErrSchemaMismatch indicates the destination table does not match the source
// and structure synchronization is disabled, so nothing may be created or
// altered to close the gap.
var ErrSchemaMismatch = errors.New("destination schema mismatch")

// PlannedColumn pairs a source column with its destination name and type.
type PlannedColumn struct {
	Source   domain.ColumnDescriptor
	DestName string
	DestType string
}

// TablePlan is the destination layout derived from one source table. Column
// order mirrors the source.
type TablePlan struct {
	SourceTable string
	DestTable   string
	Columns     []PlannedColumn
}

// PlanTable maps a source table onto destination identifiers and types. The
// configured prefix is applied to the table name before sanitization, and
// column name collisions introduced by sanitization get numeric suffixes.
func PlanTable(prefix, table string, cols []domain.ColumnDescriptor, mapper *TypeMapper) TablePlan {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	destNames := DedupeIdentifiers(names)

	planned := make([]PlannedColumn, len(cols))
	for i, col := range cols {
		planned[i] = PlannedColumn{
			Source:   col,
			DestName: destNames[i],
			DestType: mapper.Map(col),
		}
	}
	return TablePlan{
		SourceTable: table,
		DestTable:   SanitizeIdentifier(prefix + table),
		Columns:     planned,
	}
}

// Synchronizer brings destination tables in line with source table plans.
// A single mutex serializes DDL so concurrent workers landing files with the
// same destination table never race a create.
type Synchronizer struct {
	sink          sink.Sink
	syncStructure bool
	mu            sync.Mutex
}

// NewSynchronizer creates a synchronizer. With syncStructure false, any gap
// between source and destination surfaces as ErrSchemaMismatch instead of
// DDL.
func NewSynchronizer(s sink.Sink, syncStructure bool) *Synchronizer {
	return &Synchronizer{sink: s, syncStructure: syncStructure}
}

// EnsureTable creates the destination table if absent, or adds columns the
// destination is missing. It never drops, renames, or retypes anything.
// Re-running against an unchanged source is a no-op. Returns whether the
// table was created by this call.
func (s *Synchronizer) EnsureTable(ctx context.Context, plan TablePlan) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.sink.TableExists(ctx, plan.DestTable)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", plan.DestTable, err)
	}

	if !exists {
		if !s.syncStructure {
			return false, fmt.Errorf("%w: table %s does not exist and structure sync is disabled",
				ErrSchemaMismatch, plan.DestTable)
		}
		ddl := buildCreateTable(s.sink.Dialect(), plan)
		if err := s.sink.ExecDDL(ctx, ddl); err != nil {
			return false, fmt.Errorf("failed to create table %s: %w", plan.DestTable, err)
		}
		return true, nil
	}

	existing, err := s.sink.ListColumns(ctx, plan.DestTable)
	if err != nil {
		return false, fmt.Errorf("failed to list columns of %s: %w", plan.DestTable, err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[strings.ToLower(name)] = true
	}

	for _, col := range plan.Columns {
		if have[col.DestName] {
			continue
		}
		if !s.syncStructure {
			return false, fmt.Errorf("%w: table %s is missing column %s and structure sync is disabled",
				ErrSchemaMismatch, plan.DestTable, col.DestName)
		}
		ddl := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`,
			quoteIdent(plan.DestTable), quoteIdent(col.DestName), col.DestType)
		if err := s.sink.ExecDDL(ctx, ddl); err != nil {
			return false, fmt.Errorf("failed to add column %s to %s: %w", col.DestName, plan.DestTable, err)
		}
	}
	return false, nil
}

// buildCreateTable renders the CREATE TABLE statement for a plan. Columns are
// nullable unless the source declares otherwise; primary-key columns are
// forced NOT NULL because the constraint requires it.
func buildCreateTable(dialect string, plan TablePlan) string {
	var pks []string
	for _, col := range plan.Columns {
		if col.Source.IsPrimaryKey {
			pks = append(pks, col.DestName)
		}
	}

	// A lone identity key on SQLite becomes the rowid alias, which needs
	// the PRIMARY KEY clause on the column itself.
	inlinePK := dialect == "sqlite" && len(pks) == 1 && singleIdentity(plan, pks[0])

	var defs []string
	for _, col := range plan.Columns {
		def := quoteIdent(col.DestName) + " " + col.DestType
		if inlinePK && col.Source.IsPrimaryKey {
			def += " PRIMARY KEY"
		} else {
			if !col.Source.Nullable || col.Source.IsPrimaryKey {
				def += " NOT NULL"
			}
			if col.Source.IsIdentity && dialect == "postgres" {
				def += " GENERATED BY DEFAULT AS IDENTITY"
			}
		}
		defs = append(defs, def)
	}

	if len(pks) > 0 && !inlinePK {
		quoted := make([]string, len(pks))
		for i, pk := range pks {
			quoted[i] = quoteIdent(pk)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(plan.DestTable), strings.Join(defs, ", "))
}

func singleIdentity(plan TablePlan, destName string) bool {
	for _, col := range plan.Columns {
		if col.DestName == destName {
			return col.Source.IsIdentity
		}
	}
	return false
}

// quoteIdent double-quotes an identifier; both supported dialects accept
// standard SQL quoting.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
