package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/granarylabs/granary/internal/archive"
	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/logger"
	"github.com/granarylabs/granary/internal/schema"
	"github.com/granarylabs/granary/internal/source"
	"github.com/granarylabs/granary/internal/status"
)

// Processor runs the per-file import state machine: open the source file,
// walk its tables in source order, synchronize schema and transfer rows for
// each, then fold the table outcomes into one file-level status with archival
// and retry-staging side effects.
type Processor struct {
	registry *source.Registry
	store    *status.Store
	syncer   *schema.Synchronizer
	transfer *TransferEngine
	archiver *archive.Archiver
	mapper   *schema.TypeMapper
	prefix   string
	logger   *logger.Logger
}

// NewProcessor creates a file processor
//
// Parameters:
//   - registry: provider registry resolving files to their format reader
//   - store: status store owning every record transition
//   - syncer: schema synchronizer for destination tables
//   - transfer: bulk transfer engine
//   - archiver: archival sink for terminal files; nil disables archival
//   - mapper: logical-to-destination type mapper
//   - prefix: destination table name prefix
//   - log: base logger used when the context carries none
//
// Returns:
//   - *Processor: configured processor instance
func NewProcessor(
	registry *source.Registry,
	store *status.Store,
	syncer *schema.Synchronizer,
	transfer *TransferEngine,
	archiver *archive.Archiver,
	mapper *schema.TypeMapper,
	prefix string,
	log *logger.Logger,
) *Processor {
	return &Processor{
		registry: registry,
		store:    store,
		syncer:   syncer,
		transfer: transfer,
		archiver: archiver,
		mapper:   mapper,
		prefix:   prefix,
		logger:   log,
	}
}

// log returns a logger from context if available, otherwise the processor's own
func (p *Processor) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return p.logger
}

// Process imports one file and returns its outcome. Errors are folded into
// the outcome and the file's status record; Process itself never aborts the
// surrounding pass.
func (p *Processor) Process(ctx context.Context, path string) (outcome domain.FileOutcome) {
	start := time.Now()
	ctx = logger.SetFile(ctx, path)

	outcome = domain.FileOutcome{Path: path, Status: domain.FileStatusFailed}
	defer func() { outcome.Duration = time.Since(start) }()

	if _, err := p.store.MarkProcessing(ctx, path); err != nil {
		outcome.ErrorMessage = err.Error()
		p.log(ctx).WithError(err).Error("Failed to claim file for processing")
		return outcome
	}

	provider, ok := p.registry.ForPath(path)
	if !ok {
		return p.skip(ctx, &outcome, fmt.Sprintf("no provider registered for %s", path))
	}
	ctx = logger.SetSource(ctx, provider.GetFormatID())

	conn, err := provider.Open(ctx, path)
	if err != nil {
		// Locked or otherwise unreadable at open time. This is not a
		// processing failure: no retry is spent, and a later version of
		// the file re-arms the record through its modification time.
		if errors.Is(err, source.ErrFileLocked) {
			return p.skip(ctx, &outcome, "file is locked by another process")
		}
		return p.skip(ctx, &outcome, fmt.Sprintf("cannot open file: %v", err))
	}
	defer conn.Close()

	tables, err := conn.Tables(ctx)
	if err != nil {
		return p.skip(ctx, &outcome, fmt.Sprintf("cannot list tables: %v", err))
	}
	if len(tables) == 0 {
		return p.skip(ctx, &outcome, "file contains no importable tables")
	}

	outcome.Tables = make([]domain.TableOutcome, 0, len(tables))
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			// The pass was cancelled. Tables already committed stand;
			// the rest of the file counts as failed.
			outcome.Tables = append(outcome.Tables, domain.TableOutcome{
				TableName:    table,
				Status:       domain.TableStatusFailed,
				ErrorMessage: "pass cancelled before transfer",
			})
			continue
		}
		outcome.Tables = append(outcome.Tables, p.processTable(ctx, conn, table))
	}

	outcome.Status = domain.AggregateFileStatus(outcome.Tables)
	outcome.RowsImported = domain.TotalRows(outcome.Tables)
	outcome.ErrorMessage = summarizeFailures(outcome.Tables)

	var rec domain.FileRecord
	switch outcome.Status {
	case domain.FileStatusSuccess:
		rec, err = p.store.MarkSuccess(ctx, path, len(outcome.Tables), outcome.RowsImported)
	case domain.FileStatusPartial:
		rec, err = p.store.MarkPartial(ctx, path, outcome.ErrorMessage, len(outcome.Tables), outcome.RowsImported)
	default:
		rec, err = p.store.MarkFailed(ctx, path, outcome.ErrorMessage)
	}
	if err != nil {
		p.log(ctx).WithError(err).Warn("Failed to record file outcome")
	}

	p.archiveFile(ctx, path, outcome.Status, rec)

	p.log(ctx).WithFields(logger.Fields{
		logger.FieldStatus:     string(outcome.Status),
		logger.FieldTables:     len(outcome.Tables),
		logger.FieldRows:       outcome.RowsImported,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("File processed")

	return outcome
}

// skip records a skipped file. Skipping spends no retry and never archives.
func (p *Processor) skip(ctx context.Context, outcome *domain.FileOutcome, reason string) domain.FileOutcome {
	outcome.Status = domain.FileStatusSkipped
	outcome.ErrorMessage = reason

	if _, err := p.store.MarkSkipped(ctx, outcome.Path, reason); err != nil {
		p.log(ctx).WithError(err).Warn("Failed to record skip")
	}
	p.log(ctx).WithField("reason", reason).Info("File skipped")
	return *outcome
}

// processTable imports one table. Failures stay local to the table so its
// siblings still get their chance.
func (p *Processor) processTable(ctx context.Context, conn source.Connection, table string) domain.TableOutcome {
	ctx = logger.SetTable(ctx, table)
	out := domain.TableOutcome{TableName: table, Status: domain.TableStatusFailed}

	cur, err := conn.OpenCursor(ctx, table)
	if err != nil {
		out.ErrorMessage = fmt.Sprintf("failed to open table: %v", err)
		p.log(ctx).WithError(err).Error("Failed to open table cursor")
		return out
	}
	defer cur.Close()

	cols, err := schema.Describe(table, cur)
	if err != nil {
		out.ErrorMessage = err.Error()
		p.log(ctx).WithError(err).Error("Failed to describe table")
		return out
	}

	plan := schema.PlanTable(p.prefix, table, cols, p.mapper)
	created, err := p.syncer.EnsureTable(ctx, plan)
	if err != nil {
		out.ErrorMessage = err.Error()
		p.log(ctx).WithError(err).Error("Failed to synchronize table schema")
		return out
	}
	if created {
		p.log(ctx).WithField(logger.FieldTable, plan.DestTable).Info("Created destination table")
	}

	rows, err := p.transfer.Transfer(ctx, plan, cur)
	if err != nil {
		out.ErrorMessage = err.Error()
		p.log(ctx).WithError(err).Error("Failed to transfer table")
		return out
	}

	out.Status = domain.TableStatusSuccess
	out.RowsImported = rows
	p.log(ctx).WithField(logger.FieldRows, rows).Debug("Table transferred")
	return out
}

// archiveFile copies a terminal file into the archive and, for failures with
// retry budget left, into the retry staging folder. Archival failures are
// logged and skipped for this cycle; they never change the file's outcome.
func (p *Processor) archiveFile(ctx context.Context, path string, st domain.FileStatus, rec domain.FileRecord) {
	if p.archiver == nil {
		return
	}

	dest, err := p.archiver.Archive(ctx, path, st)
	if err != nil {
		p.log(ctx).WithError(err).Warn("Failed to archive file")
	} else if _, err := p.store.SetDestination(ctx, path, dest); err != nil {
		p.log(ctx).WithError(err).Warn("Failed to record archive destination")
	}

	if st == domain.FileStatusFailed && rec.RetryCount < p.store.MaxRetries() {
		if _, err := p.archiver.StageRetry(ctx, path); err != nil {
			p.log(ctx).WithError(err).Warn("Failed to stage retry copy")
		}
	}
}

// summarizeFailures joins the failed tables into the file-level error
// message. Tables that succeeded are not mentioned.
func summarizeFailures(outcomes []domain.TableOutcome) string {
	var parts []string
	for _, o := range outcomes {
		if o.Status == domain.TableStatusFailed {
			parts = append(parts, fmt.Sprintf("%s: %s", o.TableName, o.ErrorMessage))
		}
	}
	return strings.Join(parts, "; ")
}
