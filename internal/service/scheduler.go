package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/granarylabs/granary/internal/archive"
	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/logger"
	"github.com/granarylabs/granary/internal/notify"
	"github.com/granarylabs/granary/internal/report"
	"github.com/granarylabs/granary/internal/source"
	"github.com/granarylabs/granary/internal/status"
)

// ErrPassInProgress is returned when a pass is requested while another one is
// still running. The request is dropped, never queued.
var ErrPassInProgress = errors.New("an ingestion pass is already running")

// SchedulerConfig holds the scheduling knobs for pass execution.
type SchedulerConfig struct {
	Folder       string
	Workers      int
	Interval     time.Duration
	RunOnStart   bool
	Retention    time.Duration
	CleanupEvery time.Duration
}

// Scheduler funnels on-demand, timer, and watcher triggers into single
// ingestion passes over the eligible file set. At most one pass runs at a
// time.
type Scheduler struct {
	cfg       SchedulerConfig
	store     *status.Store
	registry  *source.Registry
	processor *Processor
	archiver  *archive.Archiver
	report    *report.Writer
	notifiers []notify.Notifier
	logger    *logger.Logger

	running atomic.Bool
	kick    chan string

	mu   sync.RWMutex
	last *domain.PassResult
}

// NewScheduler creates a scheduler
//
// Parameters:
//   - store: status store shared with the processor
//   - registry: provider registry supplying the recognized extensions
//   - processor: per-file import processor
//   - archiver: archival sink for retention cleanup; nil disables it
//   - reportWriter: pass report writer; nil disables reports
//   - notifiers: outcome notification channels
//   - log: base logger used when the context carries none
//   - cfg: scheduling configuration
//
// Returns:
//   - *Scheduler: configured scheduler instance
func NewScheduler(
	store *status.Store,
	registry *source.Registry,
	processor *Processor,
	archiver *archive.Archiver,
	reportWriter *report.Writer,
	notifiers []notify.Notifier,
	log *logger.Logger,
	cfg SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		processor: processor,
		archiver:  archiver,
		report:    reportWriter,
		notifiers: notifiers,
		logger:    log,
		kick:      make(chan string, 1),
	}
}

// log returns a logger from context if available, otherwise the scheduler's own
func (s *Scheduler) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Running reports whether a pass is currently executing.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// LastResult returns the most recent pass result, if any pass has run yet.
func (s *Scheduler) LastResult() (*domain.PassResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, false
	}
	cp := *s.last
	return &cp, true
}

func (s *Scheduler) setLast(result *domain.PassResult) {
	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
}

// Trigger requests an event-driven pass. The request is dropped, not queued,
// when a pass is already running or an earlier trigger is still waiting.
func (s *Scheduler) Trigger(reason string) bool {
	if s.running.Load() {
		return false
	}
	select {
	case s.kick <- reason:
		return true
	default:
		return false
	}
}

// RunPass executes one ingestion pass: snapshot the folder, reconcile the
// status records, and process every eligible file with the configured worker
// count. Returns ErrPassInProgress when called while another pass runs.
func (s *Scheduler) RunPass(ctx context.Context) (*domain.PassResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrPassInProgress
	}
	defer s.running.Store(false)

	passID := uuid.New().String()
	ctx = logger.SetPassID(ctx, passID)

	result := &domain.PassResult{PassID: passID, StartTime: time.Now()}

	snapshot, err := source.Scan(s.cfg.Folder, s.registry.Extensions())
	if err != nil {
		// The folder is unreachable this cycle. The next trigger retries.
		result.Message = err.Error()
		result.EndTime = time.Now()
		s.setLast(result)
		s.log(ctx).WithError(err).Error("Source folder scan failed, pass aborted")
		return result, err
	}

	s.store.Reconcile(ctx, snapshot)

	eligible := s.store.Eligible()
	result.Total = int64(len(eligible))
	if len(eligible) == 0 {
		result.EndTime = time.Now()
		s.setLast(result)
		s.log(ctx).Debug("No eligible files, pass complete")
		return result, nil
	}

	workers := s.workerCount(len(eligible))
	s.log(ctx).WithFields(logger.Fields{
		"eligible": len(eligible),
		"workers":  workers,
	}).Info("Starting ingestion pass")

	filesChan := make(chan domain.FileRecord, workers*2)
	resultsChan := make(chan domain.FileOutcome, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, filesChan, resultsChan)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		for res := range resultsChan {
			switch res.Status {
			case domain.FileStatusSuccess:
				atomic.AddInt64(&result.Succeeded, 1)
			case domain.FileStatusPartial:
				atomic.AddInt64(&result.Partial, 1)
				s.log(ctx).WithFields(logger.Fields{
					logger.FieldFile: res.Path,
					"error":          res.ErrorMessage,
				}).Warn("File imported with failed tables")
			case domain.FileStatusSkipped:
				atomic.AddInt64(&result.Skipped, 1)
			default:
				atomic.AddInt64(&result.Failed, 1)
				s.log(ctx).WithFields(logger.Fields{
					logger.FieldFile: res.Path,
					"error":          res.ErrorMessage,
				}).Error("Failed to import file")
			}
			atomic.AddInt64(&result.RowsImported, res.RowsImported)
			result.Files = append(result.Files, res)
			s.notifyFile(ctx, passID, res)
		}
		close(done)
	}()

	// Feed eligible files to the workers. Cancellation stops the feed;
	// records never handed out stay pending for the next pass.
feed:
	for _, rec := range eligible {
		select {
		case filesChan <- rec:
		case <-ctx.Done():
			break feed
		}
	}

	close(filesChan)
	wg.Wait()
	close(resultsChan)
	<-done

	result.EndTime = time.Now()
	if ctx.Err() != nil {
		attempted := result.Processed() + result.Skipped
		result.Message = fmt.Sprintf("pass cancelled after %d of %d files", attempted, result.Total)
	}
	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	s.setLast(result)

	s.writeReport(ctx, result)
	s.notifyPass(ctx, result)

	s.log(ctx).WithFields(logger.Fields{
		"total":           result.Total,
		"success":         result.Succeeded,
		"partial_success": result.Partial,
		"failed":          result.Failed,
		"skipped":         result.Skipped,
		"rows":            result.RowsImported,
		"duration":        result.Duration().String(),
	}).Info("Ingestion pass completed")

	return result, nil
}

func (s *Scheduler) worker(ctx context.Context, workerID int, files <-chan domain.FileRecord, results chan<- domain.FileOutcome) {
	for rec := range files {
		select {
		case <-ctx.Done():
			// Stop picking up new work; records not reached stay pending.
			return
		default:
		}
		results <- s.processor.Process(ctx, rec.Path)
	}
}

// workerCount bounds the pool at the configured size, never larger than the
// file count and never below one.
func (s *Scheduler) workerCount(files int) int {
	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > files {
		workers = files
	}
	return workers
}

// Run executes timer and event driven passes until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log(ctx).WithFields(logger.Fields{
		"folder":   s.cfg.Folder,
		"interval": s.cfg.Interval.String(),
		"workers":  s.cfg.Workers,
	}).Info("Scheduler started")

	if s.cfg.RunOnStart {
		s.runScheduled(ctx, "startup")
	}

	var passCh <-chan time.Time
	if s.cfg.Interval > 0 {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		passCh = ticker.C
	}

	var cleanupCh <-chan time.Time
	if s.cfg.CleanupEvery > 0 && s.cfg.Retention > 0 {
		ticker := time.NewTicker(s.cfg.CleanupEvery)
		defer ticker.Stop()
		cleanupCh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.log(ctx).Info("Scheduler stopped")
			return
		case <-passCh:
			s.runScheduled(ctx, "timer")
		case reason := <-s.kick:
			s.runScheduled(ctx, reason)
		case <-cleanupCh:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) runScheduled(ctx context.Context, trigger string) {
	if _, err := s.RunPass(ctx); err != nil {
		if errors.Is(err, ErrPassInProgress) {
			s.log(ctx).WithField("trigger", trigger).Debug("Pass trigger dropped, one is already running")
			return
		}
		s.log(ctx).WithError(err).WithField("trigger", trigger).Error("Pass failed")
	}
}

// runCleanup purges aged archive copies and aged status records for files
// that have left the drop folder.
func (s *Scheduler) runCleanup(ctx context.Context) {
	start := time.Now()

	if s.archiver != nil {
		removed, err := s.archiver.CleanupAged(ctx, s.cfg.Retention)
		if err != nil {
			s.log(ctx).WithError(err).Warn("Archive cleanup failed")
		} else if removed > 0 {
			s.log(ctx).WithField(logger.FieldCount, removed).Info("Removed aged archive copies")
		}
	}

	s.store.Cleanup(ctx, s.cfg.Retention)

	s.log(ctx).WithField(logger.FieldDurationMs, time.Since(start).Milliseconds()).Debug("Cleanup cycle completed")
}

func (s *Scheduler) writeReport(ctx context.Context, result *domain.PassResult) {
	if s.report == nil || result.Total == 0 {
		return
	}
	path, err := s.report.WritePass(result)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to write pass report")
		return
	}
	s.log(ctx).WithField("report", path).Debug("Pass report written")
}

func (s *Scheduler) notifyFile(ctx context.Context, passID string, outcome domain.FileOutcome) {
	for _, n := range s.notifiers {
		if err := n.FileProcessed(ctx, passID, &outcome); err != nil {
			s.log(ctx).WithError(err).Warn("File notification failed")
		}
	}
}

func (s *Scheduler) notifyPass(ctx context.Context, result *domain.PassResult) {
	for _, n := range s.notifiers {
		if err := n.PassCompleted(ctx, result); err != nil {
			s.log(ctx).WithError(err).Warn("Pass notification failed")
		}
	}
}
