// Package pipeline turns the sales orders of a date interval into ledger rows:
// it chunks the interval, bulk-loads each chunk over one pooled connection,
// resolves purchase costs, builds rows in parallel and appends them to the
// ledger file chunk by chunk.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/cache"
	"github.com/Additional-Code/salesledger/internal/chunk"
	"github.com/Additional-Code/salesledger/internal/config"
	"github.com/Additional-Code/salesledger/internal/delivery"
	"github.com/Additional-Code/salesledger/internal/entity"
	"github.com/Additional-Code/salesledger/internal/ledger"
	"github.com/Additional-Code/salesledger/internal/messaging"
	"github.com/Additional-Code/salesledger/internal/output"
	"github.com/Additional-Code/salesledger/internal/repository/erp"
	"github.com/Additional-Code/salesledger/internal/runlog"
	"github.com/Additional-Code/salesledger/pkg/errorbank"
)

var pipelineTracer = otel.Tracer("github.com/Additional-Code/salesledger/pipeline")

// Source hands out a Reader bound to one pooled connection.
type Source interface {
	WithReader(ctx context.Context, fn func(erp.Reader) error) error
}

// Request selects what a run covers. Zero Start and End mean yesterday.
// A non-empty ResumeRunID continues a journaled run instead and ignores
// the other fields.
//
// OutputPath is trusted and used as is; only the CLI sets it. FileName is a
// bare name placed under the configured output directory, for callers that
// must not pick arbitrary paths.
type Request struct {
	Start       time.Time
	End         time.Time
	OutputPath  string
	FileName    string
	ResumeRunID string
}

// Deps are the collaborators of a Service. Only Source is required.
type Deps struct {
	Source    Source
	Cache     cache.Store
	Journal   runlog.Journal
	Deliverer delivery.Deliverer
	Publisher messaging.Client
	Logger    *zap.Logger
}

// Service runs the sales-to-ledger pipeline.
type Service struct {
	source    Source
	cache     cache.Store
	cacheTTL  time.Duration
	journal   runlog.Journal
	deliverer delivery.Deliverer
	publisher messaging.Client
	publish   bool
	cfg       config.Pipeline
	logger    *zap.Logger
	metrics   *metrics

	buildRows func(entity.Order, []entity.OrderItem, *ledger.Lookups) ([]ledger.Row, []ledger.SkippedItem)
	now       func() time.Time

	background sync.WaitGroup
	stopCtx    context.Context
	stop       context.CancelFunc

	// output paths of unfinished runs, mapped to the run writing them
	inflightMu sync.Mutex
	inflight   map[string]string
}

// Params defines dependencies for constructing Service through Fx.
type Params struct {
	fx.In

	Repository *erp.Repository
	Cache      cache.Store
	Journal    runlog.Journal
	Deliverer  delivery.Deliverer
	Publisher  messaging.Client
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a Service from the Fx graph.
func NewService(lc fx.Lifecycle, p Params) (*Service, error) {
	svc, err := New(p.Config, Deps{
		Source:    p.Repository,
		Cache:     p.Cache,
		Journal:   p.Journal,
		Deliverer: p.Deliverer,
		Publisher: p.Publisher,
		Logger:    p.Logger,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: svc.Shutdown})
	return svc, nil
}

// New builds a Service. Missing optional dependencies disable caching,
// delivery and event publishing; a missing journal falls back to memory.
func New(cfg config.Config, deps Deps) (*Service, error) {
	if deps.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Journal == nil {
		deps.Journal = runlog.NewMemory()
	}

	stopCtx, stop := context.WithCancel(context.Background())
	return &Service{
		source:    deps.Source,
		cache:     deps.Cache,
		cacheTTL:  cfg.Cache.DefaultTTL,
		journal:   deps.Journal,
		deliverer: deps.Deliverer,
		publisher: deps.Publisher,
		publish:   cfg.Messaging.Enabled && deps.Publisher != nil,
		cfg:       cfg.Pipeline,
		logger:    deps.Logger,
		metrics:   m,
		buildRows: ledger.BuildOrderRows,
		now:       time.Now,
		stopCtx:   stopCtx,
		stop:      stop,
		inflight:  make(map[string]string),
	}, nil
}

// Run executes a run to completion and returns its summary. The summary is
// returned alongside the error when the run stops part way.
func (s *Service) Run(ctx context.Context, req Request) (*runlog.Run, error) {
	run, done, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return run, s.execute(ctx, run, done)
}

// Submit journals a run and executes it in the background. It returns a
// snapshot of the run as started.
func (s *Service) Submit(ctx context.Context, req Request) (*runlog.Run, error) {
	run, done, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	snapshot := *run

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.execute(s.stopCtx, run, done); err != nil {
			s.logger.Error("background run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()
	return &snapshot, nil
}

// Get returns the journaled state of a run.
func (s *Service) Get(ctx context.Context, id string) (*runlog.Run, error) {
	run, err := s.journal.Get(ctx, id)
	if errors.Is(err, runlog.ErrNotFound) {
		return nil, errorbank.NotFound("run not found", errorbank.WithDetail("run_id", id))
	}
	if err != nil {
		return nil, errorbank.Internal("failed to read run journal", errorbank.WithCause(err))
	}
	return run, nil
}

// Shutdown cancels background runs and waits for them to stop at a chunk
// boundary.
func (s *Service) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Service) prepare(ctx context.Context, req Request) (*runlog.Run, map[time.Time]bool, error) {
	if req.ResumeRunID != "" {
		return s.resume(ctx, req.ResumeRunID)
	}

	start, end := chunk.Day(req.Start), chunk.Day(req.End)
	if req.Start.IsZero() && req.End.IsZero() {
		yesterday := chunk.Day(s.now()).AddDate(0, 0, -1)
		start, end = yesterday, yesterday
	}
	if req.Start.IsZero() != req.End.IsZero() {
		return nil, nil, errorbank.BadRequest("both start and end dates are required")
	}
	if end.Before(start) {
		return nil, nil, errorbank.BadRequest("end date is before start date",
			errorbank.WithDetail("start", start.Format(time.DateOnly)),
			errorbank.WithDetail("end", end.Format(time.DateOnly)))
	}

	path := req.OutputPath
	if path == "" {
		name := req.FileName
		if name == "" {
			name = output.FileName(start, end)
		}
		if err := output.CheckFileName(name); err != nil {
			return nil, nil, errorbank.BadRequest("invalid output file name", errorbank.WithCause(err))
		}
		path = filepath.Join(s.cfg.OutputDir, name)
	}

	run := &runlog.Run{
		ID:         uuid.NewString(),
		RangeStart: start,
		RangeEnd:   end,
		ChunkDays:  s.cfg.ChunkDays,
		OutputPath: path,
		Status:     runlog.StatusRunning,
		StartedAt:  s.now().UTC(),
	}
	if err := s.claim(run); err != nil {
		return nil, nil, err
	}
	if err := s.journal.Start(ctx, run); err != nil {
		s.release(run)
		return nil, nil, errorbank.Internal("failed to journal run", errorbank.WithCause(err))
	}
	return run, nil, nil
}

// claim reserves run's output file until release. Two runs writing the same
// file would interleave and duplicate rows.
func (s *Service) claim(run *runlog.Run) error {
	key := pathKey(run.OutputPath)
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if owner, busy := s.inflight[key]; busy {
		return errorbank.Conflict("output file is in use by another run",
			errorbank.WithDetail("path", run.OutputPath),
			errorbank.WithDetail("run_id", owner))
	}
	s.inflight[key] = run.ID
	return nil
}

func (s *Service) release(run *runlog.Run) {
	key := pathKey(run.OutputPath)
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if s.inflight[key] == run.ID {
		delete(s.inflight, key)
	}
}

func pathKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (s *Service) resume(ctx context.Context, id string) (*runlog.Run, map[time.Time]bool, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if run.Status == runlog.StatusCompleted {
		return nil, nil, errorbank.Conflict("run already completed", errorbank.WithDetail("run_id", id))
	}
	if err := s.claim(run); err != nil {
		return nil, nil, err
	}
	done, err := s.journal.CompletedChunks(ctx, id)
	if err != nil {
		s.release(run)
		return nil, nil, errorbank.Internal("failed to read run journal", errorbank.WithCause(err))
	}
	if done == nil {
		done = map[time.Time]bool{}
	}
	run.Status = runlog.StatusRunning
	run.Error = ""
	run.FinishedAt = time.Time{}
	return run, done, nil
}

// execute processes every chunk of run not listed in done. A nil done
// means a fresh run.
func (s *Service) execute(ctx context.Context, run *runlog.Run, done map[time.Time]bool) (err error) {
	defer s.release(run)
	ctx, span := pipelineTracer.Start(ctx, "LedgerPipeline.Run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.range", chunk.Range{Start: run.RangeStart, End: run.RangeEnd}.String()),
	))
	defer span.End()

	logger := s.logger.With(zap.String("run_id", run.ID))
	var remotePath string
	defer func() {
		s.finish(ctx, logger, run, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, run.Status)
			return
		}
		s.publishCompleted(ctx, logger, run, remotePath)
	}()

	chunker, err := chunk.New(run.RangeStart, run.RangeEnd, run.ChunkDays)
	if err != nil {
		return errorbank.BadRequest("invalid chunk size", errorbank.WithCause(err))
	}
	writer, err := s.openWriter(logger, run.OutputPath, done != nil)
	if err != nil {
		return errorbank.Internal("failed to open ledger file", errorbank.WithCause(err), errorbank.WithDetail("path", run.OutputPath))
	}

	logger.Info("ledger run started",
		zap.Stringer("range", chunker.Span()),
		zap.Int("chunks", chunker.Count()),
		zap.Int("already_written", len(done)),
		zap.String("path", writer.Path()),
	)

	for r := range chunker.All() {
		if done[r.Start] {
			logger.Debug("chunk already written", zap.Stringer("chunk", r))
			continue
		}
		if err = ctx.Err(); err != nil {
			break
		}
		if err = s.processChunk(ctx, logger, run, r, writer); err != nil {
			break
		}
	}

	if closeErr := writer.Close(); closeErr != nil {
		err = errors.Join(err, errorbank.Internal("failed to close ledger file", errorbank.WithCause(closeErr)))
	}
	if err != nil {
		return err
	}

	remotePath = s.deliver(ctx, logger, run)
	return nil
}

func (s *Service) openWriter(logger *zap.Logger, path string, resumed bool) (output.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	var (
		csv *output.FileWriter
		err error
	)
	if resumed {
		csv, err = output.Append(path)
	} else {
		csv, err = output.Create(path)
	}
	if err != nil {
		return nil, err
	}
	if !s.cfg.XLSXMirror {
		return csv, nil
	}
	if resumed {
		logger.Warn("xlsx mirror is not rebuilt for resumed runs")
		return csv, nil
	}

	xlsx, err := output.NewXLSX(strings.TrimSuffix(path, filepath.Ext(path)) + ".xlsx")
	if err != nil {
		return nil, err
	}
	return output.Tee{csv, xlsx}, nil
}

func (s *Service) processChunk(ctx context.Context, logger *zap.Logger, run *runlog.Run, r chunk.Range, w output.Writer) error {
	started := time.Now()
	ctx, span := pipelineTracer.Start(ctx, "LedgerPipeline.Chunk", trace.WithAttributes(
		attribute.String("chunk", r.String()),
		attribute.Int("chunk.days", r.Days()),
	))
	defer span.End()
	logger = logger.With(zap.Stringer("chunk", r), zap.Int("days", r.Days()))

	var data *chunkData
	err := s.source.WithReader(ctx, func(rd erp.Reader) error {
		var err error
		data, err = s.load(ctx, logger, rd, r)
		return err
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chunk load failed")
		return err
	}

	built := s.build(ctx, logger, data)
	if err := ctx.Err(); err != nil {
		logger.Warn("chunk cancelled; rows discarded", zap.Int("rows", len(built.rows)))
		return err
	}

	if err := w.WriteRows(built.rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return errorbank.Internal("failed to write ledger rows", errorbank.WithCause(err), errorbank.WithDetail("chunk", r.String()))
	}

	record := &runlog.Chunk{
		RunID:        run.ID,
		ChunkStart:   r.Start,
		ChunkEnd:     r.End,
		Orders:       len(data.orders),
		Rows:         len(built.rows),
		FailedBlocks: data.failedBlocks,
		CompletedAt:  s.now().UTC(),
	}
	run.Add(record, built.failedOrders, built.skippedItems)
	if err := s.journal.ChunkDone(ctx, run, record); err != nil {
		logger.Error("chunk written but not journaled; a resume would repeat it", zap.Error(err))
	}

	elapsed := time.Since(started)
	s.metrics.chunkDone(ctx, record, built, elapsed)
	logger.Info("chunk written",
		zap.Int("orders", record.Orders),
		zap.Int("rows", record.Rows),
		zap.Int("failed_blocks", record.FailedBlocks),
		zap.Int("failed_orders", built.failedOrders),
		zap.Int("skipped_items", built.skippedItems),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (s *Service) finish(ctx context.Context, logger *zap.Logger, run *runlog.Run, err error) {
	ctx = context.WithoutCancel(ctx)
	run.FinishedAt = s.now().UTC()

	switch {
	case err == nil:
		run.Status = runlog.StatusCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		run.Status = runlog.StatusCancelled
		run.Error = err.Error()
	default:
		run.Status = runlog.StatusFailed
		run.Error = err.Error()
	}

	if jerr := s.journal.Finish(ctx, run); jerr != nil {
		logger.Error("failed to journal run result", zap.Error(jerr))
	}

	fields := []zap.Field{
		zap.String("status", run.Status),
		zap.Int("chunks", run.Chunks),
		zap.Int("orders", run.Orders),
		zap.Int("rows", run.Rows),
		zap.Int("failed_blocks", run.FailedBlocks),
		zap.Int("failed_orders", run.FailedOrders),
		zap.Int("skipped_items", run.SkippedItems),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	}
	if err != nil {
		logger.Error("ledger run stopped", append(fields, zap.Error(err))...)
		return
	}
	logger.Info("ledger run completed", fields...)
}
