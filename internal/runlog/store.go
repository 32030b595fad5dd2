package runlog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/database"
)

var journalTracer = otel.Tracer("github.com/Additional-Code/salesledger/runlog")

// Module provides the journal to Fx: database-backed when the state
// database is enabled, in-memory otherwise.
var Module = fx.Provide(New)

// New selects the journal implementation.
func New(conns *database.Connections, logger *zap.Logger) Journal {
	if conns.State == nil {
		logger.Info("run journal database disabled; using in-memory journal")
		return NewMemory()
	}
	return &Store{db: conns.State}
}

// Store is the bun-backed journal.
type Store struct {
	db *bun.DB
}

func (s *Store) Start(ctx context.Context, run *Run) error {
	ctx, span := journalTracer.Start(ctx, "RunJournal.Start", trace.WithAttributes(attribute.String("run.id", run.ID)))
	defer span.End()

	_, err := s.db.NewInsert().Model(run).Exec(ctx)
	return record(span, err)
}

func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	ctx, span := journalTracer.Start(ctx, "RunJournal.Get", trace.WithAttributes(attribute.String("run.id", id)))
	defer span.End()

	run := new(Run)
	err := s.db.NewSelect().Model(run).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, record(span, err)
	}
	return run, nil
}

func (s *Store) CompletedChunks(ctx context.Context, runID string) (map[time.Time]bool, error) {
	ctx, span := journalTracer.Start(ctx, "RunJournal.CompletedChunks", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	var chunks []Chunk
	if err := s.db.NewSelect().Model(&chunks).Column("chunk_start").Where("run_id = ?", runID).Scan(ctx); err != nil {
		return nil, record(span, err)
	}
	done := make(map[time.Time]bool, len(chunks))
	for _, c := range chunks {
		done[c.ChunkStart.UTC()] = true
	}
	return done, nil
}

// ChunkDone records the chunk and the updated run totals atomically.
func (s *Store) ChunkDone(ctx context.Context, run *Run, c *Chunk) error {
	ctx, span := journalTracer.Start(ctx, "RunJournal.ChunkDone", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("chunk.start", c.ChunkStart.Format(time.DateOnly)),
	))
	defer span.End()

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(c).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewUpdate().Model(run).WherePK().Exec(ctx)
		return err
	})
	return record(span, err)
}

func (s *Store) Finish(ctx context.Context, run *Run) error {
	ctx, span := journalTracer.Start(ctx, "RunJournal.Finish", trace.WithAttributes(attribute.String("run.id", run.ID)))
	defer span.End()

	_, err := s.db.NewUpdate().Model(run).WherePK().Exec(ctx)
	return record(span, err)
}

func record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "journal write failed")
	}
	return err
}
