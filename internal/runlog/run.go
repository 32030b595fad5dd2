// Package runlog journals ledger runs and their completed chunks so an
// interrupted run can resume after the last flushed chunk.
package runlog

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run is one execution of the pipeline over a date interval.
type Run struct {
	bun.BaseModel `bun:"table:ledger_runs,alias:r"`

	ID           string    `bun:"id,pk" json:"id"`
	RangeStart   time.Time `bun:"range_start,notnull" json:"range_start"`
	RangeEnd     time.Time `bun:"range_end,notnull" json:"range_end"`
	ChunkDays    int       `bun:"chunk_days,notnull" json:"chunk_days"`
	OutputPath   string    `bun:"output_path,notnull" json:"output_path"`
	Status       string    `bun:"status,notnull" json:"status"`
	Chunks       int       `bun:"chunks,notnull" json:"chunks"`
	Orders       int       `bun:"orders,notnull" json:"orders"`
	Rows         int       `bun:"rows,notnull" json:"rows"`
	FailedBlocks int       `bun:"failed_blocks,notnull" json:"failed_blocks"`
	FailedOrders int       `bun:"failed_orders,notnull" json:"failed_orders"`
	SkippedItems int       `bun:"skipped_items,notnull" json:"skipped_items"`
	Error        string    `bun:"error" json:"error,omitempty"`
	StartedAt    time.Time `bun:"started_at,notnull" json:"started_at"`
	FinishedAt   time.Time `bun:"finished_at,nullzero" json:"finished_at,omitempty"`
}

// Chunk records a chunk whose rows were flushed to the ledger file.
type Chunk struct {
	bun.BaseModel `bun:"table:ledger_chunks,alias:c"`

	RunID        string    `bun:"run_id,pk" json:"run_id"`
	ChunkStart   time.Time `bun:"chunk_start,pk" json:"chunk_start"`
	ChunkEnd     time.Time `bun:"chunk_end,notnull" json:"chunk_end"`
	Orders       int       `bun:"orders,notnull" json:"orders"`
	Rows         int       `bun:"rows,notnull" json:"rows"`
	FailedBlocks int       `bun:"failed_blocks,notnull" json:"failed_blocks"`
	CompletedAt  time.Time `bun:"completed_at,notnull" json:"completed_at"`
}

// Add folds the counters of a finished chunk into the run totals.
func (r *Run) Add(c *Chunk, failedOrders, skippedItems int) {
	r.Chunks++
	r.Orders += c.Orders
	r.Rows += c.Rows
	r.FailedBlocks += c.FailedBlocks
	r.FailedOrders += failedOrders
	r.SkippedItems += skippedItems
}

// Journal persists runs and chunk progress.
type Journal interface {
	Start(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	CompletedChunks(ctx context.Context, runID string) (map[time.Time]bool, error)
	ChunkDone(ctx context.Context, run *Run, c *Chunk) error
	Finish(ctx context.Context, run *Run) error
}
