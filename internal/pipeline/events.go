package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/runlog"
)

// RunCompletedEvent is published on the events topic once a run's ledger
// file is closed and handed off.
type RunCompletedEvent struct {
	RunID        string    `json:"run_id"`
	RangeStart   string    `json:"range_start"`
	RangeEnd     string    `json:"range_end"`
	OutputPath   string    `json:"output_path"`
	RemotePath   string    `json:"remote_path,omitempty"`
	Chunks       int       `json:"chunks"`
	Orders       int       `json:"orders"`
	Rows         int       `json:"rows"`
	FailedBlocks int       `json:"failed_blocks"`
	FailedOrders int       `json:"failed_orders"`
	SkippedItems int       `json:"skipped_items"`
	CompletedAt  time.Time `json:"completed_at"`
}

// deliver ships the closed file. Delivery problems do not fail the run:
// the file stays in the output directory.
func (s *Service) deliver(ctx context.Context, logger *zap.Logger, run *runlog.Run) string {
	if s.deliverer == nil {
		return ""
	}
	remote, err := s.deliverer.Deliver(ctx, run.OutputPath)
	if err != nil {
		logger.Error("ledger delivery failed; file kept locally", zap.String("path", run.OutputPath), zap.Error(err))
		return ""
	}
	return remote
}

func (s *Service) publishCompleted(ctx context.Context, logger *zap.Logger, run *runlog.Run, remotePath string) {
	if !s.publish {
		return
	}
	event := RunCompletedEvent{
		RunID:        run.ID,
		RangeStart:   run.RangeStart.Format(time.DateOnly),
		RangeEnd:     run.RangeEnd.Format(time.DateOnly),
		OutputPath:   run.OutputPath,
		RemotePath:   remotePath,
		Chunks:       run.Chunks,
		Orders:       run.Orders,
		Rows:         run.Rows,
		FailedBlocks: run.FailedBlocks,
		FailedOrders: run.FailedOrders,
		SkippedItems: run.SkippedItems,
		CompletedAt:  run.FinishedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("marshal run completed", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), []byte("run-"+run.ID), payload); err != nil {
		logger.Error("publish run completed", zap.Error(err))
	}
}
