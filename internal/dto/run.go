package dto

import (
	"strings"
	"time"

	"github.com/Additional-Code/salesledger/internal/output"
	"github.com/Additional-Code/salesledger/internal/pipeline"
	"github.com/Additional-Code/salesledger/internal/runlog"
	"github.com/Additional-Code/salesledger/pkg/errorbank"
)

// RunRequest asks for a ledger run. It is the body of POST /runs and the
// payload of the requests topic. Dates use YYYY-MM-DD; both empty means
// yesterday. Output is a bare .csv file name created in the configured
// output directory.
type RunRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Output      string `json:"output,omitempty"`
	ResumeRunID string `json:"resume_run_id,omitempty"`
}

// ToPipeline validates the request and converts it.
func (r RunRequest) ToPipeline() (pipeline.Request, error) {
	req := pipeline.Request{
		FileName:    strings.TrimSpace(r.Output),
		ResumeRunID: strings.TrimSpace(r.ResumeRunID),
	}
	if req.FileName != "" {
		if err := output.CheckFileName(req.FileName); err != nil {
			return pipeline.Request{}, errorbank.BadRequest("invalid output file name",
				errorbank.WithCause(err),
				errorbank.WithDetail("field", "output"))
		}
	}
	var err error
	if req.Start, err = parseDate("from", r.From); err != nil {
		return pipeline.Request{}, err
	}
	if req.End, err = parseDate("to", r.To); err != nil {
		return pipeline.Request{}, err
	}
	return req, nil
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, errorbank.BadRequest("invalid date",
			errorbank.WithCause(err),
			errorbank.WithDetail("field", field),
			errorbank.WithDetail("expected", "YYYY-MM-DD"))
	}
	return t, nil
}

// RunResponse represents a ledger run as exposed via transport layers.
type RunResponse struct {
	ID           string     `json:"id"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	Status       string     `json:"status"`
	OutputPath   string     `json:"output_path"`
	Chunks       int        `json:"chunks"`
	Orders       int        `json:"orders"`
	Rows         int        `json:"rows"`
	FailedBlocks int        `json:"failed_blocks"`
	FailedOrders int        `json:"failed_orders"`
	SkippedItems int        `json:"skipped_items"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// NewRunResponse maps a journaled run.
func NewRunResponse(run *runlog.Run) RunResponse {
	resp := RunResponse{
		ID:           run.ID,
		From:         run.RangeStart.Format(time.DateOnly),
		To:           run.RangeEnd.Format(time.DateOnly),
		Status:       run.Status,
		OutputPath:   run.OutputPath,
		Chunks:       run.Chunks,
		Orders:       run.Orders,
		Rows:         run.Rows,
		FailedBlocks: run.FailedBlocks,
		FailedOrders: run.FailedOrders,
		SkippedItems: run.SkippedItems,
		Error:        run.Error,
		StartedAt:    run.StartedAt,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		resp.FinishedAt = &finished
	}
	return resp
}
