package dto

import (
	"testing"
	"time"

	"github.com/Additional-Code/salesledger/internal/runlog"
	"github.com/Additional-Code/salesledger/pkg/errorbank"
)

func TestRunRequestToPipeline(t *testing.T) {
	req, err := RunRequest{From: "2024-01-01", To: " 2024-01-31 ", Output: " out.csv "}.ToPipeline()
	if err != nil {
		t.Fatalf("ToPipeline: %v", err)
	}
	if req.Start.Format(time.DateOnly) != "2024-01-01" || req.End.Format(time.DateOnly) != "2024-01-31" || req.FileName != "out.csv" || req.OutputPath != "" {
		t.Fatalf("request = %+v", req)
	}

	empty, err := RunRequest{}.ToPipeline()
	if err != nil || !empty.Start.IsZero() || !empty.End.IsZero() {
		t.Fatalf("empty request = %+v, %v", empty, err)
	}

	if _, err := (RunRequest{From: "01/02/2024"}).ToPipeline(); !errorbank.Is(err, errorbank.KindBadRequest) {
		t.Fatalf("malformed date error = %v", err)
	}
	for _, name := range []string{"../../etc/passwd", "/var/lib/ledger.csv", "reports/out.csv"} {
		if _, err := (RunRequest{Output: name}).ToPipeline(); !errorbank.Is(err, errorbank.KindBadRequest) {
			t.Errorf("output %q: %v", name, err)
		}
	}
}

func TestNewRunResponse(t *testing.T) {
	run := &runlog.Run{
		ID:         "r1",
		RangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:     runlog.StatusRunning,
		Rows:       7,
	}
	resp := NewRunResponse(run)
	if resp.From != "2024-01-01" || resp.To != "2024-01-31" || resp.Rows != 7 || resp.FinishedAt != nil {
		t.Fatalf("response = %+v", resp)
	}

	run.FinishedAt = time.Date(2024, 2, 1, 3, 0, 0, 0, time.UTC)
	if resp := NewRunResponse(run); resp.FinishedAt == nil || !resp.FinishedAt.Equal(run.FinishedAt) {
		t.Fatalf("finished at = %v", resp.FinishedAt)
	}
}
