package runlog

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryJournalTracksChunks(t *testing.T) {
	ctx := context.Background()
	j := NewMemory()
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	run := &Run{ID: "r1", RangeStart: start, RangeEnd: start.AddDate(0, 0, 1), ChunkDays: 1, Status: StatusRunning}
	if err := j.Start(ctx, run); err != nil {
		t.Fatal(err)
	}

	c := &Chunk{RunID: "r1", ChunkStart: start, ChunkEnd: start, Orders: 2, Rows: 3, FailedBlocks: 1}
	run.Add(c, 1, 4)
	if err := j.ChunkDone(ctx, run, c); err != nil {
		t.Fatal(err)
	}

	done, err := j.CompletedChunks(ctx, "r1")
	if err != nil || !done[start] || len(done) != 1 {
		t.Fatalf("completed chunks = %v, %v", done, err)
	}

	got, err := j.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Chunks != 1 || got.Orders != 2 || got.Rows != 3 || got.FailedBlocks != 1 || got.FailedOrders != 1 || got.SkippedItems != 4 {
		t.Fatalf("totals = %+v", got)
	}

	// Get returns a copy
	got.Rows = 100
	again, _ := j.Get(ctx, "r1")
	if again.Rows != 3 {
		t.Fatalf("journal state mutated through Get: %d", again.Rows)
	}
}

func TestMemoryJournalUnknownRun(t *testing.T) {
	j := NewMemory()
	if _, err := j.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get unknown = %v", err)
	}
	done, err := j.CompletedChunks(context.Background(), "nope")
	if err != nil || len(done) != 0 {
		t.Fatalf("CompletedChunks unknown = %v, %v", done, err)
	}
}
