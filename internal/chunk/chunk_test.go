package chunk

import (
	"errors"
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestChunkerCoversIntervalWithoutGaps(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		days      int
		wantCount int
	}{
		{name: "single day", start: "2024-03-01", end: "2024-03-01", days: 30, wantCount: 1},
		{name: "exact multiple", start: "2024-01-01", end: "2024-01-30", days: 10, wantCount: 3},
		{name: "clipped tail", start: "2023-02-18", end: "2023-05-01", days: 30, wantCount: 3},
		{name: "leap february", start: "2024-02-27", end: "2024-03-02", days: 2, wantCount: 3},
		{name: "two years", start: "2022-01-01", end: "2023-12-31", days: 30, wantCount: 25},
		{name: "one day chunks", start: "2024-01-01", end: "2024-01-05", days: 1, wantCount: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(date(tt.start), date(tt.end), tt.days)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			var ranges []Range
			for r := range c.All() {
				ranges = append(ranges, r)
			}
			if len(ranges) != tt.wantCount {
				t.Fatalf("got %d ranges, want %d", len(ranges), tt.wantCount)
			}
			if !ranges[0].Start.Equal(date(tt.start)) {
				t.Errorf("first start = %s, want %s", ranges[0].Start, tt.start)
			}
			if !ranges[len(ranges)-1].End.Equal(date(tt.end)) {
				t.Errorf("last end = %s, want %s", ranges[len(ranges)-1].End, tt.end)
			}

			total := 0
			for i, r := range ranges {
				if r.End.Before(r.Start) {
					t.Fatalf("range %d inverted: %s", i, r)
				}
				if r.Days() > tt.days {
					t.Fatalf("range %d has %d days, limit %d", i, r.Days(), tt.days)
				}
				if i > 0 && !r.Start.Equal(ranges[i-1].End.AddDate(0, 0, 1)) {
					t.Fatalf("range %d starts %s, previous ended %s", i, r.Start, ranges[i-1].End)
				}
				total += r.Days()
			}
			want := int(date(tt.end).Sub(date(tt.start)).Hours()/24) + 1
			if total != want {
				t.Fatalf("ranges cover %d days, interval has %d", total, want)
			}
		})
	}
}

func TestChunkerIsRestartable(t *testing.T) {
	c, err := New(date("2024-01-01"), date("2024-03-31"), 30)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first := c.Count()

	// stopping early must not affect the next iteration
	for range c.All() {
		break
	}
	if second := c.Count(); second != first {
		t.Fatalf("second pass yielded %d ranges, first %d", second, first)
	}
}

func TestChunkerEdgeCases(t *testing.T) {
	if _, err := New(date("2024-01-01"), date("2024-01-02"), 0); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("zero size err = %v", err)
	}

	c, err := New(date("2024-01-10"), date("2024-01-01"), 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n := c.Count(); n != 0 {
		t.Fatalf("inverted interval yielded %d ranges", n)
	}

	withClock := time.Date(2024, 5, 3, 17, 45, 0, 0, time.UTC)
	c, _ = New(withClock, withClock, 1)
	for r := range c.All() {
		if !r.Contains(withClock) {
			t.Fatalf("range %s does not contain its own instant", r)
		}
	}
}
