// Package chunk splits a reporting interval into fixed-size day ranges so
// that a chunk's working set stays bounded regardless of the total span.
package chunk

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// ErrInvalidSize is returned for chunk sizes below one day.
var ErrInvalidSize = errors.New("chunk size must be at least one day")

// Range is an inclusive span of calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days covered by r.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether day falls inside r.
func (r Range) Contains(day time.Time) bool {
	d := Day(day)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
}

// Chunker yields consecutive ranges of at most Size days.
type Chunker struct {
	span Range
	size int
}

// New validates the interval and chunk size.
func New(start, end time.Time, days int) (Chunker, error) {
	if days <= 0 {
		return Chunker{}, ErrInvalidSize
	}
	return Chunker{span: Range{Start: Day(start), End: Day(end)}, size: days}, nil
}

// Span returns the full interval being chunked.
func (c Chunker) Span() Range { return c.span }

// All returns a lazy sequence of ranges; each call starts from the beginning.
// The last range is clipped to the interval end.
func (c Chunker) All() iter.Seq[Range] {
	return func(yield func(Range) bool) {
		for start := c.span.Start; !start.After(c.span.End); {
			end := start.AddDate(0, 0, c.size-1)
			if end.After(c.span.End) {
				end = c.span.End
			}
			if !yield(Range{Start: start, End: end}) {
				return
			}
			start = end.AddDate(0, 0, 1)
		}
	}
}

// Count returns how many ranges All yields.
func (c Chunker) Count() int {
	n := 0
	for range c.All() {
		n++
	}
	return n
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
