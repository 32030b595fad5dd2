// Package batch splits identifier lists into blocks that respect the
// database's parameter-count ceiling and merges per-block results.
package batch

import (
	"cmp"
	"context"
	"slices"
)

// Blocks splits items into consecutive slices of at most size elements.
// The returned slices share the backing array of items.
func Blocks[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(items)
	}
	blocks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		blocks = append(blocks, items[start:end:end])
	}
	return blocks
}

// Failure describes a block whose query failed and was skipped.
type Failure struct {
	Index int
	Size  int
	Err   error
}

// Fetch runs fetch once per block and concatenates the results. A failing
// block is recorded and skipped so the remaining blocks still contribute.
// Fetch stops early when ctx is done; callers check ctx.Err afterwards.
func Fetch[K, R any](ctx context.Context, ids []K, size int, fetch func(context.Context, []K) ([]R, error)) ([]R, []Failure) {
	var (
		out      []R
		failures []Failure
	)
	for i, block := range Blocks(ids, size) {
		if err := ctx.Err(); err != nil {
			failures = append(failures, Failure{Index: i, Size: len(block), Err: err})
			break
		}
		rows, err := fetch(ctx, block)
		if err != nil {
			failures = append(failures, Failure{Index: i, Size: len(block), Err: err})
			continue
		}
		out = append(out, rows...)
	}
	return out, failures
}

// Distinct returns the sorted unique values of items, dropping zero values.
func Distinct[T cmp.Ordered](items []T) []T {
	var zero T
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item != zero {
			out = append(out, item)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
