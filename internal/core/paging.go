package core

import (
	"context"
	"iter"
)

// PageFunc fetches the page of at most limit items starting at offset.
type PageFunc[T any] func(ctx context.Context, offset, limit int) (Page[T], error)

// Pages yields the items of consecutive pages until a page reports no continuation.
// A fetch error is yielded once and ends the sequence. The sequence is restartable
// only by ranging over it again, which fetches from the first page.
func Pages[T any](ctx context.Context, limit int, fetch PageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for offset, more := 0, true; more; {
			page, err := fetch(ctx, offset, limit)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			offset += len(page.Items)
			more = page.Next && len(page.Items) > 0
		}
	}
}

// Batches splits items into consecutive chunks of at most size elements, preserving order.
func Batches[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}
