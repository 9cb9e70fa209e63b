package core

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestPages_FollowsContinuations(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	var offsets []int

	fetch := func(_ context.Context, offset, limit int) (Page[int], error) {
		offsets = append(offsets, offset)
		got, next := page(items, offset, limit)
		return Page[int]{Items: got, Next: next}, nil
	}

	var collected []int
	for item, err := range Pages(context.Background(), 3, fetch) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		collected = append(collected, item)
	}

	if !slices.Equal(collected, items) {
		t.Errorf("collected = %v, want %v", collected, items)
	}
	if !slices.Equal(offsets, []int{0, 3, 6}) {
		t.Errorf("offsets = %v, want [0 3 6]", offsets)
	}
}

func TestPages_StopsOnEmptyPageWithContinuation(t *testing.T) {
	calls := 0
	fetch := func(context.Context, int, int) (Page[int], error) {
		calls++
		return Page[int]{Next: true}, nil
	}

	for range Pages(context.Background(), 10, fetch) {
		t.Fatal("no items expected")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPages_YieldsErrorOnce(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(_ context.Context, offset, _ int) (Page[int], error) {
		if offset > 0 {
			return Page[int]{}, boom
		}
		return Page[int]{Items: []int{1, 2}, Next: true}, nil
	}

	var items []int
	var errs []error
	for item, err := range Pages(context.Background(), 2, fetch) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, item)
	}

	if !slices.Equal(items, []int{1, 2}) {
		t.Errorf("items = %v, want [1 2]", items)
	}
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("errs = %v, want [boom]", errs)
	}
}

func TestPages_EarlyBreakStopsFetching(t *testing.T) {
	calls := 0
	fetch := func(context.Context, int, int) (Page[int], error) {
		calls++
		return Page[int]{Items: []int{1, 2, 3}, Next: true}, nil
	}

	for item := range Pages(context.Background(), 3, fetch) {
		if item == 2 {
			break
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBatches(t *testing.T) {
	ids := make([]int, 250)
	for i := range ids {
		ids[i] = i
	}

	tests := []struct {
		name      string
		items     []int
		size      int
		wantSizes []int
	}{
		{"Empty", nil, 100, nil},
		{"Single short batch", ids[:3], 100, []int{3}},
		{"Exact multiple", ids[:200], 100, []int{100, 100}},
		{"Remainder", ids, 100, []int{100, 100, 50}},
		{"Invalid size", ids, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := Batches(tt.items, tt.size)

			var sizes []int
			var flattened []int
			for _, batch := range batches {
				sizes = append(sizes, len(batch))
				flattened = append(flattened, batch...)
			}
			if !slices.Equal(sizes, tt.wantSizes) {
				t.Errorf("sizes = %v, want %v", sizes, tt.wantSizes)
			}
			if tt.wantSizes != nil && !slices.Equal(flattened, tt.items) {
				t.Error("batches must preserve order and content")
			}
		})
	}
}
