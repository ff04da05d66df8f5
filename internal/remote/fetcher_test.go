package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dealersync/internal/listing"

	"github.com/rs/zerolog"
)

type stubPages struct {
	pages map[int]Page
	errs  map[int]error
	calls []int
}

func (s *stubPages) GetPage(_ context.Context, _ string, page, _ int) (Page, error) {
	s.calls = append(s.calls, page)
	if err, ok := s.errs[page]; ok {
		return Page{}, err
	}
	return s.pages[page], nil
}

func docs(ids ...string) []listing.Document {
	out := make([]listing.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, listing.Document{"metadata": map[string]any{"stockId": id}})
	}
	return out
}

func TestFetchAllWalksDeclaredPages(t *testing.T) {
	t.Parallel()

	stub := &stubPages{pages: map[int]Page{
		1: {Items: docs("a", "b"), Page: 1, TotalPages: 3},
		2: {Items: docs("c", "d"), Page: 2, TotalPages: 3},
		3: {Items: docs("e"), Page: 3, TotalPages: 3},
	}}
	f := NewFetcher(stub, 0, zerolog.Nop())

	items, err := f.FetchAll(context.Background(), "dealer-1", 2, 0)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
	if len(stub.calls) != 3 {
		t.Fatalf("page calls = %v, want 3 pages", stub.calls)
	}
}

func TestFetchAllStopsOnShortPageWithoutTotals(t *testing.T) {
	t.Parallel()

	stub := &stubPages{pages: map[int]Page{
		1: {Items: docs("a", "b"), Page: 1},
		2: {Items: docs("c"), Page: 2},
	}}
	f := NewFetcher(stub, 0, zerolog.Nop())

	items, err := f.FetchAll(context.Background(), "dealer-1", 2, 0)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if len(stub.calls) != 2 {
		t.Fatalf("page calls = %v, want fetch to stop after short page 2", stub.calls)
	}
}

func TestFetchAllAbortsWhollyOnPageFailure(t *testing.T) {
	t.Parallel()

	pageErr := errors.New("boom")
	stub := &stubPages{
		pages: map[int]Page{1: {Items: docs("a", "b"), Page: 1, TotalPages: 3}},
		errs:  map[int]error{2: pageErr},
	}
	f := NewFetcher(stub, 0, zerolog.Nop())

	items, err := f.FetchAll(context.Background(), "dealer-1", 2, 0)
	if !errors.Is(err, pageErr) {
		t.Fatalf("FetchAll() error = %v, want wrapped %v", err, pageErr)
	}
	if items != nil {
		t.Fatalf("items = %v, want nil on aborted fetch", items)
	}
}

func TestFetchAllHonorsMaxPages(t *testing.T) {
	t.Parallel()

	stub := &stubPages{pages: map[int]Page{}}
	for p := 1; p <= 10; p++ {
		stub.pages[p] = Page{Items: docs(fmt.Sprintf("s%d", p), fmt.Sprintf("t%d", p)), Page: p}
	}
	f := NewFetcher(stub, 0, zerolog.Nop())

	items, err := f.FetchAll(context.Background(), "dealer-1", 2, 4)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(items) != 8 {
		t.Fatalf("items = %d, want 8", len(items))
	}
	if len(stub.calls) != 4 {
		t.Fatalf("page calls = %v, want 4", stub.calls)
	}
}

func TestFetchAllSleepsBetweenPages(t *testing.T) {
	t.Parallel()

	stub := &stubPages{pages: map[int]Page{
		1: {Items: docs("a"), Page: 1, TotalPages: 2},
		2: {Items: docs("b"), Page: 2, TotalPages: 2},
	}}
	f := NewFetcher(stub, 50*time.Millisecond, zerolog.Nop())

	var slept []time.Duration
	f.sleepFn = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if _, err := f.FetchAll(context.Background(), "dealer-1", 1, 0); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(slept) != 1 || slept[0] != 50*time.Millisecond {
		t.Fatalf("slept = %v, want one 50ms delay between the two pages", slept)
	}
}

func TestFetchAllCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubPages{pages: map[int]Page{1: {Items: docs("a"), TotalPages: 1}}}
	f := NewFetcher(stub, 0, zerolog.Nop())

	if _, err := f.FetchAll(ctx, "dealer-1", 1, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("FetchAll() error = %v, want context.Canceled", err)
	}
}
