package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type stubRunner struct {
	summaries []Summary
	errs      []error
	calls     int
	triggers  []string
}

func (s *stubRunner) Run(_ context.Context, _ string, trigger string, _ Config) (Summary, error) {
	i := s.calls
	s.calls++
	s.triggers = append(s.triggers, trigger)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.summaries) {
		return s.summaries[i], err
	}
	return Summary{}, err
}

type stubSettings struct {
	cfg Settings
	err error
}

func (s *stubSettings) Get(_ context.Context) (Settings, error) {
	return s.cfg, s.err
}

func TestWorkerRunOnceContinuesUntilComplete(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{summaries: []Summary{
		{Continue: true, Processed: 5, Total: 12},
		{Continue: true, Processed: 10, Total: 12},
		{Processed: 12, Total: 12, Created: 12},
	}}
	w := NewWorker(runner, Settings{Enabled: true, TargetID: "dealer-1"}, nil, 0, zerolog.Nop())

	w.runOnce(context.Background(), w.fallback)

	if runner.calls != 3 {
		t.Fatalf("runner calls = %d, want 3 (run until completed)", runner.calls)
	}
	for _, trig := range runner.triggers {
		if trig != "scheduled" {
			t.Fatalf("trigger = %q, want scheduled", trig)
		}
	}
}

func TestWorkerRunOnceStopsOnError(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		summaries: []Summary{{Failed: true}},
		errs:      []error{errors.New("fetch failed")},
	}
	w := NewWorker(runner, Settings{Enabled: true}, nil, 0, zerolog.Nop())

	w.runOnce(context.Background(), w.fallback)

	if runner.calls != 1 {
		t.Fatalf("runner calls = %d, want 1 (no retry on failure)", runner.calls)
	}
}

func TestWorkerDisabledDoesNothing(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	w := NewWorker(runner, Settings{Enabled: false}, nil, 0, zerolog.Nop())

	w.Run(context.Background())

	if runner.calls != 0 {
		t.Fatalf("runner calls = %d, want 0 when disabled", runner.calls)
	}
}

func TestWorkerFallsBackWhenSettingsUnavailable(t *testing.T) {
	t.Parallel()

	w := NewWorker(nil, Settings{Enabled: true, PageSize: 42}, &stubSettings{err: errors.New("db down")}, 0, zerolog.Nop())

	got := w.getSettings(context.Background())
	if got.PageSize != 42 || !got.Enabled {
		t.Fatalf("settings = %+v, want fallback", got)
	}
}
