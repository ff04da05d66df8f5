package httpapi

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dealersync/internal/store"
	"dealersync/internal/syncer"

	"github.com/rs/zerolog"
)

type blockingRunner struct {
	calls   atomic.Int32
	release chan struct{}
	summary syncer.Summary
	err     error

	mu       sync.Mutex
	triggers []string
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) Run(_ context.Context, targetID, trigger string, _ syncer.Config) (syncer.Summary, error) {
	r.mu.Lock()
	r.triggers = append(r.triggers, trigger)
	r.mu.Unlock()
	r.calls.Add(1)
	<-r.release
	return r.summary, r.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestTriggerRejectsConcurrentRunsForSameTarget(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	runner.summary = syncer.Summary{Processed: 3, Total: 3, Created: 3}
	trigger := NewSyncTrigger(runner, nil, zerolog.Nop())

	if !trigger.Trigger("dealer-1") {
		t.Fatal("first trigger was rejected")
	}
	waitFor(t, func() bool { return runner.calls.Load() == 1 })

	if trigger.Trigger("dealer-1") {
		t.Fatal("second trigger accepted while the first was still running")
	}
	if !trigger.Status("dealer-1").Running {
		t.Fatal("status does not report the run in flight")
	}

	close(runner.release)
	waitFor(t, func() bool { return !trigger.Status("dealer-1").Running })

	status := trigger.Status("dealer-1")
	if status.LastRun == nil || status.LastRun.Created != 3 {
		t.Fatalf("last run = %+v, want the completed summary", status.LastRun)
	}
	if status.LastError != "" {
		t.Fatalf("last error = %q, want none", status.LastError)
	}
	if runner.triggers[0] != store.TriggerManual {
		t.Fatalf("trigger = %q, want manual", runner.triggers[0])
	}

	// once the run is over a new one may start
	if !trigger.Trigger("dealer-1") {
		t.Fatal("trigger rejected after the previous run completed")
	}
}

func TestTriggerRecordsFailure(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	runner.err = errors.New("remote unavailable")
	trigger := NewSyncTrigger(runner, nil, zerolog.Nop())

	if !trigger.Trigger("dealer-2") {
		t.Fatal("trigger was rejected")
	}
	close(runner.release)
	waitFor(t, func() bool { return !trigger.Status("dealer-2").Running })

	status := trigger.Status("dealer-2")
	if status.LastError != "remote unavailable" {
		t.Fatalf("last error = %q", status.LastError)
	}
}

func TestTriggerDistinctTargetsRunIndependently(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	trigger := NewSyncTrigger(runner, nil, zerolog.Nop())

	if !trigger.Trigger("dealer-a") {
		t.Fatal("first target rejected")
	}
	if !trigger.Trigger("dealer-b") {
		t.Fatal("second target rejected despite a different key")
	}
	waitFor(t, func() bool { return runner.calls.Load() == 2 })
	close(runner.release)
	waitFor(t, func() bool {
		return !trigger.Status("dealer-a").Running && !trigger.Status("dealer-b").Running
	})
}
