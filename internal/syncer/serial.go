package syncer

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// SerialRunner coalesces overlapping Run invocations for the same
// target into one execution. The batch state has no concurrency guard,
// so two simultaneous runs would corrupt its counters; the scheduled
// worker and the manual HTTP trigger share one SerialRunner.
type SerialRunner struct {
	runner workerRunner
	group  singleflight.Group
}

func NewSerialRunner(runner workerRunner) *SerialRunner {
	return &SerialRunner{runner: runner}
}

func (r *SerialRunner) Run(ctx context.Context, targetID, trigger string, cfg Config) (Summary, error) {
	v, err, _ := r.group.Do(targetID, func() (any, error) {
		return r.runner.Run(ctx, targetID, trigger, cfg)
	})
	summary, _ := v.(Summary)
	return summary, err
}
