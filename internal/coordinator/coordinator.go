// Package coordinator runs the generators under the run lock and reports the
// combined outcome as an exit code.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/pders01/guide-sync/internal/generate"
	"github.com/pders01/guide-sync/internal/logger"
	"github.com/pders01/guide-sync/internal/runlock"
)

const (
	ExitOK     = 0
	ExitFailed = 1
)

// Locker is the single-flight guard around a run
type Locker interface {
	Acquire() error
	Heartbeat() error
	Release() error
}

// Report is the outcome of one coordinated run
type Report struct {
	Skipped  bool
	Results  []generate.Result
	Duration time.Duration
}

// Failed reports whether any generator failed
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if !res.OK() {
			return true
		}
	}
	return false
}

// ExitCode is 0 for success and lock skips, 1 otherwise
func (r Report) ExitCode() int {
	if r.Failed() {
		return ExitFailed
	}
	return ExitOK
}

// Summary renders "sessions=OK, exhibitors=OK, experts=FAIL"
func (r Report) Summary() string {
	parts := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		parts = append(parts, res.Name+"="+res.Status())
	}
	return strings.Join(parts, ", ")
}

type Runner struct {
	Lock Locker
	Log  *logger.Logger
}

func New(lock Locker, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{Lock: lock, Log: log}
}

// RunAll runs every generator in order and returns the process exit code
func (r *Runner) RunAll(ctx context.Context, generators []generate.Generator) int {
	return r.Run(ctx, generators).ExitCode()
}

// Run acquires the lock, runs generators in order and always releases the
// lock. A lock held by a live run skips the whole invocation.
func (r *Runner) Run(ctx context.Context, generators []generate.Generator) (report Report) {
	start := time.Now()

	if err := r.Lock.Acquire(); err != nil {
		if errors.Is(err, runlock.ErrHeld) {
			r.Log.Info("SKIP previous run still active", "reason", err)
			return Report{Skipped: true}
		}
		r.Log.Error("failed to acquire run lock", "error", err)
		return Report{Results: []generate.Result{{Name: "lock", Err: err}}}
	}
	defer func() {
		if err := r.Lock.Release(); err != nil {
			r.Log.Warn("failed to release run lock", "error", err)
		}
	}()

	for i, g := range generators {
		if err := ctx.Err(); err != nil {
			report.Results = append(report.Results, generate.Result{Name: g.Name(), Err: err})
			continue
		}
		if i > 0 {
			if err := r.Lock.Heartbeat(); err != nil {
				r.Log.Warn("failed to refresh run lock", "error", err)
			}
		}

		r.Log.Info("START " + g.Name())
		res := runContained(ctx, g)
		report.Results = append(report.Results, res)

		if res.OK() {
			r.Log.Info(res.Status()+" "+res.Name, "count", res.Count, "duration", res.Duration.Round(100*time.Millisecond))
		} else {
			r.Log.Error(res.Status()+" "+res.Name, "error", res.Err, "duration", res.Duration.Round(100*time.Millisecond))
		}
	}

	report.Duration = time.Since(start)
	r.Log.Info("DONE "+report.Summary(), "total", report.Duration.Round(100*time.Millisecond))
	return report
}

// runContained turns a generator panic into a failed result
func runContained(ctx context.Context, g generate.Generator) (res generate.Result) {
	start := time.Now()
	recovered := panics.Try(func() {
		res = g.Run(ctx)
	})
	if recovered != nil {
		res = generate.Result{
			Name:     g.Name(),
			Err:      fmt.Errorf("generator panicked: %w", recovered.AsError()),
			Duration: time.Since(start),
		}
	}
	if res.Name == "" {
		res.Name = g.Name()
	}
	return res
}
