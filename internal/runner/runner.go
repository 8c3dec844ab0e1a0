// Package runner executes fixture checks against an expect instance and
// collects the outcomes as history runs.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"expectkit/internal/expect"
	"expectkit/internal/failure"
	"expectkit/internal/fixture"
	"expectkit/internal/logging"
	"expectkit/internal/store"
)

// DefaultTimeout bounds a single check when neither the suite nor the
// runner sets one.
const DefaultTimeout = 10 * time.Second

// Runner runs checks. Every check gets its own clone of the base
// instance, so plugins or hooks installed by one check never leak into
// another.
type Runner struct {
	base        *expect.Instance
	concurrency int
	timeout     time.Duration
	theme       string
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency caps the number of checks running at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTimeout bounds each check.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithTheme renders failure diffs with the named theme.
func WithTheme(name string) Option {
	return func(r *Runner) { r.theme = name }
}

// New creates a runner over base.
func New(base *expect.Instance, opts ...Option) *Runner {
	r := &Runner{
		base:        base,
		concurrency: runtime.GOMAXPROCS(0),
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Check runs a single check.
func (r *Runner) Check(ctx context.Context, c fixture.Check) store.Result {
	return r.check(ctx, r.base.Clone(), c, r.timeout)
}

func (r *Runner) check(ctx context.Context, inst *expect.Instance, c fixture.Check, timeout time.Duration) store.Result {
	res := store.Result{Name: c.Name, Phrase: c.Assertion}
	if c.Skip {
		res.Passed = true
		res.Message = "skipped"
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := inst.Expect(ctx, c.Subject, c.Assertion, c.Args...)
	res.Duration = time.Since(start)

	switch {
	case err == nil:
		res.Passed = true
	case errors.Is(err, context.DeadlineExceeded):
		res.Message = fmt.Sprintf("timed out after %v", timeout)
	default:
		res.Message = inst.Explain(err, r.theme)
		if _, ok := failure.IsFailure(err); !ok {
			logging.CLIDebug("check %q errored: %v", c.Name, err)
		}
	}
	return res
}

// Run executes every check of s and returns the run record. Results keep
// the suite's order regardless of completion order. The returned error is
// only set when ctx is cancelled before all checks finish.
func (r *Runner) Run(ctx context.Context, s *fixture.Suite) (*store.Run, error) {
	timer := logging.StartTimer(logging.CategoryCLI, "suite "+s.Name)
	defer timer.Stop()

	run := &store.Run{
		ID:        uuid.NewString(),
		Command:   "suite",
		Source:    s.Source,
		StartedAt: time.Now(),
		Results:   make([]store.Result, len(s.Checks)),
	}

	for k, c := range s.Checks {
		run.Results[k] = store.Result{Name: c.Name, Phrase: c.Assertion, Message: "not run"}
	}

	limit := r.concurrency
	if s.Concurrency > 0 {
		limit = s.Concurrency
	}
	timeout := r.timeout
	if s.Timeout > 0 {
		timeout = s.Timeout
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for k, c := range s.Checks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run.Results[k] = r.check(gctx, r.base.Clone(), c, timeout)
			return nil
		})
	}
	err := g.Wait()
	run.Duration = time.Since(run.StartedAt)

	for _, res := range run.Results {
		if res.Passed {
			run.Passed++
		} else {
			run.Failed++
		}
	}
	logging.CLI("suite %s finished: passed=%d failed=%d in %v", s.Name, run.Passed, run.Failed, run.Duration)
	return run, err
}
