package pool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"rsextract/internal/dataset"
	"rsextract/internal/logging"
	"rsextract/internal/take"
)

// Runner processes one job and reports its outcome. Implementations must be
// safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, job dataset.Job) take.Status
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job dataset.Job) take.Status

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, job dataset.Job) take.Status { return f(ctx, job) }

// Option configures Run.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	progress io.Writer
	onResult func(take.Status)
}

// WithLogger sets the logger used for per-take outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProgress draws a progress bar on w when w is a terminal.
func WithProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}

// WithResultHook calls fn for each status as it arrives. Calls are
// serialized.
func WithResultHook(fn func(take.Status)) Option {
	return func(o *options) { o.onResult = fn }
}

// Run processes jobs with at most workers concurrent runners and returns
// their statuses in job order. Jobs not started before ctx is cancelled are
// reported as errors.
func Run(ctx context.Context, jobs []dataset.Job, workers int, runner Runner, opts ...Option) []take.Status {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := logging.NewComponentLogger(cfg.logger, "pool")
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]take.Status, len(jobs))
	if len(jobs) == 0 {
		return results
	}
	bar := newProgress(cfg.progress, len(jobs))
	defer bar.Finish()

	logger.Info("processing takes",
		logging.String(logging.FieldEventType, "pool_start"),
		logging.Int("takes", len(jobs)),
		logging.Int("workers", workers),
	)

	indexes := make(chan int)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				status := runOne(ctx, runner, jobs[i])
				mu.Lock()
				results[i] = status
				if cfg.onResult != nil {
					cfg.onResult(status)
				}
				bar.Add()
				mu.Unlock()
				logResult(logger, status)
			}
		}()
	}

	next := 0
feed:
	for ; next < len(jobs); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case indexes <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	for i := next; i < len(jobs); i++ {
		results[i] = take.Status{
			Kind:   take.StatusError,
			Action: jobs[i].Action,
			Take:   jobs[i].Take,
			Err:    fmt.Errorf("not started: %w", ctx.Err()),
		}
		if cfg.onResult != nil {
			cfg.onResult(results[i])
		}
	}
	return results
}

func runOne(ctx context.Context, runner Runner, job dataset.Job) (status take.Status) {
	defer func() {
		if r := recover(); r != nil {
			status = take.Status{
				Kind:   take.StatusError,
				Action: job.Action,
				Take:   job.Take,
				Err:    fmt.Errorf("%w: %v", take.ErrPanic, r),
			}
		}
	}()
	status = runner.Run(ctx, job)
	if status.Action == "" {
		status.Action = job.Action
	}
	if status.Take == 0 {
		status.Take = job.Take
	}
	return status
}

func logResult(logger *slog.Logger, status take.Status) {
	attrs := []logging.Attr{
		logging.String(logging.FieldAction, status.Action),
		logging.Int(logging.FieldTake, status.Take),
		logging.String("status", string(status.Kind)),
		logging.Int("frames", status.Frames),
		logging.Duration("duration", status.Duration),
	}
	if status.Kind == take.StatusError {
		logging.ErrorWithContext(logger, status.String(), "take_failed", append(attrs,
			logging.Error(status.Err),
			logging.String(logging.FieldImpact, "take has no complete output"),
		)...)
		return
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, "take_"+string(status.Kind)))
	logger.Info(status.String(), logging.Args(attrs...)...)
}

// Summary counts statuses by kind.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
	Frames    int
}

// Summarize tallies statuses.
func Summarize(statuses []take.Status) Summary {
	var s Summary
	for _, st := range statuses {
		switch st.Kind {
		case take.StatusCompleted:
			s.Completed++
			s.Frames += st.Frames
		case take.StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}
