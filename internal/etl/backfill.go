package etl

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/adiwardana/idx-shareholder-etl/internal/metrics"
)

// RunFunc executes the pipeline for one business date and returns its
// terminal outcome.
type RunFunc func(ctx context.Context, date BusinessDate) RunOutcome

// Coordinator drives a historical range through the pipeline with a
// bounded number of concurrent per-date runs. Dates are independent;
// one date's failure never blocks another's.
type Coordinator struct {
	run     RunFunc
	workers int64
	logger  *zap.Logger
}

// NewCoordinator wires a Coordinator. workers caps in-flight runs and
// must be positive.
func NewCoordinator(run RunFunc, workers int64, logger *zap.Logger) (*Coordinator, error) {
	if run == nil {
		return nil, fmt.Errorf("run function must be set")
	}
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be > 0, got %d", workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{run: run, workers: workers, logger: logger}, nil
}

// DatesBetween enumerates every calendar date in [start, end] inclusive,
// oldest first. Weekends and holidays are not predicted here; dates
// without a disclosure surface naturally as not-published outcomes.
func DatesBetween(start, end BusinessDate) []BusinessDate {
	if start.After(end) {
		return nil
	}
	var dates []BusinessDate
	for d := start; !d.After(end); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// Backfill runs every date in the slice and returns the outcome of each
// dispatched date. Cancelling the context stops further dispatch;
// in-flight runs complete and their outcomes are included, while dates
// never dispatched are absent from the result.
func (c *Coordinator) Backfill(ctx context.Context, dates []BusinessDate) map[BusinessDate]RunOutcome {
	sem := semaphore.NewWeighted(c.workers)
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes = make(map[BusinessDate]RunOutcome, len(dates))
	)

	// Cancellation gates dispatch only; a date already picked up must run
	// to completion, so workers get a context that outlives the cancel.
	runCtx := context.WithoutCancel(ctx)

	c.logger.Info("Starting backfill",
		zap.Int("dates", len(dates)),
		zap.Int64("workers", c.workers))

	for _, date := range dates {
		if err := sem.Acquire(ctx, 1); err != nil {
			c.logger.Warn("Backfill cancelled, stopping dispatch",
				zap.String("next_date", date.String()),
				zap.Error(err))
			break
		}

		wg.Add(1)
		go func(date BusinessDate) {
			defer wg.Done()
			defer sem.Release(1)
			metrics.BackfillWorkerStarted()
			defer metrics.BackfillWorkerDone()

			outcome := c.runOne(runCtx, date)
			mu.Lock()
			outcomes[date] = outcome
			mu.Unlock()
		}(date)
	}

	wg.Wait()
	c.logger.Info("Backfill finished", zap.Int("completed", len(outcomes)))
	return outcomes
}

// runOne isolates a panicking run so one poisoned document cannot take
// down the whole backfill.
func (c *Coordinator) runOne(ctx context.Context, date BusinessDate) (outcome RunOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("Run panicked",
				zap.String("date", date.String()),
				zap.Any("panic", rec))
			outcome = RunOutcome{
				Date: date,
				Kind: OutcomeFailed,
				Err:  fmt.Sprintf("panic: %v", rec),
			}
		}
	}()
	return c.run(ctx, date)
}

// Summarize tallies a backfill result for reporting.
func Summarize(outcomes map[BusinessDate]RunOutcome) (succeeded, notPublished, failed int) {
	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeSuccess:
			succeeded++
		case OutcomeNotPublished:
			notPublished++
		default:
			failed++
		}
	}
	return succeeded, notPublished, failed
}
