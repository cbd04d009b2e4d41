// Package dispatch sends job units to a translation backend through a bounded
// worker pool.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/job"
	"github.com/nguyentantai21042004/transflow/internal/logger"
	"github.com/nguyentantai21042004/transflow/internal/translate"
)

// Options controls the worker pool and the per-unit retry policy.
type Options struct {
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	SourceLang  string
	TargetLang  string
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return 5
	}
	return o.Concurrency
}

// Dispatcher translates the units of one job at a time.
type Dispatcher struct {
	translator translate.Translator
	opts       Options
	logger     logger.Logger
}

// New creates a Dispatcher.
func New(tr translate.Translator, opts Options, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		translator: tr,
		opts:       opts,
		logger:     log,
	}
}

// Run translates every unit of j. Units whose retries run out keep their
// source text and are marked failed; that is only an error when the job is
// fail-closed. On cancellation every unfinished unit is marked failed before
// Run returns ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, j *job.Job) error {
	j.Start()

	total := len(j.Units())
	workers := d.opts.concurrency()
	if workers > total {
		workers = total
	}

	d.logger.Info(ctx, "Translating %d units with %s (workers: %d, retries: %d)",
		total, d.translator.Name(), workers, d.opts.MaxRetries)
	start := time.Now()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(runCtx, j, stop)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		n := j.Abandon("cancelled")
		d.logger.Warn(ctx, "Translation cancelled, %d unit(s) fell back to source text", n)
		return ctx.Err()
	}

	if j.Derived() == job.StatusFailed {
		n := j.Abandon("stopped after a unit failed under fail-closed policy")
		counts := j.Counts()
		return domain.TranslationUnit("", fmt.Errorf("%d unit(s) failed under fail-closed policy (%d not attempted)",
			counts[domain.UnitFailed]-n, n))
	}

	counts := j.Counts()
	d.logger.Info(ctx, "Translation finished in %s: %d done, %d failed (source text kept)",
		time.Since(start).Round(time.Millisecond), counts[domain.UnitDone], counts[domain.UnitFailed])
	return nil
}

func (d *Dispatcher) work(ctx context.Context, j *job.Job, stop context.CancelFunc) {
	for ctx.Err() == nil {
		u, ok := j.Claim()
		if !ok {
			return
		}

		text, err := d.translateUnit(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				// Left in flight; Run abandons it.
				return
			}
			d.logger.Warn(ctx, "%v; keeping source text", domain.TranslationUnit(u.ID, err))
			if ferr := j.Fail(u, err); ferr != nil {
				d.logger.Debug(ctx, "Unit %s already settled: %v", u.ID, ferr)
			}
			if j.FailClosed {
				stop()
				return
			}
			continue
		}

		if err := j.Complete(u, text); err != nil {
			d.logger.Debug(ctx, "Unit %s already settled: %v", u.ID, err)
		}
	}
}

// translateUnit sends the same request up to MaxRetries+1 times.
func (d *Dispatcher) translateUnit(ctx context.Context, u *domain.Block) (string, error) {
	req := translate.Request{
		Text:       u.SourceText,
		SourceLang: d.opts.SourceLang,
		TargetLang: d.opts.TargetLang,
	}
	attempts := d.opts.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && d.opts.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(d.opts.RetryDelay):
			}
		}

		u.Attempts = attempt
		text, err := d.call(ctx, req)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		d.logger.Debug(ctx, "Unit %s attempt %d/%d failed: %v", u.ID, attempt, attempts, err)
	}
	return "", fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (d *Dispatcher) call(ctx context.Context, req translate.Request) (string, error) {
	if d.opts.Timeout <= 0 {
		return d.translator.Translate(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()
	return d.translator.Translate(attemptCtx, req)
}
