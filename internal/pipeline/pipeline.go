// Package pipeline runs comparison-building and substemma optimization
// across many witnesses under a bounded worker pool, merging results under
// a single writer lock and aggregating per-witness errors centrally.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Pool runs one Task per witness ID across a bounded set of goroutines. The
// shape mirrors a bounded worker group: a semaphore-style capacity channel,
// a single mutex guarding the shared results map, and centrally collected
// errors re-raised after the pool is joined.
type Pool struct {
	// MaxWorkers bounds concurrent in-flight tasks. Zero or negative means 1
	// (sequential), matching the default of the worker-group idiom this
	// pool scales down from.
	MaxWorkers int
	// Logger receives progress/warning lines; nil defaults to a stderr
	// logger at info level.
	Logger *log.Logger
	// PerWitnessBudget, if > 0, bounds how long a single Task may run
	// before its context is cancelled; it does not abort already-running
	// work, only signals cancellation through ctx.
	PerWitnessBudget time.Duration

	mu      sync.Mutex
	results map[string]any
}

// Task computes one witness's result. Implementations must check
// ctx.Done() at any internal traversal boundary, per the cancellation
// contract; Run does not forcibly kill goroutines on timeout.
type Task func(ctx context.Context, witnessID string) (any, error)

// Errors aggregates the per-witness failures collected after a Run call,
// satisfying error via a joined, deterministic message.
type Errors struct {
	ByWitness map[string]error
}

func (e *Errors) Error() string {
	if e == nil || len(e.ByWitness) == 0 {
		return "pipeline: no errors"
	}
	ids := make([]string, 0, len(e.ByWitness))
	for id := range e.ByWitness {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var sb strings.Builder
	sb.WriteString("pipeline: ")
	for i, id := range ids {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s: %v", id, e.ByWitness[id])
	}
	return sb.String()
}

func (p *Pool) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.InfoLevel})
}

// Run dispatches task for every witness in witnessIDs, bounded to
// MaxWorkers concurrent goroutines, and returns the merged per-witness
// results as a map keyed by witness ID. ctx governs the overall run;
// PerWitnessBudget, if set, additionally bounds each task.
//
// If any task fails, Run still runs every remaining task (a failing
// witness does not block others) and returns a non-nil *Errors, which
// gathers every worker's error, once the pool is joined.
func (p *Pool) Run(ctx context.Context, witnessIDs []string, task Task) (map[string]any, error) {
	workers := p.MaxWorkers
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	p.results = make(map[string]any, len(witnessIDs))
	p.mu.Unlock()

	errs := &Errors{ByWitness: make(map[string]error)}
	var errMu sync.Mutex

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, id := range witnessIDs {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(witnessID string) {
			defer wg.Done()
			defer func() { <-sem }()
			p.runOne(ctx, witnessID, task, errs, &errMu)
		}(id)
	}
	wg.Wait()

	p.mu.Lock()
	results := p.results
	p.mu.Unlock()

	if len(errs.ByWitness) > 0 {
		return results, errs
	}
	return results, nil
}

func (p *Pool) runOne(ctx context.Context, witnessID string, task Task, errs *Errors, errMu *sync.Mutex) {
	taskCtx := ctx
	var cancel context.CancelFunc
	if p.PerWitnessBudget > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, p.PerWitnessBudget)
		defer cancel()
	}

	result, err := task(taskCtx, witnessID)
	if err != nil {
		p.logger().Warn("witness task failed", "witness", witnessID, "err", err)
		errMu.Lock()
		errs.ByWitness[witnessID] = err
		errMu.Unlock()
		return
	}

	p.mu.Lock()
	p.results[witnessID] = result
	p.mu.Unlock()
}
