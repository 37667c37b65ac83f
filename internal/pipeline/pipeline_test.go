package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunMergesResultsInOrder(t *testing.T) {
	t.Parallel()
	p := &Pool{MaxWorkers: 4}
	ids := []string{"A", "B", "C", "D"}

	results, err := p.Run(context.Background(), ids, func(ctx context.Context, id string) (any, error) {
		return id + "-done", nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(ids) {
		t.Fatalf("results = %v, want %d entries", results, len(ids))
	}
	for _, id := range ids {
		if results[id] != id+"-done" {
			t.Fatalf("results[%s] = %v, want %q", id, results[id], id+"-done")
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()
	p := &Pool{MaxWorkers: 2}
	ids := []string{"A", "B", "C", "D", "E", "F"}

	var cur, peak int64
	_, err := p.Run(context.Background(), ids, func(ctx context.Context, id string) (any, error) {
		n := atomic.AddInt64(&cur, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&cur, -1)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if atomic.LoadInt64(&peak) > 2 {
		t.Fatalf("observed peak concurrency %d, want <= MaxWorkers (2)", peak)
	}
}

func TestRunContinuesPastFailingWitness(t *testing.T) {
	t.Parallel()
	p := &Pool{MaxWorkers: 3}
	ids := []string{"A", "B", "C"}
	boom := errors.New("boom")

	results, err := p.Run(context.Background(), ids, func(ctx context.Context, id string) (any, error) {
		if id == "B" {
			return nil, boom
		}
		return id, nil
	})
	if err == nil {
		t.Fatalf("expected an aggregate error")
	}
	var pErrs *Errors
	if !errors.As(err, &pErrs) {
		t.Fatalf("err = %v, want *Errors", err)
	}
	if pErrs.ByWitness["B"] != boom {
		t.Fatalf("ByWitness[B] = %v, want %v", pErrs.ByWitness["B"], boom)
	}
	if results["A"] != "A" || results["C"] != "C" {
		t.Fatalf("results = %v, want A and C present despite B's failure", results)
	}
}

func TestErrorsMessageIsDeterministic(t *testing.T) {
	t.Parallel()
	e := &Errors{ByWitness: map[string]error{
		"Z": errors.New("z failed"),
		"A": errors.New("a failed"),
	}}
	msg := e.Error()
	want := "pipeline: A: a failed; Z: z failed"
	if msg != want {
		t.Fatalf("Error() = %q, want %q", msg, want)
	}
}

func TestPerWitnessBudgetCancelsLongRunningTask(t *testing.T) {
	t.Parallel()
	p := &Pool{MaxWorkers: 1, PerWitnessBudget: 5 * time.Millisecond}

	_, err := p.Run(context.Background(), []string{"A"}, func(ctx context.Context, id string) (any, error) {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("cancelled: %w", ctx.Err())
		case <-time.After(100 * time.Millisecond):
			return "too slow", nil
		}
	})
	if err == nil {
		t.Fatalf("expected the per-witness budget to cancel the task")
	}
}
