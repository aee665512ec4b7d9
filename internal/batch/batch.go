// Package batch runs many independent operations and reports how each one
// went. There is no cross-item transaction: an item that fails is counted
// and the rest carry on, nothing is rolled back and nothing is retried.
package batch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight items when the caller passes <= 0.
const DefaultConcurrency = 4

// Item is the outcome of one input, at the input's index.
type Item[T any] struct {
	Index int    `json:"index"`
	Value T      `json:"value"`
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the item succeeded.
func (it Item[T]) OK() bool {
	return it.Err == nil && it.Error == ""
}

// Report aggregates a batch run. Items are in input order regardless of
// completion order.
type Report[T any] struct {
	ID      string    `json:"batch_id"`
	Created int       `json:"created"`
	Failed  int       `json:"failed"`
	Items   []Item[T] `json:"items"`
}

// String renders the outcome as "N created, M failed".
func (r Report[T]) String() string {
	return fmt.Sprintf("%d created, %d failed", r.Created, r.Failed)
}

// Failures returns the items that did not succeed.
func (r Report[T]) Failures() []Item[T] {
	var failed []Item[T]
	for _, it := range r.Items {
		if !it.OK() {
			failed = append(failed, it)
		}
	}
	return failed
}

// Run calls fn once per input with at most concurrency calls in flight.
// Cancelling ctx stops inputs that have not started yet; those are reported
// as failed with the context's error. Calls already started run to
// completion with a context that is not cancelled.
func Run[In, Out any](ctx context.Context, concurrency int, inputs []In, fn func(context.Context, In) (Out, error)) Report[Out] {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	report := Report[Out]{
		ID:    uuid.NewString(),
		Items: make([]Item[Out], len(inputs)),
	}

	var created, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, in := range inputs {
		report.Items[i].Index = i
		if err := ctx.Err(); err != nil {
			report.Items[i].Err = err
			report.Items[i].Error = err.Error()
			failed.Add(1)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.Items[i].Err = err
				report.Items[i].Error = err.Error()
				failed.Add(1)
				return nil
			}

			out, err := fn(context.WithoutCancel(ctx), in)
			report.Items[i].Value = out
			if err != nil {
				report.Items[i].Err = err
				report.Items[i].Error = err.Error()
				failed.Add(1)
				return nil
			}
			created.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Created = int(created.Load())
	report.Failed = int(failed.Load())
	return report
}
