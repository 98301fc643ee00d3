// Package batch runs independent tasks concurrently and collects every outcome.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome holds either Value or Err for the task at the same input index.
type Outcome[R any] struct {
	Value R
	Err   error
}

// Run fans fn out over items with at most limit tasks in flight (limit <= 0 means unbounded)
// and returns outcomes in input order. A failing task never cancels its siblings; a panic
// is converted into that task's error. Cancelling ctx is seen by every running fn.
func Run[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) (R, error)) []Outcome[R] {
	out := make([]Outcome[R], len(items))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					out[i].Err = fmt.Errorf("task %d panicked: %v", i, p)
				}
			}()
			if ctx.Err() != nil {
				out[i].Err = ctx.Err()
				return nil
			}
			out[i].Value, out[i].Err = fn(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Failed counts outcomes carrying an error.
func Failed[R any](outcomes []Outcome[R]) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
