package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// dispatch calls fn concurrently once per item and waits for all calls.
// Results and errors are positional: callers classify each item's outcome,
// so the group goroutines always return nil and one failure never cancels
// the others. Every call runs to completion: a sub-batch is never abandoned
// half way.
func dispatch[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(max(len(items), 1))
	for i, item := range items {
		g.Go(func() error {
			results[i], errs[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait() // always nil, see above

	return results, errs
}
