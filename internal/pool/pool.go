// Package pool runs I/O-bound tasks with a fixed concurrency window.
package pool

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/civicmap/pkg/constants"
	"github.com/agentstation/civicmap/pkg/logging"
)

// Map calls fn for every input with at most limit calls in flight and
// returns the outputs in input order. A failing or panicking task leaves the
// zero value in its slot and its error at the same index of errs; the other
// tasks keep running.
func Map[I, O any](ctx context.Context, limit int, inputs []I, fn func(context.Context, I) (O, error)) (out []O, errs []error) {
	out = make([]O, len(inputs))
	errs = make([]error, len(inputs))
	if len(inputs) == 0 {
		return out, errs
	}

	switch {
	case limit <= 0:
		limit = constants.DefaultConcurrency
	case limit > constants.MaxConcurrency:
		limit = constants.MaxConcurrency
	}

	logger := logging.FromContext(ctx)

	var g errgroup.Group
	g.SetLimit(limit)
	for i, in := range inputs {
		g.Go(func() error {
			v, err := run(ctx, in, fn)
			if err != nil {
				logger.Warn().Err(err).Int("task", i).Msg("Task failed")
				errs[i] = err
				return nil
			}
			out[i] = v
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors

	return out, errs
}

func run[I, O any](ctx context.Context, in I, fn func(context.Context, I) (O, error)) (v O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return v, err
	}
	return fn(ctx, in)
}
