package randomize

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
	"github.com/matzehuels/pairnull/pkg/raster"
)

// RunBatch runs replicates independent randomizations of the same inputs,
// at most concurrency at a time (0 means one per replicate). Replicate i
// uses seed opts.Seed+i and its own pool and random stream; the mask is
// shared read-only. Results are returned in replicate order.
//
// The first failing replicate cancels the rest. With BestEffort set,
// unconverged replicates are returned with State StateAborted instead.
// opts.Observer, when set, is called from several goroutines.
func RunBatch(ctx context.Context, x1, x2 geo.PointSet, mask raster.Mask, opts Options, replicates, concurrency int) ([]*Result, error) {
	if err := errors.ValidateMinInt("replicates", replicates, 1); err != nil {
		return nil, err
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	replicate := func(i int) Options {
		o := opts
		o.Seed = opts.Seed + uint64(i)
		if opts.RunID != "" {
			o.RunID = fmt.Sprintf("%s-%d", opts.RunID, i)
		}
		return o
	}

	// The first engine is built eagerly so input errors surface before any
	// search starts.
	first, err := New(x1, x2, mask, replicate(0))
	if err != nil {
		return nil, err
	}

	results := make([]*Result, replicates)
	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i := range replicates {
		g.Go(func() error {
			e := first
			if i > 0 {
				var err error
				if e, err = New(x1, x2, mask, replicate(i)); err != nil {
					return fmt.Errorf("replicate %d: %w", i, err)
				}
			}
			res, err := e.Run(ctx)
			results[i] = res
			if err != nil {
				return fmt.Errorf("replicate %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
