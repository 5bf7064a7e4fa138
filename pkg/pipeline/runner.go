package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/pairnull/pkg/cache"
	"github.com/matzehuels/pairnull/pkg/randomize"
	"github.com/matzehuels/pairnull/pkg/store"
)

// Runner encapsulates pipeline execution with caching and run history.
// Both CLI and API use it.
//
// The Runner keeps no per-run state, so multiple goroutines can share one
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Store  store.Store
	Logger *log.Logger
}

// NewRunner creates a runner. A nil keyer means DefaultKeyer, a nil cache
// disables caching and a nil store disables run history.
func NewRunner(c cache.Cache, keyer cache.Keyer, st store.Store, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if st == nil {
		st = store.NullStore{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Store:  st,
		Logger: logger,
	}
}

// Execute runs the complete load → randomize → render pipeline.
//
// A failed search returns the engine's error unchanged in code, so callers
// can tell CONVERGENCE_FAILURE from input errors.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	res := &Result{Artifacts: make(map[string][]byte)}

	// Stage 1: Load
	loadStart := time.Now()
	in, err := Load(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	res.In1, res.In2 = in.X1, in.X2
	res.Stats.LoadTime = time.Since(loadStart)
	res.Stats.Points1, res.Stats.Points2 = in.X1.Len(), in.X2.Len()
	res.Stats.ValidCells = in.Mask.ValidCellCount()

	r.Logger.Info("loaded inputs",
		"x1", in.X1.Len(),
		"x2", in.X2.Len(),
		"valid_cells", res.Stats.ValidCells,
		"duration", res.Stats.LoadTime)

	// Stage 2: Randomize
	runStart := time.Now()
	rec, hit, err := r.RandomizeWithCacheInfo(ctx, in, opts)
	if err != nil {
		return nil, err
	}
	res.Record = rec
	res.CacheHit = hit
	if res.Replicates, err = rec.Results(); err != nil {
		return nil, err
	}
	res.Run = res.Replicates[0]
	res.Stats.RunTime = time.Since(runStart)
	if res.Out1, res.Out2, err = res.Outputs(0); err != nil {
		return nil, err
	}

	r.Logger.Info("randomized",
		"run_id", rec.ID,
		"state", res.Run.State,
		"replicates", len(res.Replicates),
		"tries", res.Run.Tries,
		"deviation", res.Run.Scores.Max(),
		"cached", hit,
		"duration", res.Stats.RunTime)

	// Stage 3: Render
	if len(opts.PlotFormats) > 0 {
		renderStart := time.Now()
		runKey := r.runKey(in, opts)
		if res.Artifacts, err = r.Render(ctx, res.Run, runKey, opts.PlotFormats); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		res.Stats.RenderTime = time.Since(renderStart)
		r.Logger.Info("rendered plots",
			"formats", opts.PlotFormats,
			"duration", res.Stats.RenderTime)
	}
	return res, nil
}

// RandomizeWithCacheInfo runs the engine on loaded inputs, consulting the
// cache first. New records are cached and saved to the store.
func (r *Runner) RandomizeWithCacheInfo(ctx context.Context, in *Inputs, opts Options) (*store.Record, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	runKey := r.runKey(in, opts)
	if runKey != "" && !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, runKey); err == nil && hit {
			var rec store.Record
			if err := json.Unmarshal(data, &rec); err == nil && len(rec.Replicates) == opts.Replicates {
				return &rec, true, nil
			}
		} else if err != nil {
			r.Logger.Warn("cache lookup failed", "err", err)
		}
	}

	runOpts := opts.Run
	if runOpts.RunID == "" {
		runOpts.RunID = uuid.NewString()
	}

	var results []*randomize.Result
	var err error
	if opts.Replicates == 1 {
		var one *randomize.Result
		one, err = randomize.Run(ctx, in.X1.Set, in.X2.Set, in.Mask, runOpts)
		results = []*randomize.Result{one}
	} else {
		results, err = randomize.RunBatch(ctx, in.X1.Set, in.X2.Set, in.Mask, runOpts, opts.Replicates, opts.Concurrency)
	}
	if err != nil {
		return nil, false, fmt.Errorf("randomize: %w", err)
	}

	rec := store.NewRecord(in.Hash, runOpts, results)
	if runKey != "" && cacheable(runOpts, results) {
		if data, err := json.Marshal(rec); err == nil {
			if err := r.Cache.Set(ctx, runKey, data, cache.DefaultTTL); err != nil {
				r.Logger.Warn("cache write failed", "err", err)
			}
		}
	}
	if err := r.Store.Save(ctx, rec); err != nil {
		r.Logger.Warn("saving run failed", "run_id", rec.ID, "err", err)
	}
	return rec, false, nil
}

// runKey is empty when the run cannot be cached: unknown mask content or a
// caller-supplied metric function.
func (r *Runner) runKey(in *Inputs, opts Options) string {
	if in.Hash == "" || (opts.Run.Metric != nil && opts.Run.MetricName == "") {
		return ""
	}
	return r.Keyer.RunKey(in.Hash, opts.RunKeyOpts())
}

// cacheable rejects runs whose outcome depended on wall-clock time.
func cacheable(opts randomize.Options, results []*randomize.Result) bool {
	if opts.Timeout == 0 {
		return true
	}
	for _, res := range results {
		if !res.Converged() {
			return false
		}
	}
	return true
}

// Close releases the cache and store.
func (r *Runner) Close() error {
	var first error
	if r.Cache != nil {
		first = r.Cache.Close()
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
