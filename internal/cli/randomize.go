package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
	"github.com/matzehuels/pairnull/pkg/histogram"
	"github.com/matzehuels/pairnull/pkg/pipeline"
	"github.com/matzehuels/pairnull/pkg/randomize"
)

// randomizeFlags holds the command-line flags for the randomize command.
type randomizeFlags struct {
	mask         string        // raster mask (ESRI ASCII grid)
	crs          string        // reference system of inputs that declare none
	maskCRS      string        // reference system of the mask, if different
	areaWeighted bool          // weight cells by spherical area
	output       string        // output directory
	config       string        // TOML run file
	bins         int           // histogram windows
	tol          float64       // per-category tolerance
	overlap      float64       // window overlap fraction
	metric       string        // distance function name
	seed         uint64        // random seed
	maxTries     int           // try budget
	timeout      time.Duration // wall-clock budget
	escapeEvery  int           // accept every k-th try unconditionally (0 disables)
	strategy     string        // greedy or annealing
	bestEffort   bool          // return the best configuration on budget exhaustion
	replicates   int           // randomized pairs to produce
	concurrency  int           // replicates run in parallel
	plot         string        // plot formats (comma-separated)
	refresh      bool          // ignore cached runs
	tui          bool          // live progress view
	backend      backendOpts
}

// randomizeCommand creates the randomize command.
func (c *CLI) randomizeCommand() *cobra.Command {
	var flags randomizeFlags

	cmd := &cobra.Command{
		Use:   "randomize [x1] [x2]",
		Short: "Relocate two point patterns inside a mask, preserving distance distributions",
		Long: `Relocate two point patterns inside a study-region mask.

The randomized sets lie only in valid mask cells, and their within-set and
between-set pairwise-distance distributions match the observed ones within
--tol. Outputs keep the input format and any extra columns or properties.

Inputs may be CSV (lon/lat or x/y columns) or GeoJSON point collections. The
mask is an ESRI ASCII grid where NODATA cells are invalid.

Identical seeded runs are served from the local cache.`,
		Example: `  pairnull randomize oaks.csv beeches.csv --mask alps.asc --crs EPSG:4326
  pairnull randomize --config run.toml --replicates 99 --plot svg -o nulls/`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, output, backend, err := flags.resolve(cmd.Flags(), args)
			if err != nil {
				return err
			}
			return c.runRandomize(cmd.Context(), opts, output, backend, flags.tui)
		},
	}

	flags.register(cmd.Flags())

	return cmd
}

// register adds the randomize flags to f.
func (fl *randomizeFlags) register(f *pflag.FlagSet) {
	f.StringVarP(&fl.mask, "mask", "m", "", "raster mask (ESRI ASCII grid)")
	f.StringVar(&fl.crs, "crs", "", "reference system of the inputs, e.g. EPSG:4326")
	f.StringVar(&fl.maskCRS, "mask-crs", "", "reference system of the mask (default: --crs)")
	f.BoolVar(&fl.areaWeighted, "area-weighted", true, "weight geographic mask cells by their area")
	f.StringVarP(&fl.output, "output", "o", ".", "output directory")
	f.StringVarP(&fl.config, "config", "c", "", "TOML run file; flags override its values")
	f.IntVar(&fl.bins, "bins", randomize.DefaultBins, "number of distance windows")
	f.Float64Var(&fl.tol, "tol", randomize.DefaultTolerance, "tolerated deviation per distance category")
	f.Float64Var(&fl.overlap, "overlap", histogram.DefaultOverlap, "overlap between adjacent windows, in [0, 1)")
	f.StringVar(&fl.metric, "metric", "", "distance function: greatcircle, angular, euclidean (default: by CRS)")
	f.Uint64Var(&fl.seed, "seed", randomize.DefaultSeed, "random seed (0 selects the default)")
	f.IntVar(&fl.maxTries, "max-tries", randomize.DefaultMaxTries, "maximum number of tries")
	f.DurationVar(&fl.timeout, "timeout", 0, "wall-clock budget (0 = none)")
	f.IntVar(&fl.escapeEvery, "escape-every", randomize.DefaultEscapeEvery, "accept every k-th try unconditionally (0 disables)")
	f.StringVar(&fl.strategy, "strategy", string(randomize.StrategyGreedy), "acceptance strategy: greedy, annealing")
	f.BoolVar(&fl.bestEffort, "best-effort", false, "return the best configuration when the budget runs out")
	f.IntVarP(&fl.replicates, "replicates", "n", pipeline.DefaultReplicates, "number of randomized pairs")
	f.IntVar(&fl.concurrency, "concurrency", 0, "replicates run in parallel (0 = all)")
	f.StringVar(&fl.plot, "plot", "", "plot format(s): png, svg (comma-separated)")
	f.BoolVar(&fl.refresh, "refresh", false, "ignore cached runs")
	f.BoolVar(&fl.tui, "tui", false, "show a live progress view")
	f.BoolVar(&fl.backend.noCache, "no-cache", false, "disable caching")
	f.StringVar(&fl.backend.redisURL, "cache-url", "", "cache runs in Redis, e.g. redis://localhost:6379/0")
	f.StringVar(&fl.backend.mongoURI, "mongo-uri", "", "archive runs in MongoDB instead of the local run history")
	f.BoolVar(&fl.backend.noStore, "no-store", false, "do not archive runs")
}

// resolve merges the run file, positional arguments and explicitly set
// flags, in increasing precedence.
func (fl *randomizeFlags) resolve(fs *pflag.FlagSet, args []string) (pipeline.Options, string, backendOpts, error) {
	var opts pipeline.Options
	output := fl.output
	backend := fl.backend
	escape := randomize.DefaultEscapeEvery

	if fl.config != "" {
		file, err := loadRunFile(fl.config)
		if err != nil {
			return opts, "", backend, err
		}
		opts = file.pipelineOptions()
		if file.Output != "" && !fs.Changed("output") {
			output = file.Output
		}
		if file.Run.EscapeEvery != nil {
			escape = *file.Run.EscapeEvery
		}
		if !fs.Changed("no-cache") {
			backend.noCache = file.Cache.Disabled
		}
		if !fs.Changed("cache-url") {
			backend.redisURL = file.Cache.RedisURL
		}
		if !fs.Changed("no-store") {
			backend.noStore = file.Store.Disabled
		}
		if !fs.Changed("mongo-uri") {
			backend.mongoURI = file.Store.MongoURI
		}
	}

	if len(args) > 0 {
		opts.X1Path = args[0]
	}
	if len(args) > 1 {
		opts.X2Path = args[1]
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) || fl.config == "" {
			apply()
		}
	}
	set("mask", func() {
		if fl.mask != "" {
			opts.MaskPath = fl.mask
		}
	})
	set("crs", func() {
		if fl.crs != "" {
			opts.CRS = fl.crs
		}
	})
	set("mask-crs", func() {
		if fl.maskCRS != "" {
			opts.MaskCRS = fl.maskCRS
		}
	})
	if fs.Changed("area-weighted") {
		opts.AreaWeighted = &fl.areaWeighted
	}
	set("bins", func() { opts.Run.Bins = fl.bins })
	set("tol", func() { opts.Run.Tolerance = fl.tol })
	set("overlap", func() { opts.Run.Overlap = randomize.Overlap(fl.overlap) })
	set("metric", func() { opts.Run.MetricName = fl.metric })
	set("seed", func() { opts.Run.Seed = fl.seed })
	set("max-tries", func() { opts.Run.MaxTries = fl.maxTries })
	set("timeout", func() { opts.Run.Timeout = fl.timeout })
	set("escape-every", func() { escape = fl.escapeEvery })
	set("strategy", func() { opts.Run.Strategy = randomize.Strategy(fl.strategy) })
	set("best-effort", func() { opts.Run.BestEffort = fl.bestEffort })
	set("replicates", func() { opts.Replicates = fl.replicates })
	set("concurrency", func() { opts.Concurrency = fl.concurrency })
	set("plot", func() { opts.PlotFormats = parsePlotFormats(fl.plot) })
	opts.Run.EscapeEvery = randomize.Escape(escape)
	opts.Refresh = fl.refresh

	if opts.X1Path == "" || opts.X2Path == "" {
		return opts, "", backend, errors.New(errors.ErrCodeInvalidInput, "two point files are required (as arguments or x1/x2 in --config)")
	}
	if opts.MaskPath == "" {
		return opts, "", backend, errors.New(errors.ErrCodeInvalidInput, "a mask is required (--mask or mask in --config)")
	}
	return opts, output, backend, nil
}

// parsePlotFormats splits a comma-separated format list. Empty means none.
func parsePlotFormats(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(strings.ToLower(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// runRandomize executes the pipeline and writes the outputs.
func (c *CLI) runRandomize(ctx context.Context, opts pipeline.Options, output string, backend backendOpts, tui bool) error {
	runner, err := c.newRunner(ctx, backend)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = c.Logger
	prog := newProgress(c.Logger)
	var res *pipeline.Result
	if tui {
		res, err = runWithTUI(ctx, runner, opts)
	} else {
		spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Randomizing %s and %s...", opts.X1Path, opts.X2Path))
		if opts.Run.Observer == nil {
			opts.Run.Observer = spinner
		}
		spinner.Start()
		res, err = runner.Execute(ctx, opts)
		if err != nil {
			spinner.StopWithError("Randomization failed")
		} else {
			spinner.Stop()
		}
	}
	if err != nil {
		return explainFailure(err)
	}
	prog.done("Finished randomization")

	printRunSummary(res)
	paths, err := pipeline.WriteOutputs(output, res, opts.X1Path, opts.X2Path)
	if err != nil {
		return err
	}
	for _, p := range paths {
		printFile(p)
	}
	return nil
}

// explainFailure adds a hint for budget exhaustion.
func explainFailure(err error) error {
	if errors.Is(err, errors.ErrCodeConvergenceFailure) {
		printDetail("Raise --max-tries or --tol, or pass --best-effort to keep the closest configuration")
	}
	return err
}

// crsLabel renders a reference system for display.
func crsLabel(c geo.CRS) string {
	if c.IsZero() {
		return "undeclared"
	}
	return c.String()
}
