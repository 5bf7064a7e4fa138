package randomize

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
	"github.com/matzehuels/pairnull/pkg/histogram"
	"github.com/matzehuels/pairnull/pkg/raster"
)

const (
	// DefaultBins is the number of histogram windows per category.
	DefaultBins = 20

	// DefaultTolerance is the per-category deviation a run must reach.
	DefaultTolerance = 0.001

	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = uint64(42)

	// DefaultMaxTries bounds the number of search iterations.
	DefaultMaxTries = 1_000_000

	// DefaultEscapeEvery is the escape-valve period K: every K-th try is
	// accepted regardless of its score.
	DefaultEscapeEvery = 10_000

	// DefaultProgressEvery is how often (in tries) progress is reported.
	DefaultProgressEvery = 1_000

	// DefaultInitialTemperature and DefaultCooling drive the annealing
	// strategy.
	DefaultInitialTemperature = 0.01
	DefaultCooling            = 0.9995
)

// Strategy selects the acceptance rule of the search.
type Strategy string

const (
	// StrategyGreedy accepts strictly improving moves only.
	StrategyGreedy Strategy = "greedy"
	// StrategyAnnealing also accepts worsening moves with probability
	// exp(-delta/T) under a geometric cooling schedule.
	StrategyAnnealing Strategy = "annealing"
)

// Strategies lists the accepted strategy names.
var Strategies = []Strategy{StrategyGreedy, StrategyAnnealing}

// ParseStrategy validates a strategy name. Empty selects the default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(s)) {
	case "":
		return StrategyGreedy, nil
	case StrategyGreedy:
		return StrategyGreedy, nil
	case StrategyAnnealing:
		return StrategyAnnealing, nil
	}
	return "", errors.New(errors.ErrCodeInvalidOption,
		"invalid strategy: %q (must be one of: greedy, annealing)", s)
}

// Options configures a randomization run. The zero value is usable after
// ValidateAndSetDefaults.
type Options struct {
	Bins      int     `json:"bins,omitempty" toml:"bins"`
	Tolerance float64 `json:"tolerance,omitempty" toml:"tolerance"`
	// Overlap is nil for histogram.DefaultOverlap. Zero is a valid overlap.
	Overlap *float64 `json:"overlap" toml:"overlap"`

	// CRS overrides the reference system of undeclared input sets.
	CRS geo.CRS `json:"crs,omitempty" toml:"crs"`
	// Metric defaults to geo.DefaultMetric of the resolved CRS.
	Metric     geo.Metric `json:"-" toml:"-"`
	MetricName string     `json:"metric,omitempty" toml:"metric"`

	// Seed 0 selects DefaultSeed.
	Seed        uint64        `json:"seed,omitempty" toml:"seed"`
	MaxTries    int           `json:"max_tries,omitempty" toml:"max_tries"`
	Timeout     time.Duration `json:"timeout,omitempty" toml:"timeout"`
	EscapeEvery *int          `json:"escape_every,omitempty" toml:"escape_every"`

	Strategy           Strategy `json:"strategy,omitempty" toml:"strategy"`
	InitialTemperature float64  `json:"initial_temperature,omitempty" toml:"initial_temperature"`
	Cooling            float64  `json:"cooling,omitempty" toml:"cooling"`

	// BestEffort returns an aborted run's result without an error.
	BestEffort bool `json:"best_effort,omitempty" toml:"best_effort"`

	PoolMin int `json:"pool_min,omitempty" toml:"pool_min"`
	PoolMax int `json:"pool_max,omitempty" toml:"pool_max"`

	ProgressEvery int `json:"-" toml:"-"`

	// RunID names the run; a random UUID is used when empty.
	RunID string `json:"run_id,omitempty" toml:"-"`

	// Runtime options (not serialized)
	Logger   *log.Logger `json:"-" toml:"-"`
	Observer Observer    `json:"-" toml:"-"`

	validated bool
}

// Escape returns a pointer for Options.EscapeEvery. Escape(0) disables the
// escape valve.
func Escape(k int) *int { return &k }

// Overlap returns a pointer for Options.Overlap.
func Overlap(v float64) *float64 { return &v }

// ValidateAndSetDefaults checks option ranges and fills defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Bins == 0 {
		o.Bins = DefaultBins
	}
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Overlap == nil {
		o.Overlap = Overlap(histogram.DefaultOverlap)
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.MaxTries == 0 {
		o.MaxTries = DefaultMaxTries
	}
	if o.EscapeEvery == nil {
		o.EscapeEvery = Escape(DefaultEscapeEvery)
	}
	if o.Strategy == "" {
		o.Strategy = StrategyGreedy
	}
	if o.InitialTemperature == 0 {
		o.InitialTemperature = DefaultInitialTemperature
	}
	if o.Cooling == 0 {
		o.Cooling = DefaultCooling
	}
	if o.PoolMin == 0 {
		o.PoolMin = raster.DefaultPoolMin
	}
	if o.PoolMax == 0 {
		o.PoolMax = raster.DefaultPoolMax
	}
	if o.ProgressEvery == 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.Observer == nil {
		o.Observer = NoopObserver{}
	}

	if err := o.validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

func (o *Options) validate() error {
	if err := errors.ValidateMinInt("bins", o.Bins, 1); err != nil {
		return err
	}
	if err := errors.ValidatePositive("tolerance", o.Tolerance); err != nil {
		return err
	}
	if err := errors.ValidateFraction("overlap", *o.Overlap); err != nil {
		return err
	}
	if err := errors.ValidateMinInt("max_tries", o.MaxTries, 1); err != nil {
		return err
	}
	if err := errors.ValidateMinInt("escape_every", *o.EscapeEvery, 0); err != nil {
		return err
	}
	if o.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "timeout must not be negative, got %s", o.Timeout)
	}
	if _, err := ParseStrategy(string(o.Strategy)); err != nil {
		return err
	}
	if err := errors.ValidatePositive("initial_temperature", o.InitialTemperature); err != nil {
		return err
	}
	if o.Cooling <= 0 || o.Cooling > 1 {
		return errors.New(errors.ErrCodeInvalidOption, "cooling must be in (0, 1], got %v", o.Cooling)
	}
	if err := errors.ValidateMinInt("pool_min", o.PoolMin, 1); err != nil {
		return err
	}
	if o.PoolMax < o.PoolMin {
		return errors.New(errors.ErrCodeInvalidOption,
			"pool_max (%d) must not be below pool_min (%d)", o.PoolMax, o.PoolMin)
	}
	if err := errors.ValidateMinInt("progress_every", o.ProgressEvery, 1); err != nil {
		return err
	}
	if o.Metric == nil && o.MetricName != "" {
		m, err := geo.MetricByName(o.MetricName)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidOption, err, "metric")
		}
		o.Metric = m
	}
	return nil
}

// Summary renders the options that influence the outcome, for logs.
func (o *Options) Summary() string {
	return fmt.Sprintf("bins=%d tol=%g overlap=%g seed=%d max_tries=%d escape_every=%d strategy=%s",
		o.Bins, o.Tolerance, *o.Overlap, o.Seed, o.MaxTries, *o.EscapeEvery, o.Strategy)
}
