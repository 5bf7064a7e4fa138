// Package pipeline runs the complete load → randomize → render flow shared
// by the CLI and the HTTP API, so both entry points validate, cache and
// store runs the same way.
//
// # Architecture
//
// The pipeline has three stages:
//
//  1. Load: read both point collections and the raster mask, resolve their
//     reference systems
//  2. Randomize: run the engine once, or once per replicate
//  3. Render: draw distance-distribution plots of the first replicate
//
// Runs are deterministic for a fixed seed, so a finished run is cached under
// a key derived from the inputs and every outcome-relevant option.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, store.NullStore{}, logger)
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    X1Path:   "oaks.csv",
//	    X2Path:   "beeches.geojson",
//	    MaskPath: "alps.asc",
//	    CRS:      "EPSG:4326",
//	    Run:      randomize.Options{Tolerance: 0.005},
//	})
//	if err != nil {
//	    return err
//	}
//	pointio.WriteFile("oaks_null.csv", res.Out1)
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pairnull/pkg/cache"
	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
	"github.com/matzehuels/pairnull/pkg/histogram"
	"github.com/matzehuels/pairnull/pkg/pointio"
	"github.com/matzehuels/pairnull/pkg/randomize"
	"github.com/matzehuels/pairnull/pkg/raster"
	"github.com/matzehuels/pairnull/pkg/render/histplot"
	"github.com/matzehuels/pairnull/pkg/store"
)

const (
	// DefaultReplicates is the number of randomized pairs per run.
	DefaultReplicates = 1

	// MaxReplicates bounds a single request.
	MaxReplicates = 1000
)

// Options configures one pipeline run.
//
// Each input is given either as a path or pre-loaded. Pre-loaded masks are
// only cached when MaskKey identifies their content.
type Options struct {
	X1Path   string `json:"x1,omitempty" toml:"x1"`
	X2Path   string `json:"x2,omitempty" toml:"x2"`
	MaskPath string `json:"mask,omitempty" toml:"mask"`

	X1      *pointio.Collection `json:"-" toml:"-"`
	X2      *pointio.Collection `json:"-" toml:"-"`
	Mask    raster.Mask         `json:"-" toml:"-"`
	MaskKey string              `json:"-" toml:"-"`

	// CRS is declared for inputs that carry none. MaskCRS overrides it for
	// the mask.
	CRS     string `json:"crs,omitempty" toml:"crs"`
	MaskCRS string `json:"mask_crs,omitempty" toml:"mask_crs"`

	// AreaWeighted selects cells proportionally to their spherical area on
	// geographic masks.
	AreaWeighted *bool `json:"area_weighted,omitempty" toml:"area_weighted"`

	Run         randomize.Options `json:"run" toml:"run"`
	Replicates  int               `json:"replicates,omitempty" toml:"replicates"`
	Concurrency int               `json:"concurrency,omitempty" toml:"concurrency"`
	PlotFormats []string          `json:"plot_formats,omitempty" toml:"plot_formats"`

	// Refresh skips the cache lookup but still writes the new result.
	Refresh bool `json:"refresh,omitempty" toml:"-"`

	Logger *log.Logger `json:"-" toml:"-"`

	crs, maskCRS geo.CRS
	validated    bool
}

// Result holds the outputs of a pipeline run.
type Result struct {
	// In1 and In2 are the loaded inputs.
	In1, In2 *pointio.Collection

	// Out1 and Out2 are the first replicate, in the inputs' representation.
	Out1, Out2 *pointio.Collection

	// Run is the first replicate. Replicates holds all of them in order.
	Run        *randomize.Result
	Replicates []*randomize.Result

	// Record is what was cached and stored for this run.
	Record *store.Record

	// Artifacts holds rendered plots keyed by format.
	Artifacts map[string][]byte

	// CacheHit reports whether the runs came from the cache.
	CacheHit bool

	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Points1    int
	Points2    int
	ValidCells int
	LoadTime   time.Duration
	RunTime    time.Duration
	RenderTime time.Duration
}

// Outputs returns replicate i in the inputs' representation.
func (r *Result) Outputs(i int) (*pointio.Collection, *pointio.Collection, error) {
	if i < 0 || i >= len(r.Replicates) {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "replicate %d out of range", i)
	}
	rep := r.Replicates[i]
	o1, err := r.In1.WithPoints(rep.Set1)
	if err != nil {
		return nil, nil, fmt.Errorf("x1: %w", err)
	}
	o2, err := r.In2.WithPoints(rep.Set2)
	if err != nil {
		return nil, nil, fmt.Errorf("x2: %w", err)
	}
	return o1, o2, nil
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.X1 == nil && o.X1Path == "" {
		return errors.New(errors.ErrCodeInvalidInput, "x1 is required")
	}
	if o.X2 == nil && o.X2Path == "" {
		return errors.New(errors.ErrCodeInvalidInput, "x2 is required")
	}
	if o.Mask == nil && o.MaskPath == "" {
		return errors.New(errors.ErrCodeInvalidInput, "mask is required")
	}

	var err error
	if o.CRS != "" {
		if o.crs, err = geo.ParseCRS(o.CRS); err != nil {
			return err
		}
	}
	o.maskCRS = o.crs
	if o.MaskCRS != "" {
		if o.maskCRS, err = geo.ParseCRS(o.MaskCRS); err != nil {
			return err
		}
	}

	if o.Replicates == 0 {
		o.Replicates = DefaultReplicates
	}
	if o.Replicates < 1 || o.Replicates > MaxReplicates {
		return errors.New(errors.ErrCodeInvalidOption, "replicates must be in [1, %d], got %d", MaxReplicates, o.Replicates)
	}
	if err := ValidatePlotFormats(o.PlotFormats); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.Run.Logger == nil {
		o.Run.Logger = o.Logger
	}
	if err := o.Run.ValidateAndSetDefaults(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidatePlotFormats checks that every plot format is supported.
func ValidatePlotFormats(formats []string) error {
	for _, f := range formats {
		if !histplot.ValidFormats[f] {
			return errors.New(errors.ErrCodeInvalidOption, "invalid plot format: %q (must be one of: png, svg)", f)
		}
	}
	return nil
}

// RunKeyOpts returns the cache key options for this run.
func (o *Options) RunKeyOpts() cache.RunKeyOpts {
	k := cache.RunKeyOpts{
		Bins:               o.Run.Bins,
		Tolerance:          o.Run.Tolerance,
		CRS:                o.Run.CRS.String(),
		Metric:             o.Run.MetricName,
		Seed:               o.Run.Seed,
		MaxTries:           o.Run.MaxTries,
		TimeoutMillis:      o.Run.Timeout.Milliseconds(),
		Strategy:           string(o.Run.Strategy),
		InitialTemperature: o.Run.InitialTemperature,
		Cooling:            o.Run.Cooling,
		BestEffort:         o.Run.BestEffort,
		PoolMin:            o.Run.PoolMin,
		PoolMax:            o.Run.PoolMax,
		Replicates:         o.Replicates,
	}
	if o.Run.EscapeEvery != nil {
		k.EscapeEvery = *o.Run.EscapeEvery
	}
	k.Overlap = histogram.DefaultOverlap
	if o.Run.Overlap != nil {
		k.Overlap = *o.Run.Overlap
	}
	return k
}
