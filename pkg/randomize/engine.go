package randomize

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/pairnull/pkg/distance"
	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
	"github.com/matzehuels/pairnull/pkg/histogram"
	"github.com/matzehuels/pairnull/pkg/observability"
	"github.com/matzehuels/pairnull/pkg/raster"
)

// State is the lifecycle stage of an engine.
type State int

const (
	StateInitializing State = iota
	StateSearching
	StateConverged
	StateAborted
)

var stateNames = [...]string{"initializing", "searching", "converged", "aborted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state name in JSON and TOML.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Scores holds the deviation of each distance category from its observed
// distribution.
type Scores struct {
	Self1 float64 `json:"self1"`
	Self2 float64 `json:"self2"`
	Cross float64 `json:"cross"`
}

// Combined is the sum of the three deviations. It drives acceptance.
func (s Scores) Combined() float64 { return s.Self1 + s.Self2 + s.Cross }

// Max returns the worst category.
func (s Scores) Max() float64 { return max(s.Self1, s.Self2, s.Cross) }

// Within reports whether every category is at or below tol.
func (s Scores) Within(tol float64) bool {
	return s.Self1 <= tol && s.Self2 <= tol && s.Cross <= tol
}

func (s *Scores) setSelf(set int, v float64) {
	if set == 0 {
		s.Self1 = v
	} else {
		s.Self2 = v
	}
}

// Distributions holds one distribution per distance category.
type Distributions struct {
	Self1 histogram.Distribution `json:"self1"`
	Self2 histogram.Distribution `json:"self2"`
	Cross histogram.Distribution `json:"cross"`
}

// Result is the outcome of a run. An aborted run still carries the best
// configuration reached, so callers can inspect how close it got.
type Result struct {
	RunID      string        `json:"run_id"`
	Set1       geo.PointSet  `json:"-"`
	Set2       geo.PointSet  `json:"-"`
	CRS        geo.CRS       `json:"crs"`
	State      State         `json:"state"`
	Tries      int           `json:"tries"`
	Accepted   int           `json:"accepted"`
	Refills    int           `json:"refills"`
	PoolSize   int           `json:"pool_size"`
	Scores     Scores        `json:"scores"`
	Tolerance  float64       `json:"tolerance"`
	Seed       uint64        `json:"seed"`
	Observed   Distributions `json:"observed"`
	Randomized Distributions `json:"randomized"`
	Duration   time.Duration `json:"duration"`
}

// Converged reports whether the run reached tolerance.
func (r *Result) Converged() bool { return r.State == StateConverged }

// category indexes: self1, self2, cross.
const (
	catSelf1 = iota
	catSelf2
	catCross
	numCategories
)

// Engine runs one randomization. It owns its working sets, distance
// matrices, running counts and candidate pool; nothing is shared between
// engines except the read-only mask. An Engine is single-use.
type Engine struct {
	opts   Options
	runID  string
	crs    geo.CRS
	metric geo.Metric
	rng    *rand.Rand
	pool   *raster.Pool
	state  State

	sets  [2][]geo.Point
	self  [2]*distance.Matrix
	cross *distance.Matrix // rows: set 1, cols: set 2

	bins     [numCategories]histogram.Bins
	target   [numCategories][]float64
	observed [numCategories]*histogram.Counts
	counts   [numCategories]*histogram.Counts
	scratch  [numCategories]*histogram.Counts
	scores   Scores
	best     Scores

	rowBuf   [2][]float64
	crossBuf [2][]float64
	colBuf   []float64

	tries       int
	accepted    int
	temperature float64
	initTime    time.Duration
}

// New validates inputs and initializes an engine: observed distributions,
// candidate pool, initial random configuration and its scores. All input
// errors are raised here, before any candidate is drawn.
func New(x1, x2 geo.PointSet, mask raster.Mask, opts Options) (*Engine, error) {
	start := time.Now()
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if mask == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no raster mask")
	}
	if err := x1.Validate("x1", 2); err != nil {
		return nil, err
	}
	if err := x2.Validate("x2", 2); err != nil {
		return nil, err
	}
	crs, err := resolveCRS(x1, x2, mask, opts.CRS)
	if err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	} else if err := errors.ValidateRunID(runID); err != nil {
		return nil, err
	}

	metric := opts.Metric
	if metric == nil {
		metric = geo.DefaultMetric(crs)
	}

	e := &Engine{
		opts:        opts,
		runID:       runID,
		crs:         crs,
		metric:      metric,
		rng:         rand.New(rand.NewPCG(opts.Seed, opts.Seed^0xdeadbeef)),
		temperature: opts.InitialTemperature,
	}
	if err := e.observe(x1.Points, x2.Points); err != nil {
		return nil, err
	}

	sampler, err := raster.NewSampler(mask, rand.New(rand.NewPCG(opts.Seed^0x9e3779b97f4a7c15, opts.Seed)))
	if err != nil {
		return nil, err
	}
	n1, n2 := x1.Len(), x2.Len()
	size := raster.PoolSize(n1, n2, opts.Bins, opts.Tolerance, opts.PoolMin, opts.PoolMax)
	if e.pool, err = raster.NewPool(sampler, size); err != nil {
		return nil, err
	}
	initial, err := e.pool.Take(n1 + n2)
	if err != nil {
		return nil, err
	}
	e.sets = [2][]geo.Point{initial[:n1:n1], initial[n1:]}

	if err := e.seedCandidates(); err != nil {
		return nil, err
	}
	e.rowBuf = [2][]float64{make([]float64, n1), make([]float64, n2)}
	e.crossBuf = [2][]float64{make([]float64, n2), make([]float64, n1)}
	e.colBuf = make([]float64, 0, n1)
	e.initTime = time.Since(start)
	return e, nil
}

// resolveCRS settles the shared reference system of both sets and the mask.
// A declared mask CRS acts as the override when none is given.
func resolveCRS(x1, x2 geo.PointSet, mask raster.Mask, override geo.CRS) (geo.CRS, error) {
	mc := mask.CRS()
	if override.IsZero() {
		override = mc
	}
	crs, err := geo.ResolveCRS(x1.CRS, x2.CRS, override)
	if err != nil {
		return "", err
	}
	if !mc.IsZero() {
		if err := geo.RequireMatch("raster mask", crs, mc); err != nil {
			return "", err
		}
	}
	return crs, nil
}

// observe computes the observed distributions. Windows derived here are
// reused for every comparison in the run.
func (e *Engine) observe(p1, p2 []geo.Point) error {
	s1, err := distance.Self(p1, e.metric)
	if err != nil {
		return err
	}
	s2, err := distance.Self(p2, e.metric)
	if err != nil {
		return err
	}
	cr, err := distance.Cross(p1, p2, e.metric)
	if err != nil {
		return err
	}
	names := [numCategories]string{"x1 self-distances", "x2 self-distances", "cross-distances"}
	for c, m := range [numCategories]*distance.Matrix{s1, s2, cr} {
		b, counts, err := histogram.Observe(m.Flatten(), e.opts.Bins, *e.opts.Overlap)
		if err != nil {
			return errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeInvalidInput), err, "observed %s", names[c])
		}
		e.bins[c] = b
		e.observed[c] = counts
		e.target[c] = counts.Proportions()
	}
	return nil
}

// seedCandidates builds the candidate matrices and running counts for the
// initial configuration.
func (e *Engine) seedCandidates() error {
	var err error
	for s := range 2 {
		if e.self[s], err = distance.Self(e.sets[s], e.metric); err != nil {
			return err
		}
	}
	if e.cross, err = distance.Cross(e.sets[0], e.sets[1], e.metric); err != nil {
		return err
	}
	for c, m := range [numCategories]*distance.Matrix{e.self[0], e.self[1], e.cross} {
		flat := m.Flatten()
		if err := finite(flat); err != nil {
			return err
		}
		e.counts[c] = histogram.NewCounts(e.bins[c])
		e.counts[c].AddAll(flat)
		e.scratch[c] = e.counts[c].Clone()
	}
	e.scores = Scores{
		Self1: e.counts[catSelf1].DeviationFrom(e.target[catSelf1]),
		Self2: e.counts[catSelf2].DeviationFrom(e.target[catSelf2]),
		Cross: e.counts[catCross].DeviationFrom(e.target[catCross]),
	}
	e.best = e.scores
	return nil
}

func finite(values []float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New(errors.ErrCodeDegenerateDistances, "metric produced a non-finite distance (%v)", v)
		}
	}
	return nil
}

// RunID returns the identifier of this run.
func (e *Engine) RunID() string { return e.runID }

// State returns the current lifecycle stage.
func (e *Engine) State() State { return e.state }

// Scores returns the current deviation scores.
func (e *Engine) Scores() Scores { return e.scores }

// CRS returns the resolved reference system.
func (e *Engine) CRS() geo.CRS { return e.crs }

// Run searches until every category is within tolerance, the try or time
// budget runs out, or ctx is cancelled.
//
// On budget exhaustion Run returns the partial result together with a
// *errors.ConvergenceError, unless Options.BestEffort is set. On
// cancellation it returns the partial result and the wrapped context error.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.state != StateInitializing {
		return nil, errors.New(errors.ErrCodeInternal, "engine %s has already run", e.runID)
	}
	start := time.Now()
	logger := e.opts.Logger
	tol := e.opts.Tolerance
	progressEvery := e.opts.ProgressEvery

	e.state = StateSearching
	e.opts.Observer.OnStart(ctx, StartInfo{
		N1:        len(e.sets[0]),
		N2:        len(e.sets[1]),
		CRS:       e.crs.String(),
		PoolSize:  e.pool.Size(),
		Initial:   e.scores,
		Tolerance: tol,
		MaxTries:  e.opts.MaxTries,
	})
	observability.Engine().OnRunStart(ctx, e.runID, len(e.sets[0]), len(e.sets[1]))
	logger.Debug("search started", "run", e.runID, "crs", e.crs, "pool", e.pool.Size(),
		"initial", e.scores.Combined(), "options", e.opts.Summary())

	var runErr error
	for !e.scores.Within(tol) {
		if e.tries >= e.opts.MaxTries {
			runErr = e.abort("max tries")
			break
		}
		if e.opts.Timeout > 0 && time.Since(start) >= e.opts.Timeout {
			runErr = e.abort("timeout")
			break
		}
		if err := ctx.Err(); err != nil {
			e.state = StateAborted
			runErr = fmt.Errorf("randomize: %w", err)
			break
		}
		if err := e.step(); err != nil {
			e.state = StateAborted
			runErr = err
			break
		}
		if e.tries%progressEvery == 0 {
			e.reportProgress(ctx, logger, start)
		}
	}
	if e.state == StateSearching {
		e.state = StateConverged
	}

	res := e.result(time.Since(start))
	logger.Debug("search finished", "run", e.runID, "state", e.state, "tries", e.tries,
		"accepted", e.accepted, "deviation", e.scores.Max(), "elapsed", res.Duration)
	e.opts.Observer.OnFinish(ctx, res, runErr)
	observability.Engine().OnRunComplete(ctx, e.runID, e.state.String(), e.tries, res.Duration, runErr)
	return res, runErr
}

func (e *Engine) abort(reason string) error {
	e.state = StateAborted
	if e.opts.BestEffort {
		e.opts.Logger.Warn("returning unconverged result", "reason", reason, "deviation", e.scores.Max())
		return nil
	}
	return &errors.ConvergenceError{
		Tries:     e.tries,
		Deviation: e.scores.Max(),
		Tolerance: e.opts.Tolerance,
		Reason:    reason,
	}
}

func (e *Engine) reportProgress(ctx context.Context, logger *log.Logger, start time.Time) {
	p := Progress{
		Tries:         e.tries,
		Accepted:      e.accepted,
		Refills:       e.pool.Refills(),
		PoolRemaining: e.pool.Remaining(),
		Scores:        e.scores,
		Best:          e.best,
		Temperature:   e.temperature,
		Elapsed:       time.Since(start),
	}
	e.opts.Observer.OnProgress(ctx, p)
	logger.Debug("search progress", "tries", p.Tries, "accepted", p.Accepted, "pool", p.PoolRemaining,
		"self1", p.Scores.Self1, "self2", p.Scores.Self2, "cross", p.Scores.Cross)
}

// step performs one try: draw a candidate, pick a set and index, score the
// swap from the O(n) affected distances and accept or discard it.
func (e *Engine) step() error {
	p, err := e.pool.Next()
	if err != nil {
		return err
	}
	s := e.rng.IntN(2)
	idx := e.rng.IntN(len(e.sets[s]))
	e.tries++

	own := e.rowBuf[s]
	distance.ReplaceSelf(idx, p, e.sets[s], e.metric, own)
	cross := e.crossBuf[s]
	e.metric(p, e.sets[1-s], cross)
	if err := finite(own); err != nil {
		return err
	}
	if err := finite(cross); err != nil {
		return err
	}

	oldOwn := e.self[s].Row(idx)
	var oldCross []float64
	if s == 0 {
		oldCross = e.cross.Row(idx)
	} else {
		oldCross = e.cross.Col(idx, e.colBuf)
	}

	sc := e.scratch[s]
	sc.CopyFrom(e.counts[s])
	for j, d := range own {
		if j != idx {
			sc.Replace(oldOwn[j], d)
		}
	}
	xc := e.scratch[catCross]
	xc.CopyFrom(e.counts[catCross])
	for j, d := range cross {
		xc.Replace(oldCross[j], d)
	}

	next := e.scores
	next.setSelf(s, sc.DeviationFrom(e.target[s]))
	next.Cross = xc.DeviationFrom(e.target[catCross])

	if !e.accept(next.Combined() - e.scores.Combined()) {
		return nil
	}

	e.sets[s][idx] = p
	e.self[s].SetSelf(idx, own)
	if s == 0 {
		e.cross.SetRow(idx, cross)
	} else {
		e.cross.SetCol(idx, cross)
	}
	e.counts[s], e.scratch[s] = e.scratch[s], e.counts[s]
	e.counts[catCross], e.scratch[catCross] = e.scratch[catCross], e.counts[catCross]
	e.scores = next
	e.accepted++
	if next.Combined() < e.best.Combined() {
		e.best = next
	}
	return nil
}

// accept applies the strategy's acceptance rule to a change in combined
// score. Every EscapeEvery-th try is accepted unconditionally.
func (e *Engine) accept(delta float64) bool {
	if k := *e.opts.EscapeEvery; k > 0 && e.tries%k == 0 {
		return true
	}
	if e.opts.Strategy == StrategyAnnealing {
		t := e.temperature
		e.temperature *= e.opts.Cooling
		return delta < 0 || e.rng.Float64() < math.Exp(-delta/(t+1e-12))
	}
	return delta < 0
}

func (e *Engine) result(elapsed time.Duration) *Result {
	dist := func(c [numCategories]*histogram.Counts) Distributions {
		return Distributions{
			Self1: c[catSelf1].Distribution(),
			Self2: c[catSelf2].Distribution(),
			Cross: c[catCross].Distribution(),
		}
	}
	return &Result{
		RunID:      e.runID,
		Set1:       geo.NewPointSet(e.crs, e.sets[0]...),
		Set2:       geo.NewPointSet(e.crs, e.sets[1]...),
		CRS:        e.crs,
		State:      e.state,
		Tries:      e.tries,
		Accepted:   e.accepted,
		Refills:    e.pool.Refills(),
		PoolSize:   e.pool.Size(),
		Scores:     e.scores,
		Tolerance:  e.opts.Tolerance,
		Seed:       e.opts.Seed,
		Observed:   dist(e.observed),
		Randomized: dist(e.counts),
		Duration:   elapsed + e.initTime,
	}
}

// Run is a convenience wrapper around New and Engine.Run.
func Run(ctx context.Context, x1, x2 geo.PointSet, mask raster.Mask, opts Options) (*Result, error) {
	e, err := New(x1, x2, mask, opts)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx)
}

// BySelfAndOther returns randomized versions of x1 and x2 whose self- and
// cross-distance distributions match the observed ones within tolerance.
// Outputs have the same lengths as the inputs, lie in valid mask cells and
// carry the resolved reference system.
func BySelfAndOther(ctx context.Context, x1, x2 geo.PointSet, mask raster.Mask, opts Options) (geo.PointSet, geo.PointSet, error) {
	res, err := Run(ctx, x1, x2, mask, opts)
	if err != nil {
		return geo.PointSet{}, geo.PointSet{}, err
	}
	return res.Set1, res.Set2, nil
}
