package histogram

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/pairnull/pkg/errors"
)

// DefaultOverlap is the fraction of a step by which each window reaches into
// its neighbours. With 0.5 a window is 1.5 steps wide.
const DefaultOverlap = 0.5

// RangeFactor stretches the observed maximum to give the outer window room.
const RangeFactor = 1.1

// Bins describes N equal-step windows over [0, Upper].
//
// Window k is centred at (k+0.5)*Step and covers [centre-HalfWidth,
// centre+HalfWidth) with HalfWidth = Step*(1+Overlap)/2. Window centres
// partition the range at step midpoints while the windows themselves overlap
// by Overlap*Step. Values above the last window are clipped into it.
type Bins struct {
	N         int
	Upper     float64
	Step      float64
	HalfWidth float64
	Overlap   float64
}

// NewBins builds n windows over [0, RangeFactor*maxObserved].
func NewBins(maxObserved float64, n int, overlap float64) (Bins, error) {
	if err := errors.ValidateMinInt("bins", n, 1); err != nil {
		return Bins{}, err
	}
	if err := errors.ValidateFraction("overlap", overlap); err != nil {
		return Bins{}, err
	}
	if math.IsNaN(maxObserved) || math.IsInf(maxObserved, 0) || maxObserved < 0 {
		return Bins{}, errors.New(errors.ErrCodeInvalidInput, "invalid maximum distance %v", maxObserved)
	}
	if maxObserved == 0 {
		return Bins{}, errors.New(errors.ErrCodeDegenerateDistances,
			"all observed distances are zero; cannot build histogram windows")
	}
	upper := RangeFactor * maxObserved
	step := upper / float64(n)
	return Bins{
		N:         n,
		Upper:     upper,
		Step:      step,
		HalfWidth: step * (1 + overlap) / 2,
		Overlap:   overlap,
	}, nil
}

// Window returns the bounds of window k. The lower bound is clamped at 0.
func (b Bins) Window(k int) (lower, upper float64) {
	c := (float64(k) + 0.5) * b.Step
	return math.Max(0, c-b.HalfWidth), c + b.HalfWidth
}

// Span returns the inclusive range of windows containing v.
func (b Bins) Span(v float64) (first, last int) {
	first = int(math.Floor((v-b.HalfWidth)/b.Step-0.5)) + 1
	last = int(math.Floor((v+b.HalfWidth)/b.Step - 0.5))
	first = max(0, min(first, b.N-1))
	last = max(0, min(last, b.N-1))
	if last < first {
		last = first
	}
	return first, last
}

// Bin is one window of a distribution.
type Bin struct {
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Proportion float64 `json:"proportion"`
}

// Distribution is the per-window proportion of distances. Proportions sum
// to 1.
type Distribution []Bin

// Sum returns the sum of proportions.
func (d Distribution) Sum() float64 {
	var s float64
	for _, b := range d {
		s += b.Proportion
	}
	return s
}

// Proportions returns the proportions alone.
func (d Distribution) Proportions() []float64 {
	out := make([]float64, len(d))
	for i, b := range d {
		out[i] = b.Proportion
	}
	return out
}

// Max returns the largest finite value in values after validating that every
// value is a finite, non-negative distance. Empty and all-NaN input fail with
// INVALID_INPUT.
func Max(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New(errors.ErrCodeInvalidInput, "no distances to bin")
	}
	if floats.HasNaN(values) {
		for _, v := range values {
			if !math.IsNaN(v) {
				return 0, errors.New(errors.ErrCodeInvalidInput, "distance vector contains NaN")
			}
		}
		return 0, errors.New(errors.ErrCodeInvalidInput, "all %d distances are NaN", len(values))
	}
	if floats.Min(values) < 0 {
		return 0, errors.New(errors.ErrCodeInvalidInput, "distance vector contains negative values")
	}
	m := floats.Max(values)
	if math.IsInf(m, 1) {
		return 0, errors.New(errors.ErrCodeInvalidInput, "distance vector contains infinite values")
	}
	return m, nil
}

// Compute bins values into b and returns the distribution.
func Compute(values []float64, b Bins) (Distribution, error) {
	if _, err := Max(values); err != nil {
		return nil, err
	}
	c := NewCounts(b)
	c.AddAll(values)
	return c.Distribution(), nil
}

// Observe derives windows from the observed values (upper bound
// RangeFactor × max) and returns them with the observed counts.
func Observe(values []float64, n int, overlap float64) (Bins, *Counts, error) {
	m, err := Max(values)
	if err != nil {
		return Bins{}, nil, err
	}
	b, err := NewBins(m, n, overlap)
	if err != nil {
		return Bins{}, nil, err
	}
	c := NewCounts(b)
	c.AddAll(values)
	return b, c, nil
}

// Deviation is the root-sum-of-squares of per-window proportion differences.
// The distributions must share windows.
func Deviation(a, b Distribution) float64 {
	return rss(a.Proportions(), b.Proportions())
}

func rss(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}
