package histogram

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pairnull/pkg/errors"
)

func TestNewBins(t *testing.T) {
	b, err := NewBins(10, 5, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 5, b.N)
	assert.InDelta(t, 11.0, b.Upper, 1e-12)
	assert.InDelta(t, 2.2, b.Step, 1e-12)
	assert.InDelta(t, 1.65, b.HalfWidth, 1e-12)

	lo, hi := b.Window(0)
	assert.Equal(t, 0.0, lo)
	assert.InDelta(t, 2.75, hi, 1e-12)

	lo, hi = b.Window(4)
	assert.InDelta(t, 8.25, lo, 1e-12)
	assert.InDelta(t, 11.55, hi, 1e-12)
}

func TestNewBinsErrors(t *testing.T) {
	tests := []struct {
		name    string
		max     float64
		n       int
		overlap float64
		code    errors.Code
	}{
		{"zero bins", 10, 0, 0.5, errors.ErrCodeInvalidOption},
		{"overlap one", 10, 5, 1, errors.ErrCodeInvalidOption},
		{"negative max", -1, 5, 0.5, errors.ErrCodeInvalidInput},
		{"nan max", math.NaN(), 5, 0.5, errors.ErrCodeInvalidInput},
		{"zero max", 0, 5, 0.5, errors.ErrCodeDegenerateDistances},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBins(tt.max, tt.n, tt.overlap)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestSpan(t *testing.T) {
	b, err := NewBins(10, 5, 0.5) // step 2.2, half-width 1.65
	require.NoError(t, err)

	tests := []struct {
		v           float64
		first, last int
	}{
		{0, 0, 0},
		{1.0, 0, 0},
		{2.5, 0, 1},  // inside window 0 [0,2.75) and window 1 [1.65,4.95)
		{3.3, 1, 1},  // centre of window 1 only
		{4.5, 1, 2},  // overlap of windows 1 and 2
		{10.9, 4, 4}, // last window
		{50, 4, 4},   // clipped
	}
	for _, tt := range tests {
		first, last := b.Span(tt.v)
		assert.Equal(t, tt.first, first, "first for %v", tt.v)
		assert.Equal(t, tt.last, last, "last for %v", tt.v)
		for k := first; k <= last; k++ {
			lo, hi := b.Window(k)
			if tt.v <= b.Upper {
				assert.True(t, tt.v >= lo && tt.v < hi, "%v not in window %d [%v,%v)", tt.v, k, lo, hi)
			}
		}
	}
}

func TestSpanWithoutOverlap(t *testing.T) {
	b, err := NewBins(10, 4, 0)
	require.NoError(t, err)
	for _, v := range []float64{0, 1, 2.75, 5, 8.24, 10, 11} {
		first, last := b.Span(v)
		assert.Equal(t, first, last, "value %v should fall in exactly one window", v)
	}
}

func TestComputeNormalization(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7^0xdeadbeef))
	for _, overlap := range []float64{0, 0.25, 0.5, 0.9} {
		values := make([]float64, 200)
		for i := range values {
			values[i] = rng.Float64() * 100
		}
		b, c, err := Observe(values, 20, overlap)
		require.NoError(t, err)
		d := c.Distribution()
		assert.Len(t, d, 20)
		assert.InDelta(t, 1.0, d.Sum(), 1e-9, "overlap %v", overlap)

		// Values far beyond the observed range are clipped, not dropped.
		d2, err := Compute(append(values, 1e6), b)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, d2.Sum(), 1e-9)
	}
}

func TestComputeErrors(t *testing.T) {
	b, err := NewBins(1, 2, 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		values []float64
	}{
		{"empty", nil},
		{"all nan", []float64{math.NaN(), math.NaN()}},
		{"some nan", []float64{1, math.NaN()}},
		{"negative", []float64{1, -2}},
		{"infinite", []float64{1, math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.values, b)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
		})
	}
}

func TestCountsIncrementalMatchesRebin(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	values := make([]float64, 50)
	for i := range values {
		values[i] = rng.Float64() * 10
	}
	b, c, err := Observe(values, 8, 0.5)
	require.NoError(t, err)

	for range 500 {
		i := rng.IntN(len(values))
		next := rng.Float64() * 12
		c.Replace(values[i], next)
		values[i] = next
	}

	fresh := NewCounts(b)
	fresh.AddAll(values)
	assert.Equal(t, fresh.Total(), c.Total())
	for k := 0; k < b.N; k++ {
		assert.Equal(t, fresh.Count(k), c.Count(k), "window %d", k)
	}
}

func TestDeviation(t *testing.T) {
	b, obs, err := Observe([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 5, 0)
	require.NoError(t, err)
	target := obs.Proportions()

	same := obs.Clone()
	assert.Zero(t, same.DeviationFrom(target))
	assert.Zero(t, Deviation(obs.Distribution(), same.Distribution()))

	// Move one value from the first window into the last: two windows change
	// by 0.1 each.
	same.Replace(1, 10)
	want := math.Sqrt(0.1*0.1 + 0.1*0.1)
	assert.InDelta(t, want, same.DeviationFrom(target), 1e-12)
	assert.InDelta(t, want, Deviation(obs.Distribution(), same.Distribution()), 1e-12)

	empty := NewCounts(b)
	assert.InDelta(t, math.Sqrt(floatsDot(target, target)), empty.DeviationFrom(target), 1e-12)
}

func TestCopyFrom(t *testing.T) {
	_, c, err := Observe([]float64{1, 2, 3}, 3, 0.5)
	require.NoError(t, err)
	scratch := c.Clone()
	scratch.Add(2)
	assert.NotEqual(t, c.Total(), scratch.Total())
	scratch.CopyFrom(c)
	assert.Equal(t, c.Total(), scratch.Total())
	assert.Equal(t, c.Proportions(), scratch.Proportions())
}

func floatsDot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
