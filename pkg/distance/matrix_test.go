package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
)

var square = []geo.Point{{0, 0}, {3, 0}, {3, 4}, {0, 4}}

func TestSelf(t *testing.T) {
	m, err := Self(square, geo.Euclidean)
	require.NoError(t, err)

	assert.Equal(t, 4, m.Rows())
	assert.Equal(t, 6, m.Len())
	assert.Equal(t, 3.0, m.At(0, 1))
	assert.Equal(t, 5.0, m.At(0, 2))
	assert.Equal(t, m.At(2, 0), m.At(0, 2))
	for i := 0; i < 4; i++ {
		assert.Zero(t, m.At(i, i))
	}

	flat := m.Flatten()
	assert.Equal(t, []float64{3, 5, 4, 4, 5, 3}, flat)
}

func TestSelfTooFewPoints(t *testing.T) {
	for _, pts := range [][]geo.Point{nil, {{1, 1}}} {
		_, err := Self(pts, geo.Euclidean)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	}
}

func TestCross(t *testing.T) {
	a := []geo.Point{{0, 0}, {1, 0}}
	b := []geo.Point{{0, 0}, {0, 2}, {4, 0}}
	m, err := Cross(a, b, geo.Euclidean)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 3, m.Cols())
	assert.Equal(t, 6, m.Len())
	assert.InDeltaSlice(t, []float64{0, 2, 4, 1, 2.23606797749979, 3}, m.Flatten(), 1e-12)

	_, err = Cross(nil, b, geo.Euclidean)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	_, err = Cross(a, nil, geo.Euclidean)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestPairIndex(t *testing.T) {
	const n = 6
	m, err := Self(make([]geo.Point, n), geo.Euclidean)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			k := PairIndex(n, i, j)
			assert.Equal(t, k, PairIndex(n, j, i))
			assert.False(t, seen[k], "duplicate index %d", k)
			seen[k] = true
		}
	}
	assert.Len(t, seen, m.Len())
	for k := 0; k < m.Len(); k++ {
		assert.True(t, seen[k])
	}
}

func TestIncrementalSelfMatchesFull(t *testing.T) {
	pts := append([]geo.Point(nil), square...)
	m, err := Self(pts, geo.Euclidean)
	require.NoError(t, err)

	replacement := geo.Point{10, 10}
	row := make([]float64, len(pts))
	ReplaceSelf(2, replacement, pts, geo.Euclidean, row)
	m.SetSelf(2, row)
	pts[2] = replacement

	full, err := Self(pts, geo.Euclidean)
	require.NoError(t, err)
	assert.Equal(t, full.Flatten(), m.Flatten())
}

func TestIncrementalCrossMatchesFull(t *testing.T) {
	a := []geo.Point{{0, 0}, {1, 1}, {2, 2}}
	b := []geo.Point{{5, 5}, {6, 6}}
	m, err := Cross(a, b, geo.Euclidean)
	require.NoError(t, err)

	// Replace a[1]: row 1 changes.
	a[1] = geo.Point{-3, 4}
	row := make([]float64, len(b))
	geo.Euclidean(a[1], b, row)
	m.SetRow(1, row)

	// Replace b[0]: column 0 changes.
	b[0] = geo.Point{0, 1}
	col := make([]float64, len(a))
	geo.Euclidean(b[0], a, col)
	m.SetCol(0, col)

	full, err := Cross(a, b, geo.Euclidean)
	require.NoError(t, err)
	assert.Equal(t, full.Flatten(), m.Flatten())
	assert.Equal(t, col, m.Col(0, nil))
}

func TestSelfIsExactlySymmetric(t *testing.T) {
	// Rounds differently depending on argument order.
	skewed := geo.Pairwise(func(a, b geo.Point) float64 {
		return math.Hypot(a[0]-b[0], a[1]-b[1]) + 1e-9*a[0]
	})
	pts := []geo.Point{{0.1, 0.2}, {3.3, 0.7}, {2.9, 4.1}, {0.4, 3.8}, {1.7, 1.9}}
	m, err := Self(pts, skewed)
	require.NoError(t, err)

	flat := m.Flatten()
	for i := range pts {
		for j := range pts {
			if i == j {
				continue
			}
			assert.Equal(t, m.At(i, j), m.At(j, i), "(%d,%d)", i, j)
			assert.Equal(t, flat[PairIndex(len(pts), i, j)], m.Row(i)[j],
				"row %d must hold the flattened value for pair %d-%d", i, i, j)
		}
	}
}
