// Package distance builds pairwise distance matrices between point sets and
// keeps them current under single-point replacement.
//
// A self matrix (one set) is symmetric with an ignored diagonal; its
// flattened form lists every unordered pair once, upper triangle row-major.
// A cross matrix (two sets) is rectangular and every entry is used once.
//
// Replacing one point touches one row (and, for self matrices, the matching
// column) so the engine recomputes O(n) distances per move instead of the
// full O(n²) matrix.
package distance

import (
	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
)

// Matrix is a dense row-major distance matrix.
type Matrix struct {
	rows, cols int
	self       bool
	data       []float64
}

// Self computes the symmetric distance matrix of one set.
// Fails with INVALID_INPUT when the set has fewer than 2 points.
func Self(set []geo.Point, metric geo.Metric) (*Matrix, error) {
	n := len(set)
	if n < 2 {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"self-distances need at least 2 points, got %d", n)
	}
	m := &Matrix{rows: n, cols: n, self: true, data: make([]float64, n*n)}
	for i, p := range set {
		metric(p, set, m.data[i*n:(i+1)*n])
		m.data[i*n+i] = 0
	}
	// The upper triangle is authoritative; the lower mirrors it exactly even
	// when the metric is not bit-for-bit symmetric.
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			m.data[i*n+j] = m.data[j*n+i]
		}
	}
	return m, nil
}

// Cross computes the |a|×|b| distance matrix between two sets.
// Fails with INVALID_INPUT when either set is empty.
func Cross(a, b []geo.Point, metric geo.Metric) (*Matrix, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"cross-distances need two non-empty sets, got %d and %d points", len(a), len(b))
	}
	m := &Matrix{rows: len(a), cols: len(b), data: make([]float64, len(a)*len(b))}
	for i, p := range a {
		metric(p, b, m.data[i*m.cols:(i+1)*m.cols])
	}
	return m, nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// At returns the distance between row i and column j.
func (m *Matrix) At(i, j int) float64 { return m.data[i*m.cols+j] }

// Row returns row i. The slice aliases the matrix.
func (m *Matrix) Row(i int) []float64 { return m.data[i*m.cols : (i+1)*m.cols] }

// Len returns the length of the flattened distance vector.
func (m *Matrix) Len() int {
	if m.self {
		return m.rows * (m.rows - 1) / 2
	}
	return m.rows * m.cols
}

// Flatten returns the distances that take part in a comparison: the upper
// triangle of a self matrix, or every entry of a cross matrix.
func (m *Matrix) Flatten() []float64 {
	if !m.self {
		return append([]float64(nil), m.data...)
	}
	n := m.rows
	out := make([]float64, m.Len())
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out[PairIndex(n, i, j)] = m.data[i*n+j]
		}
	}
	return out
}

// PairIndex maps the unordered pair {i, j} of an n-point set to its position
// in the flattened self vector.
func PairIndex(n, i, j int) int {
	if i > j {
		i, j = j, i
	}
	return i*(2*n-i-1)/2 + (j - i - 1)
}

// ReplaceSelf computes the distances from p to every point of set, as if p
// replaced set[i], into dst (len(set)). dst[i] is zero. It does not modify
// the matrix; see [Matrix.SetSelf].
func ReplaceSelf(i int, p geo.Point, set []geo.Point, metric geo.Metric, dst []float64) {
	metric(p, set, dst)
	dst[i] = 0
}

// SetSelf commits a replacement row i (and the mirrored column) to a self
// matrix.
func (m *Matrix) SetSelf(i int, row []float64) {
	n := m.cols
	for j, d := range row {
		if j == i {
			continue
		}
		m.data[i*n+j] = d
		m.data[j*n+i] = d
	}
}

// SetRow commits row i of a cross matrix.
func (m *Matrix) SetRow(i int, row []float64) {
	copy(m.data[i*m.cols:(i+1)*m.cols], row)
}

// SetCol commits column j of a cross matrix.
func (m *Matrix) SetCol(j int, col []float64) {
	for i, d := range col {
		m.data[i*m.cols+j] = d
	}
}

// Col copies column j into dst and returns it.
func (m *Matrix) Col(j int, dst []float64) []float64 {
	dst = dst[:0]
	for i := 0; i < m.rows; i++ {
		dst = append(dst, m.data[i*m.cols+j])
	}
	return dst
}
