package raster

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
)

// DefaultNoData is the missing-value marker used when a grid declares none.
const DefaultNoData = -9999.0

// Mask is the study-region adapter the engine samples from.
//
// Implementations must be safe for concurrent use once constructed: batch
// runs share one mask across goroutines, each with its own rng.
type Mask interface {
	// ValidCellCount returns the number of sampleable cells.
	ValidCellCount() int
	// SampleUniform draws n coordinates uniformly over the valid area.
	SampleUniform(rng *rand.Rand, n int) ([]geo.Point, error)
	// CRS returns the reference system of the mask coordinates.
	CRS() geo.CRS
	// Contains reports whether p falls inside a valid cell.
	Contains(p geo.Point) bool
}

// Grid is a regular raster in row-major order with row 0 at the top
// (northernmost), matching the ESRI ASCII grid layout.
type Grid struct {
	NCols, NRows int
	XMin, YMin   float64 // lower-left corner of the lower-left cell
	CellSize     float64
	NoData       float64
	Values       []float64

	crs          geo.CRS
	areaWeighted bool
	valid        []int     // indexes of valid cells
	cumulative   []float64 // running weight total per valid cell
}

// GridOption configures a Grid.
type GridOption func(*Grid)

// WithAreaWeighting weights cells by spherical area when the grid is in a
// geographic reference system. Ignored for projected grids, where every
// cell covers the same area. On by default.
func WithAreaWeighting(on bool) GridOption {
	return func(g *Grid) { g.areaWeighted = on }
}

// NewGrid validates the geometry and indexes the valid cells. An all-missing
// grid is constructed fine; the sampler rejects it.
func NewGrid(ncols, nrows int, xmin, ymin, cellSize, noData float64, values []float64, crs geo.CRS, opts ...GridOption) (*Grid, error) {
	if ncols <= 0 || nrows <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "grid must have positive dimensions, got %dx%d", ncols, nrows)
	}
	if len(values) != ncols*nrows {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"grid declares %dx%d cells but has %d values", ncols, nrows, len(values))
	}
	if err := errors.ValidatePositive("cellsize", cellSize); err != nil {
		return nil, err
	}
	if math.IsNaN(xmin) || math.IsNaN(ymin) || math.IsInf(xmin, 0) || math.IsInf(ymin, 0) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "grid origin must be finite")
	}

	g := &Grid{
		NCols:        ncols,
		NRows:        nrows,
		XMin:         xmin,
		YMin:         ymin,
		CellSize:     cellSize,
		NoData:       noData,
		Values:       values,
		crs:          crs,
		areaWeighted: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.index()
	return g, nil
}

// index lists valid cells and their cumulative sampling weights.
func (g *Grid) index() {
	g.valid = g.valid[:0]
	g.cumulative = g.cumulative[:0]
	var total float64
	for i, v := range g.Values {
		if math.IsNaN(v) || v == g.NoData {
			continue
		}
		g.valid = append(g.valid, i)
		total += g.weight(i / g.NCols)
		g.cumulative = append(g.cumulative, total)
	}
}

// weight is the relative sampling weight of a cell in the given row.
func (g *Grid) weight(row int) float64 {
	if !g.usesSphericalArea() {
		return 1
	}
	b := g.CellBounds(row, 0)
	rect := s2.Rect{
		Lat: r1.Interval{Lo: b.Min.Lat() * math.Pi / 180, Hi: b.Max.Lat() * math.Pi / 180},
		Lng: s1.Interval{Lo: b.Min.Lon() * math.Pi / 180, Hi: b.Max.Lon() * math.Pi / 180},
	}
	return rect.Area()
}

func (g *Grid) usesSphericalArea() bool {
	return g.areaWeighted && g.crs.IsGeographic() && !g.crs.IsEqualArea()
}

// CRS returns the grid's reference system.
func (g *Grid) CRS() geo.CRS { return g.crs }

// ValidCellCount returns the number of non-missing cells.
func (g *Grid) ValidCellCount() int { return len(g.valid) }

// AreaWeighted reports whether sampling is weighted by spherical cell area.
func (g *Grid) AreaWeighted() bool { return g.usesSphericalArea() }

// Bound returns the grid extent.
func (g *Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.XMin, g.YMin},
		Max: orb.Point{g.XMin + float64(g.NCols)*g.CellSize, g.YMin + float64(g.NRows)*g.CellSize},
	}
}

// CellBounds returns the extent of the cell at row, col.
func (g *Grid) CellBounds(row, col int) orb.Bound {
	x0 := g.XMin + float64(col)*g.CellSize
	y0 := g.YMin + float64(g.NRows-1-row)*g.CellSize
	return orb.Bound{
		Min: orb.Point{x0, y0},
		Max: orb.Point{x0 + g.CellSize, y0 + g.CellSize},
	}
}

// Valid reports whether the cell at row, col holds data.
func (g *Grid) Valid(row, col int) bool {
	if row < 0 || row >= g.NRows || col < 0 || col >= g.NCols {
		return false
	}
	v := g.Values[row*g.NCols+col]
	return !math.IsNaN(v) && v != g.NoData
}

// Cell returns the row and column containing p. ok is false outside the
// extent. Cells are closed on the lower-left edges.
func (g *Grid) Cell(p geo.Point) (row, col int, ok bool) {
	fc := math.Floor((p.X() - g.XMin) / g.CellSize)
	fr := math.Floor((p.Y() - g.YMin) / g.CellSize)
	if fc < 0 || fr < 0 || fc >= float64(g.NCols) || fr >= float64(g.NRows) {
		return 0, 0, false
	}
	return g.NRows - 1 - int(fr), int(fc), true
}

// Contains reports whether p lies inside a valid cell.
func (g *Grid) Contains(p geo.Point) bool {
	row, col, ok := g.Cell(p)
	return ok && g.Valid(row, col)
}

// SampleUniform draws n points uniformly over the valid area. Cells are
// chosen in proportion to their weight; within a cell, geographic
// area-weighted grids draw latitude uniformly in sin(lat) so that the
// density is uniform on the sphere.
func (g *Grid) SampleUniform(rng *rand.Rand, n int) ([]geo.Point, error) {
	if len(g.valid) == 0 {
		return nil, errors.New(errors.ErrCodeInsufficientArea, "raster mask has no valid cells")
	}
	total := g.cumulative[len(g.cumulative)-1]
	spherical := g.usesSphericalArea()
	out := make([]geo.Point, n)
	for i := range out {
		k := sort.SearchFloat64s(g.cumulative, rng.Float64()*total)
		if k >= len(g.valid) {
			k = len(g.valid) - 1
		}
		idx := g.valid[k]
		b := g.CellBounds(idx/g.NCols, idx%g.NCols)

		x := b.Min.X() + rng.Float64()*g.CellSize
		var y float64
		if spherical {
			lo, hi := b.Min.Lat()*math.Pi/180, b.Max.Lat()*math.Pi/180
			s := math.Sin(lo) + rng.Float64()*(math.Sin(hi)-math.Sin(lo))
			y = math.Asin(s) * 180 / math.Pi
		} else {
			y = b.Min.Y() + rng.Float64()*g.CellSize
		}
		out[i] = clampToCell(orb.Point{x, y}, b)
	}
	return out, nil
}

// clampToCell keeps rounding from pushing a draw onto the neighbour's edge.
func clampToCell(p orb.Point, b orb.Bound) orb.Point {
	maxX := math.Nextafter(b.Max.X(), b.Min.X())
	maxY := math.Nextafter(b.Max.Y(), b.Min.Y())
	return orb.Point{
		math.Min(math.Max(p.X(), b.Min.X()), maxX),
		math.Min(math.Max(p.Y(), b.Min.Y()), maxY),
	}
}

var _ Mask = (*Grid)(nil)
