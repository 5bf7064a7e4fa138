// Package histplot draws observed and randomized distance distributions of a
// run side by side, one panel per category.
package histplot

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/matzehuels/pairnull/pkg/histogram"
	"github.com/matzehuels/pairnull/pkg/randomize"
)

// Format constants for output formats.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatPNG: true,
	FormatSVG: true,
}

// Panel size.
const (
	DefaultWidth  = 5 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

var (
	observedColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	randomizedColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// Render draws res as a three-panel figure in format.
func Render(res *randomize.Result, format string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, res, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write draws res to w.
func Write(w io.Writer, res *randomize.Result, format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid plot format: %q (must be one of: png, svg)", format)
	}

	panels := []struct {
		title              string
		observed, achieved histogram.Distribution
	}{
		{"x1 self-distances", res.Observed.Self1, res.Randomized.Self1},
		{"x2 self-distances", res.Observed.Self2, res.Randomized.Self2},
		{"cross-distances", res.Observed.Cross, res.Randomized.Cross},
	}
	row := make([]*plot.Plot, len(panels))
	for i, pn := range panels {
		p, err := panel(pn.title, pn.observed, pn.achieved)
		if err != nil {
			return fmt.Errorf("%s: %w", pn.title, err)
		}
		row[i] = p
	}

	width := DefaultWidth * vg.Length(len(row))
	tiles := draw.Tiles{Rows: 1, Cols: len(row), PadX: vg.Millimeter * 4, PadTop: vg.Millimeter * 2}
	switch format {
	case FormatSVG:
		c := vgsvg.New(width, DefaultHeight)
		drawRow(row, tiles, draw.New(c))
		_, err := c.WriteTo(w)
		return err
	default:
		c := vgimg.New(width, DefaultHeight)
		dc := draw.New(c)
		dc.SetColor(color.White)
		dc.Fill(dc.Rectangle.Path())
		drawRow(row, tiles, dc)
		_, err := vgimg.PngCanvas{Canvas: c}.WriteTo(w)
		return err
	}
}

func drawRow(row []*plot.Plot, tiles draw.Tiles, dc draw.Canvas) {
	canvases := plot.Align([][]*plot.Plot{row}, tiles, dc)
	for j, p := range row {
		p.Draw(canvases[0][j])
	}
}

func panel(title string, observed, achieved histogram.Distribution) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Distance"
	p.Y.Label.Text = "Proportion"
	p.Y.Min = 0
	p.Y.Max = 1.1 * max(peak(observed), peak(achieved), 0.01)
	p.Add(plotter.NewGrid())

	for _, s := range []struct {
		label string
		dist  histogram.Distribution
		color color.Color
		dash  []vg.Length
	}{
		{"observed", observed, observedColor, nil},
		{"randomized", achieved, randomizedColor, []vg.Length{vg.Points(4), vg.Points(2)}},
	} {
		line, points, err := plotter.NewLinePoints(centres(s.dist))
		if err != nil {
			return nil, err
		}
		line.Color = s.color
		line.Width = vg.Points(1.5)
		line.Dashes = s.dash
		points.GlyphStyle.Color = s.color
		p.Add(line, points)
		p.Legend.Add(s.label, line, points)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// centres places each window's proportion at the window centre.
func centres(d histogram.Distribution) plotter.XYs {
	pts := make(plotter.XYs, len(d))
	for i, b := range d {
		pts[i] = plotter.XY{X: (b.Lower + b.Upper) / 2, Y: b.Proportion}
	}
	return pts
}

func peak(d histogram.Distribution) float64 {
	if len(d) == 0 {
		return 0
	}
	return floats.Max(d.Proportions())
}
