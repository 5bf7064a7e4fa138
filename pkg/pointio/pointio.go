// Package pointio reads and writes point collections in the formats callers
// hand to pairnull, and returns randomized points in the same representation.
//
// Supported formats:
//
//   - CSV: a longitude/x column and a latitude/y column, with or without a
//     header row. Other columns are carried through unchanged.
//   - GeoJSON: a FeatureCollection of Point features. Properties, feature
//     IDs and foreign members are carried through unchanged.
//
// A [Collection] remembers everything about the source except the
// coordinates, so [Collection.WithPoints] can rebuild it around new points.
package pointio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
)

// Format identifies a point collection encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatGeoJSON Format = "geojson"
)

// ValidFormats is the set of supported formats.
var ValidFormats = map[Format]bool{
	FormatCSV:     true,
	FormatGeoJSON: true,
}

var (
	xColumns = []string{"lon", "lng", "long", "longitude", "x", "easting"}
	yColumns = []string{"lat", "latitude", "y", "northing"}
)

// Collection is a point set plus the representation it arrived in.
type Collection struct {
	Format Format
	Set    geo.PointSet

	// CSV
	header     []string
	rows       [][]string
	xcol, ycol int

	// GeoJSON
	features *geojson.FeatureCollection
}

// Len returns the number of points.
func (c *Collection) Len() int { return c.Set.Len() }

// DetectFormat picks a format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat,
		"cannot tell the format of %q (use .csv or .geojson)", path)
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if f == "json" {
		f = FormatGeoJSON
	}
	if !ValidFormats[f] {
		return "", errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: csv, geojson)", s)
	}
	return f, nil
}

// Read decodes a collection. crs is the reference system declared by the
// caller; it may be empty. A GeoJSON "crs" member that disagrees with it
// fails with INVALID_CRS. GeoJSON without a "crs" member is WGS84.
func Read(r io.Reader, format Format, crs geo.CRS) (*Collection, error) {
	switch format {
	case FormatCSV:
		return readCSV(r, crs)
	case FormatGeoJSON:
		return readGeoJSON(r, crs)
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", format)
}

// ReadFile opens path, detecting the format from its extension.
func ReadFile(path string, crs geo.CRS) (*Collection, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "points %s", path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Read(f, format, crs)
	if err != nil {
		return nil, errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeInvalidFormat), err, "points %s", path)
	}
	return c, nil
}

func readCSV(r io.Reader, crs geo.CRS) (*Collection, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "csv")
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "csv has no rows")
	}

	c := &Collection{Format: FormatCSV, xcol: 0, ycol: 1}
	if !numeric(records[0]) {
		c.header = records[0]
		records = records[1:]
		c.xcol, c.ycol = -1, -1
		for i, name := range c.header {
			name = strings.ToLower(strings.TrimSpace(name))
			if c.xcol < 0 && slices.Contains(xColumns, name) {
				c.xcol = i
			}
			if c.ycol < 0 && slices.Contains(yColumns, name) {
				c.ycol = i
			}
		}
		if c.xcol < 0 || c.ycol < 0 {
			return nil, errors.New(errors.ErrCodeInvalidFormat,
				"csv header %v has no longitude/x and latitude/y columns", c.header)
		}
	}

	pts := make([]geo.Point, 0, len(records))
	for i, rec := range records {
		if len(rec) <= max(c.xcol, c.ycol) {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "csv row %d has %d columns", i+1, len(rec))
		}
		x, errx := strconv.ParseFloat(strings.TrimSpace(rec[c.xcol]), 64)
		y, erry := strconv.ParseFloat(strings.TrimSpace(rec[c.ycol]), 64)
		if errx != nil || erry != nil {
			return nil, errors.New(errors.ErrCodeInvalidFormat,
				"csv row %d: coordinates %q, %q are not numbers", i+1, rec[c.xcol], rec[c.ycol])
		}
		pts = append(pts, geo.Point{x, y})
	}
	c.rows = records
	c.Set = geo.PointSet{Points: pts, CRS: crs}
	return c, nil
}

func numeric(rec []string) bool {
	if len(rec) < 2 {
		return false
	}
	for _, f := range rec[:2] {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return false
		}
	}
	return true
}

func readGeoJSON(r io.Reader, crs geo.CRS) (*Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "geojson")
	}

	declared, err := geojsonCRS(fc)
	if err != nil {
		return nil, err
	}
	switch {
	case crs.IsZero():
		crs = declared
	case !crs.Equal(declared):
		return nil, errors.New(errors.ErrCodeInvalidCRS,
			"geojson declares %s but %s was requested", declared, crs)
	}

	pts := make([]geo.Point, 0, len(fc.Features))
	for i, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidFormat,
				"geojson feature %d is a %s, only Point is supported", i, geometryType(f.Geometry))
		}
		pts = append(pts, p)
	}
	return &Collection{
		Format:   FormatGeoJSON,
		Set:      geo.PointSet{Points: pts, CRS: crs},
		features: fc,
	}, nil
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null geometry"
	}
	return g.GeoJSONType()
}

// geojsonCRS reads the legacy named "crs" member. Its absence means WGS84.
func geojsonCRS(fc *geojson.FeatureCollection) (geo.CRS, error) {
	raw, ok := fc.ExtraMembers["crs"]
	if !ok || raw == nil {
		return geo.WGS84, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidCRS, err, "geojson crs member")
	}
	var member struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(b, &member); err != nil || member.Properties.Name == "" {
		return "", errors.New(errors.ErrCodeInvalidCRS, "geojson crs member must be a named crs")
	}
	return geo.ParseCRS(member.Properties.Name)
}

// WithPoints returns a copy of c holding ps, in c's representation. Extra
// CSV columns and GeoJSON properties stay attached to their row position.
// ps must have as many points as c.
func (c *Collection) WithPoints(ps geo.PointSet) (*Collection, error) {
	if ps.Len() != c.Len() {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"collection has %d points, got %d", c.Len(), ps.Len())
	}
	out := &Collection{
		Format: c.Format,
		Set:    ps.Clone(),
		header: c.header,
		xcol:   c.xcol,
		ycol:   c.ycol,
	}
	switch {
	case c.Format == FormatCSV && c.rows != nil:
		out.rows = make([][]string, len(c.rows))
		for i, rec := range c.rows {
			row := append([]string(nil), rec...)
			row[c.xcol] = formatFloat(ps.Points[i][0])
			row[c.ycol] = formatFloat(ps.Points[i][1])
			out.rows[i] = row
		}
	case c.Format == FormatGeoJSON && c.features != nil:
		fc := geojson.NewFeatureCollection()
		fc.ExtraMembers = c.features.ExtraMembers.Clone()
		for i, f := range c.features.Features {
			nf := geojson.NewFeature(ps.Points[i])
			nf.ID = f.ID
			nf.Properties = f.Properties.Clone()
			fc.Append(nf)
		}
		out.features = fc
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write encodes c in its own format.
func Write(w io.Writer, c *Collection) error {
	switch c.Format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if c.header != nil {
			if err := cw.Write(c.header); err != nil {
				return err
			}
		}
		rows := c.rows
		if rows == nil {
			rows = make([][]string, len(c.Set.Points))
			for i, p := range c.Set.Points {
				rows[i] = []string{formatFloat(p[0]), formatFloat(p[1])}
			}
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		return cw.Error()
	case FormatGeoJSON:
		fc := c.features
		if fc == nil {
			fc = geojson.NewFeatureCollection()
			for _, p := range c.Set.Points {
				fc.Append(geojson.NewFeature(p))
			}
		}
		b, err := json.MarshalIndent(fc, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(b, '\n'))
		return err
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", c.Format)
}

// WriteFile writes c to path.
func WriteFile(path string, c *Collection) error {
	var buf bytes.Buffer
	if err := Write(&buf, c); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// FromPointSet wraps a bare point set in a collection of the given format.
func FromPointSet(ps geo.PointSet, format Format) *Collection {
	c := &Collection{Format: format, Set: ps.Clone(), xcol: 0, ycol: 1}
	if format == FormatCSV {
		c.header = []string{"lon", "lat"}
		if !ps.CRS.IsGeographic() {
			c.header = []string{"x", "y"}
		}
	}
	if format == FormatGeoJSON {
		fc := geojson.NewFeatureCollection()
		for _, p := range ps.Points {
			fc.Append(geojson.NewFeature(p))
		}
		if ps.CRS != geo.WGS84 && !ps.CRS.IsZero() {
			fc.ExtraMembers = geojson.Properties{"crs": namedCRS(ps.CRS)}
		}
		c.features = fc
	}
	return c
}

func namedCRS(c geo.CRS) map[string]any {
	name := c.String()
	if code := c.EPSG(); code != 0 {
		name = "urn:ogc:def:crs:EPSG::" + strconv.Itoa(code)
	}
	return map[string]any{
		"type":       "name",
		"properties": map[string]any{"name": name},
	}
}
