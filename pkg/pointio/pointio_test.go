package pointio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
)

const speciesCSV = `id,species,lat,lon
a,Quercus robur,45.5,7.25
b,Quercus robur,46,8
c,Quercus robur,44.75,9.5
`

const occurrencesGeoJSON = `{
  "type": "FeatureCollection",
  "name": "occurrences",
  "features": [
    {"type": "Feature", "id": 1, "properties": {"species": "Fagus sylvatica"}, "geometry": {"type": "Point", "coordinates": [10.5, 47.25]}},
    {"type": "Feature", "id": 2, "properties": {"species": "Fagus sylvatica"}, "geometry": {"type": "Point", "coordinates": [11, 48]}}
  ]
}`

func TestReadCSVWithHeader(t *testing.T) {
	c, err := Read(strings.NewReader(speciesCSV), FormatCSV, geo.WGS84)
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, c.Format)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, geo.WGS84, c.Set.CRS)
	assert.Equal(t, geo.Point{7.25, 45.5}, c.Set.Points[0])
	assert.Equal(t, geo.Point{9.5, 44.75}, c.Set.Points[2])
}

func TestReadCSVWithoutHeader(t *testing.T) {
	c, err := Read(strings.NewReader("1.5,2.5\n3,4\n"), FormatCSV, "")
	require.NoError(t, err)
	assert.Equal(t, []geo.Point{{1.5, 2.5}, {3, 4}}, c.Set.Points)
	assert.True(t, c.Set.CRS.IsZero())
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"no coordinate columns", "name,value\na,1\n"},
		{"bad number", "lon,lat\n1,north\n"},
		{"short row", "id,lon,lat\n1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.src), FormatCSV, geo.WGS84)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidInput(err), "got %v", err)
		})
	}
}

func TestCSVRoundTripKeepsColumns(t *testing.T) {
	c, err := Read(strings.NewReader(speciesCSV), FormatCSV, geo.WGS84)
	require.NoError(t, err)

	moved := geo.NewPointSet(geo.WGS84, geo.Point{1, 2}, geo.Point{3, 4}, geo.Point{5.125, 6})
	out, err := c.WithPoints(moved)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, out))
	want := `id,species,lat,lon
a,Quercus robur,2,1
b,Quercus robur,4,3
c,Quercus robur,6,5.125
`
	assert.Equal(t, want, buf.String())

	// The source collection is untouched.
	assert.Equal(t, geo.Point{7.25, 45.5}, c.Set.Points[0])
}

func TestReadGeoJSON(t *testing.T) {
	c, err := Read(strings.NewReader(occurrencesGeoJSON), FormatGeoJSON, "")
	require.NoError(t, err)
	assert.Equal(t, FormatGeoJSON, c.Format)
	assert.Equal(t, geo.WGS84, c.Set.CRS)
	assert.Equal(t, []geo.Point{{10.5, 47.25}, {11, 48}}, c.Set.Points)
}

func TestReadGeoJSONNamedCRS(t *testing.T) {
	src := `{"type":"FeatureCollection",
  "crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::3035"}},
  "features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[4321000,3210000]}}]}`

	c, err := Read(strings.NewReader(src), FormatGeoJSON, "")
	require.NoError(t, err)
	assert.Equal(t, geo.CRS("EPSG:3035"), c.Set.CRS)

	_, err = Read(strings.NewReader(src), FormatGeoJSON, geo.WGS84)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidCRS))
}

func TestReadGeoJSONRejectsNonPoints(t *testing.T) {
	src := `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`
	_, err := Read(strings.NewReader(src), FormatGeoJSON, "")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat), "got %v", err)
}

func TestGeoJSONWithPointsKeepsProperties(t *testing.T) {
	c, err := Read(strings.NewReader(occurrencesGeoJSON), FormatGeoJSON, "")
	require.NoError(t, err)

	out, err := c.WithPoints(geo.NewPointSet(geo.WGS84, geo.Point{1, 2}, geo.Point{3, 4}))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, out))

	back, err := Read(&buf, FormatGeoJSON, "")
	require.NoError(t, err)
	assert.Equal(t, []geo.Point{{1, 2}, {3, 4}}, back.Set.Points)
	require.Len(t, back.features.Features, 2)
	assert.Equal(t, "Fagus sylvatica", back.features.Features[0].Properties["species"])
	assert.EqualValues(t, 2, back.features.Features[1].ID)
	assert.Equal(t, "occurrences", back.features.ExtraMembers["name"])
}

func TestWithPointsLengthMismatch(t *testing.T) {
	c, err := Read(strings.NewReader(speciesCSV), FormatCSV, geo.WGS84)
	require.NoError(t, err)
	_, err = c.WithPoints(geo.NewPointSet(geo.WGS84, geo.Point{1, 2}))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestFromPointSet(t *testing.T) {
	ps := geo.NewPointSet(geo.MustParseCRS("EPSG:3035"), geo.Point{1, 2}, geo.Point{3, 4})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FromPointSet(ps, FormatCSV)))
	assert.Equal(t, "x,y\n1,2\n3,4\n", buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, FromPointSet(ps, FormatGeoJSON)))
	back, err := Read(&buf, FormatGeoJSON, "")
	require.NoError(t, err)
	assert.Equal(t, ps, back.Set)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "x1.csv")
	require.NoError(t, os.WriteFile(in, []byte(speciesCSV), 0o644))

	c, err := ReadFile(in, geo.WGS84)
	require.NoError(t, err)

	out := filepath.Join(dir, "out.csv")
	require.NoError(t, WriteFile(out, c))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, speciesCSV, string(data))

	_, err = ReadFile(filepath.Join(dir, "missing.csv"), geo.WGS84)
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))

	_, err = ReadFile(filepath.Join(dir, "points.shp"), geo.WGS84)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatGeoJSON, f)

	_, err = ParseFormat("kml")
	assert.Error(t, err)
}
