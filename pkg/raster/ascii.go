package raster

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
)

// ReadASCIIGrid decodes an ESRI ASCII grid:
//
//	ncols        4
//	nrows        3
//	xllcorner    -10.0
//	yllcorner    35.0
//	cellsize     0.5
//	NODATA_value -9999
//	1 1 -9999 1
//	...
//
// xllcenter/yllcenter are accepted and shifted to corners. NODATA_value is
// optional and defaults to [DefaultNoData]. The grid carries no reference
// system of its own; the caller supplies crs.
func ReadASCIIGrid(r io.Reader, crs geo.CRS, opts ...GridOption) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{"nodata_value": DefaultNoData}
	var first string
	for sc.Scan() {
		tok := sc.Text()
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			first = tok
			break
		}
		key := strings.ToLower(tok)
		if !sc.Scan() {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "ascii grid: header %q has no value", tok)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "ascii grid: header %q", tok)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "ascii grid: read")
	}

	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := header[k]; !ok {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "ascii grid: missing %s", k)
		}
	}
	ncols, nrows, cell := int(header["ncols"]), int(header["nrows"]), header["cellsize"]

	xmin, okx := header["xllcorner"]
	ymin, oky := header["yllcorner"]
	if xc, ok := header["xllcenter"]; ok && !okx {
		xmin, okx = xc-cell/2, true
	}
	if yc, ok := header["yllcenter"]; ok && !oky {
		ymin, oky = yc-cell/2, true
	}
	if !okx || !oky {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "ascii grid: missing lower-left corner")
	}
	if ncols <= 0 || nrows <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "ascii grid: invalid dimensions %dx%d", ncols, nrows)
	}

	values := make([]float64, 0, ncols*nrows)
	if first != "" {
		v, _ := strconv.ParseFloat(first, 64)
		values = append(values, v)
	}
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "ascii grid: cell %d", len(values))
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "ascii grid: read")
	}

	return NewGrid(ncols, nrows, xmin, ymin, cell, header["nodata_value"], values, crs, opts...)
}

// ReadASCIIGridFile opens path and decodes it with [ReadASCIIGrid].
func ReadASCIIGridFile(path string, crs geo.CRS, opts ...GridOption) (*Grid, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "mask %s", path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := ReadASCIIGrid(f, crs, opts...)
	if err != nil {
		return nil, errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeInvalidFormat), err, "mask %s", path)
	}
	return g, nil
}
