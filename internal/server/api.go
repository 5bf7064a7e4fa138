package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/matzehuels/pairnull/pkg/cache"
	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
	"github.com/matzehuels/pairnull/pkg/pipeline"
	"github.com/matzehuels/pairnull/pkg/pointio"
	"github.com/matzehuels/pairnull/pkg/randomize"
	"github.com/matzehuels/pairnull/pkg/raster"
	"github.com/matzehuels/pairnull/pkg/store"
)

// DefaultNoData is the missing-value marker of masks that declare none.
const DefaultNoData = -9999

// RandomizeRequest is the body of POST /v1/randomize. Point sets are GeoJSON
// FeatureCollections of Point features.
type RandomizeRequest struct {
	X1   json.RawMessage `json:"x1"`
	X2   json.RawMessage `json:"x2"`
	Mask MaskGrid        `json:"mask"`

	CRS          string `json:"crs,omitempty"`
	MaskCRS      string `json:"mask_crs,omitempty"`
	AreaWeighted *bool  `json:"area_weighted,omitempty"`

	Options     randomize.Options `json:"options"`
	Replicates  int               `json:"replicates,omitempty"`
	Concurrency int               `json:"concurrency,omitempty"`
	Plots       []string          `json:"plots,omitempty"`
	Refresh     bool              `json:"refresh,omitempty"`
}

// MaskGrid is an inline raster mask. Values are row-major from the top row,
// as in an ESRI ASCII grid. Without mask_crs the mask is taken to be in the
// reference system of x1.
type MaskGrid struct {
	NCols     int       `json:"ncols"`
	NRows     int       `json:"nrows"`
	XLLCorner float64   `json:"xllcorner"`
	YLLCorner float64   `json:"yllcorner"`
	CellSize  float64   `json:"cellsize"`
	NoData    *float64  `json:"nodata_value,omitempty"`
	Values    []float64 `json:"values"`
}

func (m MaskGrid) noData() float64 {
	if m.NoData == nil {
		return DefaultNoData
	}
	return *m.NoData
}

// pipelineOptions decodes the inline inputs into pre-loaded pipeline options.
func (req *RandomizeRequest) pipelineOptions() (pipeline.Options, error) {
	var opts pipeline.Options
	if len(req.X1) == 0 || len(req.X2) == 0 {
		return opts, errors.New(errors.ErrCodeInvalidInput, "x1 and x2 are required")
	}

	crs, err := geo.ParseCRS(req.CRS)
	if err != nil {
		return opts, err
	}
	maskCRS := crs
	if req.MaskCRS != "" {
		if maskCRS, err = geo.ParseCRS(req.MaskCRS); err != nil {
			return opts, err
		}
	}

	x1, err := pointio.Read(bytes.NewReader(req.X1), pointio.FormatGeoJSON, crs)
	if err != nil {
		return opts, errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeInvalidFormat), err, "x1")
	}
	x2, err := pointio.Read(bytes.NewReader(req.X2), pointio.FormatGeoJSON, crs)
	if err != nil {
		return opts, errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeInvalidFormat), err, "x2")
	}

	// GeoJSON without a crs member is WGS84; an undeclared mask follows it.
	if maskCRS.IsZero() {
		maskCRS = x1.Set.CRS
	}

	var gridOpts []raster.GridOption
	if req.AreaWeighted != nil {
		gridOpts = append(gridOpts, raster.WithAreaWeighting(*req.AreaWeighted))
	}
	m := req.Mask
	grid, err := raster.NewGrid(m.NCols, m.NRows, m.XLLCorner, m.YLLCorner, m.CellSize, m.noData(), m.Values, maskCRS, gridOpts...)
	if err != nil {
		return opts, errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeInvalidInput), err, "mask")
	}
	key, err := maskKey(m, grid.AreaWeighted())
	if err != nil {
		return opts, err
	}

	return pipeline.Options{
		X1:           x1,
		X2:           x2,
		Mask:         grid,
		MaskKey:      key,
		CRS:          req.CRS,
		MaskCRS:      req.MaskCRS,
		AreaWeighted: req.AreaWeighted,
		Run:          req.Options,
		Replicates:   req.Replicates,
		Concurrency:  req.Concurrency,
		PlotFormats:  req.Plots,
		Refresh:      req.Refresh,
	}, nil
}

// maskKey identifies a mask by content so identical requests hit the cache.
func maskKey(m MaskGrid, areaWeighted bool) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "mask")
	}
	return cache.Hash(data) + ":" + strconv.FormatBool(areaWeighted), nil
}

// RandomizeResponse is the body of a successful POST /v1/randomize.
type RandomizeResponse struct {
	RunID      string              `json:"run_id"`
	Cached     bool                `json:"cached"`
	Converged  bool                `json:"converged"`
	Replicates []ReplicateResponse `json:"replicates"`
	Plots      map[string][]byte   `json:"plots,omitempty"`
}

// ReplicateResponse is one randomized pair with its run statistics. X1 and
// X2 keep the properties of the submitted features.
type ReplicateResponse struct {
	*randomize.Result
	X1 json.RawMessage `json:"x1"`
	X2 json.RawMessage `json:"x2"`
}

func newRandomizeResponse(res *pipeline.Result) (*RandomizeResponse, error) {
	resp := &RandomizeResponse{
		RunID:      res.Record.ID,
		Cached:     res.CacheHit,
		Converged:  res.Record.Converged(),
		Replicates: make([]ReplicateResponse, len(res.Replicates)),
		Plots:      res.Artifacts,
	}
	for i, r := range res.Replicates {
		o1, o2, err := res.Outputs(i)
		if err != nil {
			return nil, err
		}
		rep := ReplicateResponse{Result: r}
		if rep.X1, err = encodeCollection(o1); err != nil {
			return nil, fmt.Errorf("replicate %d: %w", i, err)
		}
		if rep.X2, err = encodeCollection(o2); err != nil {
			return nil, fmt.Errorf("replicate %d: %w", i, err)
		}
		resp.Replicates[i] = rep
	}
	return resp, nil
}

func encodeCollection(c *pointio.Collection) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := pointio.Write(&buf, c); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// RunSummary is one entry of GET /v1/runs.
type RunSummary struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	N1         int       `json:"n1"`
	N2         int       `json:"n2"`
	CRS        string    `json:"crs"`
	Replicates int       `json:"replicates"`
	Converged  bool      `json:"converged"`
}

func newRunSummary(rec *store.Record) RunSummary {
	return RunSummary{
		ID:         rec.ID,
		CreatedAt:  rec.CreatedAt,
		N1:         rec.N1,
		N2:         rec.N2,
		CRS:        rec.CRS,
		Replicates: len(rec.Replicates),
		Converged:  rec.Converged(),
	}
}
