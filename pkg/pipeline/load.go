package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/matzehuels/pairnull/pkg/cache"
	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/observability"
	"github.com/matzehuels/pairnull/pkg/pointio"
	"github.com/matzehuels/pairnull/pkg/raster"
)

// Inputs are the loaded point collections and mask of a run.
type Inputs struct {
	X1, X2 *pointio.Collection
	Mask   raster.Mask

	// Hash digests the points, their reference systems and the mask. It is
	// empty when the mask content is unknown, which disables caching.
	Hash string
}

// Load reads every input named in opts.
func Load(ctx context.Context, opts Options) (*Inputs, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	names := []string{opts.X1Path, opts.X2Path, opts.MaskPath}
	observability.Pipeline().OnLoadStart(ctx, names)
	start := time.Now()

	in, err := load(opts)
	points := 0
	if in != nil {
		points = in.X1.Len() + in.X2.Len()
	}
	observability.Pipeline().OnLoadComplete(ctx, names, points, time.Since(start), err)
	return in, err
}

func load(opts Options) (*Inputs, error) {
	in := &Inputs{X1: opts.X1, X2: opts.X2, Mask: opts.Mask}
	var err error
	if in.X1 == nil {
		if in.X1, err = pointio.ReadFile(opts.X1Path, opts.crs); err != nil {
			return nil, err
		}
	}
	if in.X2 == nil {
		if in.X2, err = pointio.ReadFile(opts.X2Path, opts.crs); err != nil {
			return nil, err
		}
	}

	maskKey := opts.MaskKey
	if in.Mask == nil {
		data, err := os.ReadFile(opts.MaskPath)
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "mask %s", opts.MaskPath)
		}
		if err != nil {
			return nil, err
		}
		var gridOpts []raster.GridOption
		if opts.AreaWeighted != nil {
			gridOpts = append(gridOpts, raster.WithAreaWeighting(*opts.AreaWeighted))
		}
		grid, err := raster.ReadASCIIGrid(bytes.NewReader(data), opts.maskCRS, gridOpts...)
		if err != nil {
			return nil, errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeInvalidFormat), err, "mask %s", opts.MaskPath)
		}
		in.Mask = grid
		maskKey = cache.Hash(data)
		if opts.AreaWeighted != nil {
			maskKey += ":" + strconv.FormatBool(*opts.AreaWeighted)
		}
	}

	if maskKey != "" {
		in.Hash = inputsHash(in, maskKey)
	}
	return in, nil
}

func inputsHash(in *Inputs, maskKey string) string {
	data, err := json.Marshal(struct {
		X1   any    `json:"x1"`
		X2   any    `json:"x2"`
		Mask string `json:"mask"`
		CRS  string `json:"mask_crs"`
	}{in.X1.Set, in.X2.Set, maskKey, in.Mask.CRS().String()})
	if err != nil {
		return ""
	}
	return cache.Hash(data)
}
