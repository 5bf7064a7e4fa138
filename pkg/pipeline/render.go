package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/pairnull/pkg/cache"
	"github.com/matzehuels/pairnull/pkg/observability"
	"github.com/matzehuels/pairnull/pkg/randomize"
	"github.com/matzehuels/pairnull/pkg/render/histplot"
)

// RenderPlots draws res in every format.
func RenderPlots(res *randomize.Result, formats []string) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(formats))
	for _, format := range formats {
		data, err := histplot.Render(res, format)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

// Render draws res in every format, reusing plots cached under runKey.
// An empty runKey disables the cache.
func (r *Runner) Render(ctx context.Context, res *randomize.Result, runKey string, formats []string) (map[string][]byte, error) {
	if err := ValidatePlotFormats(formats); err != nil {
		return nil, err
	}
	observability.Pipeline().OnRenderStart(ctx, formats)
	start := time.Now()

	artifacts := make(map[string][]byte, len(formats))
	var missing []string
	for _, format := range formats {
		if runKey != "" {
			if data, hit, err := r.Cache.Get(ctx, r.Keyer.PlotKey(runKey, format)); err == nil && hit {
				artifacts[format] = data
				continue
			}
		}
		missing = append(missing, format)
	}

	rendered, err := RenderPlots(res, missing)
	observability.Pipeline().OnRenderComplete(ctx, formats, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	for format, data := range rendered {
		artifacts[format] = data
		if runKey != "" {
			_ = r.Cache.Set(ctx, r.Keyer.PlotKey(runKey, format), data, cache.DefaultTTL)
		}
	}
	return artifacts, nil
}
