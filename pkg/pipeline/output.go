package pipeline

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/pairnull/pkg/pointio"
)

// OutputPath names the file written for replicate i of an input. A single
// replicate keeps the input's extension with a "_null" suffix; replicates
// are numbered from 1.
func OutputPath(dir, input string, i, replicates int) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if replicates > 1 {
		return filepath.Join(dir, fmt.Sprintf("%s_null_%03d%s", stem, i+1, ext))
	}
	return filepath.Join(dir, stem+"_null"+ext)
}

// WriteOutputs writes every replicate and rendered plot of res into dir and
// returns the written paths. in1 and in2 name the source files; bare names
// like "x1.csv" are used for pre-loaded inputs.
func WriteOutputs(dir string, res *Result, in1, in2 string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if in1 == "" {
		in1 = "x1." + string(res.In1.Format)
	}
	if in2 == "" {
		in2 = "x2." + string(res.In2.Format)
	}
	if filepath.Base(in1) == filepath.Base(in2) {
		in1, in2 = "x1_"+filepath.Base(in1), "x2_"+filepath.Base(in2)
	}

	var paths []string
	n := len(res.Replicates)
	for i := range n {
		o1, o2, err := res.Outputs(i)
		if err != nil {
			return paths, err
		}
		for _, out := range []struct {
			input string
			c     *pointio.Collection
		}{{in1, o1}, {in2, o2}} {
			path := OutputPath(dir, out.input, i, n)
			if err := pointio.WriteFile(path, out.c); err != nil {
				return paths, fmt.Errorf("write %s: %w", path, err)
			}
			paths = append(paths, path)
		}
	}
	for _, format := range slices.Sorted(maps.Keys(res.Artifacts)) {
		path := filepath.Join(dir, "distances."+format)
		if err := os.WriteFile(path, res.Artifacts[format], 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
