package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/pairnull/pkg/cache"
	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
	"github.com/matzehuels/pairnull/pkg/pointio"
	"github.com/matzehuels/pairnull/pkg/randomize"
	"github.com/matzehuels/pairnull/pkg/raster"
	"github.com/matzehuels/pairnull/pkg/store"
)

const oaksCSV = `id,lon,lat
o1,1.5,1.5
o2,2.5,3.5
o3,4.5,2.5
o4,3.5,5.5
o5,1.5,6.5
`

const beechesCSV = `id,lon,lat
b1,6.5,6.5
b2,8.5,7.5
b3,7.5,8.5
b4,5.5,8.5
b5,8.5,5.5
`

// openMask is an all-valid 10×10 grid of 1° cells.
func openMask() string {
	var b strings.Builder
	b.WriteString("ncols 10\nnrows 10\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n")
	for range 10 {
		b.WriteString("1 1 1 1 1 1 1 1 1 1\n")
	}
	return b.String()
}

// tinyMask is one 0.01° cell; no run on it can converge.
const tinyMask = "ncols 1\nnrows 1\nxllcorner 5\nyllcorner 5\ncellsize 0.01\n1\n"

func writeInputs(t *testing.T, mask string) Options {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	return Options{
		X1Path:   write("oaks.csv", oaksCSV),
		X2Path:   write("beeches.csv", beechesCSV),
		MaskPath: write("region.asc", mask),
		CRS:      "EPSG:4326",
		Run: randomize.Options{
			Bins:       5,
			Tolerance:  0.05,
			MaxTries:   50_000,
			Seed:       1,
			BestEffort: true,
		},
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	valid := func() Options {
		return Options{X1Path: "a.csv", X2Path: "b.csv", MaskPath: "m.asc"}
	}
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"missing x1", func(o *Options) { o.X1Path = "" }},
		{"missing x2", func(o *Options) { o.X2Path = "" }},
		{"missing mask", func(o *Options) { o.MaskPath = "" }},
		{"bad crs", func(o *Options) { o.CRS = "EPSG:nope" }},
		{"bad mask crs", func(o *Options) { o.MaskCRS = "mercator-ish" }},
		{"negative replicates", func(o *Options) { o.Replicates = -1 }},
		{"too many replicates", func(o *Options) { o.Replicates = MaxReplicates + 1 }},
		{"bad plot format", func(o *Options) { o.PlotFormats = []string{"pdf"} }},
		{"bad run option", func(o *Options) { o.Run.Tolerance = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.modify(&o)
			err := o.ValidateAndSetDefaults()
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.IsInvalidInput(err) {
				t.Errorf("expected an invalid-input code, got %v", err)
			}
		})
	}

	o := valid()
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("valid options: %v", err)
	}
	if o.Replicates != DefaultReplicates {
		t.Errorf("Replicates = %d, want %d", o.Replicates, DefaultReplicates)
	}
	if o.Run.Bins != randomize.DefaultBins {
		t.Errorf("run defaults not applied: bins %d", o.Run.Bins)
	}
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Errorf("second call should be a no-op: %v", err)
	}
}

func TestValidatePlotFormats(t *testing.T) {
	if err := ValidatePlotFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("valid formats should pass: %v", err)
	}
	if err := ValidatePlotFormats([]string{"svg", "SVG"}); err == nil {
		t.Error("formats are case-sensitive")
	}
	if err := ValidatePlotFormats(nil); err != nil {
		t.Errorf("empty formats should pass: %v", err)
	}
}

func TestExecute(t *testing.T) {
	opts := writeInputs(t, openMask())
	opts.PlotFormats = []string{"svg"}
	st := store.NewMemoryStore()
	runner := NewRunner(nil, nil, st, nil)

	res, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.CacheHit {
		t.Error("first run cannot hit a null cache")
	}
	if res.Stats.Points1 != 5 || res.Stats.Points2 != 5 || res.Stats.ValidCells != 100 {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
	if res.Out1.Len() != 5 || res.Out2.Len() != 5 {
		t.Fatalf("output sizes %d, %d", res.Out1.Len(), res.Out2.Len())
	}
	for _, p := range append(res.Out1.Set.Points, res.Out2.Set.Points...) {
		if p[0] < 0 || p[0] > 10 || p[1] < 0 || p[1] > 10 {
			t.Errorf("point %v outside the mask", p)
		}
	}
	if !bytes.Contains(res.Artifacts["svg"], []byte("<svg")) {
		t.Error("missing svg plot")
	}

	// Extra columns survive.
	var buf bytes.Buffer
	if err := pointio.Write(&buf, res.Out1); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "id,lon,lat\no1,") {
		t.Errorf("output lost its columns:\n%s", buf.String())
	}

	rec, err := st.Get(context.Background(), res.Record.ID)
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if rec.N1 != 5 || len(rec.Replicates) != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestExecuteUsesCache(t *testing.T) {
	opts := writeInputs(t, openMask())
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewMemoryStore()
	runner := NewRunner(fc, nil, st, nil)
	ctx := context.Background()

	first, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	second, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("identical seeded run should hit the cache")
	}
	if !pointsEqual(first.Run.Set1, second.Run.Set1) || !pointsEqual(first.Run.Set2, second.Run.Set2) {
		t.Error("cached result differs from the original run")
	}
	if second.Record.ID != first.Record.ID {
		t.Errorf("cached record id %s, want %s", second.Record.ID, first.Record.ID)
	}

	opts.Run.Seed = 2
	third, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("third Execute: %v", err)
	}
	if third.CacheHit {
		t.Error("a different seed must not hit the cache")
	}

	opts.Run.Seed = 1
	opts.Refresh = true
	fourth, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("refresh Execute: %v", err)
	}
	if fourth.CacheHit {
		t.Error("refresh must skip the cache")
	}
	if !pointsEqual(first.Run.Set1, fourth.Run.Set1) {
		t.Error("rerunning with the same seed should reproduce the result")
	}

	list, _ := st.List(ctx, 0)
	if len(list) != 3 {
		t.Errorf("stored %d records, want 3 (cache hits are not stored)", len(list))
	}
}

func TestPreloadedMaskWithoutKeyIsNotCached(t *testing.T) {
	opts := writeInputs(t, openMask())
	grid, err := raster.ReadASCIIGrid(strings.NewReader(openMask()), geo.WGS84)
	if err != nil {
		t.Fatal(err)
	}
	opts.MaskPath = ""
	opts.Mask = grid

	fc, _ := cache.NewFileCache(t.TempDir())
	runner := NewRunner(fc, nil, nil, nil)
	for i := range 2 {
		res, err := runner.Execute(context.Background(), opts)
		if err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
		if res.CacheHit {
			t.Errorf("run %d hit the cache without a mask key", i)
		}
	}

	opts.MaskKey = "region-v1"
	if _, err := runner.Execute(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	res, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.CacheHit {
		t.Error("a keyed mask should be cached")
	}
}

func TestExecuteReplicates(t *testing.T) {
	opts := writeInputs(t, openMask())
	opts.Replicates = 3
	opts.Concurrency = 2
	opts.PlotFormats = []string{"png"}

	res, err := NewRunner(nil, nil, nil, nil).Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Replicates) != 3 {
		t.Fatalf("got %d replicates", len(res.Replicates))
	}
	for i, rep := range res.Replicates {
		if rep.Seed != opts.Run.Seed+uint64(i) {
			t.Errorf("replicate %d seed %d", i, rep.Seed)
		}
	}

	dir := t.TempDir()
	paths, err := WriteOutputs(dir, res, opts.X1Path, opts.X2Path)
	if err != nil {
		t.Fatalf("WriteOutputs: %v", err)
	}
	want := []string{
		"oaks_null_001.csv", "beeches_null_001.csv",
		"oaks_null_002.csv", "beeches_null_002.csv",
		"oaks_null_003.csv", "beeches_null_003.csv",
		"distances.png",
	}
	if len(paths) != len(want) {
		t.Fatalf("wrote %v", paths)
	}
	for i, name := range want {
		if filepath.Base(paths[i]) != name {
			t.Errorf("path %d = %s, want %s", i, filepath.Base(paths[i]), name)
		}
	}
	back, err := pointio.ReadFile(paths[2], geo.WGS84)
	if err != nil {
		t.Fatal(err)
	}
	if !pointsEqual(back.Set, res.Replicates[1].Set1) {
		t.Error("replicate file does not hold replicate 2")
	}
}

func TestExecuteErrors(t *testing.T) {
	ctx := context.Background()
	runner := NewRunner(nil, nil, nil, nil)

	opts := writeInputs(t, tinyMask)
	opts.Run.BestEffort = false
	opts.Run.MaxTries = 2000
	_, err := runner.Execute(ctx, opts)
	if !errors.Is(err, errors.ErrCodeConvergenceFailure) {
		t.Errorf("expected CONVERGENCE_FAILURE, got %v", err)
	}

	opts = writeInputs(t, openMask())
	opts.X1Path = filepath.Join(t.TempDir(), "missing.csv")
	_, err = runner.Execute(ctx, opts)
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("expected FILE_NOT_FOUND, got %v", err)
	}

	opts = writeInputs(t, openMask())
	opts.MaskCRS = "EPSG:3035"
	_, err = runner.Execute(ctx, opts)
	if !errors.Is(err, errors.ErrCodeInvalidCRS) {
		t.Errorf("expected INVALID_CRS, got %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input      string
		i, n       int
		wantSuffix string
	}{
		{"data/oaks.csv", 0, 1, "oaks_null.csv"},
		{"oaks.geojson", 0, 2, "oaks_null_001.geojson"},
		{"oaks.geojson", 9, 10, "oaks_null_010.geojson"},
	}
	for _, tt := range tests {
		got := OutputPath("out", tt.input, tt.i, tt.n)
		if got != filepath.Join("out", tt.wantSuffix) {
			t.Errorf("OutputPath(%q, %d, %d) = %s", tt.input, tt.i, tt.n, got)
		}
	}
}

func pointsEqual(a, b geo.PointSet) bool {
	if a.CRS != b.CRS || len(a.Points) != len(b.Points) {
		return false
	}
	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			return false
		}
	}
	return true
}
