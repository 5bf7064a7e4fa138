package cli

import (
	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/pipeline"
	"github.com/matzehuels/pairnull/pkg/randomize"
)

// runFile is the layout of a --config TOML file:
//
//	x1   = "oaks.csv"
//	x2   = "beeches.geojson"
//	mask = "alps.asc"
//	crs  = "EPSG:4326"
//	replicates = 99
//	plot = ["svg"]
//
//	[run]
//	tolerance = 0.005
//	seed      = 7
//	timeout   = "10m"
//
//	[cache]
//	redis_url = "redis://localhost:6379/0"
//
//	[store]
//	mongo_uri = "mongodb://localhost:27017"
type runFile struct {
	X1           string            `toml:"x1"`
	X2           string            `toml:"x2"`
	Mask         string            `toml:"mask"`
	CRS          string            `toml:"crs"`
	MaskCRS      string            `toml:"mask_crs"`
	AreaWeighted *bool             `toml:"area_weighted"`
	Output       string            `toml:"output"`
	Replicates   int               `toml:"replicates"`
	Concurrency  int               `toml:"concurrency"`
	Plot         []string          `toml:"plot"`
	Run          randomize.Options `toml:"run"`

	Cache struct {
		Disabled bool   `toml:"disabled"`
		RedisURL string `toml:"redis_url"`
	} `toml:"cache"`

	Store struct {
		Disabled bool   `toml:"disabled"`
		MongoURI string `toml:"mongo_uri"`
	} `toml:"store"`
}

// loadRunFile decodes path. Unknown keys are rejected so that typos do not
// silently fall back to defaults.
func loadRunFile(path string) (*runFile, error) {
	var f runFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidOption, "config %s: unknown keys %v", path, undecoded)
	}
	return &f, nil
}

// pipelineOptions converts the file into pipeline options.
func (f *runFile) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		X1Path:       f.X1,
		X2Path:       f.X2,
		MaskPath:     f.Mask,
		CRS:          f.CRS,
		MaskCRS:      f.MaskCRS,
		AreaWeighted: f.AreaWeighted,
		Run:          f.Run,
		Replicates:   f.Replicates,
		Concurrency:  f.Concurrency,
		PlotFormats:  f.Plot,
	}
}
