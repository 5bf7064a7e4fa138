package randomize

import (
	"encoding/json"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pairnull/pkg/histogram"
)

func TestOptionsDefaults(t *testing.T) {
	var opts Options
	require.NoError(t, opts.ValidateAndSetDefaults())

	assert.Equal(t, DefaultBins, opts.Bins)
	assert.Equal(t, DefaultTolerance, opts.Tolerance)
	assert.Equal(t, histogram.DefaultOverlap, *opts.Overlap)
	assert.Equal(t, uint64(DefaultSeed), opts.Seed, "seed 0 selects the default seed")
	assert.Equal(t, DefaultEscapeEvery, *opts.EscapeEvery)
	assert.Equal(t, StrategyGreedy, opts.Strategy)

	// Idempotent.
	require.NoError(t, opts.ValidateAndSetDefaults())
	assert.Equal(t, histogram.DefaultOverlap, *opts.Overlap)
}

func TestOptionsZeroOverlapIsKept(t *testing.T) {
	decoders := []struct {
		name   string
		decode func(*Options) error
	}{
		{"json", func(o *Options) error { return json.Unmarshal([]byte(`{"bins":5,"overlap":0}`), o) }},
		{"toml", func(o *Options) error { _, err := toml.Decode("bins = 5\noverlap = 0.0\n", o); return err }},
		{"helper", func(o *Options) error { o.Overlap = Overlap(0); return nil }},
	}
	for _, d := range decoders {
		t.Run(d.name, func(t *testing.T) {
			var opts Options
			require.NoError(t, d.decode(&opts))
			require.NoError(t, opts.ValidateAndSetDefaults())
			require.NotNil(t, opts.Overlap)
			assert.Zero(t, *opts.Overlap)
		})
	}
}

func TestOptionsOverlapRoundTrips(t *testing.T) {
	opts := Options{Overlap: Overlap(0)}
	b, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"overlap":0`)

	var back Options
	require.NoError(t, json.Unmarshal(b, &back))
	require.NotNil(t, back.Overlap)
	assert.Zero(t, *back.Overlap)
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"overlap one", Options{Overlap: Overlap(1)}},
		{"negative overlap", Options{Overlap: Overlap(-0.1)}},
		{"negative escape", Options{EscapeEvery: Escape(-1)}},
		{"bad strategy", Options{Strategy: "tabu"}},
		{"bad metric", Options{MetricName: "manhattan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.opts.ValidateAndSetDefaults())
		})
	}
}
