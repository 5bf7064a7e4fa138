package randomize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pairnull/pkg/errors"
)

func TestRunBatch(t *testing.T) {
	grid := openGrid(t)
	x1, x2 := fivePointSets()

	opts := smallOptions()
	opts.BestEffort = true
	opts.RunID = "batch"

	results, err := RunBatch(context.Background(), x1, x2, grid, opts, 4, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, opts.Seed+uint64(i), res.Seed)
		assert.Equal(t, "batch-"+string(rune('0'+i)), res.RunID)
		assert.Equal(t, 5, res.Set1.Len())
	}
	assert.NotEqual(t, results[0].Set1, results[1].Set1, "replicates use distinct seeds")

	// Replicate i reproduces a single run with seed Seed+i.
	single := smallOptions()
	single.BestEffort = true
	single.Seed = opts.Seed + 2
	res, err := Run(context.Background(), x1, x2, grid, single)
	require.NoError(t, err)
	assert.Equal(t, res.Set1, results[2].Set1)
	assert.Equal(t, res.Set2, results[2].Set2)
}

func TestRunBatchFailsFast(t *testing.T) {
	x1, x2 := fivePointSets()

	_, err := RunBatch(context.Background(), x1, x2, tinyGrid(t), smallOptions(), 3, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConvergenceFailure))

	_, err = RunBatch(context.Background(), x1, x2, openGrid(t), smallOptions(), 0, 0)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidOption))
}
