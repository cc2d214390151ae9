package validate_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrew/tb2048/grid"
	"github.com/kbrew/tb2048/spawner"
	"github.com/kbrew/tb2048/tablebase"
	"github.com/kbrew/tb2048/tablebase/memstore"
	"github.com/kbrew/tb2048/validate"
)

func TestRolloutWinRateAgreesWithSolvedScore(t *testing.T) {
	store := memstore.New(2)
	tb := tablebase.New(store, 2, 0.1)
	require.NoError(t, tb.Init(context.Background()))

	start := grid.New(2)
	start.WriteTile(0, 0, 1)
	sp := spawner.New(0.1)

	result := validate.RolloutWinRate(tb, start, sp, 200)
	require.False(t, math.IsNaN(result.Delta))
	assert.Less(t, result.Delta, 0.05)
}

func TestRolloutManyAndMaxDelta(t *testing.T) {
	store := memstore.New(2)
	tb := tablebase.New(store, 2, 0.1)
	require.NoError(t, tb.Init(context.Background()))

	a := grid.New(2)
	a.WriteTile(0, 0, 1)
	b := grid.New(2)
	b.WriteTile(1, 1, 1)

	sp := spawner.New(0.1)
	results := validate.RolloutMany(tb, []*grid.Grid{a, b}, sp, 100)
	require.Len(t, results, 2)

	maxDelta := validate.MaxDelta(results)
	assert.False(t, math.IsNaN(maxDelta))
	assert.GreaterOrEqual(t, maxDelta, 0.0)
}

func TestMaxDeltaNaNWhenAllUnknown(t *testing.T) {
	results := []validate.Result{{Delta: math.NaN()}, {Delta: math.NaN()}}
	assert.True(t, math.IsNaN(validate.MaxDelta(results)))
}
