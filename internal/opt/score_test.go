package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refillplan/internal/model"
)

func TestAccumulatorTotalIsRecomputed(t *testing.T) {
	acc := NewAccumulator(nil, 2)
	acc.Add(model.ScoreVector{CO2Savings: 1, Earnings: 10, TotalFootfall: 0.5, Total: 999})
	acc.Add(model.ScoreVector{CO2Savings: 2, Earnings: 5, TotalFootfall: 0.5, Total: 999})
	// (3*2 + 15) * (1 + 1)
	assert.Equal(t, 42.0, acc.Total())
	assert.Equal(t, 42.0, acc.Vector().Total)

	acc.Sub(model.ScoreVector{CO2Savings: 2, Earnings: 5, TotalFootfall: 0.5})
	assert.Equal(t, (1*2+10)*1.5, acc.Total())
}

func TestTryInsertRevertIsBitIdentical(t *testing.T) {
	o := tableOracle{
		values: map[string]map[model.Assignment]float64{
			"a": {model.DeviceA: 0.1, model.DeviceB: 0.7},
			"b": {model.DeviceA: 0.2, model.DeviceB: 1e-17},
		},
		footfall: map[string]float64{"a": 0.003, "b": 0.3},
	}
	acc := NewAccumulator(o, 1.7)
	acc.Add(model.ScoreVector{CO2Savings: 0.3, Earnings: 1.1, TotalFootfall: 0.01})
	before := acc.Vector()

	working := model.Solution{"a": model.DeviceB}
	locs := pointLocs("a", "b")
	for i := 0; i < 100; i++ {
		_, _, err := acc.TryInsert(working, locs, "b", model.DeviceA)
		require.NoError(t, err)
		acc.Revert(working, "b")
		_, _, err = acc.TryInsert(working, locs, "a", model.DeviceA)
		require.NoError(t, err)
		acc.Revert(working, "a")
	}
	assert.Equal(t, before, acc.Vector())
	assert.Equal(t, model.Solution{"a": model.DeviceB}, working)
}

func TestTryInsertReturnsTotalAndFootfall(t *testing.T) {
	o := table(map[string][2]float64{"a": {3, 4}, "b": {5, 1}})
	o.footfall = map[string]float64{"a": 0, "b": 0}
	acc := NewAccumulator(o, 1)
	working := model.Solution{"a": model.DeviceA}

	total, footfall, err := acc.TryInsert(working, pointLocs("a", "b"), "b", model.DeviceA)
	require.NoError(t, err)
	assert.Equal(t, 8.0, total)
	assert.Equal(t, 0.0, footfall)
	assert.Equal(t, model.DeviceA, working["b"])

	acc.Revert(working, "b")
	assert.NotContains(t, working, "b")
	assert.Equal(t, 0.0, acc.Total())
}

func TestRevertMismatchPanics(t *testing.T) {
	acc := NewAccumulator(table(map[string][2]float64{"a": {1, 1}}), 1)
	working := model.Solution{}
	_, _, err := acc.TryInsert(working, pointLocs("a"), "a", model.DeviceA)
	require.NoError(t, err)
	assert.Panics(t, func() { acc.Revert(working, "b") })
}

func TestTryInsertOracleFailureLeavesStateUntouched(t *testing.T) {
	acc := NewAccumulator(tableOracle{fail: true}, 1)
	working := model.Solution{}
	_, _, err := acc.TryInsert(working, pointLocs("a"), "a", model.DeviceA)
	require.ErrorIs(t, err, errOracle)
	assert.Empty(t, working)
	assert.Equal(t, 0.0, acc.Total())
}

func TestEvaluateDoesNotCommit(t *testing.T) {
	acc := NewAccumulator(table(map[string][2]float64{"a": {3, 4}}), 1)
	acc.Add(model.ScoreVector{Earnings: 2})
	total, _, err := acc.Evaluate(model.Solution{"a": model.DeviceB}, pointLocs("a"))
	require.NoError(t, err)
	assert.Equal(t, 6.0, total)
	assert.Equal(t, 2.0, acc.Total())
	assert.Equal(t, 1, acc.Calls())
}
