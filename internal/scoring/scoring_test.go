package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refillplan/internal/model"
)

func testGeneral() model.GeneralData {
	return model.GeneralData{
		ClassicUnitData:                 model.UnitData{ProfitPerUnit: 1, Co2PerUnitInGrams: 50},
		RefillUnitData:                  model.UnitData{ProfitPerUnit: 2, Co2PerUnitInGrams: 10},
		Freestyle3100Data:               model.DeviceData{LeasingCostPerWeek: 60, RefillCapacityPerWeek: 70, StaticCo2: 1000},
		Freestyle9100Data:               model.DeviceData{LeasingCostPerWeek: 150, RefillCapacityPerWeek: 400, StaticCo2: 3000},
		Co2PricePerKiloInSek:            10,
		WillingnessToTravelInMeters:     200,
		ConstantExpDistributionFunction: 1.1,
		RefillSalesFactor:               0.5,
		RefillDistributionRate:          0.5,
	}
}

func TestCalculateSingleStation(t *testing.T) {
	locs := map[string]model.Location{
		"a": {Name: "a", Latitude: 0, Longitude: 0, Footfall: 200, SalesVolume: 100},
	}
	got, err := Calculate("test", model.Solution{"a": model.DeviceA}, locs, testGeneral())
	require.NoError(t, err)

	sl := got.Locations["a"]
	assert.Equal(t, 50.0, sl.SalesVolume)
	assert.Equal(t, 70.0, sl.SalesCapacity)
	assert.Equal(t, 1000.0, sl.GramCo2Savings)
	assert.Equal(t, 40.0, sl.Earnings)
	assert.InDelta(t, 1.0, got.GameScore.CO2Savings, 1e-12)
	assert.InDelta(t, 40.0, got.GameScore.Earnings, 1e-12)
	assert.InDelta(t, 0.2, got.GameScore.TotalFootfall, 1e-12)
	assert.InDelta(t, 60.0, got.GameScore.Total, 1e-9)
}

func TestCalculateCapsSalesAtCapacity(t *testing.T) {
	locs := map[string]model.Location{
		"a": {Name: "a", Footfall: 0, SalesVolume: 1000},
	}
	got, err := Calculate("test", model.Solution{"a": model.DeviceA}, locs, testGeneral())
	require.NoError(t, err)
	// 500 demanded, 70 sold
	assert.Equal(t, 500.0, got.Locations["a"].SalesVolume)
	assert.Equal(t, 140.0, got.Locations["a"].Revenue)
}

func TestCalculateDeterministic(t *testing.T) {
	locs := map[string]model.Location{
		"a": {Name: "a", Latitude: 0, Longitude: 0, Footfall: 10, SalesVolume: 80},
		"b": {Name: "b", Latitude: 0, Longitude: 0.001, Footfall: 20, SalesVolume: 60},
		"c": {Name: "c", Latitude: 0.001, Longitude: 0, Footfall: 30, SalesVolume: 40},
	}
	sol := model.Solution{"a": model.DeviceA, "c": model.DeviceB}
	first, err := Calculate("m", sol, locs, testGeneral())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Calculate("m", sol.Clone(), locs, testGeneral())
		require.NoError(t, err)
		assert.Equal(t, first.GameScore, again.GameScore)
		assert.Equal(t, first.GameID, again.GameID)
	}
	other, err := Calculate("m", model.Solution{"a": model.DeviceB}, locs, testGeneral())
	require.NoError(t, err)
	assert.NotEqual(t, first.GameID, other.GameID)
}

func TestCalculateErrors(t *testing.T) {
	locs := map[string]model.Location{"a": {Name: "a", SalesVolume: 1}}
	_, err := Calculate("m", model.Solution{}, locs, testGeneral())
	assert.ErrorIs(t, err, ErrNoValidLocations)

	_, err = Calculate("m", model.Solution{"zz": model.DeviceA}, locs, testGeneral())
	assert.ErrorIs(t, err, ErrUnknownLocation)

	_, err = Calculate("m", model.Solution{"a": {F3100: -1, F9100: 2}}, locs, testGeneral())
	assert.ErrorIs(t, err, ErrZeroCapacity)
}

func TestOracleMatchesCalculate(t *testing.T) {
	locs := map[string]model.Location{"a": {Name: "a", Footfall: 5, SalesVolume: 30}}
	g := testGeneral()
	o := Oracle{MapName: "m", General: g}
	a, err := o.Score(model.Solution{"a": model.DeviceB}, locs)
	require.NoError(t, err)
	b, err := Calculate("m", model.Solution{"a": model.DeviceB}, locs, g)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}
