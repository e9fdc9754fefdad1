package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"refillplan/internal/model"
)

func TestDistributeSalesSingleStationTakesShare(t *testing.T) {
	with := map[string]model.Location{"a": {Name: "a", SalesVolume: 10}}
	without := map[string]model.Location{"b": {Name: "b", Longitude: 0.001, SalesVolume: 40}}
	out := DistributeSales(with, without, testGeneral())
	assert.InDelta(t, 30.0, out["a"].SalesVolume, 1e-9)
	// inputs untouched
	assert.Equal(t, 10.0, with["a"].SalesVolume)
}

func TestDistributeSalesSplitsEvenlyAtEqualDistance(t *testing.T) {
	with := map[string]model.Location{
		"a": {Name: "a", Longitude: -0.001, SalesVolume: 0},
		"c": {Name: "c", Longitude: 0.001, SalesVolume: 0},
	}
	without := map[string]model.Location{"b": {Name: "b", SalesVolume: 40}}
	out := DistributeSales(with, without, testGeneral())
	assert.InDelta(t, 10.0, out["a"].SalesVolume, 1e-9)
	assert.InDelta(t, 10.0, out["c"].SalesVolume, 1e-9)
}

func TestDistributeSalesIgnoresFarLocations(t *testing.T) {
	with := map[string]model.Location{"a": {Name: "a", SalesVolume: 5}}
	without := map[string]model.Location{"b": {Name: "b", Latitude: 1, SalesVolume: 40}}
	out := DistributeSales(with, without, testGeneral())
	assert.Equal(t, 5.0, out["a"].SalesVolume)
}
