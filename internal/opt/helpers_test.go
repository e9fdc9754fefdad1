package opt

import (
	"errors"

	"refillplan/internal/model"
)

// tableOracle scores a solution as the sum of fixed per-location values.
// Earnings carry the value so the total equals the sum when footfall is 0.
type tableOracle struct {
	values   map[string]map[model.Assignment]float64
	footfall map[string]float64
	fail     bool
}

var errOracle = errors.New("oracle down")

func (o tableOracle) Score(sol model.Solution, locs map[string]model.Location) (model.ScoredSolution, error) {
	if o.fail {
		return model.ScoredSolution{}, errOracle
	}
	var v model.ScoreVector
	for _, name := range sol.Keys() {
		if _, ok := locs[name]; !ok {
			continue
		}
		v.Earnings += o.values[name][sol[name]]
		v.TotalFootfall += o.footfall[name]
	}
	return model.ScoredSolution{GameScore: v}, nil
}

func table(vals map[string][2]float64) tableOracle {
	o := tableOracle{values: map[string]map[model.Assignment]float64{}}
	for name, v := range vals {
		o.values[name] = map[model.Assignment]float64{model.DeviceA: v[0], model.DeviceB: v[1]}
	}
	return o
}

func pointLocs(names ...string) map[string]model.Location {
	out := map[string]model.Location{}
	for _, n := range names {
		out[n] = model.Location{Name: n}
	}
	return out
}

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

// clusteredMap has components of sizes 3, 2 and 1, far apart from each other.
func clusteredMap() map[string]model.Location {
	return map[string]model.Location{
		"a1": {Name: "a1", Latitude: 0, Longitude: 0, Footfall: 40, SalesVolume: 120},
		"a2": {Name: "a2", Latitude: 0, Longitude: 0.001, Footfall: 10, SalesVolume: 300},
		"a3": {Name: "a3", Latitude: 0.001, Longitude: 0, Footfall: 25, SalesVolume: 90},
		"b1": {Name: "b1", Latitude: 1, Longitude: 1, Footfall: 5, SalesVolume: 900},
		"b2": {Name: "b2", Latitude: 1, Longitude: 1.001, Footfall: 60, SalesVolume: 40},
		"c1": {Name: "c1", Latitude: 2, Longitude: 2, Footfall: 15, SalesVolume: 200},
	}
}
