// Package scoring implements the game scoring rules used as the optimizer's
// oracle: sales redistribution between neighbouring locations, capped sales
// per installed capacity, earnings, CO2 savings and the footfall multiplier.
//
// Every function here is pure. Iteration happens in sorted key order so the
// floating point sums are reproducible across calls.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"refillplan/internal/model"
)

var (
	// ErrNoValidLocations is returned when a solution places no device.
	ErrNoValidLocations = errors.New("scoring: no valid locations with refill stations")
	// ErrUnknownLocation is returned when a solution names a location missing from the map.
	ErrUnknownLocation = errors.New("scoring: unknown location")
	// ErrZeroCapacity is returned for an assignment with negative device counts.
	ErrZeroCapacity = errors.New("scoring: location has no sales capacity")
)

var gameNamespace = uuid.MustParse("6f1c1c3e-8b0a-4c55-9a51-2b7b1a1f0e42")

// Oracle binds the scoring rules to one map and its general data.
type Oracle struct {
	MapName string
	General model.GeneralData
}

// Score implements opt.Oracle.
func (o Oracle) Score(sol model.Solution, locs map[string]model.Location) (model.ScoredSolution, error) {
	return Calculate(o.MapName, sol, locs, o.General)
}

// Calculate scores sol against the locations in locs. Locations in locs
// without an assignment contribute their sales to nearby stations.
func Calculate(mapName string, sol model.Solution, locs map[string]model.Location, general model.GeneralData) (model.ScoredSolution, error) {
	for name := range sol {
		if _, ok := locs[name]; !ok {
			return model.ScoredSolution{}, fmt.Errorf("%w: %s", ErrUnknownLocation, name)
		}
	}
	with := map[string]model.Location{}
	without := map[string]model.Location{}
	for _, name := range sortedNames(locs) {
		loc := locs[name]
		loc.SalesVolume *= general.RefillSalesFactor
		if a, ok := sol[name]; ok && !a.Empty() {
			if a.F3100 < 0 || a.F9100 < 0 {
				return model.ScoredSolution{}, fmt.Errorf("%w: %s", ErrZeroCapacity, name)
			}
			with[name] = loc
		} else {
			without[name] = loc
		}
	}
	if len(with) == 0 {
		return model.ScoredSolution{}, ErrNoValidLocations
	}
	with = DistributeSales(with, without, general)

	out := model.ScoredSolution{
		MapName:   mapName,
		Locations: make(map[string]model.ScoredLocation, len(with)),
	}
	var score model.ScoreVector
	for _, name := range sortedNames(with) {
		loc := with[name]
		a := sol[name]
		sl := model.ScoredLocation{
			Name:        loc.Name,
			Type:        loc.Type,
			Latitude:    loc.Latitude,
			Longitude:   loc.Longitude,
			Footfall:    loc.Footfall,
			F3100:       a.F3100,
			F9100:       a.F9100,
			SalesVolume: math.Round(loc.SalesVolume),
			SalesCapacity: float64(a.F3100)*general.Freestyle3100Data.RefillCapacityPerWeek +
				float64(a.F9100)*general.Freestyle9100Data.RefillCapacityPerWeek,
			LeasingCost: float64(a.F3100)*general.Freestyle3100Data.LeasingCostPerWeek +
				float64(a.F9100)*general.Freestyle9100Data.LeasingCostPerWeek,
		}
		sold := math.Min(sl.SalesVolume, sl.SalesCapacity)
		sl.GramCo2Savings = sold*(general.ClassicUnitData.Co2PerUnitInGrams-general.RefillUnitData.Co2PerUnitInGrams) -
			float64(a.F3100)*general.Freestyle3100Data.StaticCo2 -
			float64(a.F9100)*general.Freestyle9100Data.StaticCo2
		sl.Revenue = sold * general.RefillUnitData.ProfitPerUnit
		sl.Earnings = sl.Revenue - sl.LeasingCost
		sl.IsProfitable = sl.Earnings > 0
		sl.IsCo2Saving = sl.GramCo2Savings > 0
		out.Locations[name] = sl

		score.CO2Savings += sl.GramCo2Savings / 1000
		score.Earnings += sl.Earnings
		score.TotalFootfall += sl.Footfall / 1000
	}
	score.Total = score.ComputeTotal(general.Co2PricePerKiloInSek)
	out.GameScore = score
	out.GameID = gameID(mapName, sol).String()
	return out, nil
}

// gameID derives a stable identifier from the map and the solution content.
func gameID(mapName string, sol model.Solution) uuid.UUID {
	var b strings.Builder
	b.WriteString(mapName)
	for _, k := range sol.Keys() {
		a := sol[k]
		b.WriteString("|" + k + ":" + strconv.Itoa(a.F3100) + "," + strconv.Itoa(a.F9100))
	}
	return uuid.NewSHA1(gameNamespace, []byte(b.String()))
}

func sortedNames(m map[string]model.Location) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
