package scoring

import (
	"math"

	"refillplan/internal/geo"
	"refillplan/internal/model"
)

// DistributeSales moves a share of every station-less location's sales to
// the stations within walking distance of it. The share each station
// receives is weighted by base^(willingness - distance) - 1, so closer
// stations receive more. The input maps are not modified.
func DistributeSales(with, without map[string]model.Location, general model.GeneralData) map[string]model.Location {
	out := make(map[string]model.Location, len(with))
	for k, v := range with {
		out[k] = v
	}
	withNames := sortedNames(with)
	for _, wn := range sortedNames(without) {
		src := without[wn]
		weights := make(map[string]float64)
		total := 0.0
		for _, name := range withNames {
			dst := with[name]
			d := geo.Distance(src.Latitude, src.Longitude, dst.Latitude, dst.Longitude)
			if d >= general.WillingnessToTravelInMeters {
				continue
			}
			w := math.Pow(general.ConstantExpDistributionFunction, general.WillingnessToTravelInMeters-d) - 1
			weights[name] = w
			total += w
		}
		if total <= 0 {
			continue
		}
		for _, name := range withNames {
			w, ok := weights[name]
			if !ok {
				continue
			}
			loc := out[name]
			loc.SalesVolume += w / total * general.RefillDistributionRate * src.SalesVolume
			out[name] = loc
		}
	}
	return out
}
