package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"refillplan/internal/model"
)

// ErrNoRefinement means the allocation MILP had no usable optimum. The
// heuristic solution should be kept as is.
var ErrNoRefinement = errors.New("opt: no refinement available")

// Distributor redistributes sales from locations without a station to the
// stations in with, returning the adjusted station locations.
type Distributor func(with, without map[string]model.Location, general model.GeneralData) map[string]model.Location

// Refiner recomputes the device counts of an already chosen set of
// locations exactly. It never adds or moves a station.
type Refiner struct {
	Solver     MILPSolver
	Distribute Distributor
	// MaxCount bounds each device count per location; 0 means 5.
	MaxCount int
	// RequireDevice keeps every chosen location equipped with at least one device.
	RequireDevice bool
}

type RefineReport struct {
	Status    MILPStatus
	Objective float64
	Locations int
	Changed   int
	Dropped   int
	Nodes     int
}

// Refine builds one block of variables per chosen location i, in sorted
// order: a_i and b_i (device counts) and f_i (fulfilled refill sales).
func (r Refiner) Refine(ctx context.Context, sol model.Solution, locs map[string]model.Location, general model.GeneralData) (model.Solution, RefineReport, error) {
	maxCount := r.MaxCount
	if maxCount <= 0 {
		maxCount = 5
	}
	solver := r.Solver
	if solver == nil {
		solver = BranchAndBound{}
	}

	with := map[string]model.Location{}
	without := map[string]model.Location{}
	for name, loc := range locs {
		loc.SalesVolume *= general.RefillSalesFactor
		if _, ok := sol[name]; ok {
			with[name] = loc
		} else {
			without[name] = loc
		}
	}
	if r.Distribute != nil {
		with = r.Distribute(with, without, general)
	}

	names := make([]string, 0, len(with))
	for name := range with {
		names = append(names, name)
	}
	sort.Strings(names)
	report := RefineReport{Locations: len(names)}
	if len(names) == 0 {
		report.Status = StatusOptimal
		return model.Solution{}, report, nil
	}

	n := len(names)
	price := general.Co2PricePerKiloInSek
	devA, devB := general.Freestyle3100Data, general.Freestyle9100Data
	costA := devA.StaticCo2*price/1000 + devA.LeasingCostPerWeek
	costB := devB.StaticCo2*price/1000 + devB.LeasingCostPerWeek
	gain := general.RefillUnitData.ProfitPerUnit +
		(general.ClassicUnitData.Co2PerUnitInGrams-general.RefillUnitData.Co2PerUnitInGrams)*price/1000

	p := Problem{
		Objective: make([]float64, 3*n),
		Lower:     make([]float64, 3*n),
		Upper:     make([]float64, 3*n),
		Integer:   make([]bool, 3*n),
	}
	for i, name := range names {
		a, b, f := 2*i, 2*i+1, 2*n+i
		p.Objective[a], p.Upper[a], p.Integer[a] = costA, float64(maxCount), true
		p.Objective[b], p.Upper[b], p.Integer[b] = costB, float64(maxCount), true
		p.Objective[f], p.Upper[f] = -gain, math.Max(0, with[name].SalesVolume)

		// a device never fulfils more than the location sells, which also
		// keeps unlimited capacities finite
		demand := p.Upper[f]
		row := make([]float64, 3*n)
		row[a], row[b], row[f] = math.Min(devA.RefillCapacityPerWeek, demand), math.Min(devB.RefillCapacityPerWeek, demand), -1
		p.Rows = append(p.Rows, row)
		p.RowLower = append(p.RowLower, 0)
		p.RowUpper = append(p.RowUpper, math.Inf(1))

		if r.RequireDevice {
			req := make([]float64, 3*n)
			req[a], req[b] = 1, 1
			p.Rows = append(p.Rows, req)
			p.RowLower = append(p.RowLower, 1)
			p.RowUpper = append(p.RowUpper, math.Inf(1))
		}
	}

	res, err := solver.Solve(ctx, p)
	if err != nil {
		if ctx.Err() != nil {
			return nil, report, err
		}
		return nil, report, fmt.Errorf("%w: %v", ErrNoRefinement, err)
	}
	report.Status = res.Status
	report.Nodes = res.Nodes
	if res.Status != StatusOptimal {
		return nil, report, fmt.Errorf("%w: milp %s", ErrNoRefinement, res.Status)
	}
	if !finite(res.Objective) || len(res.X) != 3*n {
		return nil, report, fmt.Errorf("%w: milp returned objective %v", ErrNoRefinement, res.Objective)
	}
	for _, x := range res.X {
		if !finite(x) {
			return nil, report, fmt.Errorf("%w: milp returned non-finite value", ErrNoRefinement)
		}
	}
	report.Objective = res.Objective

	out := model.Solution{}
	for i, name := range names {
		as := model.Assignment{
			F3100: int(math.Round(res.X[2*i])),
			F9100: int(math.Round(res.X[2*i+1])),
		}
		if as.Empty() {
			report.Dropped++
			continue
		}
		if as != sol[name] {
			report.Changed++
		}
		out[name] = as
	}
	return out, report, nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
