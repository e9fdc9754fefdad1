package opt

import (
	"refillplan/internal/model"
)

// Oracle scores a solution against a location catalog. Implementations
// must be deterministic: every comparison the optimizer makes relies on
// identical inputs producing identical scores.
type Oracle interface {
	Score(sol model.Solution, locs map[string]model.Location) (model.ScoredSolution, error)
}

// Accumulator keeps the running score of everything committed so far plus
// whatever is tentatively inserted. Only the three base fields are summed;
// Total is recomputed from them on every read because the footfall
// multiplier makes an accumulated total wrong.
type Accumulator struct {
	oracle   Oracle
	co2Price float64
	base     model.ScoreVector
	undo     []undoEntry
	calls    int
}

type undoEntry struct {
	base    model.ScoreVector
	name    string
	prev    model.Assignment
	hadPrev bool
}

func NewAccumulator(o Oracle, co2Price float64) *Accumulator {
	return &Accumulator{oracle: o, co2Price: co2Price}
}

func (a *Accumulator) Add(v model.ScoreVector) {
	a.base.CO2Savings += v.CO2Savings
	a.base.Earnings += v.Earnings
	a.base.TotalFootfall += v.TotalFootfall
}

func (a *Accumulator) Sub(v model.ScoreVector) {
	a.base.CO2Savings -= v.CO2Savings
	a.base.Earnings -= v.Earnings
	a.base.TotalFootfall -= v.TotalFootfall
}

// Total is the game total of the current base fields.
func (a *Accumulator) Total() float64 { return a.base.ComputeTotal(a.co2Price) }

// Vector returns the base fields with Total filled in.
func (a *Accumulator) Vector() model.ScoreVector {
	v := a.base
	v.Total = a.Total()
	return v
}

// Calls reports how many times the oracle has been invoked.
func (a *Accumulator) Calls() int { return a.calls }

// Score asks the oracle for the contribution of sol over locs.
func (a *Accumulator) Score(sol model.Solution, locs map[string]model.Location) (model.ScoreVector, error) {
	a.calls++
	scored, err := a.oracle.Score(sol, locs)
	if err != nil {
		return model.ScoreVector{}, err
	}
	return scored.GameScore, nil
}

// TryInsert places as at name in working, scores the whole working
// solution and adds that contribution to the running score. It returns the
// resulting total and the footfall of the working solution. Every
// successful TryInsert must be paired with a Revert.
func (a *Accumulator) TryInsert(working model.Solution, locs map[string]model.Location, name string, as model.Assignment) (float64, float64, error) {
	prev, hadPrev := working[name]
	working[name] = as
	v, err := a.Score(working, locs)
	if err != nil {
		if hadPrev {
			working[name] = prev
		} else {
			delete(working, name)
		}
		return 0, 0, err
	}
	a.undo = append(a.undo, undoEntry{base: a.base, name: name, prev: prev, hadPrev: hadPrev})
	a.Add(v)
	return a.Total(), v.TotalFootfall, nil
}

// Revert undoes the most recent TryInsert. The running score is restored
// to the exact bits it had before the insert.
func (a *Accumulator) Revert(working model.Solution, name string) {
	if len(a.undo) == 0 {
		return
	}
	u := a.undo[len(a.undo)-1]
	if u.name != name {
		panic("opt: revert of " + name + " does not match last insert of " + u.name)
	}
	a.undo = a.undo[:len(a.undo)-1]
	a.base = u.base
	if u.hadPrev {
		working[u.name] = u.prev
	} else {
		delete(working, u.name)
	}
}

// Evaluate returns the total and footfall the running score would have if
// sol were committed, leaving the running score unchanged.
func (a *Accumulator) Evaluate(sol model.Solution, locs map[string]model.Location) (float64, float64, error) {
	v, err := a.Score(sol, locs)
	if err != nil {
		return 0, 0, err
	}
	saved := a.base
	a.Add(v)
	total := a.Total()
	a.base = saved
	return total, v.TotalFootfall, nil
}
