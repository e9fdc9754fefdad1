package opt

import (
	"context"
	"errors"

	"refillplan/internal/model"
)

// ErrEmptyComponent is returned when asked to solve a component with no locations.
var ErrEmptyComponent = errors.New("opt: empty component")

type Strategy string

const (
	StrategyBruteForce Strategy = "bruteforce"
	StrategyBeam       Strategy = "beam"
)

// Stats describes the work done for one component.
type Stats struct {
	Strategy   Strategy
	Size       int
	Candidates int // scored candidates (brute force) or offered successors (beam)
	Steps      int // beam rounds that admitted at least one successor
}

// ComponentSolver picks the devices for one component: exhaustive
// enumeration up to BruteForceMax locations, beam search above it.
type ComponentSolver struct {
	BeamWidth     int
	BruteForceMax int
}

// beamDevices lists the single-device choices a beam round tries, in order.
// With strict acceptance a tie keeps the 9100.
var beamDevices = []model.Assignment{model.DeviceB, model.DeviceA}

// Solve returns the best assignment found for comp. Candidates are only
// accepted when their total strictly beats baseline, the running total with
// comp emptied; an empty solution means nothing did.
func (s ComponentSolver) Solve(ctx context.Context, comp Component, locs map[string]model.Location, acc *Accumulator, baseline float64) (model.Solution, Stats, error) {
	if len(comp) == 0 {
		return nil, Stats{}, ErrEmptyComponent
	}
	if len(comp) <= s.BruteForceMax {
		return s.bruteForce(comp, locs, acc, baseline)
	}
	return s.beamSearch(comp, locs, acc, baseline)
}

// bruteForce walks every combination of {none, A, B} over comp with the
// last location varying fastest. The all-none combination is skipped.
// Ties keep the first candidate seen.
func (s ComponentSolver) bruteForce(comp Component, locs map[string]model.Location, acc *Accumulator, baseline float64) (model.Solution, Stats, error) {
	stats := Stats{Strategy: StrategyBruteForce, Size: len(comp)}
	options := []model.Assignment{{}, model.DeviceA, model.DeviceB}
	digits := make([]int, len(comp))

	var best model.Solution
	bestTotal := baseline
	for {
		i := len(digits) - 1
		for ; i >= 0; i-- {
			digits[i]++
			if digits[i] < len(options) {
				break
			}
			digits[i] = 0
		}
		if i < 0 {
			break
		}
		cand := model.Solution{}
		for j, d := range digits {
			if d != 0 {
				cand[comp[j]] = options[d]
			}
		}
		total, _, err := acc.Evaluate(cand, locs)
		if err != nil {
			return nil, stats, err
		}
		stats.Candidates++
		if total > bestTotal {
			best = cand
			bestTotal = total
		}
	}
	return best, stats, nil
}

// beamSearch grows partial solutions one location per round, keeping the
// best min(BeamWidth, len(comp)) states. A state is expanded exactly once:
// after each round every state that did not grow this round is terminated.
func (s ComponentSolver) beamSearch(comp Component, locs map[string]model.Location, acc *Accumulator, baseline float64) (model.Solution, Stats, error) {
	stats := Stats{Strategy: StrategyBeam, Size: len(comp)}
	width := s.BeamWidth
	if width > len(comp) {
		width = len(comp)
	}
	b := newBeam(width)
	seq := 0
	b.offer(&searchState{seq: seq})

	for step := 1; ; step++ {
		var frontier []*searchState
		for _, st := range b.ranked() {
			if !st.terminated {
				frontier = append(frontier, st)
			}
		}
		admitted := false
		for _, st := range frontier {
			working := st.sol.solution()
			for _, name := range comp {
				if _, taken := working[name]; taken {
					continue
				}
				var pick model.Assignment
				bestTotal, bestFootfall := 0.0, 0.0
				for _, dev := range beamDevices {
					total, footfall, err := acc.TryInsert(working, locs, name, dev)
					if err != nil {
						return nil, stats, err
					}
					acc.Revert(working, name)
					if total > bestTotal {
						pick = dev
						bestTotal = total
						bestFootfall = footfall
					}
				}
				if pick.Empty() || !(bestTotal > baseline) {
					continue
				}
				seq++
				stats.Candidates++
				next := &searchState{sol: st.sol.with(name, pick), total: bestTotal, footfall: bestFootfall, seq: seq}
				if b.offer(next) {
					admitted = true
				}
			}
		}
		if admitted {
			stats.Steps++
		}
		done := true
		for _, st := range b.states {
			if st.sol.len() < step {
				st.terminated = true
			}
			if !st.terminated {
				done = false
			}
		}
		if done {
			break
		}
	}
	return b.best().sol.solution(), stats, nil
}
