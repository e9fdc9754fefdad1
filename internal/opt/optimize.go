package opt

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"refillplan/internal/model"
)

// Options tunes Optimize.
type Options struct {
	BeamWidth     int  // K: beam width, capped at the component size
	Passes        int  // L: passes over all components
	BruteForceMax int  // B: components up to this size are enumerated
	Alternate     bool // visit components largest first on odd passes
	TimeBudget    time.Duration
	Logger        *zap.Logger
	// Observer receives progress events. It runs on the optimizer goroutine.
	Observer func(model.RunEvent)
}

func DefaultOptions() Options {
	return Options{BeamWidth: 25, Passes: 4, BruteForceMax: 8, Alternate: true}
}

type Result struct {
	Solution  model.Solution
	Score     model.ScoreVector
	Metrics   Metrics
	Truncated bool
}

// Optimize places devices over locs one component at a time. Each pass
// revisits every component with the rest of the map fixed. A re-solve that
// scores below the component's current assignment is discarded, so the
// running total never drops between passes.
func Optimize(ctx context.Context, locs map[string]model.Location, general model.GeneralData, oracle Oracle, opts Options) (Result, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	emit := func(typ string, data map[string]any) {
		if opts.Observer != nil {
			opts.Observer(model.RunEvent{Type: typ, Data: data})
		}
	}

	g := BuildGraph(locs, general.WillingnessToTravelInMeters)
	comps := g.Components()
	m := Metrics{Components: len(comps), Edges: g.EdgeCount()}
	for _, c := range comps {
		if len(c) > m.LargestComponent {
			m.LargestComponent = len(c)
		}
	}
	log.Info("proximity graph built",
		zap.Int("locations", g.Len()),
		zap.Int("edges", m.Edges),
		zap.Int("components", m.Components),
		zap.Int("largest", m.LargestComponent))

	solver := ComponentSolver{BeamWidth: opts.BeamWidth, BruteForceMax: opts.BruteForceMax}
	acc := NewAccumulator(oracle, general.Co2PricePerKiloInSek)
	sol := model.Solution{}
	truncated := false

passes:
	for pass := 0; pass < opts.Passes; pass++ {
		order := append([]Component(nil), comps...)
		if opts.Alternate && pass%2 == 1 {
			sort.SliceStable(order, func(i, j int) bool { return len(order[i]) > len(order[j]) })
		} else {
			sort.SliceStable(order, func(i, j int) bool { return len(order[i]) < len(order[j]) })
		}
		emit("pass.started", map[string]any{"pass": pass, "components": len(order)})

		for _, comp := range order {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			if opts.TimeBudget > 0 && time.Since(start) > opts.TimeBudget {
				truncated = true
				log.Warn("time budget exhausted", zap.Int("pass", pass), zap.Duration("budget", opts.TimeBudget))
				break passes
			}
			sub := g.Subset(comp)

			// take the component's current devices out of the running score
			previous := acc.Total()
			placed := sol.Restrict(comp)
			var placedScore model.ScoreVector
			if len(placed) > 0 {
				v, err := acc.Score(placed, sub)
				if err != nil {
					return Result{}, err
				}
				placedScore = v
				acc.Sub(v)
				for name := range placed {
					delete(sol, name)
				}
			}
			baseline := acc.Total()

			best, stats, err := solver.Solve(ctx, comp, sub, acc, baseline)
			if err != nil {
				return Result{}, err
			}
			var bestScore model.ScoreVector
			if len(best) > 0 {
				v, err := acc.Score(best, sub)
				if err != nil {
					return Result{}, err
				}
				bestScore = v
				acc.Add(v)
			}
			// beam search can miss an assignment an earlier pass found
			if len(placed) > 0 && acc.Total() < previous {
				if len(best) > 0 {
					acc.Sub(bestScore)
				}
				acc.Add(placedScore)
				best = placed
				m.KeptPrevious++
			}
			for name, as := range best {
				sol[name] = as
			}

			switch stats.Strategy {
			case StrategyBruteForce:
				m.BruteForceSolves++
			case StrategyBeam:
				m.BeamSolves++
			}
			m.Candidates += stats.Candidates
			m.BeamSteps += stats.Steps
			log.Debug("component solved",
				zap.Int("pass", pass),
				zap.Int("size", stats.Size),
				zap.String("strategy", string(stats.Strategy)),
				zap.Int("placed", len(best)),
				zap.Float64("total", acc.Total()))
			emit("component.solved", map[string]any{
				"pass":     pass,
				"size":     stats.Size,
				"strategy": string(stats.Strategy),
				"placed":   len(best),
				"total":    acc.Total(),
			})
		}

		m.Passes++
		total := acc.Total()
		if total > m.BestTotal {
			m.BestTotal = total
		}
		m.Snapshots = append(m.Snapshots, PassSnapshot{Pass: pass, Total: total, Placed: len(sol)})
		log.Info("pass completed", zap.Int("pass", pass), zap.Float64("total", total), zap.Int("placed", len(sol)))
		emit("pass.completed", map[string]any{"pass": pass, "total": total, "placed": len(sol)})
	}

	m.OracleCalls = acc.Calls()
	m.Placed = len(sol)
	m.FinalTotal = acc.Total()
	m.DurationMs = time.Since(start).Milliseconds()
	return Result{Solution: sol, Score: acc.Vector(), Metrics: m, Truncated: truncated}, nil
}
