// Package runner executes one optimization run end to end: fetch map data,
// place stations, optionally refine device counts, score, persist, submit
// and notify.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"refillplan/internal/config"
	"refillplan/internal/mapdata"
	"refillplan/internal/metrics"
	"refillplan/internal/model"
	"refillplan/internal/opt"
	"refillplan/internal/scoring"
	"refillplan/internal/store"
	"refillplan/internal/webhooks"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// EventSink receives progress events for a run.
type EventSink interface {
	Publish(runID string, evt model.RunEvent)
}

type Runner struct {
	Source    mapdata.Source
	Submitter mapdata.Submitter // optional
	Store     store.Store
	Publisher *webhooks.Publisher // optional
	Events    EventSink           // optional
	Defaults  config.Optimizer
	Refiner   opt.Refiner
	Logger    *zap.Logger
}

// Outcome is a finished run together with its final scored solution.
// Scored is nil when the run failed or placed no station.
type Outcome struct {
	Run    model.Run
	Scored *model.ScoredSolution
}

// Start records a new run and executes it in the background. The returned
// run is in the running state.
func (r *Runner) Start(ctx context.Context, req model.OptimizeRequest) (model.Run, error) {
	run, err := r.create(ctx, req)
	if err != nil {
		return model.Run{}, err
	}
	go func() {
		_, _ = r.Execute(context.WithoutCancel(ctx), run)
	}()
	return run, nil
}

// Run records a new run and executes it synchronously.
func (r *Runner) Run(ctx context.Context, req model.OptimizeRequest) (Outcome, error) {
	run, err := r.create(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	return r.Execute(ctx, run)
}

func (r *Runner) create(ctx context.Context, req model.OptimizeRequest) (model.Run, error) {
	run := model.Run{MapName: req.MapName, Status: StatusRunning, Params: req}
	run, err := r.Store.CreateRun(ctx, run)
	if err != nil {
		return model.Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// Execute runs the pipeline for an already stored run and records the
// outcome. The returned error is the reason the run failed, if it did.
func (r *Runner) Execute(ctx context.Context, run model.Run) (Outcome, error) {
	log := r.logger().With(zap.String("run_id", run.ID), zap.String("map", run.MapName))
	start := time.Now()

	out, err := r.execute(ctx, run, log)
	out.Run.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	if err != nil {
		out.Run.Status = StatusFailed
		out.Run.Error = err.Error()
		out.Scored = nil
		log.Error("run failed", zap.Error(err))
	} else {
		out.Run.Status = StatusCompleted
		log.Info("run completed",
			zap.Float64("total", scoreTotal(out.Run.Score)),
			zap.Int("placed", len(out.Run.Solution)),
			zap.Bool("refined", out.Run.Refined))
	}
	metrics.OptimizerRuns.WithLabelValues(out.Run.Status).Inc()
	metrics.RunDuration.WithLabelValues(run.MapName).Observe(time.Since(start).Seconds())

	// the run record must survive a canceled request context
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if uerr := r.Store.UpdateRun(saveCtx, out.Run); uerr != nil {
		log.Error("persist run", zap.Error(uerr))
	}

	summary := map[string]any{"runId": run.ID, "mapName": run.MapName, "status": out.Run.Status}
	if out.Run.Score != nil {
		summary["score"] = *out.Run.Score
		summary["gameId"] = out.Run.GameID
	}
	if err != nil {
		summary["error"] = err.Error()
	}
	evtType := "run." + out.Run.Status
	r.publish(run.ID, evtType, summary)
	if _, perr := r.Publisher.Emit(saveCtx, evtType, summary); perr != nil {
		log.Warn("enqueue webhook", zap.Error(perr))
	}
	return out, err
}

func (r *Runner) execute(ctx context.Context, run model.Run, log *zap.Logger) (Outcome, error) {
	out := Outcome{Run: run}
	md, err := r.Source.MapData(ctx, run.MapName)
	if err != nil {
		return out, fmt.Errorf("map data: %w", err)
	}
	general, err := r.Source.GeneralData(ctx)
	if err != nil {
		return out, fmt.Errorf("general data: %w", err)
	}

	opts, refine, requireDevice, err := r.options(ctx, run.Params)
	if err != nil {
		return out, err
	}
	opts.Logger = log
	opts.Observer = func(evt model.RunEvent) { r.publish(run.ID, evt.Type, evt.Data) }

	oracle := scoring.Oracle{MapName: md.MapName, General: general}
	res, err := opt.Optimize(ctx, md.Locations, general, oracle, opts)
	if err != nil {
		return out, fmt.Errorf("optimize: %w", err)
	}
	opt.RecordMetrics(run.MapName, run.ID, res.Metrics)
	metrics.ComponentSolves.WithLabelValues(string(opt.StrategyBruteForce)).Add(float64(res.Metrics.BruteForceSolves))
	metrics.ComponentSolves.WithLabelValues(string(opt.StrategyBeam)).Add(float64(res.Metrics.BeamSolves))
	metrics.OracleCalls.Add(float64(res.Metrics.OracleCalls))
	metrics.BeamSteps.Add(float64(res.Metrics.BeamSteps))

	sol := res.Solution
	runMetrics := res.Metrics.AsMap()
	if refine && len(sol) > 0 {
		refiner := r.Refiner
		if refiner.Distribute == nil {
			refiner.Distribute = scoring.DistributeSales
		}
		refiner.RequireDevice = refiner.RequireDevice || requireDevice
		refined, report, err := refiner.Refine(ctx, sol, md.Locations, general)
		status := string(report.Status)
		if status == "" {
			status = "error"
		}
		metrics.RefineOutcomes.WithLabelValues(status).Inc()
		runMetrics["refine"] = map[string]any{
			"status":    status,
			"objective": report.Objective,
			"locations": report.Locations,
			"changed":   report.Changed,
			"dropped":   report.Dropped,
			"nodes":     report.Nodes,
		}
		switch {
		case errors.Is(err, opt.ErrNoRefinement):
			log.Warn("refinement unavailable, keeping heuristic counts", zap.Error(err))
		case err != nil:
			return out, fmt.Errorf("refine: %w", err)
		default:
			sol = refined
			out.Run.Refined = true
			r.publish(run.ID, "refine.completed", map[string]any{"changed": report.Changed, "dropped": report.Dropped})
		}
	}

	out.Run.Solution = sol
	out.Run.Truncated = res.Truncated
	out.Run.Metrics = runMetrics
	if len(sol) == 0 {
		out.Run.Score = &model.ScoreVector{}
		return out, nil
	}
	scored, err := scoring.Calculate(md.MapName, sol, md.Locations, general)
	if err != nil {
		return out, fmt.Errorf("score: %w", err)
	}
	out.Scored = &scored
	score := scored.GameScore
	out.Run.Score = &score
	out.Run.GameID = scored.GameID

	if run.Params.Submit {
		if r.Submitter == nil {
			return out, errors.New("submit requested but no game client is configured")
		}
		if _, err := r.Submitter.Submit(ctx, run.MapName, sol); err != nil {
			return out, fmt.Errorf("submit: %w", err)
		}
		out.Run.Submitted = true
	}
	return out, nil
}

func (r *Runner) publish(runID, typ string, data map[string]any) {
	if r.Events == nil {
		return
	}
	r.Events.Publish(runID, model.RunEvent{Type: typ, Data: data})
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func scoreTotal(v *model.ScoreVector) float64 {
	if v == nil {
		return 0
	}
	return v.Total
}
