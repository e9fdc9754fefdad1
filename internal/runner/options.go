package runner

import (
	"context"
	"fmt"
	"time"

	"refillplan/internal/config"
	"refillplan/internal/model"
	"refillplan/internal/opt"
)

// options layers the configured defaults, the map's stored optimizer
// config and the request, in that order.
func (r *Runner) options(ctx context.Context, req model.OptimizeRequest) (opt.Options, bool, bool, error) {
	o := r.Defaults
	stored, err := r.Store.GetOptimizerConfig(ctx, req.MapName)
	if err != nil {
		return opt.Options{}, false, false, fmt.Errorf("optimizer config: %w", err)
	}
	ApplyStored(&o, stored)

	if req.BeamWidth > 0 {
		o.BeamWidth = req.BeamWidth
	}
	if req.Passes > 0 {
		o.Passes = req.Passes
	}
	if req.BruteForceMax != nil {
		o.BruteForceMax = *req.BruteForceMax
	}
	if req.Alternate != nil {
		o.Alternate = *req.Alternate
	}
	if req.TimeBudgetMs > 0 {
		o.TimeBudget = time.Duration(req.TimeBudgetMs) * time.Millisecond
	}
	refine := o.Refine || req.Refine
	requireDevice := o.RequireDevice || req.RequireDevice

	if o.BeamWidth < 1 || o.Passes < 1 || o.BruteForceMax < 0 {
		return opt.Options{}, false, false, fmt.Errorf("invalid optimizer options: beamWidth=%d passes=%d bruteForceMax=%d", o.BeamWidth, o.Passes, o.BruteForceMax)
	}
	return o.Options(), refine, requireDevice, nil
}

// ApplyStored overlays a stored optimizer config document onto o. Numbers
// may arrive as int or float64 depending on the store.
func ApplyStored(o *config.Optimizer, cfg map[string]any) {
	if n, ok := number(cfg["beamWidth"]); ok {
		o.BeamWidth = int(n)
	}
	if n, ok := number(cfg["passes"]); ok {
		o.Passes = int(n)
	}
	if n, ok := number(cfg["bruteForceMax"]); ok {
		o.BruteForceMax = int(n)
	}
	if n, ok := number(cfg["timeBudgetMs"]); ok {
		o.TimeBudget = time.Duration(n) * time.Millisecond
	}
	if b, ok := cfg["alternate"].(bool); ok {
		o.Alternate = b
	}
	if b, ok := cfg["refine"].(bool); ok {
		o.Refine = b
	}
	if b, ok := cfg["requireDevice"].(bool); ok {
		o.RequireDevice = b
	}
}

// Document renders o in the stored config shape.
func Document(o config.Optimizer) map[string]any {
	return map[string]any{
		"beamWidth":     o.BeamWidth,
		"passes":        o.Passes,
		"bruteForceMax": o.BruteForceMax,
		"alternate":     o.Alternate,
		"timeBudgetMs":  o.TimeBudget.Milliseconds(),
		"refine":        o.Refine,
		"requireDevice": o.RequireDevice,
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
