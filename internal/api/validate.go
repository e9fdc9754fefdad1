package api

import (
	"fmt"
	"strings"

	"refillplan/internal/model"
)

const (
	maxBeamWidth    = 1000
	maxPasses       = 100
	maxBruteForce   = 12
	maxTimeBudgetMs = 60 * 60 * 1000
)

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	req.MapName = strings.TrimSpace(req.MapName)
	if req.MapName == "" {
		return fmt.Errorf("mapName is required")
	}
	if strings.ContainsAny(req.MapName, `/\`) {
		return fmt.Errorf("invalid mapName: %s", req.MapName)
	}
	if req.BeamWidth < 0 || req.BeamWidth > maxBeamWidth {
		return fmt.Errorf("beamWidth must be in [0,%d]", maxBeamWidth)
	}
	if req.Passes < 0 || req.Passes > maxPasses {
		return fmt.Errorf("passes must be in [0,%d]", maxPasses)
	}
	// 3^B candidates are enumerated per component
	if req.BruteForceMax != nil && (*req.BruteForceMax < 0 || *req.BruteForceMax > maxBruteForce) {
		return fmt.Errorf("bruteForceMax must be in [0,%d]", maxBruteForce)
	}
	if req.TimeBudgetMs < 0 || req.TimeBudgetMs > maxTimeBudgetMs {
		return fmt.Errorf("timeBudgetMs must be in [0,%d]", maxTimeBudgetMs)
	}
	return nil
}

// validateOptimizerConfig checks a stored optimizer config document.
func validateOptimizerConfig(cfg map[string]any) error {
	ints := map[string][2]float64{
		"beamWidth":     {1, maxBeamWidth},
		"passes":        {1, maxPasses},
		"bruteForceMax": {0, maxBruteForce},
		"timeBudgetMs":  {0, maxTimeBudgetMs},
	}
	bools := map[string]struct{}{"alternate": {}, "refine": {}, "requireDevice": {}}
	for k, v := range cfg {
		if bounds, ok := ints[k]; ok {
			f, ok := v.(float64)
			if !ok || f != float64(int(f)) || f < bounds[0] || f > bounds[1] {
				return fmt.Errorf("%s must be an integer in [%g,%g]", k, bounds[0], bounds[1])
			}
			continue
		}
		if _, ok := bools[k]; ok {
			if _, ok := v.(bool); !ok {
				return fmt.Errorf("%s must be a boolean", k)
			}
			continue
		}
		return fmt.Errorf("unknown optimizer setting: %s (allowed: beamWidth,passes,bruteForceMax,timeBudgetMs,alternate,refine,requireDevice)", k)
	}
	return nil
}
