package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"refillplan/internal/model"
)

type solveFlags struct {
	mapName   string
	k, l, b   int
	alternate bool
	refine    bool
	require   bool
	submit    bool
	budgetMs  int
	out       string
}

func solveCmd(g *globalFlags) *cobra.Command {
	var f solveFlags
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Optimize one map and write the scored solution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := model.OptimizeRequest{
				MapName:       f.mapName,
				BeamWidth:     f.k,
				Passes:        f.l,
				Refine:        f.refine,
				RequireDevice: f.require,
				TimeBudgetMs:  f.budgetMs,
				Submit:        f.submit,
			}
			if cmd.Flags().Changed("b") {
				req.BruteForceMax = &f.b
			}
			if cmd.Flags().Changed("alternate") {
				req.Alternate = &f.alternate
			}
			return runSolve(cmd, g, req, f.out)
		},
	}
	cmd.Flags().StringVar(&f.mapName, "map", "", "map name")
	cmd.Flags().IntVar(&f.k, "k", 0, "beam width (0 uses the configured default)")
	cmd.Flags().IntVar(&f.l, "l", 0, "number of passes (0 uses the configured default)")
	cmd.Flags().IntVar(&f.b, "b", 0, "largest component size solved by enumeration")
	cmd.Flags().BoolVar(&f.alternate, "alternate", true, "visit components largest first on odd passes")
	cmd.Flags().BoolVar(&f.refine, "refine", false, "recompute device counts exactly after placement")
	cmd.Flags().BoolVar(&f.require, "require-device", false, "keep at least one device at every chosen location when refining")
	cmd.Flags().BoolVar(&f.submit, "submit", false, "submit the solution to the game service")
	cmd.Flags().IntVar(&f.budgetMs, "time-budget-ms", 0, "stop starting new component solves after this many milliseconds")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the scored solution JSON here; a directory gets <gameId>.json")
	_ = cmd.MarkFlagRequired("map")
	return cmd
}

func runSolve(cmd *cobra.Command, g *globalFlags, req model.OptimizeRequest, out string) error {
	r, log, err := newLocalRunner(g)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	res, err := r.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	run := res.Run
	fmt.Fprintf(w, "map %s: placed %d stations\n", run.MapName, len(run.Solution))
	if run.Score != nil {
		fmt.Fprintf(w, "score: total=%.2f co2Savings=%.3f earnings=%.2f footfall=%.4f\n",
			run.Score.Total, run.Score.CO2Savings, run.Score.Earnings, run.Score.TotalFootfall)
	}
	if run.Truncated {
		fmt.Fprintln(w, "time budget exhausted before all passes finished")
	}
	if run.Submitted {
		fmt.Fprintln(w, "submitted to the game service")
	}
	if out == "" || res.Scored == nil {
		return nil
	}
	path := out
	if st, err := os.Stat(out); err == nil && st.IsDir() {
		path = filepath.Join(out, res.Scored.GameID+".json")
	}
	b, err := json.MarshalIndent(res.Scored, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(w, "stored game %s in %s\n", res.Scored.GameID, path)
	return nil
}
