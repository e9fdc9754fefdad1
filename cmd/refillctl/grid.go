package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"refillplan/internal/model"
)

type gridPoint struct {
	MapName string
	K, L, B int
}

func (p gridPoint) String() string {
	return fmt.Sprintf("{maxK: %d, maxL: %d, maxB: %d}", p.K, p.L, p.B)
}

// expandGrid lists every parameter combination, maps outermost.
func expandGrid(maps []string, ks, ls, bs []int) []gridPoint {
	var out []gridPoint
	for _, m := range maps {
		for _, k := range ks {
			for _, l := range ls {
				for _, b := range bs {
					out = append(out, gridPoint{MapName: m, K: k, L: l, B: b})
				}
			}
		}
	}
	return out
}

var resultsHeader = []string{"mapName", "comment", "timestamp", "duration", "status", "placed", "co2Savings", "earnings", "totalFootfall", "total"}

type resultRow struct {
	Point    gridPoint
	At       time.Time
	Duration time.Duration
	Run      model.Run
}

func (r resultRow) record() []string {
	var score model.ScoreVector
	if r.Run.Score != nil {
		score = *r.Run.Score
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		r.Point.MapName,
		r.Point.String(),
		r.At.UTC().Format(time.RFC3339),
		f(r.Duration.Seconds()),
		r.Run.Status,
		strconv.Itoa(len(r.Run.Solution)),
		f(score.CO2Savings),
		f(score.Earnings),
		f(score.TotalFootfall),
		f(score.Total),
	}
}

// appendResults appends rows to the CSV at path, writing the header when the
// file is new.
func appendResults(path string, rows []resultRow) error {
	_, err := os.Stat(path)
	fresh := errors.Is(err, fs.ErrNotExist)
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(fh)
	if fresh {
		_ = w.Write(resultsHeader)
	}
	for _, r := range rows {
		_ = w.Write(r.record())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

func gridCmd(g *globalFlags) *cobra.Command {
	var (
		maps   []string
		ks     []int
		ls     []int
		bs     []int
		refine bool
		out    string
	)
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Run a parameter grid and append one CSV row per run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, log, err := newLocalRunner(g)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			w := cmd.OutOrStdout()
			for _, p := range expandGrid(maps, ks, ls, bs) {
				b := p.B
				req := model.OptimizeRequest{MapName: p.MapName, BeamWidth: p.K, Passes: p.L, BruteForceMax: &b, Refine: refine}
				start := time.Now()
				res, runErr := r.Run(cmd.Context(), req)
				row := resultRow{Point: p, At: start, Duration: time.Since(start), Run: res.Run}
				if runErr != nil {
					fmt.Fprintf(w, "%s %s: failed: %v\n", p.MapName, p, runErr)
				} else {
					fmt.Fprintf(w, "%s %s: total=%.2f in %s\n", p.MapName, p, row.Run.Score.Total, row.Duration.Round(time.Millisecond))
				}
				// rows are appended as they finish so an interrupted grid keeps its results
				if err := appendResults(out, []resultRow{row}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&maps, "map", nil, "map names")
	cmd.Flags().IntSliceVar(&ks, "k", []int{25}, "beam widths")
	cmd.Flags().IntSliceVar(&ls, "l", []int{4}, "pass counts")
	cmd.Flags().IntSliceVar(&bs, "b", []int{8}, "enumeration thresholds")
	cmd.Flags().BoolVar(&refine, "refine", false, "refine device counts after placement")
	cmd.Flags().StringVarP(&out, "out", "o", "results.csv", "CSV file to append to")
	_ = cmd.MarkFlagRequired("map")
	return cmd
}
