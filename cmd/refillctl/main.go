// Command refillctl runs the refill station optimizer locally and follows
// runs on a deployed API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"refillplan/internal/buildinfo"
	"refillplan/internal/config"
	"refillplan/internal/mapdata"
	"refillplan/internal/runner"
	"refillplan/internal/store"
)

type globalFlags struct {
	configPath string
	dataDir    string
	verbose    bool
}

func main() {
	var g globalFlags
	rootCmd := &cobra.Command{
		Use:           "refillctl",
		Short:         "Plan refill station placements for game maps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("CONFIG_FILE"), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&g.dataDir, "data", "", "read map and general data from this directory instead of the game service")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log optimizer progress")

	rootCmd.AddCommand(solveCmd(&g))
	rootCmd.AddCommand(gridCmd(&g))
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "refillctl", buildinfo.String())
		},
	}
}

// newLocalRunner builds a runner over an in-memory store for one CLI
// invocation.
func newLocalRunner(g *globalFlags) (*runner.Runner, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.dataDir != "" {
		cfg.Game.DataDir = g.dataDir
	}
	log := zap.NewNop()
	if g.verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return nil, nil, err
		}
	}
	src, sub, err := mapdata.FromConfig(cfg.Game, cfg.Redis, log)
	if err != nil {
		return nil, nil, err
	}
	return &runner.Runner{
		Source:    src,
		Submitter: sub,
		Store:     store.NewMemory(),
		Defaults:  cfg.Optimizer,
		Logger:    log,
	}, log, nil
}
