// Package main implements the webconcolic CLI: a concolic test-input
// explorer for web-application forms. It drives one URL through the
// iteration driver (load -> execute -> record -> classify -> merge ->
// select -> solve -> inject -> next) until the exploration frontier is
// exhausted or a configured iteration budget runs out.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"webconcolic/internal/browser"
	"webconcolic/internal/config"
	"webconcolic/internal/driver"
	"webconcolic/internal/frontier"
	"webconcolic/internal/logging"
	"webconcolic/internal/solver"
	"webconcolic/internal/solver/fd"
)

var (
	verbose    bool
	workspace  string
	configPath string
	entryURL   string
	iterations int

	logger *zap.Logger
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "webconcolic",
	Short: "Concolic test-input explorer for web-application forms",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the iteration driver against a target URL",
	RunE:  runRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the webconcolic version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("webconcolic", version)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	runCmd.Flags().StringVarP(&configPath, "config", "c", "webconcolic.yaml", "Path to YAML config file")
	runCmd.Flags().StringVar(&entryURL, "url", "", "Entry URL (overrides config)")
	runCmd.Flags().IntVar(&iterations, "iterations", 0, "Iteration budget (0 = config default)")

	rootCmd.AddCommand(runCmd, versionCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	path := configPath
	if !filepath.IsAbs(path) && workspace != "" {
		path = filepath.Join(workspace, path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if entryURL != "" {
		cfg.URL = entryURL
	}
	if iterations > 0 {
		cfg.IterationLimit = iterations
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	bridge := browser.New(cfg.Browser)
	defer func() {
		if err := bridge.Shutdown(); err != nil {
			logger.Warn("browser shutdown error", zap.Error(err))
		}
	}()

	var policy frontier.Policy
	switch cfg.SelectionPolicy {
	case "random":
		policy = frontier.RandomPolicy{}
	default:
		policy = frontier.DFSPolicy{}
	}

	var backend solver.Solver
	switch cfg.SolverBackend {
	default:
		backend = fd.New()
	}

	dcfg := driver.Config{
		URL:            cfg.URL,
		IterationLimit: cfg.IterationLimit,
	}

	d := driver.New(dcfg, bridge, backend, policy)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			logger.Info("interrupt received, stopping after current iteration")
			d.Stop()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	start := time.Now()
	logger.Info("starting run", zap.String("url", cfg.URL), zap.Int("iteration_limit", cfg.IterationLimit))

	reason, err := d.Run(ctx)
	if err != nil {
		return fmt.Errorf("driver run: %w", err)
	}

	elapsed := time.Since(start)
	reportRun(d, reason, elapsed)
	return nil
}

func reportRun(d *driver.Driver, reason driver.StopReason, elapsed time.Duration) {
	front := d.Frontier()
	var exhausted, attempted, unexplored int
	if front != nil {
		for _, e := range front.Entries {
			switch e.Status {
			case frontier.StatusExhausted:
				exhausted++
			case frontier.StatusAttempted:
				attempted++
			default:
				unexplored++
			}
		}
	}

	logger.Info("run complete",
		zap.String("stop_reason", reason.String()),
		zap.Duration("elapsed", elapsed),
		zap.Int("entries_exhausted", exhausted),
		zap.Int("entries_attempted", attempted),
		zap.Int("entries_unexplored", unexplored),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
