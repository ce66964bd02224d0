// electro-diag diagnoses induction motors from their phase currents. It
// analyses recorded CSV exports offline or runs the edge runtime that
// collects, frames and diagnoses live currents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/giicoo/Dorsia-Electro"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/csvsource"
	"github.com/giicoo/Dorsia-Electro/internal/app/diagnosis"
	"github.com/giicoo/Dorsia-Electro/internal/logging"
)

var version = "dev"

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "electro-diag",
		Short: "Motor current signature diagnosis",
		Long: `electro-diag detects bearing, rotor, stator and eccentricity faults of
induction motors from their three phase currents.

Commands:
  diagnose   Analyse recorded CSV files and print the report
  run        Start the edge runtime (OPC UA / MQTT → WAL → diagnosis → sinks)
  validate   Load and validate a config file without starting the runtime
  stats      Poll the metrics endpoint and print live counters`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration (defaults apply when empty)")

	root.AddCommand(
		diagnoseCmd(),
		runCmd(),
		validateCmd(),
		statsCmd(),
	)

	if err := fang.Execute(context.Background(), root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*electro.Config, error) {
	if configPath == "" {
		return electro.DefaultConfig(), nil
	}
	cfg, err := electro.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func diagnoseCmd() *cobra.Command {
	var (
		files   []string
		prefix  string
		from    int
		to      int
		exclude []int
		motor   string
		format  string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Diagnose recorded phase currents",
		Example: `  electro-diag diagnose --csv run1.csv --csv run2.csv
  electro-diag diagnose --prefix data/current_ --from 1 --to 21 --exclude 3,12 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("--format must be text or json, got %q", format)
			}
			paths := files
			if prefix != "" {
				if len(files) > 0 {
					return fmt.Errorf("--csv and --prefix are mutually exclusive")
				}
				paths = csvsource.Glob(prefix, from, to, exclude)
			}
			if len(paths) == 0 {
				return fmt.Errorf("no input: pass --csv files or --prefix with --from/--to")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if verbose {
				cfg.Log.Level = "debug"
				cfg.Log.Encoding = "console"
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			loader := csvsource.Loader{
				SampleRate:  cfg.Analysis.SampleRate,
				SkipMissing: prefix != "",
				Log:         logger,
			}
			w, err := loader.Load(paths)
			if err != nil {
				return err
			}
			logger.Info("waveform loaded", zap.Int("files", len(paths)), zap.Int("samples", w.Len()),
				zap.Float64("sample_rate", w.SampleRate))

			d, err := diagnosis.New(cfg.Options(), logging.Logr(logger))
			if err != nil {
				return err
			}
			params := cfg.Machine
			if p, ok := cfg.Motors[motor]; ok {
				params = p
			}

			start := time.Now()
			report, err := d.Diagnose(params, w)
			if err != nil {
				return err
			}
			report.MotorID = motor
			report.CapturedAt = start.UTC()
			logger.Debug("diagnosis finished", zap.Duration("took", time.Since(start)))

			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return writeText(cmd.OutOrStdout(), report)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&files, "csv", nil, "CSV files with current_R, current_S and current_T columns, concatenated in order")
	f.StringVar(&prefix, "prefix", "", "numbered file prefix; reads <prefix><i>.csv for i in [from, to]")
	f.IntVar(&from, "from", 1, "first file index for --prefix")
	f.IntVar(&to, "to", 1, "last file index for --prefix")
	f.IntSliceVar(&exclude, "exclude", nil, "file indices to leave out")
	f.StringVar(&motor, "motor", "", "motor id; selects its machine parameters from the config")
	f.StringVar(&format, "format", "text", "output format: text or json")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging on the console")
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the edge runtime using the provided config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			flow, err := electro.Conf(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := flow.Config().ValidateRuntime(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return flow.Run(ctx)
		},
	}
}

func validateCmd() *cobra.Command {
	var runtime bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without starting the runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := electro.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if runtime {
				if err := cfg.ValidateRuntime(); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config %s looks good ✅\n", configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&runtime, "runtime", false, "also require a collector and a report sink")
	return cmd
}

func statsCmd() *cobra.Command {
	var (
		url      string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Poll the metrics endpoint and print live counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Streaming metrics from %s (Ctrl+C to stop)\n", url)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					snap, err := fetchSnapshot(ctx, url)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "stats error: %v\n", err)
						continue
					}
					fmt.Fprintln(out, snap.String())
				}
			}
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	return cmd
}
