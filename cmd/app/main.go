package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bvstrack/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	config    string
	input     string
	delimiter string
	side      string
	tolerance float64
	mapPath   string
	live      bool
	csvPath   string
	geojson   string
	pace      time.Duration
	metrics   string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "bvstrack [input.csv]",
		Short: "Locate a BVS from two-anchor range measurements and draw its track",
		Long: `bvstrack reads rows of time;lon1;lat1;r1;lon2;lat2;r2, intersects the two
range circles around the fixed anchors P1 and P2 for every row and writes the
resulting track as an HTML map, a CSV file and optionally GeoJSON and MQTT.

The two circles meet in two points; --side picks the one north or south of
the P1-P2 baseline for the whole run.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.config)
			if err != nil {
				return report(cmd, err)
			}
			if len(args) == 1 {
				cfg.Input.Path = args[0]
			}
			if err := f.apply(cmd, cfg); err != nil {
				return report(cmd, err)
			}
			if err := cfg.Validate(); err != nil {
				return report(cmd, fmt.Errorf("invalid config: %w", err))
			}
			if cfg.Input.Path == "" {
				return report(cmd, fmt.Errorf("no input file: pass it as an argument, --input or input.path"))
			}

			log := setupLogger(cmd.OutOrStdout(), cfg.Log)
			if err := run(cmd.Context(), cfg, log); err != nil {
				log.Error("run failed", slog.Any("error", err))
				return err
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "YAML config file")
	fl.StringVarP(&f.input, "input", "i", "", "input CSV file")
	fl.StringVar(&f.delimiter, "delimiter", ";", "input field delimiter")
	fl.StringVarP(&f.side, "side", "s", "north", "side of the P1-P2 baseline the BVS flies on (north|south)")
	fl.Float64Var(&f.tolerance, "tolerance", 0, "feasibility tolerance in metres for near-miss range circles")
	fl.StringVar(&f.mapPath, "map", "bvs_map.html", "HTML map output (empty to skip)")
	fl.BoolVar(&f.live, "live", false, "rewrite the map after every fix")
	fl.StringVar(&f.csvPath, "csv", "data/positions.csv", "CSV track output (empty to skip)")
	fl.StringVar(&f.geojson, "geojson", "", "GeoJSON track output")
	fl.DurationVar(&f.pace, "pace", 0, "delay between fixes, e.g. 1s")
	fl.StringVar(&f.metrics, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	fl.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

// apply copies explicitly set flags over cfg.
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("input") {
		cfg.Input.Path = f.input
	}
	if changed("delimiter") {
		cfg.Input.Delimiter = f.delimiter
	}
	if changed("side") {
		cfg.Side = f.side
	}
	if changed("tolerance") {
		cfg.ToleranceM = f.tolerance
	}
	if changed("map") {
		cfg.Output.Map = f.mapPath
	}
	if changed("live") {
		cfg.Output.Live = f.live
	}
	if changed("csv") {
		cfg.Output.CSV = f.csvPath
	}
	if changed("geojson") {
		cfg.Output.GeoJSON = f.geojson
	}
	if changed("pace") {
		cfg.Output.Pace = f.pace
	}
	if changed("metrics-file") {
		cfg.Metrics.Textfile = f.metrics
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	return nil
}

func report(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return err
}

func setupLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
