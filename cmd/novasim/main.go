package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/oriys/novasim/internal/config"
	"github.com/oriys/novasim/internal/logging"
	"github.com/oriys/novasim/internal/metrics"
	"github.com/oriys/novasim/internal/simulator"
	"github.com/oriys/novasim/internal/tracing"
	"github.com/oriys/novasim/internal/workload"
)

var (
	configFile  string
	numVMs      int
	numSlots    int
	numPMs      int
	seed        int64
	logLevel    string
	logFormat   string
	metricsOn   bool
	metricsAddr string
	tracingOn   bool
	validate    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "novasim",
		Short: "Size-class bin-packing VM placement simulator",
		Long:  "Runs a synthetic VM arrival stream through the size-class scheduler and reports per-slot pool state.",
		RunE:  run,
	}

	rootCmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file (flags below override it)")
	rootCmd.Flags().IntVar(&numVMs, "num-vms", 0, "number of VMs to generate (0 = use config/default)")
	rootCmd.Flags().IntVar(&numSlots, "num-slots", 0, "number of time slots to run (0 = use config/default)")
	rootCmd.Flags().IntVar(&numPMs, "num-pms", 0, "size of the PM pool (0 = use config/default)")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "workload generator seed (0 = use config/default)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn, error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "", "text or json")
	rootCmd.Flags().BoolVar(&metricsOn, "metrics", false, "serve Prometheus metrics")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the metrics server")
	rootCmd.Flags().BoolVar(&tracingOn, "tracing", false, "emit OpenTelemetry spans to stdout")
	rootCmd.Flags().BoolVar(&validate, "validate", false, "run the invariant checker after every slot")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.LoadFile(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyFlagOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := uuid.New().String()
	logging.InitStructured(cfg.LogFormat, cfg.LogLevel, runID)

	ctx := context.Background()
	if err := tracing.Init(ctx, cfg.TracingEnabled); err != nil {
		return err
	}
	defer tracing.Shutdown(ctx)

	if cfg.MetricsEnabled {
		metrics.InitPrometheus("novasim", nil)
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.PrometheusHandler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Op().Error("metrics server stopped", "error", err)
			}
		}()
	}

	gen := workload.NewGenerator(cfg.Seed)
	arrivals, err := gen.Generate(cfg.NumVMs, cfg.NumSlots)
	if err != nil {
		return fmt.Errorf("generate workload: %w", err)
	}

	driver := simulator.New(cfg.NumPMs, arrivals)
	driver.ValidateEachSlot = cfg.ValidateInvariants

	logging.Op().Info("starting simulation", "num_vms", cfg.NumVMs, "num_slots", cfg.NumSlots, "num_pms", cfg.NumPMs, "seed", cfg.Seed)

	if err := driver.Run(ctx, cfg.NumSlots); err != nil {
		logging.Op().Error("simulation aborted", "error", err)
		return err
	}

	logging.Op().Info("simulation complete")
	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if numVMs != 0 {
		cfg.NumVMs = numVMs
	}
	if numSlots != 0 {
		cfg.NumSlots = numSlots
	}
	if numPMs != 0 {
		cfg.NumPMs = numPMs
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if metricsOn {
		cfg.MetricsEnabled = true
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if tracingOn {
		cfg.TracingEnabled = true
	}
	if validate {
		cfg.ValidateInvariants = true
	}
}
