package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/experiment"
	"github.com/ull-isaatc/sighos-sub008/sim/metrics"
	"github.com/ull-isaatc/sighos-sub008/sim/trace"
)

var (
	// CLI flags for the experiment
	configPath    string   // Experiment YAML file
	modelPath     string   // Disease model YAML file
	patients      int      // Cohort size per arm
	runs          int      // Probabilistic replications after the base case
	threads       int      // Worker goroutines for parallel runs
	parallel      bool     // Run replications in parallel
	seed          int64    // Experiment seed
	horizonYears  float64  // Simulated years per arm, 0 for lifetime
	interventions []string // Arms in order
	traceLevel    string   // Patient trace level
	logLevel      string   // Log verbosity level

	// CLI flags for output files
	resultsPath string // JSON results
	tracePath   string // JSON patient trace of the base case
	metricsPath string // Prometheus textfile
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "sighos",
	Short: "Patient-level discrete-event simulator for chronic disease interventions",
}

// runCmd executes an experiment using the model file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the base case and probabilistic replications of every arm",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		file, err := resolveExperiment(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if file.Model == "" {
			logrus.Fatalf("Model file not provided. Use --model or set model in --config.")
		}
		model, err := disease.LoadModel(file.Model)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		e, err := experiment.New(model, file.Experiment)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		startTime := time.Now()
		summary, runErr := e.Run(ctx)
		logrus.Infof("Experiment %s finished in %s", e.ID, time.Since(startTime).Round(time.Millisecond))

		PrintSummary(os.Stdout, summary)
		if file.Output.Results != "" {
			if err := WriteJSON(file.Output.Results, summary); err != nil {
				logrus.Errorf("%v", err)
			}
		}
		if file.Output.Trace != "" {
			if err := WriteJSON(file.Output.Trace, traceReports(e.Traces())); err != nil {
				logrus.Errorf("%v", err)
			}
		}
		if file.Output.Metrics != "" {
			if err := metrics.WriteTextfile(file.Output.Metrics); err != nil {
				logrus.Errorf("writing metrics: %v", err)
			}
		}
		if runErr != nil {
			logrus.Fatalf("Experiment finished with errors: %v", runErr)
		}
		logrus.Info("Experiment complete.")
	},
}

// validateCmd loads and checks a model file without simulating
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a disease model file",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if modelPath == "" {
			logrus.Fatalf("Model file not provided. Use --model.")
		}
		model, err := disease.LoadModel(modelPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		describeModel(cmd.OutOrStdout(), model)
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// resolveExperiment merges the optional --config file with the flags the
// user set explicitly; flags win.
func resolveExperiment(cmd *cobra.Command) (*ExperimentFile, error) {
	file := &ExperimentFile{Experiment: experiment.DefaultConfig()}
	if configPath != "" {
		loaded, err := LoadExperimentFile(configPath)
		if err != nil {
			return nil, err
		}
		file = loaded
	}

	flags := cmd.Flags()
	cfg := &file.Experiment
	if flags.Changed("model") {
		file.Model = modelPath
	}
	if flags.Changed("patients") {
		cfg.Patients = patients
	}
	if flags.Changed("runs") {
		cfg.Runs = runs
	}
	if flags.Changed("threads") {
		cfg.Threads = threads
	}
	if flags.Changed("parallel") {
		cfg.Parallel = parallel
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("horizon") {
		cfg.HorizonYears = horizonYears
	}
	if flags.Changed("interventions") {
		cfg.Interventions = interventions
	}
	if flags.Changed("trace") {
		cfg.Trace = trace.TraceLevel(traceLevel)
	}
	if flags.Changed("results") {
		file.Output.Results = resultsPath
	}
	if flags.Changed("trace-file") {
		file.Output.Trace = tracePath
	}
	if flags.Changed("metrics-file") {
		file.Output.Metrics = metricsPath
	}
	if file.Output.Trace != "" && cfg.Trace == trace.TraceLevelNone {
		cfg.Trace = trace.TraceLevelEvents
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment settings: %w", err)
	}
	return file, nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	defaults := experiment.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Disease model YAML file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&configPath, "config", "", "Experiment YAML file; flags override its values")
	runCmd.Flags().IntVar(&patients, "patients", defaults.Patients, "Patients per arm")
	runCmd.Flags().IntVar(&runs, "runs", defaults.Runs, "Probabilistic replications after the base case")
	runCmd.Flags().IntVar(&threads, "threads", defaults.Threads, "Worker goroutines when --parallel is set")
	runCmd.Flags().BoolVar(&parallel, "parallel", defaults.Parallel, "Run replications in parallel")
	runCmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "Seed for every random draw of the experiment")
	runCmd.Flags().Float64Var(&horizonYears, "horizon", defaults.HorizonYears, "Simulated years per arm (0 = lifetime)")
	runCmd.Flags().StringSliceVar(&interventions, "interventions", nil, "Comma-separated interventions in arm order (default: all)")
	runCmd.Flags().StringVar(&traceLevel, "trace", string(defaults.Trace), "Patient trace level for the base case (none, events)")

	runCmd.Flags().StringVar(&resultsPath, "results", "", "Write the experiment summary as JSON to this file")
	runCmd.Flags().StringVar(&tracePath, "trace-file", "", "Write the base case patient trace as JSON to this file")
	runCmd.Flags().StringVar(&metricsPath, "metrics-file", "", "Write Prometheus metrics in text format to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
