package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/inference-sim/workshop-sim/sim"
	"github.com/inference-sim/workshop-sim/sim/stats"
	"github.com/inference-sim/workshop-sim/sim/storage"
	"github.com/inference-sim/workshop-sim/sim/telemetry"
	"github.com/inference-sim/workshop-sim/sim/trace"
	"github.com/inference-sim/workshop-sim/sim/workload"
)

var (
	// CLI flags shared by run, validate and generate
	workloadPath  string         // YAML workload spec; empty = built-in workshop
	seed          int64          // Master seed for every sampling subsystem
	horizon       float64        // Simulation horizon (time units)
	numJobs       int            // Cap on generated jobs (0 = horizon only)
	poolOverrides map[string]int // name=capacity overrides
	logLevel      string         // Log verbosity level

	// run-only flags
	traceLevel  string // Trace verbosity: none, grants, events
	spanOut     string // OpenTelemetry span output ("-" = stdout)
	summaryJSON string // Summary JSON output path
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "workshop-sim",
	Short: "Discrete-event simulator for a workshop with jointly acquired resource pools",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd executes the simulation using the workload spec and flag overrides
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workshop simulation",
	Run: func(cmd *cobra.Command, args []string) {
		spec := loadSpecOrDie(cmd)
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Unknown trace level %q. Valid: none, grants, events", traceLevel)
		}

		opts := runOptions{
			RunID:      uuid.NewString(),
			TraceLevel: trace.TraceLevel(traceLevel),
			SpanOut:    spanOut,
		}
		logrus.Infof("Starting run %s: seed=%d horizon=%.1f pools=%v", opts.RunID, spec.Seed, spec.Horizon, spec.Pools)

		out, err := runSimulation(spec, opts)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		if err := out.Summary.Print(os.Stdout); err != nil {
			logrus.Fatalf("Writing summary: %v", err)
		}
		if out.Trace != nil {
			printTraceSummary(os.Stdout, trace.Summarize(out.Trace))
		}
		if summaryJSON != "" {
			if err := writeSummaryFile(summaryJSON, out.Summary); err != nil {
				logrus.Fatalf("Writing summary JSON: %v", err)
			}
		}
		logrus.Info("Simulation complete.")
	},
}

// validateCmd checks a workload spec without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a workload spec and the flag overrides applied to it",
	Run: func(cmd *cobra.Command, args []string) {
		spec := loadSpecOrDie(cmd)
		fmt.Printf("workload spec OK: %d pools, %d job types, %d arrival sources, horizon %.1f\n",
			len(spec.Pools), len(spec.JobTypes), len(spec.Arrivals), spec.Horizon)
	},
}

// runOptions carries the per-run settings that never enter the metric stream.
type runOptions struct {
	RunID      string
	TraceLevel trace.TraceLevel
	SpanOut    string
}

// runOutput is what a finished run hands back to the CLI.
type runOutput struct {
	Result    sim.RunResult
	Summary   stats.Summary
	Trace     *trace.SimulationTrace
	Abandoned int
}

// runSimulation generates the workload, runs it to the horizon and shuts the
// simulator down so no pool is left holding units.
func runSimulation(spec *workload.WorkloadSpec, opts runOptions) (*runOutput, error) {
	jobs, err := workload.GenerateJobs(spec, spec.Horizon)
	if err != nil {
		return nil, err
	}

	collector := stats.NewCollector()
	sinks := sim.MultiSink{collector}

	// clock is wired into the span sink before the simulator exists.
	var s *sim.Simulator
	clock := func() float64 {
		if s == nil {
			return 0
		}
		return s.Now()
	}
	if opts.SpanOut != "" {
		file := opts.SpanOut
		if file == "-" {
			file = ""
		}
		provider, err := telemetry.Init("workshop-sim", opts.RunID, file)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				logrus.Errorf("telemetry shutdown: %v", err)
			}
		}()
		// every job span is a child of one "run" span covering the whole run
		tracer := provider.Tracer()
		runCtx, runSpan := tracer.Start(context.Background(), "run",
			oteltrace.WithTimestamp(telemetry.DefaultEpoch),
			oteltrace.WithAttributes(attribute.String("run.id", opts.RunID)),
		)
		spans := telemetry.NewSpanSink(tracer, telemetry.WithContext(runCtx), telemetry.WithClock(clock))
		defer func() { runSpan.End(oteltrace.WithTimestamp(spans.At(clock()))) }()
		sinks = append(sinks, spans)
	}

	s, err = sim.NewSimulator(spec.SimConfig(), sinks)
	if err != nil {
		return nil, err
	}
	var st *trace.SimulationTrace
	if opts.TraceLevel != "" && opts.TraceLevel != trace.TraceLevelNone {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: opts.TraceLevel})
		s.SetTrace(st)
	}
	if err := workload.SubmitJobs(s, jobs); err != nil {
		return nil, err
	}

	res := s.RunToHorizon()
	abandoned := s.Shutdown()

	summary := collector.Summarize()
	summary.RunID = opts.RunID
	return &runOutput{Result: res, Summary: summary, Trace: st, Abandoned: len(abandoned)}, nil
}

// loadSpecOrDie reads the workload spec, applies explicitly set flags and validates.
func loadSpecOrDie(cmd *cobra.Command) *workload.WorkloadSpec {
	spec, err := loadSpec(workloadPath)
	if err != nil {
		logrus.Fatalf("Failed to load workload spec: %v", err)
	}
	applyOverrides(cmd, spec)
	if err := spec.Validate(); err != nil {
		logrus.Fatalf("Invalid workload spec: %v", err)
	}
	return spec
}

func loadSpec(path string) (*workload.WorkloadSpec, error) {
	if path == "" {
		logrus.Info("No workload spec given; using the built-in workshop")
		return workload.DefaultWorkloadSpec(), nil
	}
	return workload.LoadWorkloadSpec(path)
}

// applyOverrides copies flag values onto the spec, but only for flags the user
// set. Unset flags never clobber values from the YAML file.
func applyOverrides(cmd *cobra.Command, spec *workload.WorkloadSpec) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		spec.Seed = seed
	}
	if flags.Changed("horizon") {
		spec.Horizon = horizon
	}
	if flags.Changed("num-jobs") {
		spec.NumJobs = numJobs
	}
	if flags.Changed("pool") {
		if spec.Pools == nil {
			spec.Pools = make(map[string]int, len(poolOverrides))
		}
		for name, capacity := range poolOverrides {
			spec.Pools[name] = capacity
		}
	}
}

// writeSummaryFile stores the summary JSON at a local path or afs URL.
func writeSummaryFile(location string, s stats.Summary) error {
	var buf bytes.Buffer
	if err := s.WriteJSON(&buf); err != nil {
		return err
	}
	return storage.Write(context.Background(), location, buf.Bytes())
}

func printTraceSummary(w io.Writer, ts *trace.TraceSummary) {
	_, _ = fmt.Fprintf(w, "=== Trace Summary ===\n")
	_, _ = fmt.Fprintf(w, "Events               : %d %v\n", ts.TotalEvents, ts.EventsByKind)
	_, _ = fmt.Fprintf(w, "Grants               : %d (mean wait %.2f, max %.2f)\n", ts.TotalGrants, ts.MeanWait, ts.MaxWait)
	_, _ = fmt.Fprintf(w, "Releases             : %d (%d forced)\n", ts.TotalReleases, ts.ForcedReleases)
	_, _ = fmt.Fprintf(w, "Peak In Use          : %v\n", ts.PeakInUse)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerSpecFlags adds the workload flags to a subcommand.
func registerSpecFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&workloadPath, "workload", "", "Path or afs URL of a YAML workload spec (default: built-in workshop)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for arrival, job type and duration sampling")
	cmd.Flags().Float64Var(&horizon, "horizon", 480, "Simulation horizon (time units)")
	cmd.Flags().IntVar(&numJobs, "num-jobs", 0, "Maximum number of generated jobs (0 = limited by horizon only)")
	cmd.Flags().StringToIntVar(&poolOverrides, "pool", nil, "Pool capacity override name=capacity (repeatable)")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	registerSpecFlags(runCmd)
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Trace level (none, grants, events)")
	runCmd.Flags().StringVar(&spanOut, "trace-out", "", "Write OpenTelemetry job spans to this file (\"-\" = stdout)")
	runCmd.Flags().StringVar(&summaryJSON, "summary-json", "", "Write the run summary as JSON to this path or afs URL")

	registerSpecFlags(validateCmd)

	registerSpecFlags(verifyCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(verifyCmd)
}
