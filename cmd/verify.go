package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/workshop-sim/sim/trace"
	"github.com/inference-sim/workshop-sim/sim/workload"
)

// verifyCmd runs the same workload twice and fails if the event traces differ.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that a workload replays identically under the same seed",
	Run: func(cmd *cobra.Command, args []string) {
		spec := loadSpecOrDie(cmd)
		d, err := verifyDeterminism(spec)
		if err != nil {
			logrus.Fatalf("Verification failed: %v", err)
		}
		if !reportVerification(os.Stdout, d) {
			os.Exit(1)
		}
	},
}

// verifyDeterminism runs spec twice with full event tracing and diffs the runs.
func verifyDeterminism(spec *workload.WorkloadSpec) (*trace.TraceDiff, error) {
	var traces [2]*trace.SimulationTrace
	for i := range traces {
		out, err := runSimulation(spec, runOptions{RunID: fmt.Sprintf("verify-%d", i+1), TraceLevel: trace.TraceLevelEvents})
		if err != nil {
			return nil, err
		}
		traces[i] = out.Trace
	}
	return trace.Diff(traces[0], traces[1])
}

// reportVerification prints the outcome and returns whether the runs matched.
func reportVerification(w io.Writer, d *trace.TraceDiff) bool {
	if d.Identical() {
		_, _ = fmt.Fprintln(w, "deterministic: both runs produced identical traces")
		return true
	}
	_, _ = fmt.Fprintf(w, "NOT deterministic: %d differing hunk(s), first at record %d: %s\n", d.Hunks, d.FirstDivergence, d.FirstLine)
	_, _ = fmt.Fprint(w, d.Unified)
	return false
}
