package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/workshop-sim/sim/workload"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the effective workload spec or its sampled jobs as YAML",
	Long:  "Write the workload spec after flag overrides, or the job sequence it samples, as YAML. Output is written to stdout for piping.",
}

// --- workshop-sim export spec ---

var exportSpecCmd = &cobra.Command{
	Use:   "spec",
	Short: "Write the effective workload spec",
	Run: func(cmd *cobra.Command, args []string) {
		writeYAMLToStdout(loadSpecOrDie(cmd))
	},
}

// --- workshop-sim export jobs ---

var exportJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Write the sampled job sequence",
	Run: func(cmd *cobra.Command, args []string) {
		spec := loadSpecOrDie(cmd)
		jobs, err := workload.GenerateJobs(spec, spec.Horizon)
		if err != nil {
			logrus.Fatalf("Job generation failed: %v", err)
		}
		writeYAMLToStdout(jobs)
	},
}

// writeYAMLToStdout marshals v to YAML and writes to stdout.
func writeYAMLToStdout(v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		logrus.Fatalf("YAML marshal failed: %v", err)
	}
	fmt.Print(string(data))
}

func init() {
	registerSpecFlags(exportSpecCmd)
	registerSpecFlags(exportJobsCmd)

	exportCmd.AddCommand(exportSpecCmd)
	exportCmd.AddCommand(exportJobsCmd)

	rootCmd.AddCommand(exportCmd)
}
