package workload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/workshop-sim/sim/storage"
)

const workshopYAML = `
version: "1"
seed: 7
horizon: 480
pools:
  workers: 2
  stations: 1
arrivals:
  - id: walk-in
    process: poisson
    rate: 0.25
  - id: maintenance
    process: cron
    schedule: "0 */2 * * *"
    job_type: service
job_types:
  - name: print
    weight: 0.7
    duration:
      type: uniform
      params: {min: 5, max: 15}
  - name: service
    weight: 0.3
    pools: [stations]
    duration:
      type: constant
      params: {value: 30}
`

func TestLoadWorkloadSpec_ValidYAML_LoadsCorrectly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workshop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(workshopYAML), 0644))

	spec, err := LoadWorkloadSpec(path)
	require.NoError(t, err)

	assert.Equal(t, "1", spec.Version)
	assert.Equal(t, int64(7), spec.Seed)
	assert.Equal(t, 480.0, spec.Horizon)
	assert.Equal(t, map[string]int{"workers": 2, "stations": 1}, spec.Pools)
	require.Len(t, spec.Arrivals, 2)
	assert.Equal(t, "cron", spec.Arrivals[1].Process)
	assert.Equal(t, "service", spec.Arrivals[1].JobType)
	require.Len(t, spec.JobTypes, 2)
	assert.Equal(t, []string{"stations"}, spec.JobTypes[1].Pools)
	assert.NoError(t, spec.Validate())
}

func TestLoadWorkloadSpec_UnknownKey_Rejected(t *testing.T) {
	// GIVEN a spec with a typo'd key
	data := strings.Replace(workshopYAML, "horizon: 480", "horizn: 480", 1)

	// WHEN parsed
	_, err := ParseWorkloadSpec([]byte(data))

	// THEN strict parsing rejects it
	require.Error(t, err)
	assert.Contains(t, err.Error(), "horizn")
}

func TestLoadWorkloadSpec_MissingFile_ReturnsError(t *testing.T) {
	_, err := LoadWorkloadSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoadWorkloadSpec_MemoryURL(t *testing.T) {
	// GIVEN a spec stored in the in-memory afs backend
	loc := "mem://localhost/workload-test/workshop.yaml"
	require.NoError(t, storage.Write(context.Background(), loc, []byte(workshopYAML)))

	// WHEN loaded by URL
	spec, err := LoadWorkloadSpec(loc)

	// THEN it parses the same as a file on disk
	require.NoError(t, err)
	assert.Equal(t, int64(7), spec.Seed)
	assert.Equal(t, map[string]int{"workers": 2, "stations": 1}, spec.Pools)
}

func TestParseWorkloadSpec_EmptyVersion_DefaultsToOne(t *testing.T) {
	data := strings.Replace(workshopYAML, `version: "1"`, "", 1)
	spec, err := ParseWorkloadSpec([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "1", spec.Version)
}

func TestDefaultWorkloadSpec_IsValid(t *testing.T) {
	assert.NoError(t, DefaultWorkloadSpec().Validate())
}

func TestWorkloadSpec_Validate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WorkloadSpec)
		wantErr string
	}{
		{"zero horizon", func(s *WorkloadSpec) { s.Horizon = 0 }, "horizon"},
		{"no pools", func(s *WorkloadSpec) { s.Pools = nil }, "pool"},
		{"zero capacity", func(s *WorkloadSpec) { s.Pools["workers"] = 0 }, "capacity"},
		{"negative capacity", func(s *WorkloadSpec) { s.Pools["workers"] = -3 }, "capacity"},
		{"no job types", func(s *WorkloadSpec) { s.JobTypes = nil }, "job type"},
		{"no arrivals", func(s *WorkloadSpec) { s.Arrivals = nil }, "arrival source"},
		{"bad process", func(s *WorkloadSpec) { s.Arrivals[0].Process = "bursty" }, "unknown arrival process"},
		{"zero rate", func(s *WorkloadSpec) { s.Arrivals[0].Rate = 0 }, "rate"},
		{"bad cron", func(s *WorkloadSpec) { s.Arrivals[1].Schedule = "every tuesday" }, "cron schedule"},
		{"bad epoch", func(s *WorkloadSpec) { s.Arrivals[1].Epoch = "yesterday" }, "epoch"},
		{"sub-second unit", func(s *WorkloadSpec) { s.Arrivals[1].TimeUnit = "10ms" }, "time_unit"},
		{"cron horizon past calendar range", func(s *WorkloadSpec) { s.Horizon = 2e8 }, "cron calendar range"},
		{"unknown job type ref", func(s *WorkloadSpec) { s.Arrivals[1].JobType = "paint" }, "unknown job_type"},
		{"unknown pool ref", func(s *WorkloadSpec) { s.JobTypes[1].Pools = []string{"ovens"} }, "unknown pool"},
		{"duplicate pool ref", func(s *WorkloadSpec) { s.JobTypes[1].Pools = []string{"stations", "stations"} }, "listed twice"},
		{"duplicate job type", func(s *WorkloadSpec) { s.JobTypes[1].Name = "print" }, "duplicate name"},
		{"negative weight", func(s *WorkloadSpec) { s.JobTypes[0].Weight = -1 }, "weight"},
		{"all weights zero", func(s *WorkloadSpec) {
			s.JobTypes[0].Weight = 0
			s.JobTypes[1].Weight = 0
		}, "weight must be positive"},
		{"bad duration", func(s *WorkloadSpec) { s.JobTypes[0].Duration.Type = "zipf" }, "distribution type"},
		{"inverted window", func(s *WorkloadSpec) {
			s.Arrivals[0].Windows = []ActiveWindow{{Start: 10, End: 5}}
		}, "windows"},
		{"unsupported version", func(s *WorkloadSpec) { s.Version = "2" }, "version"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := ParseWorkloadSpec([]byte(workshopYAML))
			require.NoError(t, err)
			tc.mutate(spec)
			err = spec.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestWorkloadSpec_SimConfig_CarriesEngineOptions(t *testing.T) {
	spec, err := ParseWorkloadSpec([]byte(workshopYAML))
	require.NoError(t, err)
	cfg := spec.SimConfig()
	assert.Equal(t, 480.0, cfg.Horizon)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, []string{"stations", "workers"}, cfg.PoolNames())
}
