package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/workshop-sim/sim"
)

func TestGenerateJobs_SameSeed_Identical(t *testing.T) {
	// GIVEN two copies of the same spec
	spec1 := DefaultWorkloadSpec()
	spec2 := DefaultWorkloadSpec()

	// WHEN jobs are generated for each
	j1, err := GenerateJobs(spec1, spec1.Horizon)
	require.NoError(t, err)
	j2, err := GenerateJobs(spec2, spec2.Horizon)
	require.NoError(t, err)

	// THEN the sequences are identical
	require.NotEmpty(t, j1)
	assert.Equal(t, j1, j2)
}

func TestGenerateJobs_DifferentSeeds_Differ(t *testing.T) {
	spec1 := DefaultWorkloadSpec()
	spec2 := DefaultWorkloadSpec()
	spec2.Seed = 43

	j1, err := GenerateJobs(spec1, spec1.Horizon)
	require.NoError(t, err)
	j2, err := GenerateJobs(spec2, spec2.Horizon)
	require.NoError(t, err)

	assert.NotEqual(t, j1, j2, "different seeds produced identical workloads")
}

func TestGenerateJobs_SortedWithinHorizon(t *testing.T) {
	spec := DefaultWorkloadSpec()
	jobs, err := GenerateJobs(spec, 200)
	require.NoError(t, err)

	for i, j := range jobs {
		assert.Equal(t, i, j.Index)
		assert.Less(t, j.ArrivalTime, 200.0)
		if i > 0 {
			assert.GreaterOrEqual(t, j.ArrivalTime, jobs[i-1].ArrivalTime)
		}
		// default job types need every pool
		assert.Equal(t, []string{"stations", "workers"}, j.Pools)
	}
}

func TestGenerateJobs_DurationsFollowJobType(t *testing.T) {
	spec := DefaultWorkloadSpec()
	jobs, err := GenerateJobs(spec, spec.Horizon)
	require.NoError(t, err)

	ranges := map[string][2]float64{"print": {5, 15}, "plot": {10, 30}, "bind": {20, 40}}
	for _, j := range jobs {
		r, ok := ranges[j.Type]
		require.True(t, ok, "unexpected job type %q", j.Type)
		assert.GreaterOrEqual(t, j.Duration, r[0])
		assert.LessOrEqual(t, j.Duration, r[1])
	}
}

func TestGenerateJobs_CronSourceFixedType(t *testing.T) {
	// GIVEN only a cron source emitting a fixed job type every 2 hours
	spec, err := ParseWorkloadSpec([]byte(workshopYAML))
	require.NoError(t, err)
	spec.Arrivals = spec.Arrivals[1:]

	// WHEN generated over 480 minutes
	jobs, err := GenerateJobs(spec, spec.Horizon)
	require.NoError(t, err)

	// THEN jobs arrive at 120, 240, 360 (480 is outside the horizon), all "service"
	require.Len(t, jobs, 3)
	for i, j := range jobs {
		assert.Equal(t, float64(120*(i+1)), j.ArrivalTime)
		assert.Equal(t, "service", j.Type)
		assert.Equal(t, 30.0, j.Duration)
		assert.Equal(t, []string{"stations"}, j.Pools)
		assert.Equal(t, "maintenance", j.Source)
	}
}

func TestGenerateJobs_ActiveWindows_FilterArrivals(t *testing.T) {
	spec := DefaultWorkloadSpec()
	spec.Arrivals[0].Windows = []ActiveWindow{{Start: 0, End: 60}, {Start: 240, End: 300}}

	jobs, err := GenerateJobs(spec, spec.Horizon)
	require.NoError(t, err)
	require.NotEmpty(t, jobs)
	for _, j := range jobs {
		inFirst := j.ArrivalTime < 60
		inSecond := j.ArrivalTime >= 240 && j.ArrivalTime < 300
		assert.True(t, inFirst || inSecond, "arrival %.3f outside windows", j.ArrivalTime)
	}
}

func TestGenerateJobs_NumJobsCap(t *testing.T) {
	spec := DefaultWorkloadSpec()
	spec.NumJobs = 5
	jobs, err := GenerateJobs(spec, spec.Horizon)
	require.NoError(t, err)
	assert.Len(t, jobs, 5)
}

func TestGenerateJobs_ZeroHorizon_Empty(t *testing.T) {
	jobs, err := GenerateJobs(DefaultWorkloadSpec(), 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestGenerateJobs_InvalidSpec_Error(t *testing.T) {
	spec := DefaultWorkloadSpec()
	spec.Pools["workers"] = 0
	_, err := GenerateJobs(spec, spec.Horizon)
	assert.Error(t, err)
}

func TestSubmitJobs_RunsToCompletion(t *testing.T) {
	// GIVEN a generated workload submitted to a simulator
	spec := DefaultWorkloadSpec()
	jobs, err := GenerateJobs(spec, spec.Horizon)
	require.NoError(t, err)
	rec := &sim.RecordingSink{}
	s, err := sim.NewSimulator(spec.SimConfig(), rec)
	require.NoError(t, err)
	require.NoError(t, SubmitJobs(s, jobs))

	// WHEN run without a horizon cut
	res := s.Run(1e9)

	// THEN every job completes exactly once
	assert.False(t, res.Truncated)
	assert.Equal(t, len(jobs), res.Completed)
	assert.Len(t, rec.Jobs, len(jobs))
	assert.Len(t, rec.Events, 3*len(jobs))
}

func TestSubmitJobs_UnknownPool_Error(t *testing.T) {
	s, err := sim.NewSimulator(sim.NewSimConfig(10, map[string]int{"workers": 1}, 1), nil)
	require.NoError(t, err)
	err = SubmitJobs(s, []JobSpec{{Type: "print", Pools: []string{"ovens"}}})
	assert.Error(t, err)
}

func TestGenerateJobs_CronHorizonPastCalendarRange_Rejected(t *testing.T) {
	// GIVEN a valid spec with a cron source on a minute clock
	spec, err := ParseWorkloadSpec([]byte(workshopYAML))
	require.NoError(t, err)
	require.NoError(t, spec.Validate())

	// WHEN generating over a horizon longer than ~292 years of minutes
	jobs, err := GenerateJobs(spec, 2e8)

	// THEN generation refuses up front instead of running away
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cron calendar range")
	assert.Nil(t, jobs)
}
