package workload

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExampleWorkshop loads examples/workshop.yaml and checks the shape of
// the workload it produces.
func TestExampleWorkshop(t *testing.T) {
	// GIVEN the example print shop spec
	spec, err := LoadWorkloadSpec(filepath.Join("..", "..", "examples", "workshop.yaml"))
	require.NoError(t, err, "failed to load workshop.yaml")

	// THEN validation passes
	require.NoError(t, spec.Validate())
	assert.Equal(t, map[string]int{"workers": 3, "stations": 2, "binders": 1}, spec.Pools)

	// WHEN jobs are generated
	jobs, err := GenerateJobs(spec, spec.Horizon)
	require.NoError(t, err)
	require.NotEmpty(t, jobs)

	// THEN maintenance jobs appear exactly on the cron slots and the
	// zero-weight service type is never drawn for other sources
	var maintenance []float64
	for _, j := range jobs {
		if j.Source == "maintenance" {
			assert.Equal(t, "service", j.Type)
			assert.Equal(t, []string{"binders"}, j.Pools)
			maintenance = append(maintenance, j.ArrivalTime)
			continue
		}
		assert.NotEqual(t, "service", j.Type)
		if j.Source == "walk-in" {
			inWindow := j.ArrivalTime < 240 || j.ArrivalTime >= 300
			assert.True(t, inWindow, "walk-in at %.2f during lunch", j.ArrivalTime)
		}
	}
	// epoch 08:00, every even hour: 10:00, 12:00, 14:00 (16:00 is the horizon)
	assert.Equal(t, []float64{120, 240, 360}, maintenance)
}
