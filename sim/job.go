// Defines the Job behavior that models an individual workshop job in the simulation.
// Tracks the lifecycle phases and the timestamps needed for wait/service metrics.

package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// JobPhase represents the lifecycle phase of a job.
type JobPhase string

const (
	PhaseArrived    JobPhase = "arrived"
	PhaseWaiting    JobPhase = "waiting"
	PhaseGranted    JobPhase = "granted"
	PhaseInService  JobPhase = "in_service"
	PhaseTerminated JobPhase = "terminated"
)

// Job needs one unit of every leg at once, holds them for Duration and then
// releases them together. It is a Behavior driven by the Simulator:
//
//	Arrived → Waiting → Granted → InService → Terminated
//
// No phase is skipped, and resources are held only from Granted onwards.
type Job struct {
	Type     string
	Duration float64
	Legs     []Leg

	Phase     JobPhase
	WaitStart float64
	WaitTime  float64
	StartTime float64
}

// NewJob builds a job in the Arrived phase.
func NewJob(jobType string, duration float64, legs []Leg) *Job {
	return &Job{
		Type:     jobType,
		Duration: duration,
		Legs:     legs,
		Phase:    PhaseArrived,
	}
}

// JobFactory returns a ProcessFactory creating a fresh Job for each arrival.
func JobFactory(jobType string, duration float64, legs []Leg) ProcessFactory {
	return func(ProcessID) Behavior {
		return NewJob(jobType, duration, legs)
	}
}

// Resume advances the job to its next suspension point.
func (j *Job) Resume(pc *ProcessContext) Yield {
	now := pc.Now()
	switch j.Phase {
	case PhaseArrived:
		j.WaitStart = now
		j.Phase = PhaseWaiting
		return Acquire(j.Legs...)

	case PhaseWaiting:
		// only a grant resumes a waiting job
		j.Phase = PhaseGranted
		j.WaitTime = now - j.WaitStart
		j.StartTime = now
		logrus.Debugf("[t=%.3f] job %d (%s) granted after %.3f", now, pc.Process().ID, j.Type, j.WaitTime)

		j.Phase = PhaseInService
		return Timeout(j.Duration)

	case PhaseInService:
		if err := pc.Release(); err != nil {
			return Fail(err)
		}
		j.Phase = PhaseTerminated
		p := pc.Process()
		rec := JobRecord{
			JobID:           p.ID,
			JobType:         j.Type,
			ArrivalTime:     p.ArrivalTime,
			WaitTime:        j.WaitTime,
			ServiceDuration: now - j.StartTime,
			CompletionTime:  now - p.ArrivalTime,
		}
		logrus.Debugf("Finished job: %s", rec)
		pc.Emit(rec)
		return Done()

	default:
		return Fail(fmt.Errorf("job %d resumed in phase %s", pc.Process().ID, j.Phase))
	}
}
