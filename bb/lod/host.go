package lod

import (
	"time"

	"github.com/KnightKu/slurm/bb"
)

// Host is the scheduler-side surface the controller calls back into. The
// controller never reaches into the host's job queue or records directly;
// it asks for a job when it needs one and may find it gone.
type Host interface {
	// FindJob returns the host's live record for a job, if it still exists.
	FindJob(id uint32) (HostJob, bool)

	// KickScheduler asks the host to re-evaluate pending jobs, e.g. after
	// a stage-in completes and the job becomes launchable.
	KickScheduler()
}

// HostJob is the slice of a host job record the staging workers touch.
type HostJob interface {
	// RequestedNodes is the node list the job asked for at submission.
	RequestedNodes() string

	// AllocatedNodes is the node list the job actually ran on.
	AllocatedNodes() string

	// SetFailure records a user-visible reason why staging failed.
	SetFailure(reason string)

	// SetStageOut marks or clears the job's "stage-out in progress" flag.
	SetStageOut(active bool)
}

// JobDesc describes a validated job submission whose directive block has
// already been translated.
type JobDesc struct {
	bb.JobMeta

	// The translated directive block, empty if the script had none.
	BurstBuffer string
}

// QueuedJob is one entry of the host's pending queue, as seen by one
// scheduling cycle.
type QueuedJob struct {
	JobID uint32

	// Expected start time; the zero value means unknown and makes the job
	// ineligible this cycle.
	StartTime time.Time

	// The job's translated directive block; empty means no staging.
	BurstBuffer string

	Pending bool

	// Unexpanded job-array placeholders cannot stage.
	ArrayPlaceholder bool
}

// Results of the host's stage-in/stage-out completion polls, matching
// the scheduler's tri-state contract.
const (
	// TestFailed: staging not started or in some unexpected state.
	TestFailed = -1
	// TestRunning: the phase is still underway.
	TestRunning = 0
	// TestDone: the phase is complete (or there is nothing to do).
	TestDone = 1
)
