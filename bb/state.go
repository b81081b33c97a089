package bb

import "fmt"

// State is the lifecycle state of a job's burst buffer.
//
// The main states form a linear order and other packages compare them
// with < and >=, so the declaration order matters. Complete, TeardownFail
// and StageInFail sit past the linear run; StageInFail is special-cased
// wherever "did the job ever run" is decided.
type State int

const (
	// Waiting for a buffer. The only state a job can regress to (on requeue).
	Pending State = iota
	// A stage-in worker owns the job and is provisioning/copying data in.
	StagingIn
	// Setup and stage-in finished; the job can launch.
	StagedIn
	// The host launched the job.
	Running
	// The host requested stage-out; a worker owns the job again.
	PostRun
	// The stage-out command is in flight.
	StagingOut
	// Stage-out finished; teardown chains next.
	StagedOut
	// The buffer is being released.
	Teardown

	// Terminal states.

	// Teardown finished (or was not needed). Requeue resets to Pending.
	Complete
	// The teardown command failed; the buffer may be leaked.
	TeardownFail
	// A setup or stage-in command failed; the job never staged in.
	StageInFail
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case StagingIn:
		return "staging-in"
	case StagedIn:
		return "staged-in"
	case Running:
		return "running"
	case PostRun:
		return "post-run"
	case StagingOut:
		return "staging-out"
	case StagedOut:
		return "staged-out"
	case Teardown:
		return "teardown"
	case Complete:
		return "complete"
	case TeardownFail:
		return "teardown-fail"
	case StageInFail:
		return "stage-in-fail"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsTerminal reports whether no worker will mutate the job again
// (a Complete job can still be requeued by the host).
func (s State) IsTerminal() bool {
	return s == Complete || s == TeardownFail || s == StageInFail
}

// CanTransitionTo reports whether the s -> to transition is legal.
// Writing the same state twice is allowed so workers can be idempotent.
func (s State) CanTransitionTo(to State) bool {
	if s == to {
		return true
	}
	switch s {
	case Pending:
		// Complete: cancelled before any work started.
		// Teardown: the host is finishing a job that never ran.
		return to == StagingIn || to == Complete || to == Teardown
	case StagingIn:
		return to == StagedIn || to == StageInFail || to == Teardown
	case StagedIn:
		return to == Running || to == Teardown
	case Running:
		return to == PostRun || to == Teardown
	case PostRun:
		return to == StagingOut
	case StagingOut:
		return to == StagedOut
	case StagedOut:
		return to == Teardown
	case Teardown:
		return to == Complete || to == TeardownFail
	case Complete:
		// Host-initiated requeue, the only regression.
		return to == Pending
	case StageInFail:
		// Cleanup of a partially provisioned buffer.
		return to == Teardown
	default:
		return false
	}
}
