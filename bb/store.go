package bb

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Store owns the job record cache and the single lock guarding every
// state read and write. All lifecycle transitions happen inside it so
// they are linearizable per job.
type Store struct {
	mu   sync.Mutex
	jobs map[uint32]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[uint32]*Job)}
}

// GetOrCreate returns the cached record for meta.JobID, creating one in
// Pending with the given options if none exists.
func (s *Store) GetOrCreate(meta JobMeta, opts *Options) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[meta.JobID]; ok {
		return j
	}
	j := &Job{JobMeta: meta, state: Pending, opts: opts}
	s.jobs[meta.JobID] = j
	return j
}

func (s *Store) Find(id uint32) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Remove drops the cache entry. Safe once the job is terminal and the
// host no longer references it.
func (s *Store) Remove(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// State returns the job's current lifecycle state.
func (s *Store) State(id uint32) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Pending, false
	}
	return j.state, true
}

// SetState applies a transition, enforcing the lifecycle table.
func (s *Store) SetState(id uint32, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return errors.Errorf("no burst buffer record for job %d", id)
	}
	if !j.state.CanTransitionTo(to) {
		return errors.Errorf("job %d: illegal transition %v -> %v", id, j.state, to)
	}
	if j.state != to {
		log.WithFields(log.Fields{"jobID": id, "from": j.state, "to": to}).
			Debug("bb state transition")
		j.state = to
	}
	return nil
}

// MarkSetupStarted records that the setup command exited successfully.
func (s *Store) MarkSetupStarted(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.setupStarted = true
	}
}

func (s *Store) SetupStarted(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return ok && j.setupStarted
}

// ResetIfComplete regresses a Complete job to Pending, representing a
// host requeue. Reports whether the reset happened.
func (s *Store) ResetIfComplete(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.state != Complete {
		return false
	}
	j.state = Pending
	j.setupStarted = false
	return true
}

// TryDispatchStageIn is the idempotent dispatch guard: it claims the job
// for a stage-in worker only if the job is still before StagingIn and no
// worker is already in flight. Two overlapping scheduling cycles observe
// a single winner.
func (s *Store) TryDispatchStageIn(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.state >= StagingIn || j.stageInActive {
		return false
	}
	j.stageInActive = true
	return true
}

// EndStageIn releases the stage-in in-flight marker.
func (s *Store) EndStageIn(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.stageInActive = false
	}
}

// EndStageOut releases the stage-out/teardown in-flight marker.
func (s *Store) EndStageOut(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.stageOutActive = false
	}
}

// StageOutAction is the outcome of the stage-out decision.
type StageOutAction int

const (
	// Nothing to do (missing record, already past PostRun, or a worker
	// is already in flight).
	StageOutNone StageOutAction = iota
	// The job never ran or wants no stage-out: go straight to teardown.
	StageOutTeardown
	// Run the full stage-out sequence.
	StageOutRun
)

// DecideStageOut makes the end-of-job decision atomically: it inspects
// the state, applies the first transition and claims the stage-out
// phase, all under the lock.
func (s *Store) DecideStageOut(id uint32) StageOutAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.stageOutActive {
		return StageOutNone
	}
	switch {
	case j.state == StageInFail || j.state < Running:
		// Job never started or staging failed: just release the buffer.
		j.state = Teardown
		j.stageOutActive = true
		return StageOutTeardown
	case j.state < PostRun && !j.opts.StageOut:
		j.state = Teardown
		j.stageOutActive = true
		return StageOutTeardown
	case j.state < PostRun:
		j.state = PostRun
		j.stageOutActive = true
		return StageOutRun
	default:
		return StageOutNone
	}
}

// CancelAction is the outcome of the cancel decision.
type CancelAction int

const (
	CancelNone CancelAction = iota
	// The job was still Pending; the record was marked Complete in place.
	CancelCompleted
	// Cleanup teardown was claimed; dispatch a teardown worker.
	CancelTeardown
)

// DecideCancel handles host cancellation of a job.
func (s *Store) DecideCancel(id uint32) CancelAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return CancelNone
	}
	switch {
	case j.state == Pending:
		// Nothing to clean up.
		j.state = Complete
		return CancelCompleted
	case (j.state < PostRun || j.state == StageInFail) && !j.stageOutActive:
		j.state = Teardown
		j.stageOutActive = true
		return CancelTeardown
	default:
		return CancelNone
	}
}
