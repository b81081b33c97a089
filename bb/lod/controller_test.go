package lod

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KnightKu/slurm/bb"
	"github.com/KnightKu/slurm/execer/execers"
)

type fakeHostJob struct {
	mu        sync.Mutex
	requested string
	allocated string
	failure   string
	stageOut  bool
}

func (h *fakeHostJob) RequestedNodes() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requested
}

func (h *fakeHostJob) AllocatedNodes() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocated
}

func (h *fakeHostJob) SetFailure(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failure = reason
}

func (h *fakeHostJob) SetStageOut(active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stageOut = active
}

func (h *fakeHostJob) Failure() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failure
}

func (h *fakeHostJob) StageOutFlag() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stageOut
}

type fakeHost struct {
	mu    sync.Mutex
	jobs  map[uint32]*fakeHostJob
	kicks int
}

func newFakeHost() *fakeHost {
	return &fakeHost{jobs: make(map[uint32]*fakeHostJob)}
}

func (h *fakeHost) addJob(id uint32) *fakeHostJob {
	h.mu.Lock()
	defer h.mu.Unlock()
	hj := &fakeHostJob{}
	h.jobs[id] = hj
	return hj
}

func (h *fakeHost) FindJob(id uint32) (HostJob, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hj, ok := h.jobs[id]
	if !ok {
		return nil, false
	}
	return hj, true
}

func (h *fakeHost) KickScheduler() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kicks++
}

func (h *fakeHost) Kicks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kicks
}

func newTestController(host *fakeHost, ex *execers.SimExecer) *Controller {
	cfg := bb.Config{
		StageInWorkers:  1,
		StageOutWorkers: 1,
		QueueDepth:      16,
	}
	return New(cfg, host, ex, nil)
}

// register gives the job a staging record from an already translated
// directive block.
func register(t *testing.T, c *Controller, id uint32, block string) {
	t.Helper()
	require.NoError(t, c.RegisterJob(JobDesc{
		JobMeta:     bb.JobMeta{JobID: id, UserID: 1000},
		BurstBuffer: block,
	}))
}

func queued(id uint32, block string) QueuedJob {
	return QueuedJob{
		JobID:       id,
		StartTime:   time.Now(),
		BurstBuffer: block,
		Pending:     true,
	}
}

// waitFor polls cond until it holds or the test deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForState(t *testing.T, c *Controller, id uint32, want bb.State) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool {
		st, ok := c.store.State(id)
		return ok && st == want
	})
}

func TestValidateJob(t *testing.T) {
	c := newTestController(newFakeHost(), execers.NewSimExecer())
	defer c.Close()

	block, err := c.ValidateJob("#!/bin/bash\n#LOD setup mdtdevs=a ostdevs=b\necho hi\n")
	require.NoError(t, err)
	assert.Equal(t, "#LOD setup mdtdevs=a ostdevs=b", block)

	block, err = c.ValidateJob("#!/bin/bash\necho hi\n")
	require.NoError(t, err)
	assert.Empty(t, block)

	_, err = c.ValidateJob("#LOD stage_in source=/a\n")
	require.Error(t, err)
	assert.True(t, bb.IsInvalidRequest(err))
}

func TestRegisterJobWithoutDirectives(t *testing.T) {
	c := newTestController(newFakeHost(), execers.NewSimExecer())
	defer c.Close()

	require.NoError(t, c.RegisterJob(JobDesc{JobMeta: bb.JobMeta{JobID: 5}}))
	_, ok := c.store.Find(5)
	assert.False(t, ok)
	assert.Equal(t, TestFailed, c.TestStageIn(5))
}

func TestJobBegin(t *testing.T) {
	host := newFakeHost()
	c := newTestController(host, execers.NewSimExecer())
	defer c.Close()

	register(t, c, 1, "#LOD setup mdtdevs=a ostdevs=b")
	require.NoError(t, c.store.SetState(1, bb.StagingIn))
	require.NoError(t, c.store.SetState(1, bb.StagedIn))

	require.NoError(t, c.JobBegin(1))
	st, _ := c.store.State(1)
	assert.Equal(t, bb.Running, st)
}

func TestJobBeginMissingRecord(t *testing.T) {
	host := newFakeHost()
	hj := host.addJob(9)
	c := newTestController(host, execers.NewSimExecer())
	defer c.Close()

	err := c.JobBegin(9)
	require.Error(t, err)
	assert.Equal(t, "Could not find burst buffer record", hj.Failure())
}

func TestStageInPoll(t *testing.T) {
	c := newTestController(newFakeHost(), execers.NewSimExecer())
	defer c.Close()

	assert.Equal(t, TestFailed, c.TestStageIn(1))

	register(t, c, 1, "#LOD setup mdtdevs=a ostdevs=b")
	assert.Equal(t, TestRunning, c.TestStageIn(1))

	require.NoError(t, c.store.SetState(1, bb.StagingIn))
	assert.Equal(t, TestRunning, c.TestStageIn(1))

	require.NoError(t, c.store.SetState(1, bb.StagedIn))
	assert.Equal(t, TestDone, c.TestStageIn(1))

	register(t, c, 2, "#LOD setup mdtdevs=a ostdevs=b")
	require.NoError(t, c.store.SetState(2, bb.StagingIn))
	require.NoError(t, c.store.SetState(2, bb.StageInFail))
	assert.Equal(t, TestFailed, c.TestStageIn(2))
}

func TestStageOutPoll(t *testing.T) {
	c := newTestController(newFakeHost(), execers.NewSimExecer())
	defer c.Close()

	// No record means nothing to wait for.
	assert.Equal(t, TestDone, c.TestStageOut(1))

	register(t, c, 1, "#LOD setup mdtdevs=a ostdevs=b\n#LOD stage_out source=/o destination=/d")
	assert.Equal(t, TestDone, c.TestStageOut(1))

	require.NoError(t, c.store.SetState(1, bb.StagingIn))
	assert.Equal(t, TestFailed, c.TestStageOut(1))

	require.NoError(t, c.store.SetState(1, bb.StageInFail))
	assert.Equal(t, TestFailed, c.TestStageOut(1))

	register(t, c, 2, "#LOD setup mdtdevs=a ostdevs=b\n#LOD stage_out source=/o destination=/d")
	for _, st := range []bb.State{bb.StagingIn, bb.StagedIn, bb.Running, bb.PostRun} {
		require.NoError(t, c.store.SetState(2, st))
	}
	assert.Equal(t, TestRunning, c.TestStageOut(2))
	require.NoError(t, c.store.SetState(2, bb.StagingOut))
	assert.Equal(t, TestRunning, c.TestStageOut(2))
	require.NoError(t, c.store.SetState(2, bb.StagedOut))
	assert.Equal(t, TestDone, c.TestStageOut(2))
}

func TestRemoveJob(t *testing.T) {
	c := newTestController(newFakeHost(), execers.NewSimExecer())
	defer c.Close()

	register(t, c, 1, "#LOD setup mdtdevs=a ostdevs=b")
	c.RemoveJob(1)
	_, ok := c.store.Find(1)
	assert.False(t, ok)
}

func TestCloseAbortsInFlightCommands(t *testing.T) {
	host := newFakeHost()
	host.addJob(1)
	ex := execers.NewSimExecer()
	ex.Queue(execers.SimResult{Hang: true})
	c := newTestController(host, ex)

	register(t, c, 1, "#LOD setup mdtdevs=a ostdevs=b")
	c.TryStageIn([]QueuedJob{queued(1, "x")})
	waitFor(t, "setup invocation", func() bool { return len(ex.Calls()) == 1 })

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.tracker.Count())

	// Closed controllers accept no more work.
	c.TryStageIn([]QueuedJob{queued(1, "x")})
	c.StartStageOut(1)
	assert.Len(t, ex.Calls(), 1)

	// Close is idempotent.
	require.NoError(t, c.Close())
}
