// Package lod is the burst buffer staging lifecycle controller. It
// parses staging directives out of job scripts, keeps a per-job
// lifecycle record, and drives the external staging tool through
// asynchronous workers: setup and stage-in before a job launches,
// stage-out and teardown after it finishes.
package lod

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/KnightKu/slurm/bb"
	"github.com/KnightKu/slurm/bb/directive"
	"github.com/KnightKu/slurm/bb/tracker"
	"github.com/KnightKu/slurm/common/stats"
	"github.com/KnightKu/slurm/execer"
)

// Controller owns all staging state: the job record store and its lock,
// the cancellation registry, and the per-phase worker pools. Lifecycle
// is tied to New/Close rather than any package state.
type Controller struct {
	cfg  bb.Config
	host Host
	exec execer.Execer
	stat stats.StatsReceiver

	store   *bb.Store
	tracker *tracker.Tracker
	conf    directive.ConfResource

	stageInPool  *pool
	stageOutPool *pool

	mu     sync.Mutex
	closed bool
}

// New builds a controller. A nil stat discards instrumentation.
func New(cfg bb.Config, host Host, exec execer.Execer, stat stats.StatsReceiver) *Controller {
	cfg = cfg.WithDefaults()
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	stat = stat.Scope("bb")
	c := &Controller{
		cfg:     cfg,
		host:    host,
		exec:    exec,
		stat:    stat,
		store:   bb.NewStore(),
		tracker: tracker.New(),
		conf:    directive.FileConfResource(cfg.ConfPath),
	}
	c.stageInPool = newPool("stageIn", cfg.StageInWorkers, cfg.QueueDepth, stat)
	c.stageOutPool = newPool("stageOut", cfg.StageOutWorkers, cfg.QueueDepth, stat)
	return c
}

// ValidateJob checks a job script's staging directives at submission
// time, before the job is accepted. It returns the translated directive
// block (empty if the script has none) or an InvalidRequestError.
func (c *Controller) ValidateJob(script string) (string, error) {
	block := directive.Translate(script)
	if block == "" {
		return "", nil
	}
	if err := directive.Validate(block, c.conf); err != nil {
		return "", err
	}
	return block, nil
}

// RegisterJob parses a validated job's directive block and lazily
// creates its staging record. Jobs without directives get no record.
func (c *Controller) RegisterJob(desc JobDesc) error {
	opts := directive.Parse(desc.BurstBuffer)
	if opts == nil {
		return nil
	}
	c.store.GetOrCreate(desc.JobMeta, opts)
	log.WithFields(log.Fields{"jobID": desc.JobID, "userID": desc.UserID}).
		Debug("registered burst buffer job")
	return nil
}

// RemoveJob drops a job's staging record. The host calls it once the
// job is terminal and it no longer references the record.
func (c *Controller) RemoveJob(jobID uint32) {
	c.store.Remove(jobID)
}

// JobBegin records that the host launched the job.
func (c *Controller) JobBegin(jobID uint32) error {
	if _, ok := c.store.Find(jobID); !ok {
		if hj, ok := c.host.FindJob(jobID); ok {
			hj.SetFailure("Could not find burst buffer record")
		}
		return errors.Errorf("no burst buffer record for job %d", jobID)
	}
	return c.store.SetState(jobID, bb.Running)
}

// TestStageIn answers the host's "is stage-in done" poll.
func (c *Controller) TestStageIn(jobID uint32) int {
	st, ok := c.store.State(jobID)
	switch {
	case !ok:
		log.WithFields(log.Fields{"jobID": jobID}).Debug("stage-in poll: no bb record")
		return TestFailed
	case st == bb.StageInFail:
		return TestFailed
	case st <= bb.StagingIn:
		return TestRunning
	default:
		return TestDone
	}
}

// TestStageOut answers the host's "is stage-out done" poll.
func (c *Controller) TestStageOut(jobID uint32) int {
	st, ok := c.store.State(jobID)
	switch {
	case !ok:
		// Nothing to do; don't block the scheduler.
		log.WithFields(log.Fields{"jobID": jobID}).Debug("stage-out poll: no bb record")
		return TestDone
	case st == bb.Pending:
		// Staging never started before the job ended, or the record was
		// rebuilt after a restart.
		return TestDone
	case st == bb.StageInFail:
		return TestFailed
	case st < bb.PostRun:
		return TestFailed
	case st > bb.StagingOut:
		return TestDone
	default:
		return TestRunning
	}
}

// TerminateCommands broadcasts a cooperative termination request against
// every in-flight tool invocation for a job. The workers observe it
// after their blocking calls return and exit without touching state.
func (c *Controller) TerminateCommands(jobID uint32) int {
	return c.tracker.Broadcast(jobID)
}

// Close stops accepting work, aborts in-flight tool invocations, and
// waits for the workers to drain.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.tracker.BroadcastAll()
	c.stageInPool.stop()
	c.stageOutPool.stop()

	// Workers are gone, but an invocation registered by a task that was
	// mid-enqueue may linger briefly.
	wait := backoff.WithMaxRetries(backoff.NewConstantBackOff(100*time.Millisecond), 100)
	return backoff.Retry(func() error {
		if n := c.tracker.Count(); n > 0 {
			return errors.Errorf("%d staging commands still running", n)
		}
		return nil
	}, wait)
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// resolveNodes returns the explicit node option when set, else the
// host-side node list obtained from hostNodes (requested nodes for
// stage-in, allocated nodes for stage-out/teardown).
func resolveNodes(explicit string, hj HostJob, hostNodes func(HostJob) string) string {
	if explicit != "" || hj == nil {
		return explicit
	}
	return hostNodes(hj)
}
