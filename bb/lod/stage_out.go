package lod

import (
	log "github.com/sirupsen/logrus"

	"github.com/KnightKu/slurm/bb"
)

// StartStageOut is called by the host when a job finishes. Jobs that
// never ran or asked for no stage-out skip straight to teardown;
// otherwise a stage-out worker runs the stage-out command and chains
// teardown itself.
func (c *Controller) StartStageOut(jobID uint32) {
	if c.isClosed() {
		return
	}
	fields := log.Fields{"jobID": jobID}
	switch c.store.DecideStageOut(jobID) {
	case bb.StageOutRun:
		if hj, ok := c.host.FindJob(jobID); ok {
			hj.SetStageOut(true)
		}
		c.stat.Counter("stageOutDispatchCounter").Inc(1)
		if !c.stageOutPool.enqueue(func() { c.runStageOut(jobID) }) {
			c.store.EndStageOut(jobID)
		}
	case bb.StageOutTeardown:
		c.stat.Counter("teardownDispatchCounter").Inc(1)
		if !c.stageOutPool.enqueue(func() { c.runTeardownWorker(jobID) }) {
			c.store.EndStageOut(jobID)
		}
	default:
		// Missing or already past PostRun: nothing to do.
		log.WithFields(fields).Debug("stage-out request: nothing to do")
	}
}

// CancelJob releases a cancelled job's buffer. A job that never started
// staging is simply marked Complete; one that did gets a cleanup
// teardown.
func (c *Controller) CancelJob(jobID uint32) {
	if c.isClosed() {
		return
	}
	fields := log.Fields{"jobID": jobID}
	switch c.store.DecideCancel(jobID) {
	case bb.CancelCompleted:
		log.WithFields(fields).Debug("cancel: nothing to clean up")
	case bb.CancelTeardown:
		c.stat.Counter("teardownDispatchCounter").Inc(1)
		if !c.stageOutPool.enqueue(func() { c.runTeardownWorker(jobID) }) {
			c.store.EndStageOut(jobID)
		}
	default:
		log.WithFields(fields).Debug("cancel: no bb record or already finishing")
	}
}

// runStageOut executes the stage-out command and, on success, chains
// teardown synchronously within the same task.
func (c *Controller) runStageOut(jobID uint32) {
	defer c.store.EndStageOut(jobID)
	fields := log.Fields{"jobID": jobID}

	j, ok := c.store.Find(jobID)
	if !ok {
		log.WithFields(fields).Error("stage-out worker: no bb record")
		return
	}
	hj, hostOK := c.host.FindJob(jobID)
	if !hostOK {
		log.WithFields(fields).Error("stage-out worker: no host job record")
	}
	opts := j.Opts()

	if err := c.store.SetState(jobID, bb.StagingOut); err != nil {
		log.WithFields(fields).WithError(err).Error("stage-out worker")
		return
	}

	nodes := resolveNodes(opts.Nodes, hj, HostJob.AllocatedNodes)
	res := c.invoke(jobID, "stage_out", stageOutArgv(opts, nodes), c.cfg.OtherTimeout())
	if res.Aborted {
		return
	}
	if !res.Succeeded() {
		if hostOK {
			hj.SetFailure(bb.PluginType + ": post_run: " + res.reason())
		}
		return
	}
	if err := c.store.SetState(jobID, bb.StagedOut); err != nil {
		log.WithFields(fields).WithError(err).Error("stage-out worker")
		return
	}
	c.runTeardown(jobID, j, hj)
}

// runTeardownWorker is the teardown-only task used when stage-out is
// skipped; the job is already in Teardown.
func (c *Controller) runTeardownWorker(jobID uint32) {
	defer c.store.EndStageOut(jobID)

	j, ok := c.store.Find(jobID)
	if !ok {
		log.WithFields(log.Fields{"jobID": jobID}).Error("teardown worker: no bb record")
		return
	}
	hj, hostOK := c.host.FindJob(jobID)
	if !hostOK {
		log.WithFields(log.Fields{"jobID": jobID}).Error("teardown worker: no host job record")
	}
	c.runTeardown(jobID, j, hj)
}

// runTeardown releases the buffer. It only invokes the tool when setup
// was requested, actually started, and the script asked for a stop;
// otherwise it just finalizes state. The host's stage-out marker is
// cleared in all cases before returning.
func (c *Controller) runTeardown(jobID uint32, j *bb.Job, hj HostJob) {
	fields := log.Fields{"jobID": jobID}
	if hj != nil {
		defer hj.SetStageOut(false)
	}

	if err := c.store.SetState(jobID, bb.Teardown); err != nil {
		log.WithFields(fields).WithError(err).Error("teardown")
		return
	}

	opts := j.Opts()
	if opts.Setup && c.store.SetupStarted(jobID) && opts.NeedStop {
		nodes := resolveNodes(opts.Nodes, hj, HostJob.AllocatedNodes)
		res := c.invoke(jobID, "teardown", teardownArgv(opts, nodes), c.cfg.OtherTimeout())
		if res.Aborted {
			return
		}
		if !res.Succeeded() {
			if hj != nil {
				hj.SetFailure(bb.PluginType + ": teardown: " + res.reason())
			}
			if err := c.store.SetState(jobID, bb.TeardownFail); err != nil {
				log.WithFields(fields).WithError(err).Error("teardown")
			}
			return
		}
	}

	if err := c.store.SetState(jobID, bb.Complete); err != nil {
		log.WithFields(fields).WithError(err).Error("teardown")
		return
	}
	log.WithFields(fields).Info("burst buffer released")
}

func stageOutArgv(o *bb.Options, nodes string) []string {
	return baseArgv(o, nodes).
		Flag("sourcelist", o.Out.SourceList).
		Flag("source", o.Out.Source).
		Flag("destination", o.Out.Destination).
		Argv(bb.VerbStageOut)
}

func teardownArgv(o *bb.Options, nodes string) []string {
	return baseArgv(o, nodes).Argv(bb.VerbStop)
}
