package lod

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/KnightKu/slurm/bb"
)

// TryStageIn runs once per scheduling cycle: it selects pending jobs
// eligible for staging from the host's queue, orders them by expected
// start time, and dispatches one stage-in worker per survivor.
func (c *Controller) TryStageIn(queue []QueuedJob) {
	if c.isClosed() {
		return
	}
	defer c.stat.Latency("tryStageIn_ms").Time().Stop()

	var candidates []QueuedJob
	for _, q := range queue {
		if !q.Pending || q.StartTime.IsZero() || q.BurstBuffer == "" || q.ArrayPlaceholder {
			continue
		}
		st, ok := c.store.State(q.JobID)
		if !ok {
			continue
		}
		if st == bb.Complete {
			// Job requeued; re-enter the pipeline.
			c.store.ResetIfComplete(q.JobID)
		} else if st >= bb.PostRun {
			continue // requeued job still staging out
		} else if st >= bb.StagingIn {
			continue // already has a worker or a buffer
		}
		candidates = append(candidates, q)
	}

	// Earliest expected start first; the stable sort keeps original queue
	// order on ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].StartTime.Before(candidates[j].StartTime)
	})

	c.stat.Gauge("stageInCandidatesGauge").Update(int64(len(candidates)))
	for _, q := range candidates {
		// Re-check right before dispatch: another overlapping cycle may
		// have claimed the job since the scan above.
		if !c.store.TryDispatchStageIn(q.JobID) {
			continue
		}
		jobID := q.JobID
		if !c.stageInPool.enqueue(func() { c.runStageIn(jobID) }) {
			c.store.EndStageIn(jobID)
			return
		}
		c.stat.Counter("stageInDispatchCounter").Inc(1)
	}
}

// runStageIn is the stage-in worker: setup then stage-in, each gated on
// its option flag, each a separate tool invocation. Any failure records
// a reason and parks the job in StageInFail; an external kill exits
// without touching state.
func (c *Controller) runStageIn(jobID uint32) {
	defer c.store.EndStageIn(jobID)
	fields := log.Fields{"jobID": jobID}

	j, ok := c.store.Find(jobID)
	if !ok {
		log.WithFields(fields).Error("stage-in worker: no bb record")
		return
	}
	hj, ok := c.host.FindJob(jobID)
	if !ok {
		log.WithFields(fields).Error("stage-in worker: no host job record")
		return
	}
	opts := j.Opts()
	timeout := c.cfg.OtherTimeout()

	if err := c.store.SetState(jobID, bb.StagingIn); err != nil {
		log.WithFields(fields).WithError(err).Error("stage-in worker")
		return
	}

	if opts.Setup {
		nodes := resolveNodes(opts.Nodes, hj, HostJob.RequestedNodes)
		res := c.invoke(jobID, "setup", setupArgv(opts, nodes), timeout)
		if res.Aborted {
			return
		}
		if !res.Succeeded() {
			c.failStageIn(jobID, hj, "setup", res)
			return
		}
		c.store.MarkSetupStarted(jobID)
	}

	if opts.StageIn {
		nodes := resolveNodes(opts.Nodes, hj, HostJob.RequestedNodes)
		res := c.invoke(jobID, "stage_in", stageInArgv(opts, nodes), timeout)
		if res.Aborted {
			return
		}
		if !res.Succeeded() {
			c.failStageIn(jobID, hj, "stage_in", res)
			return
		}
	}

	if err := c.store.SetState(jobID, bb.StagedIn); err != nil {
		log.WithFields(fields).WithError(err).Error("stage-in worker")
		return
	}
	log.WithFields(fields).Info("stage-in complete")

	// The job is launchable; have the host re-evaluate it.
	c.host.KickScheduler()
}

func (c *Controller) failStageIn(jobID uint32, hj HostJob, op string, res cmdResult) {
	hj.SetFailure(bb.PluginType + ": " + op + ": " + res.reason())
	if err := c.store.SetState(jobID, bb.StageInFail); err != nil {
		log.WithFields(log.Fields{"jobID": jobID}).WithError(err).Error("stage-in failure")
	}
}

// baseArgv holds the flags shared by every verb, in the tool's expected
// order.
func baseArgv(o *bb.Options, nodes string) *bb.ToolCmd {
	return bb.NewToolCmd().
		Flag("node", nodes).
		Flag("mdtdevs", o.MdtDevs).
		Flag("ostdevs", o.OstDevs).
		Flag("inet", o.Inet).
		Flag("mountpoint", o.MountPoint)
}

func setupArgv(o *bb.Options, nodes string) []string {
	return baseArgv(o, nodes).Argv(bb.VerbStart)
}

func stageInArgv(o *bb.Options, nodes string) []string {
	return baseArgv(o, nodes).
		Flag("source", o.In.Source).
		Flag("sourcelist", o.In.SourceList).
		Flag("destination", o.In.Destination).
		Argv(bb.VerbStageIn)
}
