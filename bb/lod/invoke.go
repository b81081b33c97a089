package lod

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/KnightKu/slurm/execer"
)

// cmdResult is the tri-state outcome of one external tool invocation:
// success (exit 0), failure (non-zero exit, abnormal termination or
// timeout), or external cancellation.
type cmdResult struct {
	// Aborted means the host terminated the command; not an error, and
	// the worker must stop without further state transitions.
	Aborted bool

	ExitCode int
	Output   string
	// Err describes an abnormal termination or timeout.
	Err string
}

func (r cmdResult) Succeeded() bool {
	return !r.Aborted && r.Err == "" && r.ExitCode == 0
}

// reason renders a user-visible failure description.
func (r cmdResult) reason() string {
	if r.Err != "" {
		return r.Err
	}
	return r.Output
}

// invoke runs one tool command on behalf of jobID: register with the
// cancellation registry, start the process, and wait for the first of
// completion, timeout or abort. The registry is polled once after the
// blocking call returns, so an external kill is reported as Aborted even
// if the command managed to exit.
func (c *Controller) invoke(jobID uint32, op string, argv []string, timeout time.Duration) cmdResult {
	defer c.stat.Latency(op + "_ms").Time().Stop()
	fields := log.Fields{"jobID": jobID, "op": op}
	log.WithFields(fields).Infof("running %v", argv)

	entry := c.tracker.Register(jobID)
	defer c.tracker.Remove(entry)

	proc, err := c.exec.Exec(execer.Command{Path: c.cfg.ToolPath, Argv: argv})
	if err != nil {
		c.stat.Counter(op + "FailureCounter").Inc(1)
		return cmdResult{ExitCode: -1, Err: err.Error()}
	}

	processCh := make(chan execer.ProcessStatus, 1)
	go func() { processCh <- proc.Wait() }()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timeoutCh = t.C
	}

	var result cmdResult
	select {
	case <-entry.AbortCh():
		proc.Abort()
		<-processCh
		result = cmdResult{Aborted: true}
	case <-timeoutCh:
		proc.Abort()
		st := <-processCh
		result = cmdResult{ExitCode: -1, Output: st.Output, Err: "command timed out"}
	case st := <-processCh:
		result = cmdResult{ExitCode: st.ExitCode, Output: st.Output, Err: st.Error}
		if st.State != execer.COMPLETE && result.Err == "" {
			result.Err = "abnormal termination"
		}
	}

	// One post-return registry check: an external kill that raced the
	// command's own exit still counts as cancellation.
	if entry.Terminated() {
		result = cmdResult{Aborted: true}
	}

	if result.Aborted {
		log.WithFields(fields).Info("command terminated by host")
	} else if !result.Succeeded() {
		c.stat.Counter(op + "FailureCounter").Inc(1)
		log.WithFields(fields).Errorf("command failed: exit %d %s", result.ExitCode, result.reason())
	}
	return result
}
