// Package execers provides fake Execers for testing code that drives the
// external staging tool.
package execers

import (
	"sync"

	"github.com/KnightKu/slurm/execer"
)

// SimResult scripts the outcome of one simulated invocation.
type SimResult struct {
	ExitCode int
	Output   string
	// Hang makes Wait block until the process is aborted.
	Hang bool
}

// SimExecer returns scripted results in FIFO order and records every
// argv it was asked to run. An unscripted call completes with exit 0.
type SimExecer struct {
	mu      sync.Mutex
	scripts []SimResult
	calls   [][]string
}

func NewSimExecer() *SimExecer {
	return &SimExecer{}
}

// Queue scripts the result of the next unscripted invocation.
func (e *SimExecer) Queue(r SimResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts = append(e.scripts, r)
}

// Calls returns the argv of every invocation so far, in order.
func (e *SimExecer) Calls() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	calls := make([][]string, len(e.calls))
	copy(calls, e.calls)
	return calls
}

func (e *SimExecer) Exec(command execer.Command) (execer.Process, error) {
	e.mu.Lock()
	argv := make([]string, len(command.Argv))
	copy(argv, command.Argv)
	e.calls = append(e.calls, argv)
	var r SimResult
	if len(e.scripts) > 0 {
		r, e.scripts = e.scripts[0], e.scripts[1:]
	}
	e.mu.Unlock()

	p := &simProcess{done: make(chan struct{})}
	if r.Hang {
		return p, nil
	}
	p.finish(execer.ProcessStatus{
		State:    execer.COMPLETE,
		ExitCode: r.ExitCode,
		Output:   r.Output,
	})
	return p, nil
}

type simProcess struct {
	mu     sync.Mutex
	status execer.ProcessStatus
	done   chan struct{}
}

func (p *simProcess) finish(status execer.ProcessStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.State.IsDone() {
		return
	}
	p.status = status
	close(p.done)
}

func (p *simProcess) Wait() execer.ProcessStatus {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *simProcess) Abort() execer.ProcessStatus {
	status := execer.ProcessStatus{State: execer.FAILED, ExitCode: -1, Error: "aborted"}
	p.finish(status)
	return status
}
