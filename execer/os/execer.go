// Package os implements execer over os/exec for the real staging tool.
package os

import (
	"bytes"
	"os/exec"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/KnightKu/slurm/execer"
)

// Grace period between SIGTERM and SIGKILL on abort.
const abortGracePeriod = 10 * time.Second

func NewExecer() execer.Execer {
	return &osExecer{}
}

type osExecer struct{}

func (e *osExecer) Exec(command execer.Command) (execer.Process, error) {
	if len(command.Argv) == 0 {
		return nil, syscall.EINVAL
	}
	path := command.Path
	if path == "" {
		path = command.Argv[0]
	}
	cmd := exec.Command(path, command.Argv[1:]...)
	// Preserve the tool's display name while executing the configured path.
	cmd.Args[0] = command.Argv[0]

	var output bytes.Buffer
	cmd.Stdout, cmd.Stderr = &output, &output

	// Children share a process group so abort can signal the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd, output: &output}, nil
}

type osProcess struct {
	cmd    *exec.Cmd
	output *bytes.Buffer

	mu     sync.Mutex
	result *execer.ProcessStatus
}

func (p *osProcess) Wait() execer.ProcessStatus {
	err := p.cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result != nil {
		// Aborted while waiting; the abort result wins.
		p.result.Output = p.output.String()
		return *p.result
	}

	var result execer.ProcessStatus
	result.Output = p.output.String()
	if err == nil {
		result.State = execer.COMPLETE
		result.ExitCode = 0
	} else if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Exited() {
			result.State = execer.COMPLETE
			result.ExitCode = status.ExitStatus()
		} else {
			// Killed by a signal or no WaitStatus available.
			result.State = execer.FAILED
			result.Error = exitErr.Error()
		}
	} else {
		result.State = execer.FAILED
		result.Error = err.Error()
	}
	p.result = &result
	return result
}

// Abort SIGTERMs the process group, then SIGKILLs it if the process has
// not exited within the grace period.
func (p *osProcess) Abort() execer.ProcessStatus {
	p.mu.Lock()
	if p.result == nil {
		p.result = &execer.ProcessStatus{
			State:    execer.FAILED,
			ExitCode: -1,
			Error:    "aborted",
		}
	}
	result := *p.result
	p.mu.Unlock()

	pid := p.cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		p.cmd.Process.Signal(syscall.SIGTERM)
	}
	go func() {
		time.Sleep(abortGracePeriod)
		if pgid, err := syscall.Getpgid(pid); err == nil {
			log.WithFields(log.Fields{"pid": pid}).Info("process survived SIGTERM, sending SIGKILL")
			syscall.Kill(-pgid, syscall.SIGKILL)
		}
	}()
	return result
}
