package execer

// Execer runs one external staging tool command. It is at the level of
// os/exec: it knows nothing about jobs or buffer lifecycles, only how to
// start a process, wait for it, and abort it on request.

// Command describes one invocation. Argv[0] is the tool's display name;
// the binary actually executed is Path when set.
type Command struct {
	Path string
	Argv []string
}

type ProcessState int

const (
	// An unambiguous 0-value.
	UNKNOWN ProcessState = iota
	RUNNING
	// Exited on its own; ExitCode is meaningful.
	COMPLETE
	// Could not run or terminated abnormally (signal, abort).
	FAILED
)

func (s ProcessState) IsDone() bool {
	return s == COMPLETE || s == FAILED
}

func (s ProcessState) String() string {
	switch s {
	case UNKNOWN:
		return "UNKNOWN"
	case RUNNING:
		return "RUNNING"
	case COMPLETE:
		return "COMPLETE"
	case FAILED:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type ProcessStatus struct {
	State    ProcessState
	ExitCode int
	// Combined stdout/stderr of the command.
	Output string
	// Set when State == FAILED.
	Error string
}

type Execer interface {
	Exec(command Command) (Process, error)
}

type Process interface {
	// Wait blocks until the process is done.
	Wait() ProcessStatus
	// Abort signals the process to stop. The eventual Wait result
	// reflects the abnormal termination.
	Abort() ProcessStatus
}
