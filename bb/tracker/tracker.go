// Package tracker is the cooperative cancellation registry for in-flight
// external tool invocations. Every invocation registers an entry before
// the blocking call and removes it after; the host can broadcast a
// termination request against a job, which signals the entry's abort
// channel and marks it terminated. The invoking worker polls Terminated
// once after its blocking call returns to distinguish an external kill
// from an ordinary failure.
package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/nu7hatch/gouuid"
)

// Entry is one registered invocation.
type Entry struct {
	id      string
	jobID   uint32
	abortCh chan struct{}

	mu         sync.Mutex
	terminated bool
}

// ID is the invoking task's identity the entry is keyed by.
func (e *Entry) ID() string { return e.id }

func (e *Entry) JobID() uint32 { return e.jobID }

// AbortCh is closed when termination is requested. Executors select on
// it to decide whether to signal the subprocess.
func (e *Entry) AbortCh() <-chan struct{} { return e.abortCh }

// Terminated reports whether the host requested termination.
func (e *Entry) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

func (e *Entry) terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.terminated {
		e.terminated = true
		close(e.abortCh)
	}
}

type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func New() *Tracker {
	return &Tracker{entries: make(map[string]*Entry)}
}

// Register adds an entry for an invocation on behalf of jobID.
func (t *Tracker) Register(jobID uint32) *Entry {
	e := &Entry{
		id:      newEntryID(jobID),
		jobID:   jobID,
		abortCh: make(chan struct{}),
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[e.id] = e
	return e
}

// Remove drops the entry after the invocation returns. The entry keeps
// answering Terminated for the worker's post-return poll.
func (t *Tracker) Remove(e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, e.id)
}

// Broadcast requests termination of every in-flight invocation for jobID
// and returns how many entries were signaled.
func (t *Tracker) Broadcast(jobID uint32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if e.jobID == jobID {
			e.terminate()
			n++
		}
	}
	return n
}

// BroadcastAll requests termination of every in-flight invocation.
func (t *Tracker) BroadcastAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		e.terminate()
	}
	return len(t.entries)
}

// Count returns the number of in-flight invocations.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func newEntryID(jobID uint32) string {
	if id, err := uuid.NewV4(); err == nil {
		return id.String()
	}
	// No entropy; degrade to a timestamped key.
	return fmt.Sprintf("%d-%d", jobID, time.Now().UnixNano())
}
