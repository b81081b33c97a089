package execers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KnightKu/slurm/execer"
)

func TestUnscriptedCallSucceeds(t *testing.T) {
	ex := NewSimExecer()
	p, err := ex.Exec(execer.Command{Path: "lod", Argv: []string{"lod", "start"}})
	require.NoError(t, err)

	st := p.Wait()
	assert.Equal(t, execer.COMPLETE, st.State)
	assert.Equal(t, 0, st.ExitCode)
	assert.Equal(t, [][]string{{"lod", "start"}}, ex.Calls())
}

func TestScriptedResultsFIFO(t *testing.T) {
	ex := NewSimExecer()
	ex.Queue(SimResult{ExitCode: 2, Output: "no such device"})
	ex.Queue(SimResult{ExitCode: 0, Output: "ok"})

	p, err := ex.Exec(execer.Command{Argv: []string{"lod", "stage_in"}})
	require.NoError(t, err)
	st := p.Wait()
	assert.Equal(t, 2, st.ExitCode)
	assert.Equal(t, "no such device", st.Output)

	p, err = ex.Exec(execer.Command{Argv: []string{"lod", "stage_out"}})
	require.NoError(t, err)
	st = p.Wait()
	assert.Equal(t, 0, st.ExitCode)
	assert.Equal(t, "ok", st.Output)
}

func TestHangingProcessWaitsForAbort(t *testing.T) {
	ex := NewSimExecer()
	ex.Queue(SimResult{Hang: true})

	p, err := ex.Exec(execer.Command{Argv: []string{"lod", "stop"}})
	require.NoError(t, err)

	waited := make(chan execer.ProcessStatus, 1)
	go func() { waited <- p.Wait() }()

	select {
	case st := <-waited:
		t.Fatalf("Wait returned before abort: %v", st)
	case <-time.After(20 * time.Millisecond):
	}

	st := p.Abort()
	assert.Equal(t, execer.FAILED, st.State)
	assert.Equal(t, -1, st.ExitCode)
	assert.Equal(t, "aborted", st.Error)

	select {
	case st := <-waited:
		assert.Equal(t, execer.FAILED, st.State)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after abort")
	}
}

func TestAbortAfterCompletionKeepsStatus(t *testing.T) {
	ex := NewSimExecer()
	p, err := ex.Exec(execer.Command{Argv: []string{"lod", "start"}})
	require.NoError(t, err)
	p.Wait()

	// The process already finished; Abort must not rewrite its state.
	p.Abort()
	st := p.Wait()
	assert.Equal(t, execer.COMPLETE, st.State)
	assert.Equal(t, 0, st.ExitCode)
}

func TestCallsAreCopied(t *testing.T) {
	ex := NewSimExecer()
	argv := []string{"lod", "start"}
	_, err := ex.Exec(execer.Command{Argv: argv})
	require.NoError(t, err)

	argv[1] = "mutated"
	assert.Equal(t, [][]string{{"lod", "start"}}, ex.Calls())
}
