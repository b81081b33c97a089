package stats

import (
	"testing"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
)

func TestCounterScoping(t *testing.T) {
	reg := metrics.NewRegistry()
	stat := NewStatsReceiver(reg).Scope("bb", "stageIn")

	stat.Counter("failures").Inc(2)
	stat.Counter("failures").Inc(1)

	assert.Equal(t, int64(3), stat.Counter("failures").Count())
	assert.NotNil(t, reg.Get("bb/stageIn/failures"))
	assert.Nil(t, reg.Get("failures"))
}

func TestScopeDoesNotMutateParent(t *testing.T) {
	stat := DefaultStatsReceiver().Scope("a")
	child := stat.Scope("b")

	child.Counter("n").Inc(1)
	assert.Equal(t, int64(1), child.Counter("n").Count())
	assert.Equal(t, int64(0), stat.Counter("n").Count())
}

func TestGauge(t *testing.T) {
	stat := DefaultStatsReceiver()
	stat.Gauge("inflight").Update(5)
	assert.Equal(t, int64(5), stat.Gauge("inflight").Value())
	stat.Gauge("inflight").Update(2)
	assert.Equal(t, int64(2), stat.Gauge("inflight").Value())
}

func TestLatencyTimer(t *testing.T) {
	stat := DefaultStatsReceiver()
	stat.Latency("op_ms").Time().Stop()
	stat.Latency("op_ms").Time().Stop()
	assert.Equal(t, int64(2), stat.Latency("op_ms").Count())
}

func TestNilStatsReceiver(t *testing.T) {
	stat := NilStatsReceiver().Scope("anything")
	stat.Counter("c").Inc(10)
	stat.Gauge("g").Update(10)
	stat.Latency("l").Time().Stop()

	assert.Equal(t, int64(0), stat.Counter("c").Count())
	assert.Equal(t, int64(0), stat.Gauge("g").Value())
	assert.Equal(t, int64(0), stat.Latency("l").Count())
}
