// Package stats is a minimal instrumentation facade backed by
// go-metrics. A StatsReceiver can be scoped and passed down a call tree;
// components record counters, gauges and callsite latency without caring
// how the host renders them.
package stats

import (
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"
)

type StatsReceiver interface {
	// Scope returns a receiver that namespaces every instrument with the
	// given path elements.
	Scope(scope ...string) StatsReceiver

	Counter(name ...string) Counter
	Gauge(name ...string) Gauge
	Latency(name ...string) Latency
}

type Counter interface {
	Inc(delta int64)
	Count() int64
}

type Gauge interface {
	Update(value int64)
	Value() int64
}

// Latency records callsite durations into a histogram:
//
//	defer stat.Latency("stageIn_ms").Time().Stop()
type Latency interface {
	Time() *LatencyTimer
	Count() int64
}

type LatencyTimer struct {
	start time.Time
	h     metrics.Histogram
}

func (t *LatencyTimer) Stop() {
	t.h.Update(int64(time.Since(t.start)))
}

// DefaultStatsReceiver returns a receiver over a private registry.
func DefaultStatsReceiver() StatsReceiver {
	return NewStatsReceiver(metrics.NewRegistry())
}

func NewStatsReceiver(reg metrics.Registry) StatsReceiver {
	return &defaultStatsReceiver{reg: reg}
}

type defaultStatsReceiver struct {
	reg   metrics.Registry
	scope []string
}

func (s *defaultStatsReceiver) Scope(scope ...string) StatsReceiver {
	return &defaultStatsReceiver{reg: s.reg, scope: append(append([]string{}, s.scope...), scope...)}
}

func (s *defaultStatsReceiver) Counter(name ...string) Counter {
	return metrics.GetOrRegisterCounter(s.scoped(name), s.reg)
}

func (s *defaultStatsReceiver) Gauge(name ...string) Gauge {
	return metricGauge{metrics.GetOrRegisterGauge(s.scoped(name), s.reg)}
}

func (s *defaultStatsReceiver) Latency(name ...string) Latency {
	return metricLatency{metrics.GetOrRegisterHistogram(
		s.scoped(name), s.reg, metrics.NewExpDecaySample(1028, 0.015))}
}

// Hierarchical names use '/' as the path separator.
func (s *defaultStatsReceiver) scoped(name []string) string {
	return strings.Join(append(append([]string{}, s.scope...), name...), "/")
}

type metricGauge struct {
	g metrics.Gauge
}

func (m metricGauge) Update(v int64) { m.g.Update(v) }
func (m metricGauge) Value() int64   { return m.g.Value() }

type metricLatency struct {
	h metrics.Histogram
}

func (m metricLatency) Time() *LatencyTimer {
	return &LatencyTimer{start: time.Now(), h: m.h}
}

func (m metricLatency) Count() int64 { return m.h.Count() }

// NilStatsReceiver discards everything; use it when the host provides no
// registry.
func NilStatsReceiver() StatsReceiver {
	return nilStatsReceiver{}
}

type nilStatsReceiver struct{}

func (s nilStatsReceiver) Scope(scope ...string) StatsReceiver { return s }
func (s nilStatsReceiver) Counter(name ...string) Counter      { return nilCounter{} }
func (s nilStatsReceiver) Gauge(name ...string) Gauge          { return nilGauge{} }
func (s nilStatsReceiver) Latency(name ...string) Latency      { return nilLatency{} }

type nilCounter struct{}

func (nilCounter) Inc(int64)    {}
func (nilCounter) Count() int64 { return 0 }

type nilGauge struct{}

func (nilGauge) Update(int64) {}
func (nilGauge) Value() int64 { return 0 }

type nilLatency struct{}

func (nilLatency) Time() *LatencyTimer {
	return &LatencyTimer{start: time.Now(), h: metrics.NilHistogram{}}
}
func (nilLatency) Count() int64 { return 0 }
