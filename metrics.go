package tripwire

import "github.com/rcrowley/go-metrics"

// Metric names registered by an Engine.
const (
	MetricCompiles        = "tripwire.compile"
	MetricCompileFailures = "tripwire.compile.failures"
	MetricNodes           = "tripwire.graph.nodes"
	MetricInputs          = "tripwire.graph.inputs"
	MetricFlows           = "tripwire.flows"
	MetricReloads         = "tripwire.reloads"
)

type engineMetrics struct {
	compiles        metrics.Timer
	compileFailures metrics.Counter
	nodes           metrics.Gauge
	inputs          metrics.Gauge
	flows           metrics.Counter
	reloads         metrics.Counter
}

func newEngineMetrics(r metrics.Registry) *engineMetrics {
	if r == nil {
		r = metrics.NewRegistry()
	}
	return &engineMetrics{
		compiles:        metrics.GetOrRegisterTimer(MetricCompiles, r),
		compileFailures: metrics.GetOrRegisterCounter(MetricCompileFailures, r),
		nodes:           metrics.GetOrRegisterGauge(MetricNodes, r),
		inputs:          metrics.GetOrRegisterGauge(MetricInputs, r),
		flows:           metrics.GetOrRegisterCounter(MetricFlows, r),
		reloads:         metrics.GetOrRegisterCounter(MetricReloads, r),
	}
}
