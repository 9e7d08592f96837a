package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentflow"

// Metrics exposes Prometheus collectors for calls, commands and transitions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	callsSubmitted prometheus.Counter
	callsFinished  *prometheus.CounterVec
	callDuration   prometheus.Histogram
	queueDepth     prometheus.Gauge
	inFlight       prometheus.Gauge
	commands       *prometheus.CounterVec
	transitions    *prometheus.CounterVec
}

// MustNewMetrics constructs Metrics on reg (the default registerer when nil).
// Collectors already registered under the same name are reused, so several
// engines may share one registry. Any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Metrics{
		callsSubmitted: mustRegister(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_submitted_total",
			Help:      "Calls accepted by the call manager.",
		})),
		callsFinished: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_finished_total",
			Help:      "Calls that produced an event, by status.",
		}, []string{"status"})),
		callDuration: mustRegister(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Time spent executing a call on a worker.",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		})),
		queueDepth: mustRegister(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "call_queue_depth",
			Help:      "Calls waiting for a worker.",
		})),
		inFlight: mustRegister(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_in_flight",
			Help:      "Calls currently executing.",
		})),
		commands: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Dispatched command lines, by command and outcome.",
		}, []string{"command", "outcome"})),
		transitions: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions taken.",
		}, []string{"from", "to"})),
	}
}

func mustRegister[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// CallSubmitted counts an accepted call.
func (m *Metrics) CallSubmitted() {
	if m == nil {
		return
	}
	m.callsSubmitted.Inc()
}

// CallStarted moves a call from the queue to a worker.
func (m *Metrics) CallStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// CallFinished records the end of a call.
func (m *Metrics) CallFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.callsFinished.WithLabelValues(status).Inc()
	m.callDuration.Observe(d.Seconds())
}

// SetQueueDepth reports the number of queued calls.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// CommandDispatched counts a dispatched line.
func (m *Metrics) CommandDispatched(command, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}

// Transitioned counts a state transition.
func (m *Metrics) Transitioned(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}
