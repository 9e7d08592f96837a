package observability

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CallLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.CallSubmitted()
	m.SetQueueDepth(3)
	m.CallStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))

	m.CallFinished("complete", 250*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsFinished.WithLabelValues("complete")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
}

func TestMustNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := MustNewMetrics(reg)
	b := MustNewMetrics(reg)

	a.CommandDispatched("load_agent", domain.OutcomeOK)
	b.CommandDispatched("load_agent", domain.OutcomeOK)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.commands.WithLabelValues("load_agent", domain.OutcomeOK)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CallSubmitted()
		m.CallStarted()
		m.CallFinished("error", time.Second)
		m.SetQueueDepth(1)
		m.CommandDispatched("x", "ok")
		m.Transitioned("a", "b")
	})
}

func TestHooks_FeedMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)
	hooks := Hooks(m, nil)
	ctx := context.Background()

	hooks.OnTransition(ctx, &domain.TransitionEvent{Action: "load_agent", From: "initial", To: "agent_loaded"})
	hooks.OnCommand(ctx, &domain.CommandEvent{Command: "zzz", Outcome: domain.OutcomeUnknown})
	hooks.OnCommand(ctx, &domain.CommandEvent{Command: "load_agent", Outcome: domain.OutcomeOK})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("initial", "agent_loaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("unknown", domain.OutcomeUnknown)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("load_agent", domain.OutcomeOK)))
}

func TestMerge(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnCommand: func(ctx context.Context, e *domain.CommandEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnCommand:    func(ctx context.Context, e *domain.CommandEvent) { calls = append(calls, "b") },
		OnCallSubmit: func(ctx context.Context, t *domain.Task) { calls = append(calls, "submit") },
	}

	merged := Merge(a, b)
	merged.OnCommand(context.Background(), &domain.CommandEvent{})
	merged.OnCallSubmit(context.Background(), &domain.Task{})
	assert.Nil(t, merged.OnTransition)
	assert.Equal(t, []string{"a", "b", "submit"}, calls)
}
