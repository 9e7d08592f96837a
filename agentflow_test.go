package agentflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/agentflow"
	"github.com/aretw0/agentflow/pkg/callmgr"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/fsm"
	"github.com/aretw0/agentflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(t *testing.T) *fsm.Machine {
	t.Helper()
	m, err := fsm.NewBuilder("initial").
		Add("initial").On("load", "loaded").
		Add("loaded").Stay("load").On("analyze", "ready").
		Add("ready").Stay("analyze").
		Builder().
		ResetTo("reset", "initial").
		Build(fsm.WithName("test"))
	require.NoError(t, err)
	return m
}

func TestNew_RequiresMachine(t *testing.T) {
	_, err := agentflow.New(nil)
	assert.ErrorIs(t, err, agentflow.ErrNoMachine)
}

func TestNew_RejectsInvalidMachine(t *testing.T) {
	initial := fsm.NewState("initial")
	orphan := fsm.NewState("orphan")
	require.NoError(t, initial.AddTransition("go", orphan))

	_, err := agentflow.New(fsm.New(initial))
	assert.ErrorIs(t, err, fsm.ErrUnknownState)
}

func TestEngine_DispatchAndTransition(t *testing.T) {
	eng, err := agentflow.New(newMachine(t))
	require.NoError(t, err)

	require.NoError(t, eng.Register(dispatch.Command{
		Name: "load",
		Handler: func(ctx context.Context, args string) (string, error) {
			if args == "" {
				return "no agent given", dispatch.ErrCancelTransition
			}
			return "loaded " + args, nil
		},
	}))

	out := eng.Dispatch(context.Background(), "load")
	assert.True(t, out.Cancelled)
	assert.Equal(t, "initial", eng.Machine().CurrentName())

	out = eng.Dispatch(context.Background(), "load reviewer")
	require.NoError(t, out.Err)
	assert.Equal(t, "loaded reviewer", out.Output)
	assert.True(t, out.Transitioned)
	assert.Equal(t, "loaded", eng.Machine().CurrentName())

	out = eng.Dispatch(context.Background(), "reset")
	require.NoError(t, out.Err)
	assert.Equal(t, "initial", out.To)
}

func TestEngine_RegisterDuplicate(t *testing.T) {
	eng, err := agentflow.New(newMachine(t))
	require.NoError(t, err)

	err = eng.Register(dispatch.Command{Name: "load"}, dispatch.Command{Name: "load"})
	assert.ErrorIs(t, err, dispatch.ErrDuplicateCommand)
}

func TestEngine_InterceptorAndVisualizer(t *testing.T) {
	var seen []string
	eng, err := agentflow.New(newMachine(t),
		agentflow.WithInterceptor(func(ctx context.Context, cmd dispatch.Command, args string) (bool, error) {
			return cmd.Confirm == "", nil
		}),
		agentflow.WithVisualizer(func(ctx context.Context, snap fsm.Snapshot) {
			seen = append(seen, snap.State)
		}),
	)
	require.NoError(t, err)
	require.NoError(t, eng.Register(
		dispatch.Command{Name: "load"},
		dispatch.Command{Name: "analyze", Confirm: "Sure? (y/n)"},
	))

	eng.Dispatch(context.Background(), "load")
	out := eng.Dispatch(context.Background(), "analyze")
	assert.True(t, out.Cancelled)
	assert.Equal(t, "loaded", eng.Machine().CurrentName())
	assert.Equal(t, []string{"loaded"}, seen, "cancelled commands are not visualized")
}

func TestEngine_SubmitPostsEvent(t *testing.T) {
	events := make(chan domain.CallEvent, 1)
	eng, err := agentflow.New(newMachine(t),
		agentflow.WithSink(callmgr.ChanSink(events)),
		agentflow.WithMaxWorkers(1),
		agentflow.WithCallTimeout(time.Second),
	)
	require.NoError(t, err)

	id, err := eng.Submit(context.Background(), domain.Task{
		InputID: "a1",
		Fn: func(ctx context.Context, req domain.CallRequest) (string, error) {
			return strings.ToUpper(req.PrePrompt), nil
		},
		PrePrompt: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", id)

	select {
	case ev := <-events:
		assert.Equal(t, domain.EventCallComplete, ev.Type)
		assert.Equal(t, "HELLO", ev.Result)
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, eng.Shutdown(ctx))

	_, err = eng.Submit(context.Background(), domain.Task{Fn: func(context.Context, domain.CallRequest) (string, error) {
		return "", nil
	}})
	assert.ErrorIs(t, err, domain.ErrManagerClosed)
}

func TestEngine_SubmitWithoutSink(t *testing.T) {
	eng, err := agentflow.New(newMachine(t))
	require.NoError(t, err)

	_, err = eng.Submit(context.Background(), domain.Task{Fn: func(context.Context, domain.CallRequest) (string, error) {
		return "", errors.New("unused")
	}})
	assert.ErrorIs(t, err, domain.ErrNoSink)
}

func TestEngine_HooksAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.MustNewMetrics(reg)

	var transitions []string
	eng, err := agentflow.New(newMachine(t),
		agentflow.WithMetrics(metrics),
		agentflow.WithHooks(domain.LifecycleHooks{
			OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
				transitions = append(transitions, e.From+"->"+e.To)
			},
		}),
	)
	require.NoError(t, err)

	eng.Dispatch(context.Background(), "load")
	eng.Dispatch(context.Background(), "nope")

	assert.Equal(t, []string{"initial->loaded"}, transitions)

	count, err := testutil.GatherAndCount(reg, "agentflow_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per command/outcome pair")

	count, err = testutil.GatherAndCount(reg, "agentflow_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, strings.TrimSpace(agentflow.Version))
}
