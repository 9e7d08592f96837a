package agentflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/callmgr"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/fsm"
	"github.com/aretw0/agentflow/pkg/observability"
	"github.com/aretw0/agentflow/pkg/ports"
)

// ErrNoMachine is returned by New when the machine is nil.
var ErrNoMachine = errors.New("engine requires a state machine")

// Engine is the high-level entry point for the library. It ties a state
// machine to a command registry, a dispatcher and an async call manager.
type Engine struct {
	machine    *fsm.Machine
	registry   *dispatch.Registry
	dispatcher *dispatch.Dispatcher
	calls      *callmgr.Manager

	sink        ports.EventSink
	maxWorkers  int
	callTimeout time.Duration
	interceptor dispatch.Interceptor
	visualizer  dispatch.Visualizer
	hooks       domain.LifecycleHooks
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSink sets where call events are posted. Without it Submit fails.
func WithSink(sink ports.EventSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithMaxWorkers caps concurrent calls (default callmgr.DefaultMaxWorkers).
func WithMaxWorkers(n int) Option {
	return func(e *Engine) {
		e.maxWorkers = n
	}
}

// WithCallTimeout bounds each call. Zero means no deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.callTimeout = d
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithInterceptor sets the confirmation policy run before handlers.
func WithInterceptor(i dispatch.Interceptor) Option {
	return func(e *Engine) {
		e.interceptor = i
	}
}

// WithVisualizer is called with a snapshot after each non-cancelled command.
func WithVisualizer(v dispatch.Visualizer) Option {
	return func(e *Engine) {
		e.visualizer = v
	}
}

// WithMetrics feeds Prometheus collectors from the dispatcher and the call manager.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New builds an engine around machine, which must validate.
func New(machine *fsm.Machine, opts ...Option) (*Engine, error) {
	if machine == nil {
		return nil, ErrNoMachine
	}
	if err := machine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid machine: %w", err)
	}

	eng := &Engine{
		machine:    machine,
		registry:   dispatch.NewRegistry(),
		maxWorkers: callmgr.DefaultMaxWorkers,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if name := machine.Name(); name != "" {
		eng.logger = eng.logger.With("machine", name)
	}

	hooks := observability.Merge(observability.Hooks(eng.metrics, eng.logger), eng.hooks)

	dispatchOpts := []dispatch.Option{
		dispatch.WithHooks(hooks),
		dispatch.WithLogger(eng.logger),
	}
	if eng.interceptor != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithInterceptor(eng.interceptor))
	}
	if eng.visualizer != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithVisualizer(eng.visualizer))
	}
	eng.dispatcher = dispatch.New(machine, eng.registry, dispatchOpts...)

	eng.calls = callmgr.New(eng.sink,
		callmgr.WithMaxWorkers(eng.maxWorkers),
		callmgr.WithCallTimeout(eng.callTimeout),
		callmgr.WithHooks(hooks),
		callmgr.WithMetrics(eng.metrics),
		callmgr.WithLogger(eng.logger),
	)

	return eng, nil
}

// Register adds commands to the registry.
func (e *Engine) Register(cmds ...dispatch.Command) error {
	for _, cmd := range cmds {
		if err := e.registry.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch runs one input line against the current state.
func (e *Engine) Dispatch(ctx context.Context, line string) dispatch.Outcome {
	return e.dispatcher.Dispatch(ctx, line)
}

// Submit queues an async call and returns its input ID.
func (e *Engine) Submit(ctx context.Context, task domain.Task) (string, error) {
	return e.calls.Submit(ctx, task)
}

// Shutdown stops accepting calls and waits for queued ones to finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.calls.Shutdown(ctx)
}

// Machine returns the state machine.
func (e *Engine) Machine() *fsm.Machine {
	return e.machine
}

// Registry returns the command table.
func (e *Engine) Registry() *dispatch.Registry {
	return e.registry
}

// Dispatcher returns the dispatcher, e.g. for a runner.
func (e *Engine) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}

// Calls returns the call manager.
func (e *Engine) Calls() *callmgr.Manager {
	return e.calls
}

// Logger returns the engine logger, already tagged with the machine name.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}
