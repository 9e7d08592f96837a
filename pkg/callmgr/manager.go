package callmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/observability"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxWorkers is the worker pool size when none is configured.
const DefaultMaxWorkers = 5

// ErrNoFunc is returned when a task is submitted without a function.
var ErrNoFunc = errors.New("task has no function")

type queued struct {
	ctx  context.Context
	task domain.Task
}

// Manager queues tasks and runs them on a bounded pool of goroutines.
type Manager struct {
	sink        ports.EventSink
	maxWorkers  int
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
	hooks       domain.LifecycleHooks

	queue    *queue[queued]
	done     chan struct{}
	inFlight atomic.Int64
}

// Option configures the Manager.
type Option func(*Manager)

// WithMaxWorkers caps the number of concurrently running tasks.
func WithMaxWorkers(n int) Option {
	return func(m *Manager) {
		m.maxWorkers = n
	}
}

// WithCallTimeout bounds each task's run time. Zero means no deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.callTimeout = d
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics records queue and call metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithHooks registers OnCallSubmit and OnCallReturn callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// New creates a Manager that posts events to sink and starts its consumer.
// A nil sink makes every Submit fail with domain.ErrNoSink.
func New(sink ports.EventSink, opts ...Option) *Manager {
	m := &Manager{
		sink:       sink,
		maxWorkers: DefaultMaxWorkers,
		logger:     logging.NewNop(),
		queue:      newQueue[queued](),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxWorkers < 1 {
		m.maxWorkers = DefaultMaxWorkers
	}

	go m.consume()
	return m
}

// Submit enqueues task and returns its InputID (generated when empty).
// It never waits for execution. Cancelling ctx later does not cancel the
// task; ctx only contributes its values.
func (m *Manager) Submit(ctx context.Context, task domain.Task) (string, error) {
	if m.sink == nil {
		return "", domain.ErrNoSink
	}
	if task.Fn == nil {
		return "", ErrNoFunc
	}
	if task.InputID == "" {
		task.InputID = uuid.NewString()
	}

	if !m.queue.push(queued{ctx: context.WithoutCancel(ctx), task: task}) {
		return "", domain.ErrManagerClosed
	}

	m.metrics.CallSubmitted()
	m.metrics.SetQueueDepth(m.queue.len())
	if m.hooks.OnCallSubmit != nil {
		m.hooks.OnCallSubmit(ctx, &task)
	}
	m.logger.Debug("call queued", "input_id", task.InputID)
	return task.InputID, nil
}

// Pending returns the number of tasks waiting in the queue.
func (m *Manager) Pending() int {
	return m.queue.len()
}

// Running returns the number of tasks currently executing.
func (m *Manager) Running() int {
	return int(m.inFlight.Load())
}

// Shutdown stops accepting tasks and waits until every queued and running
// task has posted its event. Running tasks are never interrupted; if ctx ends
// first Shutdown returns ctx.Err() while the work carries on.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.queue.close()
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the manager has shut down and drained.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) consume() {
	defer close(m.done)

	var g errgroup.Group
	g.SetLimit(m.maxWorkers)

	for {
		item, ok := m.queue.pop()
		if !ok {
			break
		}
		m.metrics.SetQueueDepth(m.queue.len())
		// Blocks while the pool is full; the rest stays queued.
		g.Go(func() error {
			m.execute(item.ctx, item.task)
			return nil
		})
	}

	_ = g.Wait()
	m.logger.Debug("call manager drained")
}

func (m *Manager) execute(ctx context.Context, task domain.Task) {
	m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	m.metrics.CallStarted()
	start := time.Now()

	callCtx := ctx
	if m.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.callTimeout)
		defer cancel()
	}

	result, err := m.call(callCtx, task)

	event := domain.CallEvent{
		EventBase: domain.EventBase{Timestamp: time.Now()},
		InputID:   task.InputID,
		Duration:  time.Since(start),
	}
	if err != nil {
		event.Type = domain.EventCallError
		event.Error = err.Error()
		m.logger.Warn("call failed", "input_id", task.InputID, "error", err)
	} else {
		event.Type = domain.EventCallComplete
		event.Result = result
		event.Metadata = &domain.CallMetadata{
			PrePrompt:  task.PrePrompt,
			PostPrompt: task.PostPrompt,
			Args:       task.Args,
		}
		m.logger.Debug("call complete", "input_id", task.InputID, "duration", event.Duration)
	}

	m.metrics.CallFinished(string(event.Type), event.Duration)
	if m.hooks.OnCallReturn != nil {
		m.hooks.OnCallReturn(ctx, &event)
	}

	if err := m.sink.Post(ctx, event); err != nil {
		m.logger.Error("failed to post call event", "input_id", task.InputID, "error", err)
	}
}

// call runs the task function, converting a panic into an error.
func (m *Manager) call(ctx context.Context, task domain.Task) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = fmt.Errorf("call panicked: %v", r)
		}
	}()
	return task.Fn(ctx, task.Request())
}
