package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/domain"
)

// ErrNoDispatcher is returned by Run when WithDispatcher was not given.
var ErrNoDispatcher = errors.New("runner has no dispatcher")

// EventHandler turns a call event into the text shown to the user. It may
// also update application state (store an analysis, say). A returned error
// is shown as a system message.
type EventHandler func(ctx context.Context, event domain.CallEvent) (string, error)

// Recorder observes each dispatched line and its outcome.
type Recorder func(ctx context.Context, line string, out dispatch.Outcome)

// Runner reads lines, dispatches them and renders outcomes until exit or EOF.
type Runner struct {
	handler    IOHandler
	dispatcher *dispatch.Dispatcher
	events     <-chan domain.CallEvent
	onEvent    EventHandler
	recorder   Recorder
	signals    *SignalManager
	greeting   string
	logger     *slog.Logger
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(nil, nil)
	}
	return r
}

// Handler returns the IO strategy in use.
func (r *Runner) Handler() IOHandler {
	return r.handler
}

// Run executes the loop. It returns nil on exit, EOF or interrupt, and an
// error only when IO fails.
func (r *Runner) Run(ctx context.Context) error {
	if r.dispatcher == nil {
		return ErrNoDispatcher
	}

	loopCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if r.events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.drain(loopCtx)
		}()
	}
	defer func() {
		stop()
		wg.Wait()
	}()

	if r.greeting != "" {
		if err := r.handler.SystemOutput(ctx, r.greeting); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}

	for {
		line, err := r.handler.Input(loopCtx)
		if err != nil {
			if r.signals != nil {
				r.signals.CheckRace()
				if r.signals.Interrupted() {
					r.logger.Debug("runner interrupted")
					return nil
				}
			}
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		if line == "" {
			continue
		}

		out := r.dispatcher.Dispatch(loopCtx, line)
		if err := r.render(loopCtx, out); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		if r.recorder != nil {
			r.recorder(loopCtx, line, out)
		}
		if out.Exit {
			return nil
		}
	}
}

// render writes an outcome: content through Output, problems through SystemOutput.
func (r *Runner) render(ctx context.Context, out dispatch.Outcome) error {
	if out.Output != "" {
		write := r.handler.Output
		if out.Cancelled || out.Err != nil {
			write = r.handler.SystemOutput
		}
		if err := write(ctx, out.Output); err != nil {
			return err
		}
	}

	switch {
	case errors.Is(out.Err, dispatch.ErrUnknownCommand):
		return r.handler.SystemOutput(ctx, fmt.Sprintf("Unknown command: %s\nType 'help' to list available commands.", out.Command))
	case errors.Is(out.Err, dispatch.ErrNotAvailable):
		return r.handler.SystemOutput(ctx, fmt.Sprintf("Command '%s' is not available in state '%s'.", out.Command, out.From))
	case out.Err != nil:
		return r.handler.SystemOutput(ctx, "Error: "+out.Err.Error())
	case out.Cancelled && out.Output == "":
		return r.handler.SystemOutput(ctx, "Cancelled.")
	}
	return nil
}

func (r *Runner) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-r.events:
			if !ok {
				return
			}
			r.deliver(ctx, event)
		}
	}
}

func (r *Runner) deliver(ctx context.Context, event domain.CallEvent) {
	text := event.Result
	if event.Failed() {
		text = event.Error
	}
	if r.onEvent != nil {
		rendered, err := r.onEvent(ctx, event)
		if err != nil {
			r.logger.Warn("event handler failed", "input_id", event.InputID, "error", err)
			_ = r.handler.SystemOutput(ctx, "Error: "+err.Error())
			return
		}
		text = rendered
	}
	if text == "" {
		return
	}
	if err := r.handler.Event(ctx, event, text); err != nil {
		r.logger.Error("failed to write event", "input_id", event.InputID, "error", err)
	}
}
