package runner

import (
	"log/slog"

	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/domain"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithDispatcher sets the dispatcher every line is sent to. Required.
func WithDispatcher(d *dispatch.Dispatcher) Option {
	return func(r *Runner) {
		r.dispatcher = d
	}
}

// WithHandler configures the IO strategy. Defaults to a TextHandler on stdio.
func WithHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.handler = handler
	}
}

// WithEvents drains events while Run is active, rendering each through fn.
// A nil fn renders the raw result or error.
func WithEvents(events <-chan domain.CallEvent, fn EventHandler) Option {
	return func(r *Runner) {
		r.events = events
		r.onEvent = fn
	}
}

// WithRecorder is called after every dispatched line, e.g. to persist history.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithSignals lets Run tell a Ctrl+C apart from a plain input error.
func WithSignals(sm *SignalManager) Option {
	return func(r *Runner) {
		r.signals = sm
	}
}

// WithGreeting is written once before the first prompt.
func WithGreeting(text string) Option {
	return func(r *Runner) {
		r.greeting = text
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}
