package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/fsm"
)

var (
	// ErrCancelTransition is returned by a handler to keep the machine in place.
	ErrCancelTransition = errors.New("transition cancelled")
	// ErrExit is returned by a handler to end the read loop.
	ErrExit = errors.New("exit requested")
	// ErrUnknownCommand is reported for tokens that are neither commands nor actions.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNotAvailable is reported for commands the current state does not allow.
	ErrNotAvailable = errors.New("command not available")
	// ErrEmptyInput is reported for blank lines.
	ErrEmptyInput = errors.New("empty input")
)

// StateMachine is what the dispatcher needs from a machine.
type StateMachine interface {
	CurrentName() string
	IsAvailable(action string) bool
	IsTransition(action string) bool
	Transition(action string) bool
	Snapshot() fsm.Snapshot
}

// Visualizer observes the machine after each non-cancelled command.
type Visualizer func(ctx context.Context, snap fsm.Snapshot)

// Outcome describes what happened to one input line.
type Outcome struct {
	Command      string
	Args         string
	Output       string
	From         string
	To           string
	Transitioned bool
	Cancelled    bool
	Exit         bool
	Err          error
}

// Status condenses the outcome into one of the domain.Outcome* labels.
func (o Outcome) Status() string {
	switch {
	case o.Exit:
		return domain.OutcomeExit
	case errors.Is(o.Err, ErrUnknownCommand):
		return domain.OutcomeUnknown
	case errors.Is(o.Err, ErrNotAvailable):
		return domain.OutcomeUnavailable
	case o.Err != nil:
		return domain.OutcomeFailed
	case o.Cancelled:
		return domain.OutcomeCancelled
	default:
		return domain.OutcomeOK
	}
}

// Dispatcher resolves input lines against a Registry and a StateMachine.
type Dispatcher struct {
	machine     StateMachine
	registry    *Registry
	interceptor Interceptor
	visualizer  Visualizer
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithInterceptor sets the pre-handler policy (confirmation, approval).
func WithInterceptor(i Interceptor) Option {
	return func(d *Dispatcher) {
		d.interceptor = i
	}
}

// WithVisualizer sets the post-command visualization hook.
func WithVisualizer(v Visualizer) Option {
	return func(d *Dispatcher) {
		d.visualizer = v
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = hooks
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a dispatcher. Without WithInterceptor every command is approved.
func New(machine StateMachine, registry *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		machine:     machine,
		registry:    registry,
		interceptor: AutoApprove(),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Split separates the command token from the rest of the line.
func Split(line string) (string, string) {
	line = strings.TrimSpace(line)
	idx := strings.IndexFunc(line, unicode.IsSpace)
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx:])
}

// Dispatch runs one input line. Failures are reported in Outcome.Err and
// never leave the machine in a different state.
func (d *Dispatcher) Dispatch(ctx context.Context, line string) Outcome {
	name, args := Split(line)
	out := Outcome{Command: name, Args: args, From: d.machine.CurrentName()}
	out.To = out.From

	if name == "" {
		out.Err = ErrEmptyInput
		return out
	}

	cmd, registered := d.registry.Lookup(name)
	always := registered && cmd.Always

	if !always && !d.machine.IsAvailable(name) {
		if registered || d.machine.IsTransition(name) {
			out.Err = fmt.Errorf("%w: '%s' in state '%s'", ErrNotAvailable, name, out.From)
		} else {
			out.Err = fmt.Errorf("%w: '%s'", ErrUnknownCommand, name)
		}
		d.finish(ctx, &out)
		return out
	}

	if registered {
		allowed, err := d.interceptor(ctx, cmd, args)
		if err != nil {
			out.Err = fmt.Errorf("confirmation failed: %w", err)
			d.finish(ctx, &out)
			return out
		}
		if !allowed {
			out.Cancelled = true
			d.finish(ctx, &out)
			return out
		}

		if cmd.Handler != nil {
			output, err := d.invoke(ctx, cmd, args)
			out.Output = output
			switch {
			case err == nil:
			case errors.Is(err, ErrCancelTransition):
				out.Cancelled = true
			case errors.Is(err, ErrExit):
				out.Exit = true
			default:
				out.Err = err
			}
		}
	}

	if out.Err == nil && !out.Cancelled && !always {
		if d.machine.Transition(name) {
			out.Transitioned = true
			out.To = d.machine.CurrentName()
			if d.hooks.OnTransition != nil {
				d.hooks.OnTransition(ctx, &domain.TransitionEvent{
					EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventTransition},
					Machine:   d.machine.Snapshot().Machine,
					Action:    name,
					From:      out.From,
					To:        out.To,
				})
			}
		}
	}

	if !out.Cancelled && d.visualizer != nil {
		d.visualizer(ctx, d.machine.Snapshot())
	}

	d.finish(ctx, &out)
	return out
}

// invoke runs the handler, turning a panic into an ordinary failure.
func (d *Dispatcher) invoke(ctx context.Context, cmd Command, args string) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command handler panicked", "command", cmd.Name, "panic", r)
			output = ""
			err = fmt.Errorf("command '%s' failed: %v", cmd.Name, r)
		}
	}()
	return cmd.Handler(ctx, args)
}

func (d *Dispatcher) finish(ctx context.Context, out *Outcome) {
	status := out.Status()
	d.logger.Debug("command dispatched",
		"command", out.Command,
		"from", out.From,
		"to", out.To,
		"outcome", status,
		"error", out.Err,
	)
	if d.hooks.OnCommand != nil {
		d.hooks.OnCommand(ctx, &domain.CommandEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCommand},
			Command:   out.Command,
			State:     out.From,
			Outcome:   status,
		})
	}
}

// Available lists the commands usable right now: registered commands
// for the visible actions of the current state, then Always commands.
// Hidden commands are skipped.
func (d *Dispatcher) Available() []Command {
	var out []Command
	seen := make(map[string]bool)
	for _, action := range d.machine.Snapshot().Visible {
		cmd, ok := d.registry.Lookup(action)
		if !ok {
			cmd = Command{Name: action}
		}
		if cmd.Hidden {
			continue
		}
		seen[action] = true
		out = append(out, cmd)
	}
	for _, cmd := range d.registry.Commands() {
		if cmd.Always && !cmd.Hidden && !seen[cmd.Name] {
			out = append(out, cmd)
		}
	}
	return out
}

// Help renders the Available commands as "name - help" lines.
func (d *Dispatcher) Help() string {
	var sb strings.Builder
	for _, cmd := range d.Available() {
		if cmd.Help == "" {
			fmt.Fprintf(&sb, "  %s\n", cmd.Name)
			continue
		}
		fmt.Fprintf(&sb, "  %-22s %s\n", cmd.Name, cmd.Help)
	}
	return sb.String()
}

// Machine returns the gated machine.
func (d *Dispatcher) Machine() StateMachine {
	return d.machine
}

// Registry returns the command table.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}
