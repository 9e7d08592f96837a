package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateCommand is returned when a command name is registered twice.
var ErrDuplicateCommand = errors.New("duplicate command")

// HandlerFunc executes a command. args is the raw text after the command token.
// The returned string is shown to the user and recorded in the session history.
type HandlerFunc func(ctx context.Context, args string) (string, error)

// Command describes a registered command.
type Command struct {
	Name    string
	Help    string
	Handler HandlerFunc

	// Confirm, when set, is the prompt shown by ConfirmationInterceptor.
	Confirm string
	// Hidden keeps the command out of help listings.
	Hidden bool
	// Always bypasses the state gate. Always commands never transition.
	Always bool
}

// Registry holds the static command table.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register adds a command. Names must be unique.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return errors.New("command name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// MustRegister is like Register but panics on error. Meant for startup wiring.
func (r *Registry) MustRegister(cmds ...Command) {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the named command.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Commands returns every command sorted by name.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
