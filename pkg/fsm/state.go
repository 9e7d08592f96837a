package fsm

import (
	"fmt"
	"slices"
)

// State is a named node of the machine with its outgoing transitions.
type State struct {
	Name string

	transitions map[string]*State
	order       []string
	hidden      map[string]bool
}

// TransitionOption configures a single transition.
type TransitionOption func(*transitionConfig)

type transitionConfig struct {
	hidden bool
}

// Hidden keeps the transition out of VisibleActions.
func Hidden() TransitionOption {
	return func(c *transitionConfig) {
		c.hidden = true
	}
}

// NewState creates a state without transitions.
func NewState(name string) *State {
	return &State{
		Name:        name,
		transitions: make(map[string]*State),
		hidden:      make(map[string]bool),
	}
}

// AddTransition registers action as a transition to target.
// Registering the same action twice returns ErrDuplicateTransition.
func (s *State) AddTransition(action string, target *State, opts ...TransitionOption) error {
	if action == "" {
		return fmt.Errorf("%w: empty action on state %q", ErrInvalidDefinition, s.Name)
	}
	if target == nil {
		return fmt.Errorf("%w: action %q on state %q has no target", ErrInvalidDefinition, action, s.Name)
	}
	if _, exists := s.transitions[action]; exists {
		return fmt.Errorf("%w: %q on state %q", ErrDuplicateTransition, action, s.Name)
	}

	var cfg transitionConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.transitions[action] = target
	s.order = append(s.order, action)
	if cfg.hidden {
		s.hidden[action] = true
	}
	return nil
}

// Target returns the state reached through action.
func (s *State) Target(action string) (*State, bool) {
	t, ok := s.transitions[action]
	return t, ok
}

// Actions returns every action in registration order.
func (s *State) Actions() []string {
	return slices.Clone(s.order)
}

// VisibleActions returns the actions not marked hidden, in registration order.
func (s *State) VisibleActions() []string {
	out := make([]string, 0, len(s.order))
	for _, a := range s.order {
		if !s.hidden[a] {
			out = append(out, a)
		}
	}
	return out
}

// IsHidden reports whether action was registered with Hidden.
func (s *State) IsHidden(action string) bool {
	return s.hidden[action]
}

func (s *State) String() string {
	return s.Name
}
