package fsm

import (
	"errors"
	"fmt"
)

// Builder collects states and transitions and compiles them into a Machine.
// Errors are deferred until Build so that chains stay fluent.
type Builder struct {
	initial string
	states  map[string]*StateBuilder
	order   []string
	resets  []resetRule
}

type resetRule struct {
	action string
	target string
	opts   []TransitionOption
}

type pendingTransition struct {
	action string
	target string
	opts   []TransitionOption
}

// StateBuilder provides a fluent API for configuring one state.
type StateBuilder struct {
	name        string
	transitions []pendingTransition
	builder     *Builder
}

// NewBuilder starts a graph whose initial state is named initial.
func NewBuilder(initial string) *Builder {
	b := &Builder{
		initial: initial,
		states:  make(map[string]*StateBuilder),
	}
	b.Add(initial)
	return b
}

// Add declares a state. Adding an existing name returns its builder.
func (b *Builder) Add(name string) *StateBuilder {
	if sb, ok := b.states[name]; ok {
		return sb
	}
	sb := &StateBuilder{name: name, builder: b}
	b.states[name] = sb
	b.order = append(b.order, name)
	return sb
}

// ResetTo adds action -> target on every state other than target
// that does not already define action.
func (b *Builder) ResetTo(action, target string, opts ...TransitionOption) *Builder {
	b.resets = append(b.resets, resetRule{action: action, target: target, opts: opts})
	return b
}

// On adds a transition from this state.
func (sb *StateBuilder) On(action, target string, opts ...TransitionOption) *StateBuilder {
	sb.transitions = append(sb.transitions, pendingTransition{action: action, target: target, opts: opts})
	return sb
}

// Stay adds self-loop transitions for each action.
func (sb *StateBuilder) Stay(actions ...string) *StateBuilder {
	for _, a := range actions {
		sb.On(a, sb.name)
	}
	return sb
}

// Add declares another state, allowing chains across states.
func (sb *StateBuilder) Add(name string) *StateBuilder {
	return sb.builder.Add(name)
}

// Builder returns the owning graph builder.
func (sb *StateBuilder) Builder() *Builder {
	return sb.builder
}

// Build compiles the graph. Every problem found is reported, joined.
func (b *Builder) Build(opts ...Option) (*Machine, error) {
	states := make(map[string]*State, len(b.order))
	for _, name := range b.order {
		states[name] = NewState(name)
	}

	var errs []error
	for _, name := range b.order {
		sb := b.states[name]
		for _, t := range sb.transitions {
			target, ok := states[t.target]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %q (target of %q from %q)", ErrUnknownState, t.target, t.action, name))
				continue
			}
			if err := states[name].AddTransition(t.action, target, t.opts...); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, r := range b.resets {
		target, ok := states[r.target]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q (reset target of %q)", ErrUnknownState, r.target, r.action))
			continue
		}
		for _, name := range b.order {
			s := states[name]
			if name == r.target {
				continue
			}
			if _, exists := s.Target(r.action); exists {
				continue
			}
			if err := s.AddTransition(r.action, target, r.opts...); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	m := New(states[b.initial], opts...)
	for _, name := range b.order[1:] {
		if err := m.AddState(states[name]); err != nil {
			return nil, err
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
