package fsm

import (
	"fmt"
	"slices"
	"sync"
)

// Machine tracks the current state of a graph of States.
// States must not gain transitions once the machine is in use.
type Machine struct {
	name string

	mu      sync.RWMutex
	initial *State
	current *State
	states  map[string]*State
	order   []string
}

// Option configures a Machine.
type Option func(*Machine)

// WithName labels the machine (used in logs, metrics and exports).
func WithName(name string) Option {
	return func(m *Machine) {
		m.name = name
	}
}

// New creates a machine positioned at initial, which is registered as its first state.
func New(initial *State, opts ...Option) *Machine {
	m := &Machine{
		initial: initial,
		current: initial,
		states:  map[string]*State{initial.Name: initial},
		order:   []string{initial.Name},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the machine label.
func (m *Machine) Name() string {
	return m.name
}

// AddState registers s. A name already present returns ErrDuplicateState.
func (m *Machine) AddState(s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[s.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateState, s.Name)
	}
	m.states[s.Name] = s
	m.order = append(m.order, s.Name)
	return nil
}

// Validate checks that every transition target is a state of this machine.
func (m *Machine) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, name := range m.order {
		s := m.states[name]
		for _, action := range s.order {
			target := s.transitions[action]
			if registered, ok := m.states[target.Name]; !ok || registered != target {
				return fmt.Errorf("%w: %q (target of %q from %q)", ErrUnknownState, target.Name, action, s.Name)
			}
		}
	}
	return nil
}

// Transition moves to the target of action and reports whether it did.
// An action unknown to the current state leaves the machine unchanged.
func (m *Machine) Transition(action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.current.transitions[action]
	if !ok {
		return false
	}
	m.current = target
	return true
}

// Current returns the current state.
func (m *Machine) Current() *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CurrentName returns the name of the current state.
func (m *Machine) CurrentName() string {
	return m.Current().Name
}

// Initial returns the initial state.
func (m *Machine) Initial() *State {
	return m.initial
}

// Reset moves back to the initial state.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

// Restore positions the machine on the named state, e.g. when resuming a session.
func (m *Machine) Restore(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownState, name)
	}
	m.current = s
	return nil
}

// AvailableCommands returns the actions of the current state in registration order.
func (m *Machine) AvailableCommands() []string {
	return m.Current().Actions()
}

// VisibleCommands returns the non-hidden actions of the current state.
func (m *Machine) VisibleCommands() []string {
	return m.Current().VisibleActions()
}

// IsAvailable reports whether action is a transition of the current state.
func (m *Machine) IsAvailable(action string) bool {
	_, ok := m.Current().Target(action)
	return ok
}

// IsTransition reports whether action is a transition key of any state.
func (m *Machine) IsTransition(action string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.states {
		if _, ok := s.transitions[action]; ok {
			return true
		}
	}
	return false
}

// Lookup returns the named state.
func (m *Machine) Lookup(name string) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[name]
	return s, ok
}

// States returns all states in registration order.
func (m *Machine) States() []*State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*State, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.states[name])
	}
	return out
}

// OrderedActions walks the graph breadth-first from the initial state and
// returns each visible action once, in discovery order.
func (m *Machine) OrderedActions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var actions []string
	seenAction := make(map[string]bool)
	seenState := map[string]bool{m.initial.Name: true}
	queue := []*State{m.initial}

	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]

		for _, action := range s.order {
			target := s.transitions[action]
			if !s.hidden[action] && !seenAction[action] {
				seenAction[action] = true
				actions = append(actions, action)
			}
			if !seenState[target.Name] {
				seenState[target.Name] = true
				queue = append(queue, target)
			}
		}
	}
	return actions
}

// Snapshot is a read-only view of the machine position.
type Snapshot struct {
	Machine   string   `json:"machine,omitempty"`
	State     string   `json:"state"`
	Available []string `json:"available"`
	Visible   []string `json:"visible"`
}

// Snapshot captures the current state and its commands.
func (m *Machine) Snapshot() Snapshot {
	cur := m.Current()
	return Snapshot{
		Machine:   m.name,
		State:     cur.Name,
		Available: cur.Actions(),
		Visible:   cur.VisibleActions(),
	}
}

// Edge is a single transition, used by exporters.
type Edge struct {
	From   string
	Action string
	To     string
	Hidden bool
}

// Edges lists every transition in state then action registration order.
func (m *Machine) Edges() []Edge {
	var edges []Edge
	for _, s := range m.States() {
		for _, action := range s.order {
			edges = append(edges, Edge{
				From:   s.Name,
				Action: action,
				To:     s.transitions[action].Name,
				Hidden: s.hidden[action],
			})
		}
	}
	return edges
}

// StateNames returns the state names in registration order.
func (m *Machine) StateNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}
