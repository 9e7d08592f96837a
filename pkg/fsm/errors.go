package fsm

import "errors"

var (
	// ErrDuplicateState is returned when a state name is registered twice.
	ErrDuplicateState = errors.New("duplicate state")
	// ErrDuplicateTransition is returned when an action is registered twice on a state.
	ErrDuplicateTransition = errors.New("duplicate transition")
	// ErrUnknownState is returned when a name does not belong to the machine.
	ErrUnknownState = errors.New("unknown state")
	// ErrInvalidDefinition is returned when a definition cannot be turned into a machine.
	ErrInvalidDefinition = errors.New("invalid machine definition")
)
