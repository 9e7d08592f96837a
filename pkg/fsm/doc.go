/*
Package fsm implements the small finite state machine that gates commands.

A Machine is a set of named States joined by string-keyed transitions. The
whole algorithm is a lookup in the current state's transition table:

	m, err := fsm.NewBuilder("initial").
		State("loaded").
		On("initial", "load", "loaded").
		ResetTo("reset", "initial").
		Build()

	m.Transition("load")    // true, current is "loaded"
	m.AvailableCommands()   // ["reset"]

Transitions may be marked hidden: they stay reachable through Transition but
are left out of VisibleCommands and OrderedActions, which feed menus.

Topologies can also be described as data (YAML or JSON) through Definition.
*/
package fsm
