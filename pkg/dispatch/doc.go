/*
Package dispatch maps typed command lines onto registered handlers,
gated by the actions a state machine currently allows.

A line is split into a command token and a free-text argument. The command
runs only when the current state offers a transition with the same name
(or when the command is registered as Always). After a successful handler
the machine follows that transition, unless the handler returned
ErrCancelTransition.

Interceptors run before handlers (ConfirmationInterceptor asks the user),
and an optional Visualizer observes the machine after every non-cancelled
command.
*/
package dispatch
