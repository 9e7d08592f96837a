/*
Package runner implements the interactive read-dispatch loop.

It is the bridge between a dispatch.Dispatcher and the outside world: lines
are read through a pluggable IOHandler (text or JSON lines), sanitized,
dispatched, and their outcomes rendered. Asynchronous call events arrive on a
channel and are rendered from a separate goroutine, so a long-running call
never blocks the prompt.

# Usage

	events := make(callmgr.ChanSink, 16)
	r := runner.New(
		runner.WithDispatcher(d),
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithEvents(events, handleEvent),
	)

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
