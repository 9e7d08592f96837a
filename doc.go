/*
Package agentflow is a small runtime for interactive, state-gated agent tools.

An application declares a finite state machine of named states and actions,
registers command handlers for those actions and lets the Engine decide, for
each input line, whether the command is allowed in the current state. Slow
work such as LLM calls is handed to an async call manager which runs it on a
bounded worker pool and posts exactly one event per call back to the host.

# Concept

The machine only knows states and transitions. Commands know how to do
things. The dispatcher sits in between: it gates commands by state, runs an
optional confirmation step, invokes the handler and then transitions, unless
the handler cancelled. Sessions are plain JSON documents that any
ports.SessionStore can persist.

# Usage

	m, err := fsm.NewBuilder("initial").
		Add("initial").On("load", "loaded").
		Add("loaded").Stay("load").
		Builder().
		ResetTo("reset", "initial").
		Build(fsm.WithName("demo"))
	if err != nil {
		log.Fatal(err)
	}

	events := make(chan domain.CallEvent, 16)
	eng, err := agentflow.New(m, agentflow.WithSink(callmgr.ChanSink(events)))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Shutdown(context.Background())

	eng.Register(dispatch.Command{Name: "load", Handler: loadAgent})
	out := eng.Dispatch(ctx, "load reviewer")
*/
package agentflow
