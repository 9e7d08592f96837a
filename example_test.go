package agentflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/agentflow"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/fsm"
)

// ExampleNew builds a two-state machine, registers a handler for its only
// action and dispatches a few lines.
func ExampleNew() {
	m, err := fsm.NewBuilder("initial").
		Add("initial").On("load_agent", "agent_loaded").
		Add("agent_loaded").Stay("load_agent").
		Builder().
		ResetTo("reset", "initial").
		Build()
	if err != nil {
		log.Fatal(err)
	}

	eng, err := agentflow.New(m)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Shutdown(context.Background())

	eng.Register(dispatch.Command{
		Name: "load_agent",
		Handler: func(ctx context.Context, args string) (string, error) {
			return "Loaded " + args, nil
		},
	})

	ctx := context.Background()
	for _, line := range []string{"analyze", "load_agent reviewer", "reset"} {
		out := eng.Dispatch(ctx, line)
		fmt.Printf("%s: %s -> %s (%s)\n", out.Command, out.From, out.To, out.Status())
	}
	// Output:
	// analyze: initial -> initial (unknown)
	// load_agent: initial -> agent_loaded (ok)
	// reset: agent_loaded -> initial (ok)
}
