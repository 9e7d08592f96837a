package llm

import (
	"context"
	"fmt"
)

// Echo is an offline completer that answers with a digest of its input.
// It backs the "echo" provider used for demos and tests.
type Echo struct {
	model string
}

// NewEcho returns an Echo completer.
func NewEcho(model string) *Echo {
	return &Echo{model: model}
}

// Complete returns a deterministic reply without any network access.
func (e *Echo) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] received %d characters of prompt (system: %d characters)",
		e.model, len(prompt), len(system)), nil
}
