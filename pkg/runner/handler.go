package runner

import (
	"context"

	"github.com/aretw0/agentflow/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
// Output, SystemOutput and Event may be called from different goroutines.
type IOHandler interface {
	// Output presents command output (content) to the user.
	Output(ctx context.Context, text string) error

	// SystemOutput presents a meta-message (errors, confirmations, status).
	SystemOutput(ctx context.Context, msg string) error

	// Event presents the rendered result of an asynchronous call.
	Event(ctx context.Context, event domain.CallEvent, text string) error

	// Input reads one line from the user.
	Input(ctx context.Context) (string, error)
}

// ContentRenderer transforms content before it is written, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)
