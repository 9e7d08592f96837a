package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventCallComplete EventType = "call_complete"
	EventCallError    EventType = "call_error"
	EventTransition   EventType = "transition"
	EventCommand      EventType = "command"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// CallMetadata echoes the submission parameters back on completion.
type CallMetadata struct {
	PrePrompt  string `json:"pre_prompt,omitempty"`
	PostPrompt string `json:"post_prompt,omitempty"`
	Args       []any  `json:"args,omitempty"`
}

// CallEvent is posted once per Task. Type tells completion from failure.
type CallEvent struct {
	EventBase
	InputID  string        `json:"input_id"`
	Result   string        `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Metadata *CallMetadata `json:"metadata,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the event carries an error.
func (e CallEvent) Failed() bool {
	return e.Type == EventCallError
}

// TransitionEvent is emitted after the machine moves between states.
type TransitionEvent struct {
	EventBase
	Machine string `json:"machine,omitempty"`
	Action  string `json:"action"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// CommandEvent is emitted after the dispatcher resolves an input line.
type CommandEvent struct {
	EventBase
	Command string `json:"command"`
	State   string `json:"state"`
	Outcome string `json:"outcome"`
}

// Command outcomes reported in CommandEvent.Outcome.
const (
	OutcomeOK          = "ok"
	OutcomeCancelled   = "cancelled"
	OutcomeFailed      = "failed"
	OutcomeUnknown     = "unknown"
	OutcomeUnavailable = "unavailable"
	OutcomeExit        = "exit"
)

// LifecycleHooks defines callbacks for observability.
type LifecycleHooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnCommand    func(context.Context, *CommandEvent)
	OnCallSubmit func(context.Context, *Task)
	OnCallReturn func(context.Context, *CallEvent)
}
