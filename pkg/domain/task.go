package domain

import "context"

// CallRequest is what a CallFunc receives when a worker picks up its Task.
type CallRequest struct {
	InputID    string
	Args       []any
	PrePrompt  string
	PostPrompt string
}

// CallFunc is the blocking unit of work behind a Task (typically an LLM call).
// A returned error is converted into a call_error event.
type CallFunc func(ctx context.Context, req CallRequest) (string, error)

// Task is a queued call. It ends with exactly one CallEvent.
type Task struct {
	InputID    string
	Fn         CallFunc
	Args       []any
	PrePrompt  string
	PostPrompt string
}

// Request builds the CallRequest handed to Fn.
func (t Task) Request() CallRequest {
	return CallRequest{
		InputID:    t.InputID,
		Args:       t.Args,
		PrePrompt:  t.PrePrompt,
		PostPrompt: t.PostPrompt,
	}
}
