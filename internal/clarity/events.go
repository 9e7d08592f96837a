package clarity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/agentflow/pkg/domain"
)

// ErrCallFailed wraps call errors reported through HandleEvent.
var ErrCallFailed = errors.New("call failed")

// HandleEvent renders a call event for the user. An analysis result becomes
// the current analysis; a feedback result is kept per aspect under
// FeedbackKey. It is meant to be passed to runner.WithEvents.
func (a *App) HandleEvent(ctx context.Context, event domain.CallEvent) (string, error) {
	a.mu.Lock()
	j, known := a.pending[event.InputID]
	delete(a.pending, event.InputID)
	a.mu.Unlock()

	if event.Failed() {
		return "", fmt.Errorf("%w: %s", ErrCallFailed, event.Error)
	}
	// Providers may report failures in-band.
	if strings.HasPrefix(event.Result, "Error:") {
		return "", fmt.Errorf("%w: %s", ErrCallFailed, strings.TrimSpace(strings.TrimPrefix(event.Result, "Error:")))
	}
	if !known {
		a.logger.Debug("event for unknown request", "input_id", event.InputID)
		return event.Result, nil
	}

	if j.kind == jobFeedback {
		a.mu.Lock()
		a.lastFeedback[j.aspect] = event.Result
		a.mu.Unlock()
		a.save(ctx, FeedbackKey(j.aspect), event.Result)
		return fmt.Sprintf("Feedback on %s:\n%s", j.aspect, event.Result), nil
	}

	a.mu.Lock()
	a.analysis = event.Result
	a.mu.Unlock()
	a.save(ctx, KeyAnalysis, event.Result)
	return "Analysis:\n" + event.Result, nil
}

// Pending returns the number of submitted calls whose event has not been handled.
func (a *App) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// FeedbackKey is the screen data key holding the last feedback on aspect.
func FeedbackKey(aspect string) string {
	return "last_feedback_" + strings.Join(strings.Fields(strings.ToLower(aspect)), "_")
}

// Feedback returns the last feedback received on aspect, or "".
func (a *App) Feedback(aspect string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastFeedback[aspect]
}
