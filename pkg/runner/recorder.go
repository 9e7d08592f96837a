package runner

import (
	"context"
	"log/slog"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/session"
)

// StateKey is the screen data key holding the machine's current state.
const StateKey = "state"

// Restorer is a machine that can be put back into a saved state.
type Restorer interface {
	Restore(state string) error
}

// SessionRecorder keeps one screen of a session in step with the runner:
// every line lands in the screen's command history and every transition
// updates the saved state.
type SessionRecorder struct {
	storage *session.Storage
	screen  string
	logger  *slog.Logger
}

// NewSessionRecorder binds a recorder to a screen of an open session.
// A nil storage records nothing.
func NewSessionRecorder(storage *session.Storage, screen string, logger *slog.Logger) *SessionRecorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SessionRecorder{storage: storage, screen: screen, logger: logger}
}

// Resume restores the machine to the state saved for the screen.
// It reports whether a saved state was found.
func (s *SessionRecorder) Resume(m Restorer) (string, bool, error) {
	if s.storage == nil {
		return "", false, nil
	}
	state, ok := s.storage.GetData(StateKey, s.screen).(string)
	if !ok || state == "" {
		return "", false, nil
	}
	if err := m.Restore(state); err != nil {
		return "", false, err
	}
	return state, true, nil
}

// Record is a Recorder. Persistence failures are logged, never surfaced to
// the loop.
func (s *SessionRecorder) Record(ctx context.Context, line string, out dispatch.Outcome) {
	if s.storage == nil {
		return
	}

	if err := s.storage.AddCommandResult(ctx, line, resultOf(out), s.screen); err != nil {
		s.logger.Error("failed to record command", "session", s.storage.Name(), "error", err)
	}

	if out.Transitioned {
		if err := s.storage.UpdateData(ctx, StateKey, out.To, s.screen); err != nil {
			s.logger.Error("failed to save state", "session", s.storage.Name(), "error", err)
		}
	}
}

func resultOf(out dispatch.Outcome) string {
	switch {
	case out.Err != nil:
		return "Error: " + out.Err.Error()
	case out.Output != "":
		return out.Output
	default:
		return out.Status()
	}
}
