package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/agentflow/pkg/domain"
)

// Hooks returns lifecycle hooks that log each event and feed m.
// Unknown command tokens are counted under a single label to bound cardinality.
func Hooks(m *Metrics, logger *slog.Logger) domain.LifecycleHooks {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.Info("transition",
				"machine", e.Machine,
				"action", e.Action,
				"from", e.From,
				"to", e.To,
			)
			m.Transitioned(e.From, e.To)
		},
		OnCommand: func(ctx context.Context, e *domain.CommandEvent) {
			logger.Debug("command", "command", e.Command, "state", e.State, "outcome", e.Outcome)
			label := e.Command
			if e.Outcome == domain.OutcomeUnknown {
				label = "unknown"
			}
			m.CommandDispatched(label, e.Outcome)
		},
		OnCallSubmit: func(ctx context.Context, t *domain.Task) {
			logger.Info("call_submit", "input_id", t.InputID)
		},
		OnCallReturn: func(ctx context.Context, e *domain.CallEvent) {
			logger.Info("call_return",
				"input_id", e.InputID,
				"type", e.Type,
				"duration", e.Duration,
			)
		},
	}
}

// Merge combines hook sets; each callback fans out in order.
func Merge(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		h := h
		if h.OnTransition != nil {
			prev := out.OnTransition
			out.OnTransition = func(ctx context.Context, e *domain.TransitionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnTransition(ctx, e)
			}
		}
		if h.OnCommand != nil {
			prev := out.OnCommand
			out.OnCommand = func(ctx context.Context, e *domain.CommandEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnCommand(ctx, e)
			}
		}
		if h.OnCallSubmit != nil {
			prev := out.OnCallSubmit
			out.OnCallSubmit = func(ctx context.Context, t *domain.Task) {
				if prev != nil {
					prev(ctx, t)
				}
				h.OnCallSubmit(ctx, t)
			}
		}
		if h.OnCallReturn != nil {
			prev := out.OnCallReturn
			out.OnCallReturn = func(ctx context.Context, e *domain.CallEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnCallReturn(ctx, e)
			}
		}
	}
	return out
}
