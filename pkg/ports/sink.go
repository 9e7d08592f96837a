package ports

import (
	"context"

	"github.com/aretw0/agentflow/pkg/domain"
)

// EventSink receives the events produced by queued calls.
// Post is called from worker goroutines and must be safe for concurrent use.
type EventSink interface {
	Post(ctx context.Context, event domain.CallEvent) error
}
