package callmgr

import (
	"context"

	"github.com/aretw0/agentflow/pkg/domain"
)

// SinkFunc adapts a function to ports.EventSink.
type SinkFunc func(ctx context.Context, event domain.CallEvent) error

// Post calls f.
func (f SinkFunc) Post(ctx context.Context, event domain.CallEvent) error {
	return f(ctx, event)
}

// ChanSink delivers events on a channel. Post blocks while the channel is
// full, until ctx is done.
type ChanSink chan domain.CallEvent

// Post sends event on the channel.
func (c ChanSink) Post(ctx context.Context, event domain.CallEvent) error {
	select {
	case c <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
