package ws

import (
	"context"

	"reef-chat/contract"
	"reef-chat/domain/event"
)

var _ contract.EventSink = (*Sink)(nil)

// Sink is the per-session delivery channel registered with the hub.
type Sink struct {
	Events chan event.DomainEvent
}

func NewSink(bufferSize int) *Sink {
	return &Sink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by fanout.
// Redirect the event through the concerned owner of the channel;
// the session's write pump will take it from now. A full channel sheds
// the event rather than stalling fanout for everyone else.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
