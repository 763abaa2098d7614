package workers

import (
	"context"
	"log/slog"
	"time"

	"reef-chat/contract"
	"reef-chat/domain/event"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout broadcasts domain events to the sessions subscribed to the
// event's room, plus the permanent sinks (search index, monitoring).
//
// Delivery is sequential on a single goroutine, so subscribers of one room
// observe events in publish order. There is no cross-room ordering
// guarantee and none is needed.
//
// Events with an empty room id (the presence count snapshots) go to every
// connected session.
type EventFanout struct {
	log            *slog.Logger
	registry       contract.IRegistry
	permanentSinks []contract.EventSink
	events         chan event.DomainEvent
	sinkTimeout    time.Duration
}

func NewEventFanout(
	log *slog.Logger,
	registry contract.IRegistry,
	permanentSinks []contract.EventSink,
	events chan event.DomainEvent,
	sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:            log,
		registry:       registry,
		permanentSinks: permanentSinks,
		events:         events,
		sinkTimeout:    sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout One sink for each event. A slow sink only gets sinkTimeout of our
// time; its events are dropped rather than stalling the whole room.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	var sinks []contract.EventSink
	if roomID := evt.RoomID(); roomID == "" {
		sinks = w.registry.AllSinks()
	} else {
		sinks = w.registry.GetSinksForRoom(roomID)
	}
	sinks = append(sinks, w.permanentSinks...)

	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink refused event", "event", evt, "error", err)
		}
		cancel()
	}
}
