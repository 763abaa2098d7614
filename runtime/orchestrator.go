// Package runtime handles command routing, event propagation and room
// supervision. It orchestrates the system without containing domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reef-chat/contract"
	"reef-chat/domain/chat"
	"reef-chat/domain/event"
	"reef-chat/observability"
	"reef-chat/runtime/workers"
)

var _ contract.IOrchestrator = (*Orchestrator)(nil)

// Orchestrator owns one command channel per room, each drained by a
// supervised RoomWorker. That single-consumer-per-room design serializes
// join/leave/send/typing/delete processing for a room, so concurrent
// connections cannot interleave mutations on the same room state.
type Orchestrator struct {
	mu                sync.Mutex
	log               *slog.Logger
	supervisor        contract.ISupervisor
	registry          contract.IRegistry
	presence          contract.IPresence
	store             contract.IMessageStore
	monitoring        *observability.MonitoringManager
	permanentSinks    []contract.EventSink
	rooms             map[string]chan chat.Command
	events            chan event.DomainEvent
	bufferSize        int
	sinkTimeout       time.Duration
	heartbeatInterval time.Duration
	owner             string
	runCtx            context.Context
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, presence contract.IPresence,
	store contract.IMessageStore, monitoring *observability.MonitoringManager,
	owner string, bufferSize int,
	sinkTimeout, heartbeatInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		log:               log,
		supervisor:        supervisor,
		registry:          registry,
		presence:          presence,
		store:             store,
		monitoring:        monitoring,
		rooms:             make(map[string]chan chat.Command),
		events:            make(chan event.DomainEvent, bufferSize),
		bufferSize:        bufferSize,
		sinkTimeout:       sinkTimeout,
		heartbeatInterval: heartbeatInterval,
		owner:             owner,
	}
}

// RegisterSinks adds permanent sinks (search index, telemetry) that
// receive every event regardless of room subscriptions. Must be called
// before Start.
func (o *Orchestrator) RegisterSinks(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Dispatch routes a command to its room's worker, creating the worker on
// first use. The send is non-blocking: a room whose channel is full sheds
// the command instead of stalling the transport goroutine.
func (o *Orchestrator) Dispatch(cmd chat.Command) {
	ch := o.roomChannel(cmd.RoomID())
	select {
	case ch <- cmd:
	default:
		o.log.Warn(fmt.Sprintf("Command channel full for room %s, dropping command", cmd.RoomID()))
	}
}

func (o *Orchestrator) roomChannel(roomID string) chan chat.Command {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ch, ok := o.rooms[roomID]; ok {
		return ch
	}
	ch := make(chan chat.Command, o.bufferSize)
	o.rooms[roomID] = ch
	worker := workers.NewRoomWorker(roomID, o.owner, ch, o.events,
		o.presence, o.store, o.monitoring, o.log)
	if o.runCtx != nil {
		o.supervisor.Start(o.runCtx, worker)
	} else {
		// Rooms touched before Start are drained once supervision begins.
		o.supervisor.Add(worker)
	}
	return ch
}

// RegisterParticipant attaches a session's sink to a room so fanout can
// reach it.
func (o *Orchestrator) RegisterParticipant(pID string, roomID string, sink contract.EventSink) {
	o.registry.Subscribe(pID, roomID, sink)
}

// UnregisterParticipant disconnects a session from a room.
func (o *Orchestrator) UnregisterParticipant(pID string, roomID string) {
	o.registry.Unsubscribe(pID, roomID)
}

// Start wires the fanout and heartbeat workers into the supervisor and
// blocks running it until the context is canceled.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	o.runCtx = ctx
	fanout := workers.NewEventFanout(o.log, o.registry, o.permanentSinks, o.events, o.sinkTimeout)
	o.supervisor.Add(fanout)
	o.supervisor.Add(workers.NewHeartbeatWorker(o.log, o.heartbeatInterval, o.monitoring))
	o.supervisor.Add(workers.NewChannelCapacityWorker(o.log, o.namedChannels, o.heartbeatInterval))
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// namedChannels snapshots the hub's channels for capacity sampling. Room
// channels appear as rooms get their first command.
func (o *Orchestrator) namedChannels() []workers.NamedChannel {
	o.mu.Lock()
	defer o.mu.Unlock()
	channels := []workers.NamedChannel{{Name: "events", Channel: o.events}}
	for roomID, ch := range o.rooms {
		channels = append(channels, workers.NamedChannel{Name: "room:" + roomID, Channel: ch})
	}
	return channels
}

// Stop initiates a graceful shutdown of the orchestrator.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
