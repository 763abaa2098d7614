package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"reef-chat/contract"
	"reef-chat/domain/chat"
	"reef-chat/domain/event"
	rooterrors "reef-chat/errors"
	"reef-chat/observability"
)

// Ensure *RoomWorker implements the contract.Worker interface at compile time.
// This prevents "type mismatch" errors from appearing late in other packages
// and acts as a static assertion of our architectural rules.
var _ contract.Worker = (*RoomWorker)(nil)

// RoomWorker serializes every command of one room: join, leave, send,
// typing and delete never interleave for the same room, which is what
// keeps presence mutations and the persist-then-publish ordering safe
// without a per-room lock.
type RoomWorker struct {
	room       string
	owner      string
	commands   chan chat.Command
	events     chan event.DomainEvent
	presence   contract.IPresence
	store      contract.IMessageStore
	monitoring *observability.MonitoringManager
	log        *slog.Logger
}

func NewRoomWorker(
	room string,
	owner string,
	commands chan chat.Command,
	events chan event.DomainEvent,
	presence contract.IPresence,
	store contract.IMessageStore,
	monitoring *observability.MonitoringManager,
	log *slog.Logger) *RoomWorker {
	return &RoomWorker{
		room:       room,
		owner:      owner,
		commands:   commands,
		events:     events,
		presence:   presence,
		store:      store,
		monitoring: monitoring,
		log:        log,
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker", "room", w.room)
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed", "room", w.room)
				return nil
			}
			if err := w.handle(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func (w *RoomWorker) handle(ctx context.Context, cmd chat.Command) error {
	switch c := cmd.(type) {
	case chat.JoinCommand:
		w.presence.Join(c.Room, c.DisplayName)
		return w.publishPresence(ctx, c.Room)
	case chat.LeaveCommand:
		w.presence.Leave(c.Room, c.DisplayName)
		return w.publishPresence(ctx, c.Room)
	case chat.TypingCommand:
		return w.publish(ctx, event.TypingStarted{Room: c.Room, DisplayName: c.DisplayName})
	case chat.SendCommand:
		return w.handleSend(ctx, c)
	case chat.DeleteCommand:
		return w.handleDelete(ctx, c)
	default:
		w.log.Warn(fmt.Sprintf("Unknown command %T for room %s", cmd, w.room))
		return nil
	}
}

// handleSend enforces persist-then-publish: the message is appended to the
// store first, and only a successfully stored record is broadcast. A
// storage failure is acknowledged to the sender and never produces a
// phantom broadcast.
func (w *RoomWorker) handleSend(ctx context.Context, c chat.SendCommand) error {
	if err := c.Input.Validate(); err != nil {
		reply(c.Reply, chat.Ack{Status: chat.AckInvalid, Reason: err.Error()})
		return nil
	}
	message, err := w.store.Append(c.Input)
	if err != nil {
		w.monitoring.IncrStorageErrors()
		w.log.Error("Message append failed, broadcast suppressed",
			"room", w.room, "sender", c.Input.SenderDisplayName, "error", err)
		reply(c.Reply, chat.Ack{Status: chat.AckStorage, Reason: err.Error()})
		return nil
	}
	w.monitoring.IncrMessagesPosted()
	reply(c.Reply, chat.Ack{Status: chat.AckOK, Reason: message.ID.String()})
	return w.publish(ctx, event.MessagePosted{Message: message})
}

func (w *RoomWorker) handleDelete(ctx context.Context, c chat.DeleteCommand) error {
	message, err := w.store.Get(c.MessageID)
	if err != nil {
		reply(c.Reply, ackFromError(err))
		return nil
	}
	if !chat.CanDelete(c.RequesterID, message, w.owner) {
		reply(c.Reply, chat.Ack{Status: chat.AckUnauthorized, Reason: rooterrors.ErrUnauthorized.Error()})
		return nil
	}
	if err := w.store.Remove(c.MessageID); err != nil {
		reply(c.Reply, ackFromError(err))
		return nil
	}
	w.monitoring.IncrMessagesRemoved()
	reply(c.Reply, chat.Ack{Status: chat.AckOK})
	return w.publish(ctx, event.MessageRemoved{Room: message.Room, ID: message.ID})
}

// publishPresence emits the room member list to the room and the global
// count snapshot to everyone, so both the vacated and the entered room
// observers see accurate numbers after a switch.
func (w *RoomWorker) publishPresence(ctx context.Context, room string) error {
	if err := w.publish(ctx, event.PresenceUpdated{Room: room, Users: w.presence.Users(room)}); err != nil {
		return err
	}
	return w.publish(ctx, event.PresenceCounts{Counts: w.presence.Counts()})
}

func (w *RoomWorker) publish(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.events <- e:
		return nil
	}
}

// reply never blocks: a session that went away between request and answer
// simply misses its ack.
func reply(ch chan<- chat.Ack, ack chat.Ack) {
	if ch == nil {
		return
	}
	select {
	case ch <- ack:
	default:
	}
}

func ackFromError(err error) chat.Ack {
	switch {
	case errors.Is(err, rooterrors.ErrNotFound):
		return chat.Ack{Status: chat.AckNotFound, Reason: err.Error()}
	case errors.Is(err, rooterrors.ErrUnauthorized):
		return chat.Ack{Status: chat.AckUnauthorized, Reason: err.Error()}
	default:
		return chat.Ack{Status: chat.AckStorage, Reason: err.Error()}
	}
}
