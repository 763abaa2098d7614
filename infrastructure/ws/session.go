package ws

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"reef-chat/contract"
	"reef-chat/domain/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// Session drives one connection through its lifecycle:
// Connecting -> Identified? -> Joined -> (Switching -> Joined)* -> Disconnected.
// The read pump is the only goroutine touching identity and room, so the
// state machine needs no lock.
//
// A reconnect is a brand-new session; the previous session's presence
// entry is reaped by its own disconnect. A rapid reconnect can therefore
// briefly show duplicate presence until the old connection times out.
type Session struct {
	id           string
	conn         *websocket.Conn
	orchestrator contract.IOrchestrator
	store        contract.IMessageStore
	sink         *Sink
	send         chan Frame
	log          *slog.Logger

	identity chat.Identity
	room     string

	publicSuffix    string
	deliveryTimeout time.Duration
	deepLinkWindow  time.Duration
}

func NewSession(log *slog.Logger, conn *websocket.Conn,
	orchestrator contract.IOrchestrator, store contract.IMessageStore,
	identity chat.Identity, room string,
	publicSuffix string, bufferSize int,
	deliveryTimeout, deepLinkWindow time.Duration) *Session {
	return &Session{
		id:              uuid.NewString(),
		conn:            conn,
		orchestrator:    orchestrator,
		store:           store,
		sink:            NewSink(bufferSize),
		send:            make(chan Frame, bufferSize),
		log:             log,
		identity:        identity,
		room:            room,
		publicSuffix:    publicSuffix,
		deliveryTimeout: deliveryTimeout,
		deepLinkWindow:  deepLinkWindow,
	}
}

// Run joins the initial room, pumps frames in both directions and blocks
// until the client disconnects. Cleanup is deferred so the presence entry
// and the registry subscription never outlive the connection.
func (s *Session) Run(ctx context.Context) {
	s.orchestrator.RegisterParticipant(s.id, s.room, s.sink)
	s.orchestrator.Dispatch(chat.JoinCommand{Room: s.room, DisplayName: s.identity.DisplayName})

	defer func() {
		s.orchestrator.Dispatch(chat.LeaveCommand{Room: s.room, DisplayName: s.identity.DisplayName})
		s.orchestrator.UnregisterParticipant(s.id, s.room)
		_ = s.conn.Close()
		s.log.Info("Session disconnected", "session_id", s.id, "room", s.room)
	}()

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.writePump(pumpCtx)

	s.readPump()
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Error("Failed to set read deadline", "error", err)
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Unexpected websocket close", "session_id", s.id, "error", err)
			}
			return
		}
		if terminate := s.handleFrame(frame); terminate {
			return
		}
	}
}

// handleFrame processes one inbound frame. It reports true when the
// connection must be terminated (authorization failure on switch).
func (s *Session) handleFrame(frame Frame) bool {
	switch frame.Type {
	case FrameIdentify:
		var payload IdentifyPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			s.rejectFrame(frame.Type, err)
			return false
		}
		s.rename(chat.Identity{DisplayName: payload.DisplayName, StableID: payload.StableID})
	case FrameSwitchRoom:
		var payload SwitchRoomPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			s.rejectFrame(frame.Type, err)
			return false
		}
		return s.switchRoom(payload.Room)
	case FrameSend:
		var input chat.MessageInput
		if err := json.Unmarshal(frame.Data, &input); err != nil {
			s.rejectFrame(frame.Type, err)
			return false
		}
		s.handleSend(input)
	case FrameTyping:
		s.orchestrator.Dispatch(chat.TypingCommand{Room: s.room, DisplayName: s.identity.DisplayName})
	case FrameDelete:
		var payload DeletePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			s.rejectFrame(frame.Type, err)
			return false
		}
		s.handleDelete(payload.MessageID)
	case FrameFindByID:
		var payload FindByIDPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			s.rejectFrame(frame.Type, err)
			return false
		}
		s.handleFindByID(payload.MessageID)
	default:
		s.log.Debug("Ignoring unknown frame", "type", frame.Type)
	}
	return false
}

// rename swaps the identity used for all commands from now on. The
// presence entry of the current room moves with it: leaving it under the
// old name here is what lets the disconnect cleanup remove the entry it
// actually finds. Room authorization is not re-checked retroactively.
func (s *Session) rename(next chat.Identity) {
	if next.DisplayName != s.identity.DisplayName {
		s.orchestrator.Dispatch(chat.LeaveCommand{Room: s.room, DisplayName: s.identity.DisplayName})
		s.orchestrator.Dispatch(chat.JoinCommand{Room: s.room, DisplayName: next.DisplayName})
	}
	s.identity = next
}

// switchRoom leaves the current room and joins the new one, so observers
// of both rooms see fresh presence. Guests may only enter public rooms;
// trying anything else terminates the connection.
func (s *Session) switchRoom(newRoom string) bool {
	if s.identity.IsGuest() && !chat.IsPublicRoom(newRoom, s.publicSuffix) {
		s.rejectFrame(FrameSwitchRoom, fmt.Errorf("guests may not enter %s", newRoom))
		return true
	}
	s.orchestrator.Dispatch(chat.LeaveCommand{Room: s.room, DisplayName: s.identity.DisplayName})
	s.orchestrator.UnregisterParticipant(s.id, s.room)

	s.room = newRoom
	s.orchestrator.RegisterParticipant(s.id, s.room, s.sink)
	s.orchestrator.Dispatch(chat.JoinCommand{Room: s.room, DisplayName: s.identity.DisplayName})
	return false
}

// handleSend forwards the intent to the hub and waits for the storage
// acknowledgement. The message itself comes back through the broadcast
// like for any other participant, keeping a single source of truth for
// order and timestamps. A failed append surfaces as an error frame and
// produces no broadcast.
func (s *Session) handleSend(input chat.MessageInput) {
	// Sender identity is stamped from the session, never trusted from the
	// payload.
	input.Room = s.room
	input.SenderDisplayName = s.identity.DisplayName
	input.SenderStableID = s.identity.StableID
	input.IsGuest = s.identity.IsGuest()
	replyChan := make(chan chat.Ack, 1)
	s.orchestrator.Dispatch(chat.SendCommand{Input: input, Reply: replyChan})

	ack, ok := s.awaitAck(replyChan)
	if !ok {
		s.rejectFrame(FrameSend, fmt.Errorf("no acknowledgement within %s", s.deliveryTimeout))
		return
	}
	if ack.Status != chat.AckOK {
		s.enqueueFrame(FrameError, ErrorPayload{Code: string(ack.Status), Message: ack.Reason})
	}
}

func (s *Session) handleDelete(messageID uuid.UUID) {
	replyChan := make(chan chat.Ack, 1)
	s.orchestrator.Dispatch(chat.DeleteCommand{
		Room:        s.room,
		MessageID:   messageID,
		RequesterID: s.identity.RequesterID(),
		Reply:       replyChan,
	})

	ack, ok := s.awaitAck(replyChan)
	if !ok {
		ack = chat.Ack{Status: chat.AckStorage, Reason: "no acknowledgement"}
	}
	s.enqueueFrame(FrameDeleteResult, DeleteResultPayload{
		MessageID: messageID,
		Status:    string(ack.Status),
		Reason:    ack.Reason,
	})
}

// handleFindByID resolves a deep link: the time window around the target
// message goes back to this session only.
func (s *Session) handleFindByID(messageID uuid.UUID) {
	window, err := s.store.FindWindow(messageID, s.deepLinkWindow)
	if err != nil {
		s.rejectFrame(FrameFindByID, err)
		return
	}
	s.enqueueFrame(FrameLoadMessages, LoadMessagesPayload{Messages: window})
}

func (s *Session) awaitAck(replyChan <-chan chat.Ack) (chat.Ack, bool) {
	select {
	case ack := <-replyChan:
		return ack, true
	case <-time.After(s.deliveryTimeout):
		return chat.Ack{}, false
	}
}

func (s *Session) rejectFrame(frameType string, err error) {
	s.log.Warn("Rejecting frame", "session_id", s.id, "type", frameType, "error", err)
	s.enqueueFrame(FrameError, ErrorPayload{Code: frameType, Message: err.Error()})
}

func (s *Session) enqueueFrame(frameType string, payload any) {
	frame, err := NewFrame(frameType, payload)
	if err != nil {
		s.log.Error("Failed to encode frame", "type", frameType, "error", err)
		return
	}
	select {
	case s.send <- frame:
	default:
		s.log.Warn("Send buffer full, dropping frame", "session_id", s.id, "type", frameType)
	}
}

// writePump serializes all outbound traffic: direct replies, fanned-out
// events and keep-alive pings. The ping period stays well under the read
// deadline so an idle but healthy connection is never reaped.
func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case frame := <-s.send:
			if !s.writeFrame(frame) {
				return
			}
		case evt := <-s.sink.Events:
			frame, ok := FrameFromEvent(evt)
			if !ok {
				continue
			}
			if !s.writeFrame(frame) {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeFrame(frame Frame) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(frame); err != nil {
		s.log.Warn("Failed to push frame", "session_id", s.id, "error", err)
		return false
	}
	return true
}
