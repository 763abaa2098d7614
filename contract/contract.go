//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"

	"reef-chat/domain/chat"
	"reef-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker is a bare run loop. It may panic or fail freely; protection and
// restarts are the supervisor's job, not the worker's.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry resolves room membership into live delivery channels.
type IRegistry interface {
	GetSinksForRoom(roomID string) []EventSink
	AllSinks() []EventSink
	Subscribe(participantID string, roomID string, sink EventSink)
	Unsubscribe(participantID string, roomID string)
}

// IPresence tracks the set of display names joined to each room.
// Join and Leave are idempotent with respect to set membership.
type IPresence interface {
	Join(roomID, name string)
	Leave(roomID, name string)
	Users(roomID string) []string
	Counts() map[string]int
}

// IMessageStore is the durable gateway over message records, keyed by
// room and time.
type IMessageStore interface {
	Append(input chat.MessageInput) (chat.Message, error)
	Get(id uuid.UUID) (chat.Message, error)
	Query(roomID string, before *time.Time, limit int) ([]chat.Message, error)
	FindWindow(id uuid.UUID, window time.Duration) ([]chat.Message, error)
	Remove(id uuid.UUID) error
}

type IOrchestrator interface {
	Dispatch(cmd chat.Command)
	RegisterParticipant(pID string, roomID string, sink EventSink)
	UnregisterParticipant(pID string, roomID string)
	Start(ctx context.Context) error
	Stop()
}
