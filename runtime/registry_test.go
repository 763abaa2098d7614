package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"reef-chat/domain/event"
)

type nullSink struct{}

func (nullSink) Consume(context.Context, event.DomainEvent) error { return nil }

func Test_Registry_Subscribe_And_Resolve(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sinkA, sinkB := nullSink{}, nullSink{}

	registry.Subscribe("session-a", "lobby-general", sinkA)
	registry.Subscribe("session-b", "lobby-general", sinkB)
	registry.Subscribe("session-c", "ops", sinkA)

	req.Len(registry.GetSinksForRoom("lobby-general"), 2)
	req.Len(registry.GetSinksForRoom("ops"), 1)
	req.Nil(registry.GetSinksForRoom("empty-room"))
}

func Test_Registry_AllSinks_Spans_Rooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Subscribe("session-a", "lobby-general", nullSink{})
	registry.Subscribe("session-b", "ops", nullSink{})

	req.Len(registry.AllSinks(), 2)
}

func Test_Registry_Unsubscribe_Cleans_Up(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Subscribe("session-a", "lobby-general", nullSink{})
	registry.Unsubscribe("session-a", "lobby-general")

	req.Nil(registry.GetSinksForRoom("lobby-general"))
	req.Empty(registry.AllSinks())
}

func Test_Registry_Room_Switch_Moves_Subscription(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Subscribe("session-a", "lobby-general", nullSink{})
	registry.Unsubscribe("session-a", "lobby-general")
	registry.Subscribe("session-a", "ops", nullSink{})

	req.Nil(registry.GetSinksForRoom("lobby-general"))
	req.Len(registry.GetSinksForRoom("ops"), 1)
	req.Len(registry.AllSinks(), 1)
}
