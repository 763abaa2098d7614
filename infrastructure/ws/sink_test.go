package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"reef-chat/domain/event"
)

func Test_Sink_Full_Buffer_Sheds_Instead_Of_Blocking(t *testing.T) {
	req := require.New(t)
	sink := NewSink(1)
	evt := event.TypingStarted{Room: "lobby-general", DisplayName: "Alice"}

	req.NoError(sink.Consume(context.Background(), evt))
	// The second consume finds the buffer full and must return immediately
	req.NoError(sink.Consume(context.Background(), evt))

	req.Len(sink.Events, 1)
}
