package client

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"reef-chat/domain/chat"
	"reef-chat/domain/event"
	"reef-chat/errors"
)

// fakeFetcher serves pages from an in-memory ascending history, the way
// the pagination endpoint does.
type fakeFetcher struct {
	history    []chat.Message
	queryCalls int
}

func (f *fakeFetcher) Query(_ context.Context, roomID string, before *time.Time, limit int) ([]chat.Message, error) {
	f.queryCalls++
	var matching []chat.Message
	for _, m := range f.history {
		if m.Room != roomID {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		matching = append(matching, m)
	}
	if len(matching) > limit {
		matching = matching[len(matching)-limit:]
	}
	return matching, nil
}

func (f *fakeFetcher) FindWindow(_ context.Context, id uuid.UUID, window time.Duration) ([]chat.Message, error) {
	var target *chat.Message
	for i := range f.history {
		if f.history[i].ID == id {
			target = &f.history[i]
			break
		}
	}
	if target == nil {
		return nil, errors.ErrNotFound
	}
	var matching []chat.Message
	for _, m := range f.history {
		if m.Room != target.Room {
			continue
		}
		delta := m.CreatedAt.Sub(target.CreatedAt)
		if delta >= -window && delta <= window {
			matching = append(matching, m)
		}
	}
	return matching, nil
}

// fakeViewport models one message as one line of height 1, which is all
// the anchoring math needs.
type fakeViewport struct {
	height        int
	scrollTop     int
	bottomScrolls int
	scrolledTo    uuid.UUID
}

func (v *fakeViewport) Refresh(messages []chat.Message) { v.height = len(messages) }
func (v *fakeViewport) ContentHeight() int              { return v.height }
func (v *fakeViewport) ScrollTop() int                  { return v.scrollTop }
func (v *fakeViewport) SetScrollTop(offset int)         { v.scrollTop = offset }
func (v *fakeViewport) ScrollToBottom() {
	v.scrollTop = v.height
	v.bottomScrolls++
}
func (v *fakeViewport) ScrollTo(id uuid.UUID) { v.scrolledTo = id }

func seededHistory(room string, count int) []chat.Message {
	at := time.Now().Add(-time.Duration(count) * time.Minute)
	history := make([]chat.Message, 0, count)
	for i := 0; i < count; i++ {
		history = append(history, chat.Message{
			ID:                uuid.New(),
			Room:              room,
			SenderDisplayName: "Alice",
			Kind:              chat.KindText,
			Text:              fmt.Sprintf("message %d", i),
			CreatedAt:         at.Add(time.Duration(i) * time.Minute),
		})
	}
	return history
}

func newTestEngine(history []chat.Message) (*Engine, *fakeFetcher, *fakeViewport) {
	fetcher := &fakeFetcher{history: history}
	view := &fakeViewport{}
	engine := NewEngine(logs.GetLoggerFromLevel(slog.LevelDebug), fetcher, view, Config{
		PageSize:       30,
		DeepLinkWindow: 10 * time.Minute,
		TypingTTL:      3 * time.Second,
		HighlightTTL:   2 * time.Second,
	})
	return engine, fetcher, view
}

func Test_Engine_Open_Loads_Latest_Page_And_Scrolls_To_Bottom(t *testing.T) {
	req := require.New(t)
	engine, _, view := newTestEngine(seededHistory("lobby-general", 40))

	req.NoError(engine.Open(context.Background(), "lobby-general", nil))

	window := engine.Messages()
	req.Len(window, 30)
	req.Equal("message 39", window[len(window)-1].Text)
	req.True(engine.HasMoreHistory())
	req.Equal(1, view.bottomScrolls)
	req.Zero(engine.UnreadCount())
}

func Test_Engine_LoadOlder_Prepends_And_Anchors_Scroll(t *testing.T) {
	req := require.New(t)
	engine, _, view := newTestEngine(seededHistory("lobby-general", 40))
	req.NoError(engine.Open(context.Background(), "lobby-general", nil))

	// Given the user scrolled near the top
	view.SetScrollTop(2)
	engine.SetAtBottom(false)

	req.NoError(engine.LoadOlder(context.Background()))

	// Then the remaining 10 older messages are prepended in order
	window := engine.Messages()
	req.Len(window, 40)
	req.Equal("message 0", window[0].Text)

	// And the viewport offset grew by exactly the prepended height, so the
	// visible content did not jump
	req.Equal(12, view.ScrollTop())

	// And the short page marked history as exhausted
	req.False(engine.HasMoreHistory())
}

func Test_Engine_LoadOlder_Stops_When_History_Exhausted(t *testing.T) {
	req := require.New(t)
	engine, fetcher, _ := newTestEngine(seededHistory("lobby-general", 10))
	req.NoError(engine.Open(context.Background(), "lobby-general", nil))

	// The short initial page already told the engine there is nothing older
	req.False(engine.HasMoreHistory())
	callsBefore := fetcher.queryCalls

	req.NoError(engine.LoadOlder(context.Background()))
	req.Equal(callsBefore, fetcher.queryCalls)
}

func Test_Engine_Live_Message_At_Bottom_Follows(t *testing.T) {
	req := require.New(t)
	history := seededHistory("lobby-general", 5)
	engine, _, view := newTestEngine(history)
	req.NoError(engine.Open(context.Background(), "lobby-general", nil))
	scrollsBefore := view.bottomScrolls

	pushed := chat.Message{ID: uuid.New(), Room: "lobby-general",
		SenderDisplayName: "Bob", Kind: chat.KindText, Text: "fresh",
		CreatedAt: time.Now()}
	req.NoError(engine.Consume(context.Background(), event.MessagePosted{Message: pushed}))

	req.Equal(6, len(engine.Messages()))
	req.Equal(scrollsBefore+1, view.bottomScrolls)
	req.Zero(engine.UnreadCount())
}

func Test_Engine_Live_Message_While_Scrolled_Up_Counts_Unread(t *testing.T) {
	req := require.New(t)
	engine, _, view := newTestEngine(seededHistory("lobby-general", 5))
	req.NoError(engine.Open(context.Background(), "lobby-general", nil))

	engine.SetAtBottom(false)
	scrollsBefore := view.bottomScrolls

	for i := 0; i < 3; i++ {
		pushed := chat.Message{ID: uuid.New(), Room: "lobby-general",
			SenderDisplayName: "Bob", Kind: chat.KindText, Text: "fresh",
			CreatedAt: time.Now()}
		req.NoError(engine.Consume(context.Background(), event.MessagePosted{Message: pushed}))
	}

	// Then the viewport stayed put and the badge counted up
	req.Equal(scrollsBefore, view.bottomScrolls)
	req.Equal(3, engine.UnreadCount())

	engine.JumpToLatest()
	req.Zero(engine.UnreadCount())
	req.Equal(scrollsBefore+1, view.bottomScrolls)
}

func Test_Engine_Ignores_Events_Of_Other_Rooms(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine(seededHistory("lobby-general", 5))
	req.NoError(engine.Open(context.Background(), "lobby-general", nil))

	pushed := chat.Message{ID: uuid.New(), Room: "ops",
		SenderDisplayName: "Bob", Kind: chat.KindText, Text: "elsewhere",
		CreatedAt: time.Now()}
	req.NoError(engine.Consume(context.Background(), event.MessagePosted{Message: pushed}))

	req.Equal(5, len(engine.Messages()))
}

func Test_Engine_Duplicate_Push_Is_Dropped(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine(seededHistory("lobby-general", 5))
	req.NoError(engine.Open(context.Background(), "lobby-general", nil))

	pushed := chat.Message{ID: uuid.New(), Room: "lobby-general",
		SenderDisplayName: "Bob", Kind: chat.KindText, Text: "once",
		CreatedAt: time.Now()}

	// The echo of an own send arrives twice; the window grows once
	req.NoError(engine.Consume(context.Background(), event.MessagePosted{Message: pushed}))
	req.NoError(engine.Consume(context.Background(), event.MessagePosted{Message: pushed}))
	req.Equal(6, len(engine.Messages()))
}

func Test_Engine_Removed_Event_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	history := seededHistory("lobby-general", 5)
	engine, _, _ := newTestEngine(history)
	req.NoError(engine.Open(context.Background(), "lobby-general", nil))

	doomed := history[2]
	removed := event.MessageRemoved{Room: "lobby-general", ID: doomed.ID}
	req.NoError(engine.Consume(context.Background(), removed))
	req.NoError(engine.Consume(context.Background(), removed))

	req.Equal(4, len(engine.Messages()))
	for _, m := range engine.Messages() {
		req.NotEqual(doomed.ID, m.ID)
	}
}

func Test_Engine_DeepLink_Resolves_Out_Of_Window_Target(t *testing.T) {
	req := require.New(t)
	history := seededHistory("lobby-general", 40)
	engine, _, view := newTestEngine(history)

	// Given a target outside the most recent page
	target := history[2]

	req.NoError(engine.Open(context.Background(), "lobby-general", &target.ID))

	req.True(view.scrolledTo == target.ID)
	req.Equal(target.ID, engine.Highlight())

	found := false
	for _, m := range engine.Messages() {
		if m.ID == target.ID {
			found = true
		}
	}
	req.True(found)
}

// pushingFetcher delivers a live event in the middle of the deep-link
// window fetch, the way the transport does while a round trip is in
// flight. The push must go through, not wait for the fetch to finish.
type pushingFetcher struct {
	*fakeFetcher
	engine *Engine
	pushed chat.Message
}

func (f *pushingFetcher) FindWindow(ctx context.Context, id uuid.UUID, window time.Duration) ([]chat.Message, error) {
	if err := f.engine.Consume(ctx, event.MessagePosted{Message: f.pushed}); err != nil {
		return nil, err
	}
	return f.fakeFetcher.FindWindow(ctx, id, window)
}

func Test_Engine_DeepLink_Fetch_Does_Not_Block_Live_Events(t *testing.T) {
	req := require.New(t)
	history := seededHistory("lobby-general", 40)
	pushed := chat.Message{ID: uuid.New(), Room: "lobby-general",
		SenderDisplayName: "Bob", Kind: chat.KindText, Text: "mid-flight",
		CreatedAt: time.Now()}

	fetcher := &pushingFetcher{fakeFetcher: &fakeFetcher{history: history}, pushed: pushed}
	engine := NewEngine(logs.GetLoggerFromLevel(slog.LevelDebug), fetcher, &fakeViewport{}, Config{
		PageSize:       30,
		DeepLinkWindow: 10 * time.Minute,
		TypingTTL:      3 * time.Second,
		HighlightTTL:   2 * time.Second,
	})
	fetcher.engine = engine

	target := history[2]
	req.NoError(engine.Open(context.Background(), "lobby-general", &target.ID))

	// The live message landed even though the window fetch was in flight
	found := false
	for _, m := range engine.Messages() {
		if m.ID == pushed.ID {
			found = true
		}
	}
	req.True(found)
	req.Equal(target.ID, engine.Highlight())
}

func Test_Engine_DeepLink_Unknown_Target_Fails(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine(seededHistory("lobby-general", 5))

	ghost := uuid.New()
	err := engine.Open(context.Background(), "lobby-general", &ghost)
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Engine_Typing_Last_Sender_Wins(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine(seededHistory("lobby-general", 5))
	req.NoError(engine.Open(context.Background(), "lobby-general", nil))

	req.NoError(engine.Consume(context.Background(), event.TypingStarted{Room: "lobby-general", DisplayName: "Alice"}))
	req.NoError(engine.Consume(context.Background(), event.TypingStarted{Room: "lobby-general", DisplayName: "Bob"}))

	req.Equal("Bob", engine.Typing())
}

func Test_Engine_Presence_Snapshot_Replaces_State(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine(seededHistory("lobby-general", 5))
	req.NoError(engine.Open(context.Background(), "lobby-general", nil))

	req.NoError(engine.Consume(context.Background(),
		event.PresenceUpdated{Room: "lobby-general", Users: []string{"Alice", "Bob"}}))
	req.NoError(engine.Consume(context.Background(),
		event.PresenceCounts{Counts: map[string]int{"lobby-general": 2, "ops": 1}}))

	req.Equal([]string{"Alice", "Bob"}, engine.Users())
	req.Equal(map[string]int{"lobby-general": 2, "ops": 1}, engine.Counts())
}
