package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"reef-chat/domain/chat"
	rooterrors "reef-chat/errors"
	"reef-chat/mocks"
	"reef-chat/observability"
	"reef-chat/runtime"
	"reef-chat/runtime/workers"
	"reef-chat/search"
	"reef-chat/storage"
)

type serverFixture struct {
	server       *httptest.Server
	orchestrator *mocks.MockIOrchestrator
	store        *mocks.MockIMessageStore
	index        *search.Index
}

func newServerFixture(t *testing.T) serverFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	orchestrator := mocks.NewMockIOrchestrator(ctrl)
	store := mocks.NewMockIMessageStore(ctrl)

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	index := search.NewIndex(writer, log)

	media, err := storage.NewMediaStore(t.TempDir(), "http://localhost/media", log)
	require.NoError(t, err)

	server := NewServer(log, orchestrator, store, index, media,
		observability.NewMonitoringManager(), ServerConfig{
			ConnectionBufferSize: 16,
			DeliveryTimeout:      time.Second,
			DeepLinkWindow:       10 * time.Minute,
			PageSize:             30,
			PublicRoomSuffix:     "-general",
			AuthSecret:           []byte("hand-off-secret"),
		})

	httpServer := httptest.NewServer(server.Routes())
	t.Cleanup(httpServer.Close)
	return serverFixture{httpServer, orchestrator, store, index}
}

func (f serverFixture) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?" + query
}

func Test_WS_Rejects_Guest_From_Private_Room(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	// Given a generated guest name knocking on a non-public room
	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL("room=ops&displayName=Guest-7"), nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}

func Test_WS_Guest_May_Enter_Public_Room(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	f.orchestrator.EXPECT().RegisterParticipant(gomock.Any(), "ops-general", gomock.Any()).Times(1)
	f.orchestrator.EXPECT().Dispatch(gomock.Any()).AnyTimes()
	f.orchestrator.EXPECT().UnregisterParticipant(gomock.Any(), "ops-general").Times(1)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL("room=ops-general&displayName=Guest-7"), nil)
	req.NoError(err)
	req.NoError(conn.Close())

	// Give the session goroutine a moment to run its cleanup
	time.Sleep(100 * time.Millisecond)
}

func Test_WS_FindById_Returns_The_Window(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	target := chat.Message{ID: uuid.New(), Room: "lobby-general",
		SenderDisplayName: "Alice", Kind: chat.KindText, Text: "hello",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}

	f.orchestrator.EXPECT().RegisterParticipant(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	f.orchestrator.EXPECT().UnregisterParticipant(gomock.Any(), gomock.Any()).AnyTimes()
	f.orchestrator.EXPECT().Dispatch(gomock.Any()).AnyTimes()
	f.store.EXPECT().FindWindow(target.ID, 10*time.Minute).
		Return([]chat.Message{target}, nil).Times(1)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL("room=lobby-general&displayName=Alice"), nil)
	req.NoError(err)
	defer conn.Close()

	frame, err := NewFrame(FrameFindByID, FindByIDPayload{MessageID: target.ID})
	req.NoError(err)
	req.NoError(conn.WriteJSON(frame))

	var response Frame
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	req.NoError(conn.ReadJSON(&response))
	req.Equal(FrameLoadMessages, response.Type)

	var payload LoadMessagesPayload
	req.NoError(json.Unmarshal(response.Data, &payload))
	req.Equal([]chat.Message{target}, payload.Messages)
}

func Test_Messages_Endpoint_Returns_Page(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	page := []chat.Message{{ID: uuid.New(), Room: "lobby-general",
		SenderDisplayName: "Alice", Kind: chat.KindText, Text: "hello",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}}
	f.store.EXPECT().Query("lobby-general", nil, 30).Return(page, nil).Times(1)

	resp, err := http.Get(f.server.URL + "/messages?room=lobby-general")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var fetched []chat.Message
	req.NoError(json.NewDecoder(resp.Body).Decode(&fetched))
	req.Equal(page, fetched)
}

func Test_Messages_Endpoint_Requires_Room(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	resp, err := http.Get(f.server.URL + "/messages")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func Test_Window_Endpoint_Maps_NotFound(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)
	ghost := uuid.New()

	f.store.EXPECT().FindWindow(ghost, 10*time.Minute).
		Return(nil, fmt.Errorf("%w: missing", rooterrors.ErrNotFound)).Times(1)

	resp, err := http.Get(f.server.URL + "/messages/window?id=" + ghost.String())
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func Test_Upload_Rejects_Non_Media(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	body := &strings.Builder{}
	boundary := "test-boundary"
	body.WriteString("--" + boundary + "\r\n")
	body.WriteString("Content-Disposition: form-data; name=\"file\"; filename=\"notes.txt\"\r\n\r\n")
	body.WriteString("plain text is not an attachment\r\n")
	body.WriteString("--" + boundary + "--\r\n")

	resp, err := http.Post(f.server.URL+"/upload",
		"multipart/form-data; boundary="+boundary, strings.NewReader(body.String()))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
}

func Test_WS_Identify_Then_Disconnect_Leaves_No_Presence(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	store := mocks.NewMockIMessageStore(ctrl)

	// Given a live hub with a real presence registry behind the server
	presence := runtime.NewPresence()
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log),
		runtime.NewRegistry(), presence, store,
		observability.NewMonitoringManager(), "Admin", 16, time.Second, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = orchestrator.Start(ctx) }()

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })
	media, err := storage.NewMediaStore(t.TempDir(), "http://localhost/media", log)
	req.NoError(err)

	server := NewServer(log, orchestrator, store, search.NewIndex(writer, log), media,
		observability.NewMonitoringManager(), ServerConfig{
			ConnectionBufferSize: 16,
			DeliveryTimeout:      time.Second,
			DeepLinkWindow:       10 * time.Minute,
			PageSize:             30,
			PublicRoomSuffix:     "-general",
			AuthSecret:           []byte("hand-off-secret"),
		})
	httpServer := httptest.NewServer(server.Routes())
	t.Cleanup(httpServer.Close)

	// When a connection joins as Alice
	conn, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(httpServer.URL, "http")+"/ws?room=lobby-general&displayName=Alice", nil)
	req.NoError(err)
	req.Eventually(func() bool {
		users := presence.Users("lobby-general")
		return len(users) == 1 && users[0] == "Alice"
	}, time.Second, 10*time.Millisecond)

	// And identifies as Bob mid-stream
	frame, err := NewFrame(FrameIdentify, IdentifyPayload{DisplayName: "Bob"})
	req.NoError(err)
	req.NoError(conn.WriteJSON(frame))
	req.Eventually(func() bool {
		users := presence.Users("lobby-general")
		return len(users) == 1 && users[0] == "Bob"
	}, time.Second, 10*time.Millisecond)

	// Then its disconnect removes the entry it is joined under
	req.NoError(conn.Close())
	req.Eventually(func() bool {
		return len(presence.Users("lobby-general")) == 0
	}, time.Second, 10*time.Millisecond)
}

func Test_Healthz_Reports_Stats(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var payload map[string]any
	req.NoError(json.NewDecoder(resp.Body).Decode(&payload))
	req.Equal("ok", payload["status"])
}
