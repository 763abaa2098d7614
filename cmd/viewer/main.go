package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"

	"reef-chat/client"
	"reef-chat/domain/chat"
	"reef-chat/infrastructure/ws"
)

// Exit codes for the viewer application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the viewer-side environment variables (VIEWER_ prefix).
type Config struct {
	ServerAddress  string        `default:"localhost:8080" split_words:"true"`
	Room           string        `default:"lobby-general"`
	DisplayName    string        `required:"true" split_words:"true"`
	StableID       string        `split_words:"true"`
	LogLevel       string        `default:"info" split_words:"true"`
	PageSize       int           `default:"30" split_words:"true"`
	DeepLinkWindow time.Duration `default:"10m" split_words:"true"`
	TypingTTL      time.Duration `default:"3s" split_words:"true"`
	HighlightTTL   time.Duration `default:"2s" split_words:"true"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Viewer error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle: configuration loading, the
// connection, the render loop and the interactive prompt.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if err := envconfig.Process("viewer", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Dial the chat server.
	wsURL := url.URL{
		Scheme: "ws",
		Host:   config.ServerAddress,
		Path:   "/ws",
		RawQuery: url.Values{
			"room":        {config.Room},
			"displayName": {config.DisplayName},
			"stableId":    {config.StableID},
		}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	// 4. Build the synchronization engine on top of the HTTP read surface.
	view := NewTerminalView(os.Stdout, config.DisplayName)
	fetcher := NewHTTPFetcher("http://" + config.ServerAddress)
	engine := client.NewEngine(log, fetcher, view, client.Config{
		PageSize:       config.PageSize,
		DeepLinkWindow: config.DeepLinkWindow,
		TypingTTL:      config.TypingTTL,
		HighlightTTL:   config.HighlightTTL,
	})
	if err := engine.Open(ctx, config.Room, nil); err != nil {
		return exitRuntime, fmt.Errorf("failed to open room %s: %w", config.Room, err)
	}

	log.Info("Connected", "server", config.ServerAddress, "room", config.Room)

	// 5. Pump received frames into the engine until disconnect.
	readErr := make(chan error, 1)
	go func() {
		for {
			var frame ws.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				readErr <- err
				return
			}
			handleFrame(engine, view, frame)
		}
	}()

	// 6. Interactive prompt: plain lines are sent, slash commands steer
	// the engine (/older, /find <id>, /delete <id>, /room <name>).
	go promptLoop(ctx, conn, engine, view)

	select {
	case <-ctx.Done():
		log.Info("Stopping viewer...")
		return exitOK, nil
	case err := <-readErr:
		if ctx.Err() != nil {
			return exitOK, nil
		}
		return exitRuntime, fmt.Errorf("connection lost: %w", err)
	}
}

// handleFrame translates one inbound frame and feeds it to the engine.
// Frames outside the event vocabulary (acks, errors) are printed directly.
func handleFrame(engine *client.Engine, view *TerminalView, frame ws.Frame) {
	switch frame.Type {
	case ws.FrameError, ws.FrameDeleteResult:
		view.Notice(fmt.Sprintf("%s: %s", frame.Type, string(frame.Data)))
		return
	}
	evt, err := ws.EventFromFrame(frame)
	if err != nil {
		return
	}
	_ = engine.Consume(context.Background(), evt)
	view.Status(engine.Typing(), engine.UnreadCount())
	view.Presence(engine.Users(), engine.Counts())
}

func promptLoop(ctx context.Context, conn *websocket.Conn, engine *client.Engine, view *TerminalView) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			sendFrame(conn, view, ws.FrameSend, chat.MessageInput{Kind: chat.KindText, Text: line})
			continue
		}

		command, argument, _ := strings.Cut(line[1:], " ")
		switch command {
		case "older":
			if err := engine.LoadOlder(ctx); err != nil {
				view.Notice(fmt.Sprintf("pagination failed: %v", err))
			}
		case "find":
			id, err := uuid.Parse(argument)
			if err != nil {
				view.Notice("usage: /find <message-id>")
				continue
			}
			if err := engine.Open(ctx, engine.Room(), &id); err != nil {
				view.Notice(fmt.Sprintf("deep link failed: %v", err))
			}
		case "delete":
			id, err := uuid.Parse(argument)
			if err != nil {
				view.Notice("usage: /delete <message-id>")
				continue
			}
			sendFrame(conn, view, ws.FrameDelete, ws.DeletePayload{MessageID: id})
		case "room":
			if argument == "" {
				view.Notice("usage: /room <name>")
				continue
			}
			sendFrame(conn, view, ws.FrameSwitchRoom, ws.SwitchRoomPayload{Room: argument})
			if err := engine.Open(ctx, argument, nil); err != nil {
				view.Notice(fmt.Sprintf("failed to open room %s: %v", argument, err))
			}
		case "latest":
			engine.JumpToLatest()
		default:
			view.Notice("commands: /older /find <id> /delete <id> /room <name> /latest")
		}
	}
}

func sendFrame(conn *websocket.Conn, view *TerminalView, frameType string, payload any) {
	frame, err := ws.NewFrame(frameType, payload)
	if err != nil {
		view.Notice(fmt.Sprintf("encoding failed: %v", err))
		return
	}
	if err := conn.WriteJSON(frame); err != nil {
		view.Notice(fmt.Sprintf("send failed: %v", err))
	}
}
