// Package client holds the synchronization engine that keeps a local
// message window consistent with the room service under concurrent
// pagination, live inserts and deep links.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"reef-chat/contract"
	"reef-chat/domain/chat"
	"reef-chat/domain/event"
	"reef-chat/errors"
)

// Fetcher is the read side of the message service the engine paginates
// against. Implementations are remote (HTTP pagination endpoint, deep-link
// lookup), so every call takes a context.
type Fetcher interface {
	Query(ctx context.Context, roomID string, before *time.Time, limit int) ([]chat.Message, error)
	FindWindow(ctx context.Context, id uuid.UUID, window time.Duration) ([]chat.Message, error)
}

// Viewport abstracts the rendering surface. Refresh re-renders the given
// window; afterwards ContentHeight and ScrollTop reflect the new content,
// which is what scroll anchoring relies on.
type Viewport interface {
	Refresh(messages []chat.Message)
	ContentHeight() int
	ScrollTop() int
	SetScrollTop(offset int)
	ScrollToBottom()
	ScrollTo(id uuid.UUID)
}

type Config struct {
	PageSize       int
	DeepLinkWindow time.Duration
	TypingTTL      time.Duration
	HighlightTTL   time.Duration
}

var _ contract.EventSink = (*Engine)(nil)

// Engine is the sole mutator of the rendered message buffer. Every
// mutation source - initial load, backward pagination, deep-link window,
// live push, deletion - goes through its mutex, so merges cannot race
// each other into duplicated or out-of-order windows.
type Engine struct {
	mu      sync.Mutex
	log     *slog.Logger
	fetcher Fetcher
	view    Viewport
	cfg     Config

	room   string
	buffer *Buffer

	hasMoreHistory bool
	loadingOlder   bool
	atBottom       bool
	unread         int

	users  []string
	counts map[string]int

	typingName  string
	typingUntil time.Time

	highlightID    uuid.UUID
	highlightUntil time.Time
}

func NewEngine(log *slog.Logger, fetcher Fetcher, view Viewport, cfg Config) *Engine {
	return &Engine{
		log:     log,
		fetcher: fetcher,
		view:    view,
		cfg:     cfg,
		buffer:  NewBuffer(),
		counts:  make(map[string]int),
	}
}

// Open enters a room: fetch the most recent page and scroll to the end,
// unless a deep-link target is given, in which case the bottom scroll is
// skipped and the target window is resolved instead.
func (e *Engine) Open(ctx context.Context, roomID string, target *uuid.UUID) error {
	e.mu.Lock()
	e.room = roomID
	e.buffer = NewBuffer()
	e.hasMoreHistory = false
	e.loadingOlder = false
	e.unread = 0
	e.atBottom = false
	e.mu.Unlock()

	page, err := e.fetcher.Query(ctx, roomID, nil, e.cfg.PageSize)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.buffer.Merge(page)
	e.hasMoreHistory = len(page) == e.cfg.PageSize
	e.view.Refresh(e.buffer.Messages())

	if target == nil {
		e.atBottom = true
		e.view.ScrollToBottom()
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()
	return e.resolveDeepLink(ctx, *target)
}

// resolveDeepLink surfaces one historical message that may lie outside the
// loaded window. The window fetch runs without the mutex, like LoadOlder,
// so live events keep flowing into the buffer during the round trip.
func (e *Engine) resolveDeepLink(ctx context.Context, target uuid.UUID) error {
	e.mu.Lock()
	loaded := e.buffer.Contains(target)
	e.mu.Unlock()

	if !loaded {
		window, err := e.fetcher.FindWindow(ctx, target, e.cfg.DeepLinkWindow)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.buffer.Merge(window)
		e.view.Refresh(e.buffer.Messages())
		e.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.buffer.Contains(target) {
		return fmt.Errorf("%w: message %s", errors.ErrNotFound, target)
	}
	e.view.ScrollTo(target)
	e.highlightID = target
	e.highlightUntil = time.Now().Add(e.cfg.HighlightTTL)
	return nil
}

// LoadOlder fetches the next older page when the viewport nears the top.
// An in-flight guard suppresses overlapping fetches, and the scroll offset
// is anchored so already-visible content does not jump when the page is
// prepended.
func (e *Engine) LoadOlder(ctx context.Context) error {
	e.mu.Lock()
	if e.loadingOlder || !e.hasMoreHistory {
		e.mu.Unlock()
		return nil
	}
	oldest, ok := e.buffer.Oldest()
	if !ok {
		e.mu.Unlock()
		return nil
	}
	e.loadingOlder = true
	cursor := oldest.CreatedAt
	roomID := e.room
	e.mu.Unlock()

	page, err := e.fetcher.Query(ctx, roomID, &cursor, e.cfg.PageSize)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadingOlder = false
	if err != nil {
		return err
	}
	if len(page) < e.cfg.PageSize {
		e.hasMoreHistory = false
	}

	heightBefore := e.view.ContentHeight()
	offsetBefore := e.view.ScrollTop()
	if e.buffer.Merge(page) == 0 {
		return nil
	}
	e.view.Refresh(e.buffer.Messages())
	e.view.SetScrollTop(offsetBefore + e.view.ContentHeight() - heightBefore)
	return nil
}

// Consume feeds one pushed event into the window. It satisfies
// contract.EventSink, so the transport can hand events straight over.
func (e *Engine) Consume(_ context.Context, evt event.DomainEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev := evt.(type) {
	case event.MessagePosted:
		if ev.Message.Room != e.room {
			return nil
		}
		if !e.buffer.Append(ev.Message) {
			return nil
		}
		e.view.Refresh(e.buffer.Messages())
		if e.atBottom {
			e.view.ScrollToBottom()
		} else {
			e.unread++
		}
	case event.MessageRemoved:
		if ev.Room != e.room {
			return nil
		}
		if e.buffer.Remove(ev.ID) {
			e.view.Refresh(e.buffer.Messages())
		}
	case event.TypingStarted:
		if ev.Room != e.room {
			return nil
		}
		// Last sender wins; the indicator clears itself after the TTL.
		e.typingName = ev.DisplayName
		e.typingUntil = time.Now().Add(e.cfg.TypingTTL)
	case event.PresenceUpdated:
		if ev.Room != e.room {
			return nil
		}
		e.users = ev.Users
	case event.PresenceCounts:
		e.counts = ev.Counts
	}
	return nil
}

// JumpToLatest scrolls to the newest message and clears the unread badge.
func (e *Engine) JumpToLatest() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.atBottom = true
	e.unread = 0
	e.view.ScrollToBottom()
}

// SetAtBottom tracks the viewport position. Reaching the bottom resets
// the unread count.
func (e *Engine) SetAtBottom(atBottom bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.atBottom = atBottom
	if atBottom {
		e.unread = 0
	}
}

func (e *Engine) Room() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room
}

func (e *Engine) Messages() []chat.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Messages()
}

func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread
}

func (e *Engine) HasMoreHistory() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasMoreHistory
}

// Typing returns who is typing, or "" once the indicator expired.
func (e *Engine) Typing() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if time.Now().After(e.typingUntil) {
		return ""
	}
	return e.typingName
}

// Highlight returns the deep-link target to emphasize, or uuid.Nil once
// the transient highlight elapsed.
func (e *Engine) Highlight() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if time.Now().After(e.highlightUntil) {
		return uuid.Nil
	}
	return e.highlightID
}

func (e *Engine) Users() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.users))
	copy(out, e.users)
	return out
}

func (e *Engine) Counts() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.counts))
	for room, n := range e.counts {
		out[room] = n
	}
	return out
}
