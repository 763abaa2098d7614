package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"reef-chat/client"
	"reef-chat/domain/chat"
	"reef-chat/errors"
)

var _ client.Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher implements the engine's read side over the server's
// pagination and deep-link endpoints.
type HTTPFetcher struct {
	baseURL string
	http    *http.Client
}

func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *HTTPFetcher) Query(ctx context.Context, roomID string, before *time.Time, limit int) ([]chat.Message, error) {
	params := url.Values{
		"room":  {roomID},
		"limit": {strconv.Itoa(limit)},
	}
	if before != nil {
		params.Set("before", before.Format(time.RFC3339Nano))
	}
	return f.getMessages(ctx, "/messages?"+params.Encode())
}

func (f *HTTPFetcher) FindWindow(ctx context.Context, id uuid.UUID, window time.Duration) ([]chat.Message, error) {
	params := url.Values{
		"id":     {id.String()},
		"window": {window.String()},
	}
	return f.getMessages(ctx, "/messages/window?"+params.Encode())
}

func (f *HTTPFetcher) getMessages(ctx context.Context, path string) ([]chat.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrConnectivity, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errors.ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", errors.ErrStorage, resp.StatusCode, body)
	}

	var messages []chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	return messages, nil
}
