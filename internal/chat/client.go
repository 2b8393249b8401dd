// Package chat sends user messages to the backend agent and reconciles the
// streamed response into the dashboard stores.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"droneops-console/internal/events"
	"droneops-console/internal/logging"
	"droneops-console/internal/sse"
)

// MessagePath is the backend route accepting chat messages.
const MessagePath = "/api/chat/message"

// ErrHTTPStatus reports a non-2xx response from the chat endpoint.
var ErrHTTPStatus = errors.New("chat: unexpected HTTP status")

type request struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id"`
}

// Client posts messages and streams the response events.
type Client struct {
	url  string
	http *http.Client
	log  *zap.Logger
}

// NewClient returns a client for the backend at baseURL. A nil httpClient
// means http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:  strings.TrimRight(baseURL, "/") + MessagePath,
		http: httpClient,
		log:  logging.Component(log, "chat"),
	}
}

// Send posts message and calls fn for every decoded stream event, in order,
// until the response body ends. An empty conversationID is sent as null.
// Malformed frames are logged and skipped. A transport failure or non-2xx
// status is delivered to fn as a single error event and also returned.
func (c *Client) Send(ctx context.Context, message, conversationID string, fn func(events.StreamEvent)) error {
	err := c.send(ctx, message, conversationID, fn)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		c.log.Debug("chat request canceled", zap.Error(err))
		fn(events.ErrorEvent(err.Error()))
	default:
		c.log.Error("chat request failed", zap.Error(err))
		fn(events.ErrorEvent(err.Error()))
	}
	return err
}

func (c *Client) send(ctx context.Context, message, conversationID string, fn func(events.StreamEvent)) error {
	body := request{Message: message}
	if conversationID != "" {
		body.ConversationID = &conversationID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	r := sse.NewReader(resp.Body)
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if f.Event == "" || f.Data == "" {
			continue
		}
		ev, err := events.DecodeStreamEvent(f)
		if err != nil {
			c.log.Warn("dropping frame", zap.String("event", f.Event), zap.Error(err))
			continue
		}
		fn(ev)
	}
}
