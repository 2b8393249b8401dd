package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droneops-console/internal/events"
)

func TestSendStreamsEvents(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, MessagePath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"conversation_id\":\"c-9\"}\n\n")
		fmt.Fprint(w, "event: content_delta\ndata: {\"content\":\"Hel")
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "lo\"}\n\nevent: content_delta\ndata: {oops}\n\n")
		fmt.Fprint(w, "event: message_complete\ndata: {}\n\n")
	}))
	defer srv.Close()

	var got []events.StreamEvent
	c := NewClient(srv.URL, srv.Client(), nil)
	err := c.Send(context.Background(), "hello", "", func(ev events.StreamEvent) { got = append(got, ev) })
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"message": "hello", "conversation_id": nil}, body)
	assert.Equal(t, []events.StreamEvent{
		{Type: events.MessageStart, ConversationID: "c-9"},
		{Type: events.ContentDelta, Content: "Hello"},
		{Type: events.MessageComplete},
	}, got)
}

func TestSendCarriesConversationID(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), nil)
	require.NoError(t, c.Send(context.Background(), "x", "c-1", func(events.StreamEvent) {}))
	assert.Equal(t, "c-1", body["conversation_id"])
}

func TestSendHTTPErrorBecomesErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var got []events.StreamEvent
	c := NewClient(srv.URL, srv.Client(), nil)
	err := c.Send(context.Background(), "x", "", func(ev events.StreamEvent) { got = append(got, ev) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHTTPStatus))
	require.Len(t, got, 1)
	assert.Equal(t, events.StreamError, got[0].Type)
	assert.Contains(t, got[0].Error, "500")
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	var got []events.StreamEvent
	c := NewClient(url, nil, nil)
	err := c.Send(context.Background(), "x", "", func(ev events.StreamEvent) { got = append(got, ev) })
	require.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, events.StreamError, got[0].Type)
}
