package events

import (
	"encoding/json"
	"fmt"

	"droneops-console/internal/sse"
)

// StreamEventType discriminates events on a chat response stream.
type StreamEventType string

const (
	MessageStart    StreamEventType = "message_start"
	ContentDelta    StreamEventType = "content_delta"
	ToolCall        StreamEventType = "tool_call"
	ToolResult      StreamEventType = "tool_result"
	ToolError       StreamEventType = "tool_error"
	MessageComplete StreamEventType = "message_complete"
	MissionComplete StreamEventType = "mission_complete"
	StreamError     StreamEventType = "error"
)

func (t StreamEventType) known() bool {
	switch t {
	case MessageStart, ContentDelta, ToolCall, ToolResult, ToolError,
		MessageComplete, MissionComplete, StreamError:
		return true
	}
	return false
}

// StreamEvent is one decoded chat stream event. Only the fields belonging to
// Type are populated.
type StreamEvent struct {
	Type           StreamEventType `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Content        string          `json:"content,omitempty"`
	Tool           string          `json:"tool,omitempty"`
	Arguments      map[string]any  `json:"arguments,omitempty"`
	Result         any             `json:"result,omitempty"`
	// HasResult distinguishes a present-but-null result from a missing one.
	HasResult bool   `json:"has_result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ErrorEvent builds the synthetic error event used for transport failures.
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Type: StreamError, Error: msg}
}

// DecodeStreamEvent converts an SSE frame into a StreamEvent.
func DecodeStreamEvent(f sse.Frame) (StreamEvent, error) {
	typ := StreamEventType(f.Event)
	if !typ.known() {
		return StreamEvent{}, fmt.Errorf("unknown stream event %q", f.Event)
	}
	if f.Data == "" {
		return StreamEvent{}, fmt.Errorf("stream event %s has no data", f.Event)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(f.Data), &fields); err != nil {
		return StreamEvent{}, fmt.Errorf("decode %s data: %w", f.Event, err)
	}

	ev := StreamEvent{Type: typ}
	var err error
	switch typ {
	case MessageStart:
		err = field(fields, "conversation_id", &ev.ConversationID)
	case ContentDelta:
		err = field(fields, "content", &ev.Content)
	case ToolCall:
		if err = field(fields, "tool", &ev.Tool); err == nil {
			err = field(fields, "arguments", &ev.Arguments)
		}
	case ToolResult:
		if err = field(fields, "tool", &ev.Tool); err == nil {
			if raw, ok := fields["result"]; ok {
				ev.HasResult = true
				err = json.Unmarshal(raw, &ev.Result)
			}
		}
	case ToolError, StreamError:
		err = field(fields, "error", &ev.Error)
	}
	if err != nil {
		return StreamEvent{}, fmt.Errorf("decode %s data: %w", f.Event, err)
	}
	return ev, nil
}

func field(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
