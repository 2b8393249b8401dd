package state

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"droneops-console/internal/events"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ToolCall is one tool invocation made by the assistant. Result is set once,
// when Resolved becomes true.
type ToolCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    any            `json:"result,omitempty"`
	Resolved  bool           `json:"resolved"`
}

// Failed reports whether the call resolved with an error result.
func (tc ToolCall) Failed() bool {
	if !tc.Resolved {
		return false
	}
	m, ok := tc.Result.(map[string]any)
	if !ok {
		return false
	}
	_, has := m["error"]
	return has
}

// ChatMessage is one transcript entry.
type ChatMessage struct {
	Role        Role                `json:"role"`
	Content     string              `json:"content"`
	Timestamp   time.Time           `json:"timestamp"`
	ToolCalls   []ToolCall          `json:"tool_calls,omitempty"`
	SystemEvent *events.SystemEvent `json:"system_event,omitempty"`
}

// Clone returns a copy that shares no mutable state with m.
func (m ChatMessage) Clone() ChatMessage {
	if m.ToolCalls != nil {
		calls := make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			tc.Arguments = maps.Clone(tc.Arguments)
			calls[i] = tc
		}
		m.ToolCalls = calls
	}
	if m.SystemEvent != nil {
		ev := *m.SystemEvent
		m.SystemEvent = &ev
	}
	return m
}

// ChatView is a snapshot of the transcript.
type ChatView struct {
	Messages       []ChatMessage `json:"messages"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Typing         bool          `json:"typing"`
	Collapsed      []string      `json:"collapsed,omitempty"`
}

// Transcript is the ordered chat history. At most one assistant message is
// open as a draft; it is addressed by position so system messages appended
// while it streams do not detach it.
type Transcript struct {
	observers
	mu sync.RWMutex

	now      func() time.Time
	greeting string

	messages       []ChatMessage
	conversationID string
	typing         bool
	collapsed      map[string]bool

	draftID  string
	draftIdx int
}

// NewTranscript returns a transcript seeded with the greeting message. now
// stamps new messages; nil means time.Now.
func NewTranscript(greeting string, now func() time.Time) *Transcript {
	if now == nil {
		now = time.Now
	}
	t := &Transcript{now: now, greeting: greeting}
	t.resetLocked()
	return t
}

func (t *Transcript) resetLocked() {
	t.messages = []ChatMessage{{Role: RoleAssistant, Content: t.greeting, Timestamp: t.now()}}
	t.conversationID = ""
	t.typing = false
	t.collapsed = make(map[string]bool)
	t.draftID = ""
	t.draftIdx = -1
}

func (t *Transcript) mutate(fn func()) {
	t.mu.Lock()
	fn()
	t.mu.Unlock()
	t.notify()
}

// Reset restores the single greeting message and clears the conversation.
func (t *Transcript) Reset() { t.mutate(t.resetLocked) }

// SetGreeting changes the seeded greeting. It takes effect on the next Reset.
func (t *Transcript) SetGreeting(g string) {
	t.mu.Lock()
	t.greeting = g
	t.mu.Unlock()
}

// AppendUser closes any open draft and appends a user message.
func (t *Transcript) AppendUser(content string) {
	t.mutate(func() {
		t.closeDraftLocked()
		t.messages = append(t.messages, ChatMessage{Role: RoleUser, Content: content, Timestamp: t.now()})
	})
}

// AppendAssistant closes any open draft and appends a finished assistant message.
func (t *Transcript) AppendAssistant(content string) {
	t.mutate(func() {
		t.closeDraftLocked()
		t.messages = append(t.messages, ChatMessage{Role: RoleAssistant, Content: content, Timestamp: t.now()})
	})
}

// AppendSystem appends a system notification. An open draft stays open.
func (t *Transcript) AppendSystem(content string, ev *events.SystemEvent) {
	t.mutate(func() {
		msg := ChatMessage{Role: RoleSystem, Content: content, Timestamp: t.now()}
		if ev != nil {
			e := *ev
			msg.SystemEvent = &e
		}
		t.messages = append(t.messages, msg)
	})
}

// BeginDraft opens a new assistant draft identified by id, closing any other.
// Nothing is added to the transcript until the draft is first published.
func (t *Transcript) BeginDraft(id string) {
	t.mutate(func() {
		t.closeDraftLocked()
		t.draftID = id
	})
}

// PublishDraft merges msg into the transcript as the draft identified by id:
// the first publish appends it, later publishes replace it in place. Stale
// ids are ignored and reported with false.
func (t *Transcript) PublishDraft(id string, msg ChatMessage) bool {
	ok := false
	t.mutate(func() {
		if id == "" || id != t.draftID {
			return
		}
		ok = true
		msg = msg.Clone()
		msg.Role = RoleAssistant
		if msg.Timestamp.IsZero() {
			msg.Timestamp = t.now()
		}
		if t.draftIdx >= 0 && t.draftIdx < len(t.messages) {
			t.messages[t.draftIdx] = msg
			return
		}
		t.messages = append(t.messages, msg)
		t.draftIdx = len(t.messages) - 1
	})
	return ok
}

// FinalizeDraft closes the draft identified by id.
func (t *Transcript) FinalizeDraft(id string) {
	t.mutate(func() {
		if id == t.draftID {
			t.closeDraftLocked()
		}
	})
}

// DraftOpen reports whether a draft is currently open.
func (t *Transcript) DraftOpen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.draftID != ""
}

func (t *Transcript) closeDraftLocked() {
	t.draftID = ""
	t.draftIdx = -1
}

func (t *Transcript) SetConversationID(id string) {
	t.mutate(func() { t.conversationID = id })
}

func (t *Transcript) ConversationID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conversationID
}

func (t *Transcript) SetTyping(v bool) { t.mutate(func() { t.typing = v }) }

func (t *Transcript) Typing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.typing
}

// CollapseKey is the tool card key for tool toolIdx of message msgIdx.
func CollapseKey(msgIdx, toolIdx int) string {
	return fmt.Sprintf("%d-%d", msgIdx, toolIdx)
}

// ToggleToolCollapse flips the collapsed state of a tool card and returns the
// new state.
func (t *Transcript) ToggleToolCollapse(msgIdx, toolIdx int) bool {
	key := CollapseKey(msgIdx, toolIdx)
	var collapsed bool
	t.mutate(func() {
		if t.collapsed[key] {
			delete(t.collapsed, key)
		} else {
			t.collapsed[key] = true
			collapsed = true
		}
	})
	return collapsed
}

func (t *Transcript) IsCollapsed(msgIdx, toolIdx int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.collapsed[CollapseKey(msgIdx, toolIdx)]
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ChatMessage, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Snapshot returns the full transcript state.
func (t *Transcript) Snapshot() ChatView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v := ChatView{
		Messages:       make([]ChatMessage, len(t.messages)),
		ConversationID: t.conversationID,
		Typing:         t.typing,
	}
	for i, m := range t.messages {
		v.Messages[i] = m.Clone()
	}
	for k := range t.collapsed {
		v.Collapsed = append(v.Collapsed, k)
	}
	slices.Sort(v.Collapsed)
	return v
}
