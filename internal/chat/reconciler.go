package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"droneops-console/internal/events"
	"droneops-console/internal/logging"
	"droneops-console/internal/schedule"
	"droneops-console/internal/state"
)

const (
	DefaultEdgeProcessingDelay = 30 * time.Second
	DefaultMissionResetGrace   = 2 * time.Second
)

// Options configures a Reconciler.
type Options struct {
	EdgeProcessingDelay time.Duration
	MissionResetGrace   time.Duration
	Scheduler           *schedule.Scheduler
	Logger              *zap.Logger
	// OnReset is called after a mission reset has been applied.
	OnReset func()
}

// Turn is one request/response exchange. Its draft is the assistant message
// being streamed.
type Turn struct {
	ID string

	draft   state.ChatMessage
	current int
}

// Reconciler applies chat stream events to the dashboard. It serialises event
// handling, so events from concurrent turns never interleave mid-event.
type Reconciler struct {
	dash  *state.Dashboard
	sched *schedule.Scheduler
	opts  Options
	log   *zap.Logger

	mu   sync.Mutex
	turn *Turn
}

// NewReconciler returns a reconciler mutating dash.
func NewReconciler(dash *state.Dashboard, opts Options) *Reconciler {
	if opts.EdgeProcessingDelay <= 0 {
		opts.EdgeProcessingDelay = DefaultEdgeProcessingDelay
	}
	if opts.MissionResetGrace <= 0 {
		opts.MissionResetGrace = DefaultMissionResetGrace
	}
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.New(nil)
	}
	return &Reconciler{
		dash:  dash,
		sched: opts.Scheduler,
		opts:  opts,
		log:   logging.Component(opts.Logger, "reconciler"),
	}
}

// Begin opens a new turn and its draft. Any earlier draft is finalised as is.
func (r *Reconciler) Begin() *Turn {
	t := &Turn{ID: uuid.NewString(), current: -1}
	r.mu.Lock()
	r.turn = t
	r.dash.Chat.BeginDraft(t.ID)
	r.mu.Unlock()
	return t
}

// End finalises the draft of t. If the stream ended without a completion
// event and no mission reset is pending, the typing flag is cleared.
func (r *Reconciler) End(t *Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.turn != t {
		return
	}
	r.dash.Chat.FinalizeDraft(t.ID)
	r.turn = nil
	if r.dash.Chat.Typing() && !r.resetPending() {
		r.dash.Chat.SetTyping(false)
	}
}

// Apply processes one stream event belonging to t. Events for a turn that is
// no longer current are dropped.
func (r *Reconciler) Apply(t *Turn, ev events.StreamEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t == nil || r.turn != t {
		r.log.Debug("event for stale turn dropped", zap.String("type", string(ev.Type)))
		return
	}

	switch ev.Type {
	case events.MessageStart:
		if ev.ConversationID != "" {
			r.dash.Chat.SetConversationID(ev.ConversationID)
		}
	case events.ContentDelta:
		t.draft.Content += ev.Content
		r.publish(t)
	case events.ToolCall:
		r.toolCall(t, ev)
	case events.ToolResult:
		r.toolResult(t, ev)
	case events.ToolError:
		r.toolError(t, ev)
	case events.MissionComplete:
		r.missionComplete()
	case events.MessageComplete:
		r.dash.Chat.SetTyping(false)
	case events.StreamError:
		r.dash.Chat.SetTyping(false)
		r.dash.Chat.AppendAssistant("Sorry, an error occurred: " + ev.Error)
	default:
		r.log.Warn("unhandled stream event", zap.String("type", string(ev.Type)))
	}
}

func (r *Reconciler) publish(t *Turn) {
	r.dash.Chat.PublishDraft(t.ID, t.draft)
}

func (r *Reconciler) toolCall(t *Turn, ev events.StreamEvent) {
	call := state.ToolCall{Tool: ev.Tool, Arguments: ev.Arguments}
	if call.Tool == "" {
		call.Tool = "unknown"
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	t.draft.ToolCalls = append(t.draft.ToolCalls, call)
	t.current = len(t.draft.ToolCalls) - 1
	r.publish(t)
}

// openCall returns the index of the last unresolved call to tool, or -1.
func (t *Turn) openCall(tool string) int {
	for i := len(t.draft.ToolCalls) - 1; i >= 0; i-- {
		tc := t.draft.ToolCalls[i]
		if tc.Tool == tool && !tc.Resolved {
			return i
		}
	}
	return -1
}

func (r *Reconciler) toolResult(t *Turn, ev events.StreamEvent) {
	idx := t.openCall(ev.Tool)
	if idx < 0 {
		r.log.Debug("tool result without open call ignored", zap.String("tool", ev.Tool))
		return
	}
	call := &t.draft.ToolCalls[idx]
	call.Result = ev.Result
	call.Resolved = true

	r.applyEffects(*call, ev.HasResult)
	r.publish(t)
}

func (r *Reconciler) toolError(t *Turn, ev events.StreamEvent) {
	if t.current < 0 || t.draft.ToolCalls[t.current].Resolved {
		r.log.Debug("tool error without open call ignored")
		return
	}
	msg := ev.Error
	if msg == "" {
		msg = "Tool execution failed"
	}
	call := &t.draft.ToolCalls[t.current]
	call.Result = map[string]any{"error": msg}
	call.Resolved = true
	r.publish(t)
}

func (r *Reconciler) missionOwner() string {
	if id := r.dash.Chat.ConversationID(); id != "" {
		return "conversation:" + id
	}
	return "conversation"
}

func (r *Reconciler) resetPending() bool {
	for _, task := range r.sched.Pending("") {
		if task.Name == "mission-reset" {
			return true
		}
	}
	return false
}

func (r *Reconciler) missionComplete() {
	r.log.Info("mission complete, resetting dashboard", zap.Duration("grace", r.opts.MissionResetGrace))
	r.dash.Chat.SetTyping(true)
	r.sched.After(r.missionOwner(), "mission-reset", r.opts.MissionResetGrace, r.Reset)
}

// Reset cancels every scheduled task and returns the dashboard to its initial
// state.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.sched.CancelAll()
	r.turn = nil
	r.dash.Reset()
	r.mu.Unlock()
	if r.opts.OnReset != nil {
		r.opts.OnReset()
	}
}
