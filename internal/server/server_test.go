package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"droneops-console/internal/console"
	"droneops-console/internal/profile"
	"droneops-console/internal/slash"
	"droneops-console/internal/state"
)

type fakeConsole struct {
	dash  *state.Dashboard
	table *slash.Table

	mu         sync.Mutex
	submitted  []string
	submitErr  error
	reconnects int
	observers  []func()
}

func newFakeConsole(t *testing.T) *fakeConsole {
	t.Helper()
	p, err := profile.Load("bushfire")
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	return &fakeConsole{
		dash:  state.NewDashboard(state.Options{Home: p.Base, Greeting: p.Greeting}),
		table: slash.NewTable(p),
	}
}

func (f *fakeConsole) Snapshot() console.Snapshot {
	return console.Snapshot{View: f.dash.Snapshot(), Connection: "connected", Title: "Bushfire Response"}
}

func (f *fakeConsole) Commands() *slash.Table      { return f.table }
func (f *fakeConsole) Dashboard() *state.Dashboard { return f.dash }

func (f *fakeConsole) SubmitAsync(input string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, input)
	return nil
}

func (f *fakeConsole) Reconnect() {
	f.mu.Lock()
	f.reconnects++
	f.mu.Unlock()
}

func (f *fakeConsole) Observe(fn func()) func() {
	f.mu.Lock()
	f.observers = append(f.observers, fn)
	f.mu.Unlock()
	return func() {}
}

func (f *fakeConsole) changed() {
	f.mu.Lock()
	obs := append([]func(){}, f.observers...)
	f.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestHandleState(t *testing.T) {
	fc := newFakeConsole(t)
	s := New(fc, zap.NewNop())

	w := do(t, s, http.MethodGet, "/api/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["connection"] != "connected" {
		t.Errorf("unexpected connection %v", got["connection"])
	}
	chat, ok := got["chat"].(map[string]any)
	if !ok || len(chat["messages"].([]any)) != 1 {
		t.Errorf("expected greeting only, got %v", got["chat"])
	}
}

func TestHandleIndex(t *testing.T) {
	s := New(newFakeConsole(t), nil)
	w := do(t, s, http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<h1>Bushfire Response</h1>") {
		t.Fatalf("unexpected index: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, s, http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleCommands(t *testing.T) {
	s := New(newFakeConsole(t), nil)
	w := do(t, s, http.MethodGet, "/api/commands?filter=geofence", "")
	var got []commandInfo
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Usage != "/subscribe-geofence <radius>" || got[1].Name != "unsubscribe-geofence" {
		t.Errorf("unexpected commands: %+v", got)
	}
}

func TestHandleChat(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"accepted", `{"message":"/qos"}`, nil, http.StatusAccepted},
		{"busy", `{"message":"hi"}`, console.ErrBusy, http.StatusConflict},
		{"unknown command", `{"message":"/x"}`, fmt.Errorf("%w: /x", slash.ErrUnknownCommand), http.StatusBadRequest},
		{"missing argument", `{"message":"/report"}`, slash.ErrMissingArgument, http.StatusBadRequest},
		{"other failure", `{"message":"hi"}`, errors.New("boom"), http.StatusInternalServerError},
		{"empty", `{"message":""}`, nil, http.StatusBadRequest},
		{"garbage", `{`, nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeConsole(t)
			fc.submitErr = tt.err
			w := do(t, New(fc, nil), http.MethodPost, "/api/chat", tt.body)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d (%s)", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleChatForwardsMessage(t *testing.T) {
	fc := newFakeConsole(t)
	do(t, New(fc, nil), http.MethodPost, "/api/chat", `{"message":"/report 1 Main St"}`)
	if len(fc.submitted) != 1 || fc.submitted[0] != "/report 1 Main St" {
		t.Errorf("unexpected submissions %v", fc.submitted)
	}
	if w := do(t, New(fc, nil), http.MethodGet, "/api/chat", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", w.Code)
	}
}

func TestHandleReconnectAndEmergency(t *testing.T) {
	fc := newFakeConsole(t)
	s := New(fc, nil)
	if w := do(t, s, http.MethodPost, "/api/reconnect", ""); w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if fc.reconnects != 1 {
		t.Errorf("expected one reconnect, got %d", fc.reconnects)
	}

	w := do(t, s, http.MethodPost, "/api/emergency", "")
	var got map[string]bool
	_ = json.NewDecoder(w.Body).Decode(&got)
	if !got["emergency_mode"] || !fc.dash.Status.Snapshot().EmergencyMode {
		t.Errorf("emergency mode not enabled: %v", got)
	}
	do(t, s, http.MethodPost, "/api/emergency", "")
	if fc.dash.Status.Snapshot().EmergencyMode {
		t.Error("emergency mode not toggled off")
	}
}

func TestHandleCollapse(t *testing.T) {
	fc := newFakeConsole(t)
	s := New(fc, nil)

	w := do(t, s, http.MethodPost, "/api/tools/collapse?message=2&tool=0", "")
	var got map[string]any
	_ = json.NewDecoder(w.Body).Decode(&got)
	if got["key"] != "2-0" || got["collapsed"] != true {
		t.Errorf("unexpected response %v", got)
	}
	if !fc.dash.Chat.IsCollapsed(2, 0) {
		t.Error("tool card not collapsed")
	}
	if w := do(t, s, http.MethodPost, "/api/tools/collapse?message=a&tool=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func readOutgoing(t *testing.T, conn *websocket.Conn) Outgoing {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Outgoing
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocketPushesState(t *testing.T) {
	fc := newFakeConsole(t)
	s := New(fc, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	srv := httptest.NewServer(s)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if msg := readOutgoing(t, conn); msg.Type != "state" {
		t.Fatalf("expected initial state, got %+v", msg)
	}

	// Wait for Run to register its observer before changing state.
	deadline := time.Now().Add(2 * time.Second)
	for {
		fc.mu.Lock()
		n := len(fc.observers)
		fc.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	fc.dash.Chat.AppendSystem("⚠️ Geofence boundary breach detected", nil)
	fc.changed()

	msg := readOutgoing(t, conn)
	if msg.Type != "state" || !strings.Contains(fmt.Sprint(msg.Payload), "Geofence boundary breach") {
		t.Fatalf("expected pushed state, got %+v", msg)
	}

	if err := conn.WriteJSON(Incoming{Type: "chat", Content: "/qos"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteJSON(Incoming{Type: "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readOutgoing(t, conn); msg.Type != "error" || msg.ErrorMsg != "unknown message type" {
		t.Fatalf("expected error reply, got %+v", msg)
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.submitted) != 1 || fc.submitted[0] != "/qos" {
		t.Errorf("unexpected submissions %v", fc.submitted)
	}
}
