// Package server exposes the console state over HTTP and pushes changes to
// browser clients over WebSocket.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"droneops-console/internal/console"
	"droneops-console/internal/logging"
	"droneops-console/internal/slash"
	"droneops-console/internal/state"
)

// Console is the part of the console the server drives.
type Console interface {
	Snapshot() console.Snapshot
	Commands() *slash.Table
	SubmitAsync(input string) error
	Reconnect()
	Dashboard() *state.Dashboard
	Observe(fn func()) (cancel func())
}

//go:embed templates/index.html
var content embed.FS

// Server serves the state API, control endpoints and the WebSocket feed.
type Server struct {
	con Console
	hub *Hub
	tpl *template.Template
	log *zap.Logger
	mux *http.ServeMux
}

// New returns a server for con.
func New(con Console, log *zap.Logger) *Server {
	log = logging.Component(log, "server")
	s := &Server{
		con: con,
		hub: NewHub(log),
		tpl: template.Must(template.New("index.html").ParseFS(content, "templates/index.html")),
		log: log,
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/commands", s.handleCommands)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/reconnect", s.handleReconnect)
	s.mux.HandleFunc("POST /api/emergency", s.handleToggleEmergency)
	s.mux.HandleFunc("POST /api/tools/collapse", s.handleCollapse)
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Run starts the hub and pushes a state snapshot to WebSocket clients after
// every change, coalescing bursts. It returns when ctx is done.
func (s *Server) Run(ctx context.Context) {
	dirty := make(chan struct{}, 1)
	cancel := s.con.Observe(func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer cancel()

	go s.hub.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-dirty:
			s.hub.Broadcast(ctx, Outgoing{Type: "state", Payload: s.con.Snapshot()})
		}
	}
}

// Start listens on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 5 * time.Second}
	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	s.log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.tpl.Execute(w, s.con.Snapshot()); err != nil {
		s.log.Error("render index", zap.Error(err))
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.con.Snapshot())
}

type commandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	cmds := s.con.Commands().Suggest(r.URL.Query().Get("filter"))
	out := make([]commandInfo, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, commandInfo{Name: c.Name, Description: c.Description, Usage: c.Usage()})
	}
	writeJSON(w, http.StatusOK, out)
}

type chatRequest struct {
	Message string `json:"message"`
}

// submit maps console errors to HTTP statuses.
func (s *Server) submit(input string) (int, error) {
	err := s.con.SubmitAsync(input)
	switch {
	case err == nil:
		return http.StatusAccepted, nil
	case errors.Is(err, console.ErrBusy):
		return http.StatusConflict, err
	case errors.Is(err, slash.ErrUnknownCommand), errors.Is(err, slash.ErrMissingArgument):
		return http.StatusBadRequest, err
	default:
		return http.StatusInternalServerError, err
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}
	status, err := s.submit(req.Message)
	if err != nil {
		writeError(w, status, err)
		return
	}
	w.WriteHeader(status)
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	s.con.Reconnect()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleEmergency(w http.ResponseWriter, r *http.Request) {
	st := s.con.Dashboard().Status
	st.ToggleEmergencyMode()
	writeJSON(w, http.StatusOK, map[string]any{"emergency_mode": st.Snapshot().EmergencyMode})
}

func (s *Server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	msg, err1 := strconv.Atoi(q.Get("message"))
	tool, err2 := strconv.Atoi(q.Get("tool"))
	if err1 != nil || err2 != nil || msg < 0 || tool < 0 {
		writeError(w, http.StatusBadRequest, errors.New("message and tool must be non-negative integers"))
		return
	}
	collapsed := s.con.Dashboard().Chat.ToggleToolCollapse(msg, tool)
	writeJSON(w, http.StatusOK, map[string]any{"key": state.CollapseKey(msg, tool), "collapsed": collapsed})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	ctx := r.Context()
	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	select {
	case s.hub.register <- c:
	case <-ctx.Done():
		conn.Close()
		return
	case <-s.hub.done:
		conn.Close()
		return
	}
	go c.writePump()
	c.sendJSON(ctx, Outgoing{Type: "state", Payload: s.con.Snapshot()})
	c.readPump(ctx, s.handleIncoming)
}

func (s *Server) handleIncoming(ctx context.Context, c *client, msg Incoming) {
	switch msg.Type {
	case "chat":
		if _, err := s.submit(msg.Content); err != nil {
			c.sendJSON(ctx, Outgoing{Type: "error", ErrorMsg: err.Error()})
		}
	case "reconnect":
		s.con.Reconnect()
	default:
		c.sendJSON(ctx, Outgoing{Type: "error", ErrorMsg: "unknown message type"})
	}
}
