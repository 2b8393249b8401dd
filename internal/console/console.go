// Package console wires the event stream, chat client, reconciler and stores
// into one operations console.
package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"droneops-console/internal/bus"
	"droneops-console/internal/chat"
	"droneops-console/internal/config"
	"droneops-console/internal/events"
	"droneops-console/internal/eventstream"
	"droneops-console/internal/logging"
	"droneops-console/internal/profile"
	"droneops-console/internal/schedule"
	"droneops-console/internal/slash"
	"droneops-console/internal/state"
)

// ErrBusy is returned when input arrives while the assistant is still
// responding.
var ErrBusy = errors.New("console: assistant is busy")

// Options configures a Console. Zero values take defaults.
type Options struct {
	Config     config.Config
	Profile    *profile.Profile
	HTTPClient *http.Client
	Clock      schedule.Clock
	Logger     *zap.Logger
}

// Console is the composition root: it owns the bus, the stores and both
// backend clients.
type Console struct {
	cfg   config.Config
	log   *zap.Logger
	bus   *bus.Bus
	dash  *state.Dashboard
	sched *schedule.Scheduler
	rec   *chat.Reconciler
	chat  *chat.Client
	strm  *eventstream.Client

	profile atomic.Pointer[profile.Profile]
	table   atomic.Pointer[slash.Table]
	busy    atomic.Bool

	mu        sync.Mutex
	ctx       context.Context
	exchID    uint64
	abandon   context.CancelFunc
	tokens    []bus.Token
	listeners map[int]func()
	nextID    int

	wg sync.WaitGroup
}

// New builds a console for the backend named in opts.Config.
func New(opts Options) (*Console, error) {
	if opts.Profile == nil {
		p, err := profile.Load(opts.Config.Profile)
		if err != nil {
			return nil, err
		}
		opts.Profile = p
	}
	if opts.Clock == nil {
		opts.Clock = schedule.RealClock()
	}
	if opts.Config.BackendURL == "" {
		opts.Config.BackendURL = config.Default().BackendURL
	}
	log := logging.Component(opts.Logger, "console")

	c := &Console{
		cfg:       opts.Config,
		log:       log,
		bus:       bus.New(opts.Logger),
		sched:     schedule.New(opts.Clock),
		ctx:       context.Background(),
		listeners: make(map[int]func()),
	}
	c.dash = state.NewDashboard(state.Options{
		Home:          opts.Profile.Base,
		Greeting:      opts.Profile.Greeting,
		RegionHistory: opts.Config.RegionHistory,
		Now:           opts.Clock.Now,
	})
	c.rec = chat.NewReconciler(c.dash, chat.Options{
		EdgeProcessingDelay: opts.Config.Timers.EdgeProcessingDelay,
		MissionResetGrace:   opts.Config.Timers.MissionResetGrace,
		Scheduler:           c.sched,
		Logger:              opts.Logger,
		OnReset: func() {
			log.Info("dashboard reset")
			c.abandonExchange()
		},
	})
	c.chat = chat.NewClient(opts.Config.BackendURL, opts.HTTPClient, opts.Logger)
	c.strm = eventstream.New(opts.Config.BackendURL, c.bus, eventstream.Options{
		BaseDelay:   opts.Config.Reconnect.BaseDelay,
		Growth:      opts.Config.Reconnect.Growth,
		MaxAttempts: opts.Config.Reconnect.MaxAttempts,
		HTTPClient:  opts.HTTPClient,
		Clock:       opts.Clock,
		Logger:      opts.Logger,
	})
	c.SetProfile(opts.Profile)

	c.dash.Observe(c.changed)
	c.strm.OnStateChange(func(s eventstream.State) {
		log.Info("event stream state", zap.Stringer("state", s))
		c.changed()
	})
	return c, nil
}

func (c *Console) Bus() *bus.Bus                  { return c.bus }
func (c *Console) Dashboard() *state.Dashboard    { return c.dash }
func (c *Console) Stream() *eventstream.Client    { return c.strm }
func (c *Console) Commands() *slash.Table         { return c.table.Load() }
func (c *Console) Profile() *profile.Profile      { return c.profile.Load() }
func (c *Console) Reconciler() *chat.Reconciler   { return c.rec }
func (c *Console) Scheduler() *schedule.Scheduler { return c.sched }

// SetProfile switches the mission profile. Command wording changes at once;
// the greeting and home base apply from the next reset.
func (c *Console) SetProfile(p *profile.Profile) {
	c.profile.Store(p)
	c.table.Store(slash.NewTable(p))
	c.dash.Chat.SetGreeting(p.Greeting)
	c.dash.Map.SetHome(p.Base)
	c.changed()
}

// Attach subscribes the console to system events on its bus without opening
// the backend stream. It is idempotent.
func (c *Console) Attach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tokens) > 0 {
		return
	}
	c.tokens = append(c.tokens, c.bus.Subscribe(bus.Wildcard, c.onSystemEvent))
}

// Start attaches to the bus and connects the system event stream. Background
// chat exchanges started by SubmitAsync run under ctx.
func (c *Console) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	c.Attach()
	if err := c.strm.Connect(ctx); err != nil {
		return fmt.Errorf("connect event stream: %w", err)
	}
	c.log.Info("console started", zap.String("backend", c.cfg.BackendURL), zap.String("profile", c.Profile().Name))
	return nil
}

// Reconnect forces the event stream to reconnect immediately.
func (c *Console) Reconnect() { c.strm.Reconnect() }

// Close disconnects the event stream, waits for background exchanges and
// cancels every scheduled task.
func (c *Console) Close() {
	c.strm.Disconnect()
	c.mu.Lock()
	for _, tok := range c.tokens {
		c.bus.Unsubscribe(tok)
	}
	c.tokens = nil
	c.mu.Unlock()
	c.wg.Wait()
	c.sched.CancelAll()
}

// Submit handles one line of user input and blocks until the assistant's
// response has been streamed. Blank input is ignored.
func (c *Console) Submit(ctx context.Context, input string) error {
	msg, err := c.prepare(input)
	if err != nil || msg == "" {
		return err
	}
	return c.exchange(ctx, msg, c.begin(msg))
}

// SubmitAsync validates input like Submit and streams the response in the
// background.
func (c *Console) SubmitAsync(input string) error {
	msg, err := c.prepare(input)
	if err != nil || msg == "" {
		return err
	}
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	t := c.begin(msg)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.exchange(ctx, msg, t)
	}()
	return nil
}

// prepare resolves input into the message to send and claims the console.
// On success with a non-empty message the caller must run exchange.
func (c *Console) prepare(input string) (string, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return "", nil
	}
	if c.dash.Chat.Typing() || !c.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}

	msg := text
	if strings.HasPrefix(text, slash.Prefix) {
		resolved, err := c.Commands().Resolve(text)
		if err != nil {
			c.busy.Store(false)
			c.rejectCommand(text, err)
			return "", err
		}
		msg = resolved
	}
	return msg, nil
}

func (c *Console) rejectCommand(input string, err error) {
	name, _, _ := slash.Parse(input)
	switch {
	case errors.Is(err, slash.ErrUnknownCommand):
		c.dash.Chat.AppendSystem("Unknown command: "+slash.Prefix+name, nil)
	case errors.Is(err, slash.ErrMissingArgument):
		if cmd, ok := c.Commands().Lookup(name); ok {
			c.dash.Chat.AppendSystem("Usage: "+cmd.Usage(), nil)
		}
	}
	c.log.Debug("command rejected", zap.String("input", input), zap.Error(err))
}

func (c *Console) begin(msg string) *chat.Turn {
	c.dash.Chat.AppendUser(msg)
	c.dash.Chat.SetTyping(true)
	return c.rec.Begin()
}

func (c *Console) exchange(ctx context.Context, msg string, t *chat.Turn) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.exchID++
	id := c.exchID
	c.abandon = cancel
	c.mu.Unlock()

	err := c.chat.Send(ctx, msg, c.dash.Chat.ConversationID(), func(ev events.StreamEvent) {
		c.rec.Apply(t, ev)
	})
	c.rec.End(t)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exchID != id {
		// Abandoned by a reset; the busy gate is no longer ours.
		return nil
	}
	c.abandon = nil
	c.busy.Store(false)
	return err
}

// abandonExchange drops the in-flight exchange after a reset so the next
// submission is accepted while the old response is still streaming.
func (c *Console) abandonExchange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.abandon == nil {
		return
	}
	c.abandon()
	c.abandon = nil
	c.exchID++
	c.busy.Store(false)
}

// Observe registers fn to run after any store or connection change. The
// returned function removes it.
func (c *Console) Observe(fn func()) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Console) changed() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
