// Package eventstream maintains the long-lived system event connection to the
// backend and publishes decoded events on the bus.
package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"droneops-console/internal/bus"
	"droneops-console/internal/events"
	"droneops-console/internal/logging"
	"droneops-console/internal/schedule"
	"droneops-console/internal/sse"
)

// StreamPath is the backend route serving system events.
const StreamPath = "/api/events/stream"

// ErrClosed is returned by Connect after the parent context has ended.
var ErrClosed = errors.New("eventstream: client closed")

// State is the connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options tunes reconnection and transport. Zero values take the defaults.
type Options struct {
	BaseDelay   time.Duration
	Growth      float64
	MaxAttempts int
	HTTPClient  *http.Client
	Clock       schedule.Clock
	Logger      *zap.Logger
}

func (o *Options) defaults() {
	if o.BaseDelay <= 0 {
		o.BaseDelay = 2 * time.Second
	}
	if o.Growth <= 0 {
		o.Growth = 1.5
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Clock == nil {
		o.Clock = schedule.RealClock()
	}
}

// Client consumes GET /api/events/stream. After a transport failure it
// retries with exponential backoff until MaxAttempts consecutive failures,
// then stays disconnected until Reconnect is called.
type Client struct {
	url   string
	bus   *bus.Bus
	opts  Options
	log   *zap.Logger
	sched *schedule.Scheduler

	mu        sync.Mutex
	parent    context.Context
	state     State
	attempts  int
	gen       uint64
	cancel    context.CancelFunc
	listeners []func(State)

	wg sync.WaitGroup
}

// New returns a disconnected client for the backend at baseURL.
func New(baseURL string, b *bus.Bus, opts Options) *Client {
	opts.defaults()
	return &Client{
		url:   strings.TrimRight(baseURL, "/") + StreamPath,
		bus:   b,
		opts:  opts,
		log:   logging.Component(opts.Logger, "eventstream"),
		sched: schedule.New(opts.Clock),
	}
}

// NextDelay returns the wait before reconnect attempt n (1-based).
func (c *Client) NextDelay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return time.Duration(float64(c.opts.BaseDelay) * math.Pow(c.opts.Growth, float64(n-1)))
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of consecutive failed connection attempts.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// OnStateChange registers fn to be called on every state transition.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Connect opens the stream if the client is disconnected. The connection and
// any pending retry live until ctx is done or Disconnect is called.
func (c *Client) Connect(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrClosed
	}
	c.mu.Lock()
	c.parent = ctx
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	notify := c.startLocked()
	c.mu.Unlock()
	notify()
	return nil
}

// Reconnect drops the current connection, resets the attempt counter and
// connects again immediately. Subscriptions are kept.
func (c *Client) Reconnect() {
	c.mu.Lock()
	if c.parent == nil || c.parent.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.attempts = 0
	c.log.Info("manual reconnect")
	notify := c.startLocked()
	c.mu.Unlock()
	notify()
}

// Disconnect closes the stream, cancels any pending retry and removes every
// bus subscription. Callers must subscribe again before reconnecting.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.teardownLocked()
	c.attempts = 0
	notify := c.setStateLocked(Disconnected)
	c.mu.Unlock()
	notify()

	c.wg.Wait()
	c.bus.Clear()
}

// Wait blocks until the connection goroutine has exited.
func (c *Client) Wait() { c.wg.Wait() }

func (c *Client) teardownLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.sched.CancelAll()
}

func (c *Client) startLocked() func() {
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.parent)
	c.cancel = cancel
	notify := c.setStateLocked(Connecting)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, gen)
	}()
	return notify
}

func (c *Client) setStateLocked(s State) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s
	fns := slices.Clone(c.listeners)
	return func() {
		for _, fn := range fns {
			fn(s)
		}
	}
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Client) run(ctx context.Context, gen uint64) {
	err := c.stream(ctx, gen)
	if ctx.Err() != nil {
		c.mu.Lock()
		var notify func()
		if c.gen == gen {
			c.cancel = nil
			notify = c.setStateLocked(Disconnected)
		}
		c.mu.Unlock()
		if notify != nil {
			notify()
		}
		return
	}
	c.fail(gen, err)
}

func (c *Client) stream(ctx context.Context, gen uint64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("open stream: unexpected status %d", resp.StatusCode)
	}

	c.mu.Lock()
	var notify func()
	if c.gen == gen {
		notify = c.setStateLocked(Connected)
	}
	c.mu.Unlock()
	if notify == nil {
		return nil
	}
	notify()
	c.log.Info("stream open", zap.String("url", c.url))

	r := sse.NewReader(resp.Body)
	for {
		f, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("stream closed by server")
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if !c.current(gen) {
			return nil
		}
		c.handle(gen, f)
	}
}

func (c *Client) handle(gen uint64, f sse.Frame) {
	if f.Event == events.Connected {
		if f.Data != "" && !json.Valid([]byte(f.Data)) {
			c.log.Warn("malformed connected frame", zap.String("data", f.Data))
		}
		c.mu.Lock()
		var notify func()
		if c.gen == gen {
			c.attempts = 0
			notify = c.setStateLocked(Connected)
		}
		c.mu.Unlock()
		if notify != nil {
			notify()
		}
		return
	}
	if f.Event == "" {
		c.log.Debug("unnamed frame dropped", zap.String("data", f.Data))
		return
	}

	ev, err := events.DecodeSystemEvent(f, c.opts.Clock.Now())
	if err != nil {
		c.log.Warn("dropping frame", zap.String("event", f.Event), zap.Error(err))
		return
	}
	if ev.Type == events.LocationUpdate {
		c.log.Info("location update", zap.ByteString("payload", ev.Payload))
		return
	}
	c.log.Debug("system event", zap.String("event", string(ev.Type)))
	c.bus.Publish(ev)
}

func (c *Client) fail(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	notify := c.setStateLocked(Disconnected)

	if c.attempts >= c.opts.MaxAttempts {
		c.mu.Unlock()
		notify()
		c.log.Error("max reconnection attempts reached",
			zap.Int("attempts", c.opts.MaxAttempts), zap.Error(err))
		return
	}
	c.attempts++
	attempt := c.attempts
	delay := c.NextDelay(attempt)
	c.sched.After("eventstream", "reconnect", delay, func() { c.retry(gen) })
	c.mu.Unlock()
	notify()

	c.log.Error("stream failed",
		zap.Error(err), zap.Int("attempt", attempt), zap.Duration("retry_in", delay))
}

func (c *Client) retry(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != Disconnected || c.parent == nil || c.parent.Err() != nil {
		c.mu.Unlock()
		return
	}
	notify := c.startLocked()
	c.mu.Unlock()
	notify()
}
