// Package bus routes system events to topic and wildcard subscribers.
package bus

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"droneops-console/internal/events"
	"droneops-console/internal/logging"
)

// Wildcard subscribes to every topic.
const Wildcard = "*"

// Handler receives published events.
type Handler func(events.SystemEvent)

// Token identifies a subscription and is used to cancel it.
type Token string

type subscription struct {
	token   Token
	topic   string
	handler Handler
}

// Bus is a synchronous in-process publish/subscribe router.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscription
	log    *zap.Logger
}

// New creates an empty bus.
func New(log *zap.Logger) *Bus {
	return &Bus{topics: make(map[string][]subscription), log: logging.Component(log, "bus")}
}

// Subscribe registers h for topic, which is an event type name or Wildcard.
func (b *Bus) Subscribe(topic string, h Handler) Token {
	tok := Token(uuid.NewString())
	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], subscription{token: tok, topic: topic, handler: h})
	b.mu.Unlock()
	return tok
}

// Unsubscribe removes the subscription identified by tok. It reports whether
// the subscription existed.
func (b *Bus) Unsubscribe(tok Token) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.topics {
		for i, s := range subs {
			if s.token != tok {
				continue
			}
			subs = append(subs[:i:i], subs[i+1:]...)
			if len(subs) == 0 {
				delete(b.topics, topic)
			} else {
				b.topics[topic] = subs
			}
			return true
		}
	}
	return false
}

// Publish delivers ev to the handlers of its type and then to wildcard
// handlers, in subscription order. A panicking handler is logged and does not
// stop delivery to the rest.
func (b *Bus) Publish(ev events.SystemEvent) {
	b.mu.RLock()
	targets := make([]subscription, 0, len(b.topics[string(ev.Type)])+len(b.topics[Wildcard]))
	targets = append(targets, b.topics[string(ev.Type)]...)
	targets = append(targets, b.topics[Wildcard]...)
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscription, ev events.SystemEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("handler panicked",
				zap.String("topic", s.topic),
				zap.String("event", string(ev.Type)),
				zap.Any("panic", r))
		}
	}()
	s.handler(ev)
}

// Clear removes every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.topics = make(map[string][]subscription)
	b.mu.Unlock()
}

// Len returns the number of handlers subscribed to topic.
func (b *Bus) Len(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
