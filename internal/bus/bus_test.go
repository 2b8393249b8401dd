package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"droneops-console/internal/events"
)

func TestPublishOrder(t *testing.T) {
	b := New(nil)
	var got []string
	b.Subscribe(Wildcard, func(events.SystemEvent) { got = append(got, "wild") })
	b.Subscribe("geofence", func(events.SystemEvent) { got = append(got, "geo-1") })
	b.Subscribe("geofence", func(events.SystemEvent) { got = append(got, "geo-2") })
	b.Subscribe("incoming_webrtc", func(events.SystemEvent) { got = append(got, "webrtc") })

	b.Publish(events.SystemEvent{Type: events.Geofence})
	assert.Equal(t, []string{"geo-1", "geo-2", "wild"}, got)
}

func TestPanickingHandlerIsolated(t *testing.T) {
	b := New(nil)
	calls := 0
	b.Subscribe("geofence", func(events.SystemEvent) { panic("bad handler") })
	b.Subscribe("geofence", func(events.SystemEvent) { calls++ })
	b.Subscribe(Wildcard, func(events.SystemEvent) { calls++ })

	assert.NotPanics(t, func() { b.Publish(events.SystemEvent{Type: events.Geofence}) })
	assert.Equal(t, 2, calls)
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)
	calls := 0
	tok := b.Subscribe("geofence", func(events.SystemEvent) { calls++ })
	keep := b.Subscribe("geofence", func(events.SystemEvent) { calls += 10 })

	assert.True(t, b.Unsubscribe(tok))
	assert.False(t, b.Unsubscribe(tok))
	b.Publish(events.SystemEvent{Type: events.Geofence})
	assert.Equal(t, 10, calls)
	assert.Equal(t, 1, b.Len("geofence"))

	assert.True(t, b.Unsubscribe(keep))
	assert.Equal(t, 0, b.Len("geofence"))
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	b := New(nil)
	var tok Token
	calls := 0
	tok = b.Subscribe("geofence", func(events.SystemEvent) {
		calls++
		b.Unsubscribe(tok)
	})
	b.Publish(events.SystemEvent{Type: events.Geofence})
	b.Publish(events.SystemEvent{Type: events.Geofence})
	assert.Equal(t, 1, calls)
}

func TestClear(t *testing.T) {
	b := New(nil)
	b.Subscribe("geofence", func(events.SystemEvent) { t.Fatal("handler should be gone") })
	b.Subscribe(Wildcard, func(events.SystemEvent) { t.Fatal("handler should be gone") })
	b.Clear()
	b.Publish(events.SystemEvent{Type: events.Geofence})
	assert.Zero(t, b.Len(Wildcard))
}
