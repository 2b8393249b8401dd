package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAfterFires(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := New(clock)
	fired := 0
	s.After("conv-1", "reset", 2*time.Second, func() { fired++ })

	clock.Advance(1999 * time.Millisecond)
	assert.Equal(t, 0, fired)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)
	assert.Empty(t, s.Pending(""))
}

func TestCancel(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := New(clock)
	task := s.After("sess", "edge", 30*time.Second, func() { t.Fatal("cancelled task fired") })

	assert.True(t, task.Cancel())
	assert.False(t, task.Cancel())
	clock.Advance(time.Minute)
	assert.Zero(t, clock.Pending())
}

func TestCancelOwner(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := New(clock)
	var kept int
	s.After("a", "one", time.Second, func() { t.Fatal("owner a cancelled") })
	s.After("a", "two", time.Second, func() { t.Fatal("owner a cancelled") })
	s.After("b", "one", time.Second, func() { kept++ })

	assert.Equal(t, 2, s.CancelOwner("a"))
	require.Len(t, s.Pending("b"), 1)
	clock.Advance(time.Second)
	assert.Equal(t, 1, kept)
}

func TestCancelAll(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := New(clock)
	s.After("a", "x", time.Second, func() { t.Fatal("cancelled") })
	s.After("b", "y", time.Second, func() { t.Fatal("cancelled") })
	assert.Equal(t, 2, s.CancelAll())
	clock.Advance(time.Hour)
}

func TestAfterReplacesSameOwnerAndName(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := New(clock)
	var got []string
	s.After("conv", "reset", 2*time.Second, func() { got = append(got, "first") })
	clock.Advance(time.Second)
	s.After("conv", "reset", 2*time.Second, func() { got = append(got, "second") })
	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"second"}, got)
}

func TestFakeClockRecordsDelays(t *testing.T) {
	clock := NewFakeClock(epoch)
	clock.AfterFunc(2*time.Second, func() {})
	clock.AfterFunc(3*time.Second, func() {})
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, clock.Delays())
	clock.Advance(3 * time.Second)
	assert.Equal(t, epoch.Add(3*time.Second), clock.Now())
}

func TestRealClock(t *testing.T) {
	s := New(nil)
	var fired atomic.Bool
	s.After("o", "n", 5*time.Millisecond, func() { fired.Store(true) })
	assert.Eventually(t, fired.Load, time.Second, time.Millisecond)
	assert.Empty(t, s.Pending("o"))
}
