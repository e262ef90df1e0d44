package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestEventBus_DeliversByTypeAndWildcard(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	go bus.Start()
	defer bus.Stop()

	completed := bus.Subscribe(ScanCompleted)
	all := bus.Subscribe(AllEvents)

	bus.Publish(NewEvent(ScanStarted, "discovery", nil))
	bus.Publish(NewEvent(ScanCompleted, "discovery", map[string]interface{}{"devices": 2}))

	assert.Equal(t, ScanStarted, receive(t, all).Type)
	got := receive(t, all)
	assert.Equal(t, ScanCompleted, got.Type)

	ev := receive(t, completed)
	assert.Equal(t, 2, ev.Data["devices"])
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(nil)
	sub := bus.Subscribe(ScanFailed)
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe(ScanFailed, sub)
	assert.Equal(t, 0, bus.SubscriberCount())

	_, ok := <-sub
	assert.False(t, ok)
}

func TestEventBus_StopClosesSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	sub := bus.Subscribe(AllEvents)

	stopped := make(chan struct{})
	go func() {
		bus.Start()
		close(stopped)
	}()
	bus.Stop()
	bus.Stop()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("bus did not stop")
	}

	_, ok := <-sub
	assert.False(t, ok)

	// publishing after stop is a no-op
	bus.Publish(NewEvent(ScanStarted, "test", nil))
	_, ok = <-bus.Subscribe(AllEvents)
	assert.False(t, ok)
}

func TestNewEvent_NilData(t *testing.T) {
	ev := NewEvent(DeviceConnected, "connector", nil)
	assert.NotNil(t, ev.Data)
	assert.Equal(t, "connector", ev.Source)
}
