package stream

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lonelydomino/pilkchat-sub000/internal/models"
)

func TestRegistryRegisterAndUnregister(t *testing.T) {
	r := NewRegistry()

	first := NewSubscriber(1, "conn-a")
	second := NewSubscriber(1, "conn-b")
	r.Register(1, first)
	r.Register(1, second)

	require.True(t, r.IsOnline(1))
	require.Equal(t, 2, r.Count())

	r.Unregister(1, first)
	require.True(t, r.IsOnline(1), "second connection should survive")

	r.Unregister(1, second)
	require.False(t, r.IsOnline(1))
	require.Equal(t, 0, r.Count())

	// Idempotent: unregistering an absent subscriber is a no-op.
	r.Unregister(1, second)
	require.Equal(t, 0, r.Count())
}

func TestSendWithoutConnectionIsSilentNoop(t *testing.T) {
	r := NewRegistry()

	require.NotPanics(t, func() {
		r.Send(42, models.StreamEvent{Type: models.EventNewNotification})
	})
	require.Equal(t, 0, r.Count())
}

func TestSendDeliversToEveryConnectionOfUser(t *testing.T) {
	r := NewRegistry()

	first := NewSubscriber(1, "conn-a")
	second := NewSubscriber(1, "conn-b")
	other := NewSubscriber(2, "conn-c")
	r.Register(1, first)
	r.Register(1, second)
	r.Register(2, other)

	r.Send(1, models.StreamEvent{Type: models.EventNewNotification})

	for _, sub := range []*Subscriber{first, second} {
		select {
		case frame := <-sub.Frames():
			var event models.StreamEvent
			require.NoError(t, json.Unmarshal(frame, &event))
			require.Equal(t, models.EventNewNotification, event.Type)
		default:
			t.Fatalf("expected frame for %s", sub.ConnID)
		}
	}

	select {
	case <-other.Frames():
		t.Fatal("user 2 should not receive user 1 events")
	default:
	}
}

func TestSendDropsStalledSubscriber(t *testing.T) {
	r := NewRegistry()

	sub := NewSubscriber(1, "conn-a")
	r.Register(1, sub)

	event := models.StreamEvent{Type: models.EventNewMessage}
	for i := 0; i < sendBufferSize; i++ {
		r.Send(1, event)
	}
	require.True(t, r.IsOnline(1))

	// Buffer is full: this send treats the handle as dead and drops it.
	r.Send(1, event)
	require.False(t, r.IsOnline(1))

	// Drain the buffered frames; the channel must end up closed.
	received := 0
	for range sub.Frames() {
		received++
	}
	require.Equal(t, sendBufferSize, received)
}

func TestSendToUsersFansOut(t *testing.T) {
	r := NewRegistry()

	first := NewSubscriber(1, "conn-a")
	second := NewSubscriber(2, "conn-b")
	r.Register(1, first)
	r.Register(2, second)

	r.SendToUsers([]int{1, 2, 3}, models.StreamEvent{Type: models.EventNewMessage})

	require.Len(t, first.Frames(), 1)
	require.Len(t, second.Frames(), 1)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub := NewSubscriber(userID, "conn")
				r.Register(userID, sub)
				r.Send(userID, models.StreamEvent{Type: models.EventHeartbeat})
				r.Unregister(userID, sub)
			}
		}(i % 4)
	}
	wg.Wait()

	require.Equal(t, 0, r.Count())
}
