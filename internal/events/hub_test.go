package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"domotica-bridge/internal/domotica"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func testEvent(seq uint64) Event {
	return NewTableUpdate(time.Now().UTC(), seq, []domotica.Mesa{
		{Identificador: "MESA-01", Ocupado: true},
	})
}

func TestHubDeliversToSinksAndSubscribers(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	sub := hub.Subscribe()

	hub.Publish(testEvent(1))
	hub.Publish(testEvent(2))

	var got []Event
	for len(got) < 2 {
		select {
		case evt := <-sub.C():
			got = append(got, evt)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	require.Equal(t, uint64(1), got[0].Seq)
	require.Equal(t, uint64(2), got[1].Seq)

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.snapshot(), 2)
	require.True(t, sink.closed)
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Publish(Event{Evento: TypeTableUpdate}) // no mesas
	hub.Publish(testEvent(1))

	require.NoError(t, hub.Close(context.Background()))
	got := sink.snapshot()
	require.Len(t, got, 1)
	require.Equal(t, uint64(1), got[0].Seq)
}

func TestHubDetachesSlowSubscriber(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{SubscriberBuffer: 1}, sink)
	slow := hub.Subscribe()

	// Not draining the subscription: the second event finds its one
	// buffered slot full and must detach it.
	hub.Publish(testEvent(1))
	hub.Publish(testEvent(2))

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.snapshot()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for delivery")
		}
		time.Sleep(time.Millisecond)
	}

	evt, ok := <-slow.C()
	require.True(t, ok)
	require.Equal(t, uint64(1), evt.Seq)
	_, ok = <-slow.C()
	require.False(t, ok, "detached subscription must close its channel")

	require.NoError(t, hub.Close(context.Background()))
}

func TestHubUnsubscribeIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{})
	sub := hub.Subscribe()
	hub.Unsubscribe(sub)
	require.NotPanics(t, func() { hub.Unsubscribe(sub) })
	require.NoError(t, hub.Close(context.Background()))
}

func TestHubCloseIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{})
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	hub.Publish(testEvent(1)) // must not panic after close
}

func TestHubPublishAfterCloseIgnored(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))
	hub.Publish(testEvent(9))
	require.Empty(t, sink.snapshot())
}
