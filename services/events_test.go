package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHubDeliversToTournamentSubscribers(t *testing.T) {
	hub := NewEventHub()
	a, cancelA := hub.Subscribe("t-1")
	defer cancelA()
	b, cancelB := hub.Subscribe("t-2")
	defer cancelB()

	hub.Publish(Event{Type: EventRankings, TournamentID: "t-1"})

	select {
	case ev := <-a:
		assert.Equal(t, EventRankings, ev.Type)
		assert.False(t, ev.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("subscriber of t-1 got nothing")
	}
	select {
	case <-b:
		t.Fatal("t-2 must not see t-1 events")
	default:
	}
}

func TestEventHubCancelReleasesSubscriber(t *testing.T) {
	hub := NewEventHub()
	ch, cancel := hub.Subscribe("t-1")
	assert.Equal(t, 1, hub.Subscribers("t-1"))

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers("t-1"))
	_, open := <-ch
	assert.False(t, open)

	hub.Publish(Event{Type: EventStatus, TournamentID: "t-1"})
}

func TestEventHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewEventHub()
	_, cancel := hub.Subscribe("t-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < hub.buffer*4; i++ {
			hub.Publish(Event{Type: EventActivity, TournamentID: "t-1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "publish blocked on a full subscriber")
	}
}

func TestEventHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewEventHub()
	hub.Publish(Event{Type: EventSettled, TournamentID: "nobody"})
	assert.Equal(t, 0, hub.Subscribers("nobody"))
}
