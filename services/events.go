package services

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventRankings EventType = "rankings"
	EventSettled  EventType = "settled"
	EventStatus   EventType = "status"
	EventActivity EventType = "activity"
)

// Event is published to everyone watching a tournament.
type Event struct {
	Type         EventType `json:"type"`
	TournamentID string    `json:"tournament_id"`
	Payload      any       `json:"payload"`
	At           time.Time `json:"at"`
}

type topic struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// EventHub fans tournament events out to subscriber channels.
// Slow subscribers drop events rather than block publishers.
type EventHub struct {
	topics *xsync.MapOf[string, *topic]
	buffer int
}

func NewEventHub() *EventHub {
	return &EventHub{topics: xsync.NewMapOf[string, *topic](), buffer: 16}
}

// Subscribe returns a channel of events for tournamentID and a cancel func that
// must be called to release it.
func (h *EventHub) Subscribe(tournamentID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	t, _ := h.topics.LoadOrCompute(tournamentID, func() *topic {
		return &topic{subs: make(map[chan Event]struct{})}
	})
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ch)
			t.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every current subscriber of its tournament.
func (h *EventHub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	t, ok := h.topics.Load(ev.TournamentID)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for ch := range t.subs {
		select {
		case ch <- ev:
		default:
			logrus.WithFields(logrus.Fields{"tournament_id": ev.TournamentID, "event": ev.Type}).
				Debug("📭 [EVENTS] Subscriber buffer full, dropping event")
		}
	}
}

// Subscribers reports how many listeners a tournament has.
func (h *EventHub) Subscribers(tournamentID string) int {
	t, ok := h.topics.Load(tournamentID)
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
