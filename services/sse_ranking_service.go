package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const sseKeepAlive = 15 * time.Second

// StreamRankingsSSE streams ranking snapshots and lifecycle events of one tournament.
// The current snapshot is sent first so a client never starts empty.
func (s *RankingService) StreamRankingsSSE(c *fiber.Ctx) error {
	tournamentID := c.Params("id")
	snap, err := s.current(c.Context(), tournamentID)
	if err != nil {
		return respondError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	events, cancel := s.Hub.Subscribe(tournamentID)
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(sseKeepAlive)
		defer ticker.Stop()

		if err := writeSSE(w, Event{Type: EventRankings, TournamentID: tournamentID, Payload: snap, At: snap.ComputedAt}); err != nil {
			return
		}

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeSSE(w, ev); err != nil {
					logrus.WithField("tournament_id", tournamentID).Debug("📴 [SSE] Client went away")
					return
				}
			case <-ticker.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}

func writeSSE(w *bufio.Writer, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return w.Flush()
}
