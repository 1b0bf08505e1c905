package services

import (
	"bufio"
	"encoding/json"
	"log"
	"sync"
	"time"

	"board-arena-system/models"

	"github.com/gofiber/fiber/v2"
)

// StateEvent is broadcast to a user's other connected sessions after any
// visible tournament mutation.
type StateEvent struct {
	Type   models.TournamentType `json:"type"`
	Status string                `json:"status"`
}

// Broadcaster fans state events out to per-user subscriber channels.
// Delivery is best effort: a slow or absent subscriber never blocks an
// action.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string][]chan StateEvent
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string][]chan StateEvent)}
}

// Publish delivers the event to every subscriber of the user, dropping it
// for any full channel.
func (b *Broadcaster) Publish(userID string, ev StateEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[userID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a channel for the user's events; the returned func
// removes it again.
func (b *Broadcaster) Subscribe(userID string) (<-chan StateEvent, func()) {
	ch := make(chan StateEvent, 8)
	b.mu.Lock()
	b.subs[userID] = append(b.subs[userID], ch)
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[userID]
		for i, c := range list {
			if c == ch {
				b.subs[userID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[userID]) == 0 {
			delete(b.subs, userID)
		}
	}
}

// StreamStateSSE streams tournament state events for the authenticated user
// over server-sent events.
func (s *TournamentService) StreamStateSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	if s.Notify == nil {
		return c.Status(503).JSON(fiber.Map{"error": "notifications disabled"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	events, cancel := s.Notify.Subscribe(userID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case ev := <-events:
				data, err := json.Marshal(ev)
				if err != nil {
					log.Printf("[SSE] marshal failed for user %s: %v", userID, err)
					continue
				}
				if _, err := w.WriteString("data: " + string(data) + "\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-keepalive.C:
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}
