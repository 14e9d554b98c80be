package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/kriya/internal/bus"
	"go.uber.org/zap"
)

// eventBatch caps the messages delivered per activity event.
const eventBatch = 50

// eventOverlap is how far each poll reaches back before the newest delivered
// message. A message stamped earlier but committed after a newer one is still
// delivered if it commits within this window.
const eventOverlap = 5 * time.Second

// activityCursor tracks what one events client has been sent. IDs delivered
// inside the overlap window are remembered so re-reads are not repeated.
type activityCursor struct {
	bus   *bus.Bus
	since time.Time
	seen  map[string]time.Time
}

// newActivityCursor starts a cursor at now. Messages already stored at now
// are not reported.
func newActivityCursor(ctx context.Context, b *bus.Bus, now time.Time) (*activityCursor, error) {
	c := &activityCursor{bus: b, since: now, seen: make(map[string]time.Time)}
	msgs, err := b.MessagesSince(ctx, now.Add(-eventOverlap), 0)
	if err != nil {
		return c, err
	}
	for _, m := range msgs {
		if !m.CreatedAt.After(now) {
			c.seen[m.ID] = m.CreatedAt
		}
	}
	return c, nil
}

// next returns up to eventBatch messages the client has not seen, oldest
// first.
func (c *activityCursor) next(ctx context.Context) ([]bus.Message, error) {
	msgs, err := c.bus.MessagesSince(ctx, c.since.Add(-eventOverlap), eventBatch+len(c.seen))
	if err != nil {
		return nil, err
	}
	var fresh []bus.Message
	for _, m := range msgs {
		if _, ok := c.seen[m.ID]; ok {
			continue
		}
		if len(fresh) == eventBatch {
			break
		}
		fresh = append(fresh, m)
		c.seen[m.ID] = m.CreatedAt
		if m.CreatedAt.After(c.since) {
			c.since = m.CreatedAt
		}
	}
	cutoff := c.since.Add(-eventOverlap)
	for id, at := range c.seen {
		if at.Before(cutoff) {
			delete(c.seen, id)
		}
	}
	return fresh, nil
}

// handleEvents streams new bus activity as server-sent events until the
// client goes away.
func (s *Server) handleEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()

	cursor, err := newActivityCursor(ctx, s.Bus, time.Now())
	if err != nil {
		s.log.Warn("events: prime cursor", zap.Error(err))
	}

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
	c.Writer.Flush()

	ticker := time.NewTicker(s.opts.EventPoll)
	heartbeat := time.NewTicker(s.opts.EventHeartbeat)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case <-ticker.C:
			msgs, err := cursor.next(ctx)
			if err != nil {
				s.log.Debug("events: poll", zap.Error(err))
				continue
			}
			if len(msgs) == 0 {
				continue
			}
			writeSSE(c.Writer, "activity", msgs)
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single named event.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}
