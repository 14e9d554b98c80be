package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode"

	"github.com/zulandar/kriya/internal/agents"
	"go.uber.org/zap"
)

// bridgePayload is the queued work item content.
type bridgePayload struct {
	Messages  []ChatTurn `json:"messages"`
	User      string     `json:"user"`
	Timestamp time.Time  `json:"timestamp"`
}

func (r *Relay) bridgeRoute(ctx context.Context, log *zap.Logger, agent agents.Agent, userID string, req ChatRequest, sink Sink) error {
	raw, err := json.Marshal(bridgePayload{Messages: req.Messages, User: userID, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("relay: encode bridge payload: %w", err)
	}
	item, err := r.Bridge.Enqueue(ctx, agent.ID, string(raw))
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	log = log.With(zap.String("bridge_item", item.ID))
	if err := sink.Open(); err != nil {
		return nil
	}

	got, completed, err := r.Bridge.Await(ctx, item.ID, r.cfg.BridgePoll, r.cfg.BridgeTimeout)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("client gone while awaiting bridge; item left queued")
			return nil
		}
		log.Error("bridge await failed", zap.Error(err))
		r.finish(log, sink, Frame{Error: "bridge unavailable"})
		return nil
	}
	if !completed || got.Response == nil {
		log.Info("bridge wait timed out; item left queued", zap.String("status", got.Status))
		if err := sink.Send(Frame{Content: r.cfg.PendingMessage}); err != nil {
			return nil
		}
		r.finish(log, sink, Frame{Done: true})
		return nil
	}

	text := *got.Response
	persistCtx := context.WithoutCancel(ctx)
	r.persistAssistant(persistCtx, log, agent.ID, req.SessionID, text, nil)
	r.Extractor.Process(persistCtx, agent.ID, text)

	for _, tok := range replayTokens(text) {
		if err := sink.Send(Frame{Content: tok}); err != nil {
			log.Info("client gone during bridge replay")
			return nil
		}
		if r.cfg.ReplayDelay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.cfg.ReplayDelay):
		}
	}
	r.finish(log, sink, Frame{Done: true})
	return nil
}

// replayTokens splits s into words, each carrying its trailing whitespace,
// so that joining the tokens yields s.
func replayTokens(s string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, c := range s {
		space := unicode.IsSpace(c)
		if inSpace && !space && i > start {
			out = append(out, s[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
