// Package relay serves one chat turn: it validates the request, persists the
// user turn, and streams the agent's answer to the client from either an
// upstream provider or the bridge queue. Completed answers are persisted and
// handed to the directive extractor.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zulandar/kriya/internal/agents"
	"github.com/zulandar/kriya/internal/bridge"
	"github.com/zulandar/kriya/internal/bus"
	"github.com/zulandar/kriya/internal/directive"
	"github.com/zulandar/kriya/internal/errdefs"
	"github.com/zulandar/kriya/internal/logging"
	"github.com/zulandar/kriya/internal/models"
	"github.com/zulandar/kriya/internal/overview"
	"github.com/zulandar/kriya/internal/provider"
	"github.com/zulandar/kriya/internal/store"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// readChunk sizes upstream body reads.
const readChunk = 4096

// ChatTurn is one client-supplied message.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat endpoint body.
type ChatRequest struct {
	AgentID   string     `json:"agentId"`
	Messages  []ChatTurn `json:"messages"`
	SessionID string     `json:"sessionId,omitempty"`
}

// Config tunes the relay.
type Config struct {
	OverviewAgent  string
	BridgePoll     time.Duration
	BridgeTimeout  time.Duration
	ReplayDelay    time.Duration
	PendingMessage string
}

// Deps are the collaborators of a Relay.
type Deps struct {
	Store      *store.Store
	Agents     *agents.Directory
	Bus        *bus.Bus
	Overview   *overview.Builder
	Providers  *provider.Registry
	Bridge     *bridge.Queue
	Extractor  *directive.Extractor
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Relay handles chat turns. It holds no per-request state.
type Relay struct {
	Deps
	cfg Config
	log *zap.Logger
}

// New returns a Relay.
func New(deps Deps, cfg Config) *Relay {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	return &Relay{Deps: deps, cfg: cfg, log: logging.OrNop(deps.Logger)}
}

// Chat runs one turn for userID, writing frames to sink. A returned error
// means nothing was streamed and the caller should answer directly; once the
// stream is open every failure is reported as an error frame instead.
func (r *Relay) Chat(ctx context.Context, userID string, req ChatRequest, sink Sink) error {
	if err := validate(req); err != nil {
		return err
	}
	agent, err := r.Agents.Lookup(ctx, userID, req.AgentID)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	var p provider.Provider
	if !agent.IsBridge() {
		if p, err = r.Providers.Get(agent.Provider); err != nil {
			return fmt.Errorf("relay: %w", err)
		}
		if err := p.Check(); err != nil {
			return fmt.Errorf("relay: %w", err)
		}
	}

	if turn, ok := lastUserTurn(req.Messages); ok {
		entry := models.ConversationEntry{
			AgentID:   agent.ID,
			Role:      turn.Role,
			Content:   turn.Content,
			SessionID: req.SessionID,
		}
		if err := r.Store.AppendEntry(ctx, &entry); err != nil {
			return fmt.Errorf("relay: persist user turn: %w", err)
		}
	}

	log := r.log.With(zap.String("agent", agent.ID), zap.String("user", userID))
	if agent.IsBridge() {
		return r.bridgeRoute(ctx, log, agent, userID, req, sink)
	}
	return r.providerRoute(ctx, log, p, agent, userID, req, sink)
}

func validate(req ChatRequest) error {
	if strings.TrimSpace(req.AgentID) == "" {
		return fmt.Errorf("relay: agentId is required: %w", errdefs.ErrValidation)
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("relay: messages must be a non-empty array: %w", errdefs.ErrValidation)
	}
	for i, m := range req.Messages {
		if !models.ValidRole(m.Role) {
			return fmt.Errorf("relay: messages[%d]: invalid role %q: %w", i, m.Role, errdefs.ErrValidation)
		}
	}
	return nil
}

func lastUserTurn(turns []ChatTurn) (ChatTurn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == models.RoleUser {
			return turns[i], true
		}
	}
	return ChatTurn{}, false
}

// systemPrompt augments the agent prompt once per turn: the overview agent
// gets a state snapshot, every other agent gets its unread inbox. The inbox
// is returned unconsumed; the caller marks it read once upstream accepts the
// request.
func (r *Relay) systemPrompt(ctx context.Context, log *zap.Logger, agent agents.Agent, userID string) (string, []bus.Message) {
	prompt := agent.SystemPrompt
	if agent.ID == r.cfg.OverviewAgent {
		if r.Overview == nil {
			return prompt, nil
		}
		section, err := r.Overview.PromptSection(ctx, userID)
		if err != nil {
			log.Warn("overview snapshot failed", zap.Error(err))
			return prompt, nil
		}
		return prompt + section, nil
	}

	inbox, err := r.Bus.PeekUnread(ctx, agent.ID)
	if err != nil {
		log.Warn("inbox read failed", zap.Error(err))
		return prompt, nil
	}
	if len(inbox) == 0 {
		return prompt, nil
	}
	lines := make([]string, len(inbox))
	for i, m := range inbox {
		lines[i] = fmt.Sprintf("[%s]: %s", m.From, m.Content)
	}
	return prompt + "\n\n--- MESSAGES FROM OTHER AGENTS ---\n" + strings.Join(lines, "\n") + "\n--- END MESSAGES ---", inbox
}

// outcome is how an upstream stream ended.
type outcome int

const (
	outcomeDone outcome = iota
	outcomeUpstreamError
	outcomeTruncated
	outcomeClientGone
)

func (r *Relay) providerRoute(ctx context.Context, log *zap.Logger, p provider.Provider, agent agents.Agent, userID string, req ChatRequest, sink Sink) error {
	turns := make([]provider.Turn, len(req.Messages))
	for i, m := range req.Messages {
		turns[i] = provider.Turn{Role: m.Role, Content: m.Content}
	}
	prompt, inbox := r.systemPrompt(ctx, log, agent, userID)
	preq := provider.Request{
		Model:        agent.Model,
		SystemPrompt: prompt,
		Messages:     turns,
		Temperature:  &agent.Temperature,
		MaxTokens:    agent.MaxTokens,
	}

	upCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	httpReq, err := p.NewRequest(upCtx, preq)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	resp, err := r.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("client gone before upstream answered")
			return nil
		}
		log.Warn("upstream request failed", zap.String("provider", p.Name()), zap.Error(err))
		return fmt.Errorf("relay: %s: %v: %w", p.Name(), err, errdefs.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn("upstream returned error status",
			zap.String("provider", p.Name()), zap.Int("status", resp.StatusCode), zap.String("body", logging.Preview(string(body), 200)))
		return fmt.Errorf("relay: %s returned %d: %s: %w", p.Name(), resp.StatusCode, strings.TrimSpace(string(body)), errdefs.ErrUpstream)
	}

	if err := r.Bus.MarkRead(context.WithoutCancel(ctx), agent.ID, inbox); err != nil {
		log.Warn("inbox mark read failed", zap.Error(err))
	} else if len(inbox) > 0 {
		log.Debug("inbox injected", zap.Int("messages", len(inbox)))
	}

	text, how, upstreamMsg := r.pump(ctx, log, p, resp.Body, sink, cancel)

	// Persistence must outlive the client connection.
	persistCtx := context.WithoutCancel(ctx)
	switch how {
	case outcomeDone:
		r.persistAssistant(persistCtx, log, agent.ID, req.SessionID, text, nil)
		res := r.Extractor.Process(persistCtx, agent.ID, text)
		log.Debug("turn complete", zap.Int("chars", len(text)), zap.Int("handoffs", res.Handoffs),
			zap.Int("messages", res.Messages), zap.Int("broadcasts", res.Broadcasts))
		r.finish(log, sink, Frame{Done: true})
	case outcomeClientGone:
		r.persistAssistant(persistCtx, log, agent.ID, req.SessionID, text, partial("client_disconnect"))
		log.Info("client disconnected mid-stream", zap.Int("chars", len(text)))
	case outcomeUpstreamError:
		r.persistAssistant(persistCtx, log, agent.ID, req.SessionID, text, partial("upstream_error"))
		log.Warn("upstream stream error", zap.String("provider", p.Name()), zap.String("error", upstreamMsg))
		r.finish(log, sink, Frame{Error: "API error: " + upstreamMsg})
	case outcomeTruncated:
		r.persistAssistant(persistCtx, log, agent.ID, req.SessionID, text, partial("truncated"))
		log.Warn("upstream stream ended without terminator", zap.String("provider", p.Name()))
		r.finish(log, sink, Frame{Error: "upstream stream ended before completion"})
	}
	return nil
}

// pump reads the upstream body chunk by chunk, reassembles lines, and
// forwards every decoded delta. It returns the accumulated text and how the
// stream ended.
func (r *Relay) pump(ctx context.Context, log *zap.Logger, p provider.Provider, body io.Reader, sink Sink, cancel context.CancelFunc) (string, outcome, string) {
	var (
		acc         strings.Builder
		lines       LineBuffer
		how         = outcomeTruncated
		upstreamMsg string
		finished    bool
	)

	handle := func(line []byte) bool {
		data, ok := dataPayload(line)
		if !ok {
			return true
		}
		ev, ok := p.Decode(data)
		if !ok {
			log.Debug("skipping malformed frame", zap.String("frame", logging.Preview(string(data), 120)))
			return true
		}
		if ev.Err != "" {
			how, upstreamMsg, finished = outcomeUpstreamError, ev.Err, true
			return false
		}
		if ev.Delta != "" {
			acc.WriteString(ev.Delta)
			if err := sink.Send(Frame{Content: ev.Delta}); err != nil {
				how, finished = outcomeClientGone, true
				cancel()
				return false
			}
		}
		if ev.Done {
			how, finished = outcomeDone, true
			return false
		}
		return true
	}

	buf := make([]byte, readChunk)
	for !finished {
		n, err := body.Read(buf)
		if n > 0 && !lines.Feed(buf[:n], handle) {
			break
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if rest := lines.Flush(); len(rest) > 0 {
				handle(rest)
			}
			break
		}
		if ctx.Err() != nil {
			how = outcomeClientGone
		} else {
			how, upstreamMsg = outcomeUpstreamError, err.Error()
		}
		break
	}
	return acc.String(), how, upstreamMsg
}

// dataPayload extracts the payload of an SSE "data:" line.
func dataPayload(line []byte) ([]byte, bool) {
	s := strings.TrimSpace(string(line))
	if !strings.HasPrefix(s, "data:") {
		return nil, false
	}
	payload := strings.TrimSpace(s[len("data:"):])
	if payload == "" {
		return nil, false
	}
	return []byte(payload), true
}

func partial(reason string) map[string]any {
	return map[string]any{"partial": true, "reason": reason}
}

func (r *Relay) persistAssistant(ctx context.Context, log *zap.Logger, agentID, sessionID, text string, meta map[string]any) {
	if text == "" {
		return
	}
	entry := models.ConversationEntry{
		AgentID:   agentID,
		Role:      models.RoleAssistant,
		Content:   text,
		SessionID: sessionID,
	}
	if meta != nil {
		raw, err := json.Marshal(meta)
		if err == nil {
			entry.Metadata = datatypes.JSON(raw)
		}
	}
	if err := r.Store.AppendEntry(ctx, &entry); err != nil {
		log.Error("persist assistant turn failed", zap.Error(err))
	}
}

// finish sends the terminal frame and the sentinel.
func (r *Relay) finish(log *zap.Logger, sink Sink, last Frame) {
	if err := sink.Send(last); err != nil {
		log.Debug("terminal frame not delivered", zap.Error(err))
		return
	}
	if err := sink.Close(); err != nil {
		log.Debug("stream close failed", zap.Error(err))
	}
}
