// Package bus is the agent bus: messages, broadcasts, and handoffs between
// agents, persisted through the store. It keeps no state of its own.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/kriya/internal/errdefs"
	"github.com/zulandar/kriya/internal/logging"
	"github.com/zulandar/kriya/internal/models"
	"github.com/zulandar/kriya/internal/store"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// HandoffPrefix starts the content of every handoff companion message.
const HandoffPrefix = "HANDOFF: "

// Agents reports which recipient IDs exist. *agents.Directory satisfies it.
type Agents interface {
	Has(id string) bool
}

// Bus is a facade over the store. It validates requests before writing.
type Bus struct {
	store  *store.Store
	agents Agents
	log    *zap.Logger
}

// New returns a Bus. agents may be nil to accept any recipient.
func New(st *store.Store, agents Agents, log *zap.Logger) *Bus {
	return &Bus{store: st, agents: agents, log: logging.OrNop(log)}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("bus: %s: %w", fmt.Sprintf(format, args...), errdefs.ErrValidation)
}

func (b *Bus) validateMessage(from, to, content, typ string) error {
	if strings.TrimSpace(from) == "" {
		return invalid("from is required")
	}
	if strings.TrimSpace(to) == "" {
		return invalid("to is required")
	}
	if strings.TrimSpace(content) == "" {
		return invalid("content is required")
	}
	if !models.ValidMessageType(typ) {
		return invalid("unknown message type %q", typ)
	}
	if to != models.BroadcastRecipient && b.agents != nil && !b.agents.Has(to) {
		return fmt.Errorf("bus: recipient %q: %w", to, errdefs.ErrNotFound)
	}
	return nil
}

// Send persists a message. to may be models.BroadcastRecipient. An empty typ
// means models.MessageTypeMessage.
func (b *Bus) Send(ctx context.Context, from, to, content, typ string) (Message, error) {
	if err := callerType(typ); err != nil {
		return Message{}, err
	}
	m, _, err := b.send(ctx, nil, from, to, content, typ)
	return m, err
}

// SendOnce is Send keyed by dedupeKey: repeating a key returns the original
// message and created=false.
func (b *Bus) SendOnce(ctx context.Context, dedupeKey, from, to, content, typ string) (msg Message, created bool, err error) {
	if err := callerType(typ); err != nil {
		return Message{}, false, err
	}
	return b.send(ctx, &dedupeKey, from, to, content, typ)
}

// callerType rejects types callers may not send directly. Handoff messages
// only exist alongside a Handoff record, so only createHandoff writes them.
func callerType(typ string) error {
	if typ == models.MessageTypeHandoff {
		return invalid("type %q is reserved for handoffs; use CreateHandoff", typ)
	}
	return nil
}

func (b *Bus) send(ctx context.Context, key *string, from, to, content, typ string) (Message, bool, error) {
	if typ == "" {
		typ = models.MessageTypeMessage
	}
	if err := b.validateMessage(from, to, content, typ); err != nil {
		return Message{}, false, err
	}
	m := models.Message{
		FromAgent: from,
		ToAgent:   to,
		Content:   content,
		Type:      typ,
		DedupeKey: key,
	}
	created, err := b.store.InsertMessage(ctx, &m)
	if err != nil {
		return Message{}, false, fmt.Errorf("bus: send: %w", err)
	}
	if created {
		b.log.Debug("message sent",
			zap.String("id", m.ID), zap.String("from", from), zap.String("to", to), zap.String("type", typ))
	}
	return messageFromModel(m), created, nil
}

// CreateHandoff persists a pending handoff and then a companion message of
// type handoff carrying HandoffPrefix+task. The handoff is canonical; a
// failure writing the companion is logged and does not fail the call.
func (b *Bus) CreateHandoff(ctx context.Context, from, to, task string, hctx map[string]any) (Handoff, error) {
	h, _, err := b.createHandoff(ctx, nil, from, to, task, hctx)
	return h, err
}

// CreateHandoffOnce is CreateHandoff keyed by dedupeKey.
func (b *Bus) CreateHandoffOnce(ctx context.Context, dedupeKey, from, to, task string, hctx map[string]any) (h Handoff, created bool, err error) {
	return b.createHandoff(ctx, &dedupeKey, from, to, task, hctx)
}

func (b *Bus) createHandoff(ctx context.Context, key *string, from, to, task string, hctx map[string]any) (Handoff, bool, error) {
	if strings.TrimSpace(from) == "" {
		return Handoff{}, false, invalid("from is required")
	}
	if strings.TrimSpace(to) == "" || to == models.BroadcastRecipient {
		return Handoff{}, false, invalid("to must name one agent")
	}
	if strings.TrimSpace(task) == "" {
		return Handoff{}, false, invalid("task is required")
	}
	if b.agents != nil && !b.agents.Has(to) {
		return Handoff{}, false, fmt.Errorf("bus: recipient %q: %w", to, errdefs.ErrNotFound)
	}

	h := models.Handoff{
		FromAgent: from,
		ToAgent:   to,
		Task:      task,
		Status:    models.HandoffPending,
		DedupeKey: key,
	}
	if len(hctx) > 0 {
		raw, err := json.Marshal(hctx)
		if err != nil {
			return Handoff{}, false, invalid("context: %v", err)
		}
		h.Context = datatypes.JSON(raw)
	}
	created, err := b.store.CreateHandoff(ctx, &h)
	if err != nil {
		return Handoff{}, false, fmt.Errorf("bus: create handoff: %w", err)
	}
	if !created {
		return handoffFromModel(h), false, nil
	}

	var msgKey *string
	if key != nil {
		k := *key + ":msg"
		msgKey = &k
	}
	if _, _, err := b.send(ctx, msgKey, from, to, HandoffPrefix+task, models.MessageTypeHandoff); err != nil {
		b.log.Error("handoff companion message failed", zap.String("handoff", h.ID), zap.Error(err))
	}
	b.log.Info("handoff created", zap.String("id", h.ID), zap.String("from", from), zap.String("to", to))
	return handoffFromModel(h), true, nil
}

// UpdateHandoff moves handoff id to status, setting result when non-nil.
// Illegal transitions, including any out of a terminal status, fail with
// errdefs.ErrTransition and leave the record unchanged.
func (b *Bus) UpdateHandoff(ctx context.Context, id string, status models.HandoffStatus, result *string) (Handoff, error) {
	if !status.Valid() {
		return Handoff{}, invalid("unknown handoff status %q", status)
	}
	cur, err := b.store.GetHandoff(ctx, id)
	if err != nil {
		return Handoff{}, fmt.Errorf("bus: update handoff: %w", err)
	}
	if !cur.Status.CanTransitionTo(status) {
		return Handoff{}, fmt.Errorf("bus: handoff %s %s -> %s: %w", id, cur.Status, status, errdefs.ErrTransition)
	}
	applied, err := b.store.TransitionHandoff(ctx, id, cur.Status, status, result)
	if err != nil {
		return Handoff{}, fmt.Errorf("bus: update handoff: %w", err)
	}
	if !applied {
		return Handoff{}, fmt.Errorf("bus: handoff %s changed concurrently from %s: %w", id, cur.Status, errdefs.ErrTransition)
	}
	updated, err := b.store.GetHandoff(ctx, id)
	if err != nil {
		return Handoff{}, fmt.Errorf("bus: update handoff: %w", err)
	}
	b.log.Info("handoff transitioned",
		zap.String("id", id), zap.String("from", string(cur.Status)), zap.String("to", string(status)))
	return handoffFromModel(*updated), nil
}

// GetHandoff returns one handoff.
func (b *Bus) GetHandoff(ctx context.Context, id string) (Handoff, error) {
	h, err := b.store.GetHandoff(ctx, id)
	if err != nil {
		return Handoff{}, fmt.Errorf("bus: %w", err)
	}
	return handoffFromModel(*h), nil
}

// GetUnreadFor returns agentID's unread inbox, oldest first, and marks every
// returned message read for agentID. A second call returns nothing new. A
// broadcast stays unread for every other agent.
func (b *Bus) GetUnreadFor(ctx context.Context, agentID string) ([]Message, error) {
	msgs, err := b.PeekUnread(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := b.MarkRead(ctx, agentID, msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Read = true
	}
	return msgs, nil
}

// PeekUnread returns agentID's unread inbox, oldest first, without consuming
// it. Pair it with MarkRead once the messages have been delivered.
func (b *Bus) PeekUnread(ctx context.Context, agentID string) ([]Message, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, invalid("agent id is required")
	}
	msgs, err := b.store.UnreadFor(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("bus: unread: %w", err)
	}
	return messagesFromModels(msgs), nil
}

// MarkRead consumes msgs for agentID.
func (b *Bus) MarkRead(ctx context.Context, agentID string, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	if err := b.store.MarkRead(ctx, agentID, ids...); err != nil {
		return fmt.Errorf("bus: mark read: %w", err)
	}
	return nil
}

// MessagesFor lists the newest limit messages to agentID or all, without
// marking them read.
func (b *Bus) MessagesFor(ctx context.Context, agentID string, limit int) ([]Message, error) {
	msgs, err := b.store.MessagesFor(ctx, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}
	return messagesFromModels(msgs), nil
}

// Activity returns the newest limit messages across all agents, newest first.
func (b *Bus) Activity(ctx context.Context, limit int) ([]Message, error) {
	msgs, err := b.store.Activity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}
	return messagesFromModels(msgs), nil
}

// MessagesSince returns messages created at or after since, oldest first.
func (b *Bus) MessagesSince(ctx context.Context, since time.Time, limit int) ([]Message, error) {
	msgs, err := b.store.MessagesSince(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}
	return messagesFromModels(msgs), nil
}

// PendingHandoffs returns every pending handoff, oldest first.
func (b *Bus) PendingHandoffs(ctx context.Context) ([]Handoff, error) {
	hs, err := b.store.PendingHandoffs(ctx)
	if err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}
	return handoffsFromModels(hs), nil
}

// Handoffs returns the newest limit handoffs in any status.
func (b *Bus) Handoffs(ctx context.Context, limit int) ([]Handoff, error) {
	hs, err := b.store.Handoffs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}
	return handoffsFromModels(hs), nil
}
