// Package bridge queues work for the external bridge participant, an actor
// that answers by polling instead of through a completion API.
package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/kriya/internal/errdefs"
	"github.com/zulandar/kriya/internal/logging"
	"github.com/zulandar/kriya/internal/models"
	"github.com/zulandar/kriya/internal/store"
	"go.uber.org/zap"
)

// Item is the API projection of a bridge queue item.
type Item struct {
	ID          string     `json:"id"`
	Direction   string     `json:"direction"`
	AgentID     string     `json:"agentId"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	Response    *string    `json:"response,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func itemFromModel(m models.BridgeItem) Item {
	return Item{
		ID:          m.ID,
		Direction:   m.Direction,
		AgentID:     m.AgentID,
		Content:     m.Content,
		Status:      string(m.Status),
		Response:    m.Response,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		CompletedAt: m.CompletedAt,
	}
}

func itemsFromModels(ms []models.BridgeItem) []Item {
	out := make([]Item, len(ms))
	for i, m := range ms {
		out[i] = itemFromModel(m)
	}
	return out
}

// Notifier tells an operator that work is waiting. *notify.Multi satisfies it.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Queue is the bridge work queue. The store is the only shared state; the
// in-process wake channels only shorten Await's latency.
type Queue struct {
	store    *store.Store
	notifier Notifier
	log      *zap.Logger

	mu      sync.Mutex
	waiters map[string][]chan struct{}
}

// New returns a Queue. notifier may be nil.
func New(st *store.Store, notifier Notifier, log *zap.Logger) *Queue {
	return &Queue{
		store:    st,
		notifier: notifier,
		log:      logging.OrNop(log),
		waiters:  make(map[string][]chan struct{}),
	}
}

// Enqueue creates a pending to_bridge item and notifies the operator. A
// notification failure is logged only.
func (q *Queue) Enqueue(ctx context.Context, agentID, content string) (Item, error) {
	if strings.TrimSpace(agentID) == "" {
		return Item{}, fmt.Errorf("bridge: agent id is required: %w", errdefs.ErrValidation)
	}
	m := models.BridgeItem{AgentID: agentID, Content: content}
	if err := q.store.EnqueueBridgeItem(ctx, &m); err != nil {
		return Item{}, fmt.Errorf("bridge: enqueue: %w", err)
	}
	q.log.Info("bridge item queued", zap.String("id", m.ID), zap.String("agent", agentID))

	if q.notifier != nil {
		subject := fmt.Sprintf("Bridge request for %s", agentID)
		body := fmt.Sprintf("Item %s is waiting for a response.", m.ID)
		if err := q.notifier.Notify(ctx, subject, body); err != nil {
			q.log.Warn("bridge notify failed", zap.String("id", m.ID), zap.Error(err))
		}
	}
	return itemFromModel(m), nil
}

// Pending lists pending to_bridge items, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]Item, error) {
	ms, err := q.store.PendingBridgeItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	return itemsFromModels(ms), nil
}

// Stale lists incomplete items older than age.
func (q *Queue) Stale(ctx context.Context, age time.Duration) ([]Item, error) {
	ms, err := q.store.StaleBridgeItems(ctx, time.Now().Add(-age))
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	return itemsFromModels(ms), nil
}

// Get returns one item.
func (q *Queue) Get(ctx context.Context, id string) (Item, error) {
	m, err := q.store.GetBridgeItem(ctx, id)
	if err != nil {
		return Item{}, fmt.Errorf("bridge: %w", err)
	}
	return itemFromModel(*m), nil
}

// Claim moves a pending item to processing.
func (q *Queue) Claim(ctx context.Context, id string) (Item, error) {
	return q.transition(ctx, id, models.BridgeProcessing, nil)
}

// Complete stores response and moves the item to completed from pending or
// processing. Completing an item twice fails with errdefs.ErrTransition.
func (q *Queue) Complete(ctx context.Context, id, response string) (Item, error) {
	if strings.TrimSpace(response) == "" {
		return Item{}, fmt.Errorf("bridge: response is required: %w", errdefs.ErrValidation)
	}
	item, err := q.transition(ctx, id, models.BridgeCompleted, &response)
	if err != nil {
		return Item{}, err
	}
	q.wake(id)
	return item, nil
}

func (q *Queue) transition(ctx context.Context, id string, to models.BridgeStatus, response *string) (Item, error) {
	cur, err := q.store.GetBridgeItem(ctx, id)
	if err != nil {
		return Item{}, fmt.Errorf("bridge: %w", err)
	}
	if !cur.Status.CanTransitionTo(to) {
		return Item{}, fmt.Errorf("bridge: item %s %s -> %s: %w", id, cur.Status, to, errdefs.ErrTransition)
	}
	applied, err := q.store.TransitionBridgeItem(ctx, id, cur.Status, to, response)
	if err != nil {
		return Item{}, fmt.Errorf("bridge: %w", err)
	}
	if !applied {
		return Item{}, fmt.Errorf("bridge: item %s changed concurrently from %s: %w", id, cur.Status, errdefs.ErrTransition)
	}
	q.log.Info("bridge item transitioned",
		zap.String("id", id), zap.String("from", string(cur.Status)), zap.String("to", string(to)))
	return q.Get(ctx, id)
}

// Await polls item id every poll interval until it is completed, timeout
// elapses, or ctx is done. It checks at least once. completed is false on
// timeout; the item is left as it is. A Complete in this process wakes the
// wait early.
func (q *Queue) Await(ctx context.Context, id string, poll, timeout time.Duration) (item Item, completed bool, err error) {
	wake := q.subscribe(id)
	defer q.unsubscribe(id, wake)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		m, err := q.store.GetBridgeItem(ctx, id)
		if err != nil {
			return Item{}, false, fmt.Errorf("bridge: await: %w", err)
		}
		if m.Status == models.BridgeCompleted {
			return itemFromModel(*m), true, nil
		}

		select {
		case <-ctx.Done():
			return itemFromModel(*m), false, ctx.Err()
		case <-deadline.C:
			return itemFromModel(*m), false, nil
		case <-wake:
			wake = nil
		case <-ticker.C:
		}
	}
}

func (q *Queue) subscribe(id string) chan struct{} {
	ch := make(chan struct{})
	q.mu.Lock()
	q.waiters[id] = append(q.waiters[id], ch)
	q.mu.Unlock()
	return ch
}

func (q *Queue) unsubscribe(id string, ch chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.waiters[id]
	for i, c := range list {
		if c == ch {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(q.waiters, id)
	} else {
		q.waiters[id] = list
	}
}

func (q *Queue) wake(id string) {
	q.mu.Lock()
	list := q.waiters[id]
	delete(q.waiters, id)
	q.mu.Unlock()
	for _, ch := range list {
		close(ch)
	}
}
