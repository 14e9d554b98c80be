package bus

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/kriya/internal/errdefs"
	"github.com/zulandar/kriya/internal/models"
	"github.com/zulandar/kriya/internal/store"
	"github.com/zulandar/kriya/internal/testutil"
)

type agentSet map[string]bool

func (s agentSet) Has(id string) bool { return s[id] }

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	return New(store.New(testutil.NewDB(t)), agentSet{"coder": true, "writer": true, "planner": true}, nil)
}

func TestSend_Validation(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	tests := []struct {
		name                   string
		from, to, content, typ string
		notFound               bool
	}{
		{name: "missing from", to: "coder", content: "x"},
		{name: "missing to", from: "planner", content: "x"},
		{name: "missing content", from: "planner", to: "coder", content: "  "},
		{name: "bad type", from: "planner", to: "coder", content: "x", typ: "gossip"},
		{name: "handoff type without a handoff", from: "planner", to: "coder", content: "x", typ: models.MessageTypeHandoff},
		{name: "unknown recipient", from: "planner", to: "ghost", content: "x", notFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Send(ctx, tt.from, tt.to, tt.content, tt.typ)
			require.Error(t, err)
			if tt.notFound {
				assert.True(t, errdefs.IsNotFound(err))
			} else {
				assert.True(t, errdefs.IsValidation(err))
			}
		})
	}

	activity, err := b.Activity(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, activity, "validation failures must not persist")

	_, _, err = b.SendOnce(ctx, "k1", "planner", "coder", "x", models.MessageTypeHandoff)
	assert.True(t, errdefs.IsValidation(err))
	pending, err := b.PendingHandoffs(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGetUnreadFor_ConsumesOnce(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	_, err := b.Send(ctx, "planner", "coder", "first", "")
	require.NoError(t, err)
	_, err = b.Send(ctx, "planner", "coder", "second", models.MessageTypeRequest)
	require.NoError(t, err)

	inbox, err := b.GetUnreadFor(ctx, "coder")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "first", inbox[0].Content)
	assert.Equal(t, models.MessageTypeMessage, inbox[0].Type)

	again, err := b.GetUnreadFor(ctx, "coder")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBroadcast_VisibleToEveryInbox(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	_, err := b.Send(ctx, "planner", models.BroadcastRecipient, "standup", models.MessageTypeBroadcast)
	require.NoError(t, err)

	for _, id := range []string{"writer", "coder"} {
		msgs, err := b.MessagesFor(ctx, id, 100)
		require.NoError(t, err)
		require.Len(t, msgs, 1, id)
		assert.Equal(t, "standup", msgs[0].Content)
	}
}

func TestBroadcast_ConsumedPerAgent(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	_, err := b.Send(ctx, "planner", models.BroadcastRecipient, "standup", models.MessageTypeBroadcast)
	require.NoError(t, err)

	for _, id := range []string{"writer", "coder"} {
		inbox, err := b.GetUnreadFor(ctx, id)
		require.NoError(t, err)
		require.Len(t, inbox, 1, id)
		assert.Equal(t, "standup", inbox[0].Content)

		again, err := b.GetUnreadFor(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, again, id)
	}
}

func TestCreateHandoff_WritesCompanionMessage(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	h, err := b.CreateHandoff(ctx, "planner", "coder", "build X", map[string]any{"sourceResponsePrefix": "abc"})
	require.NoError(t, err)
	assert.Equal(t, string(models.HandoffPending), h.Status)
	assert.Equal(t, "abc", h.Context["sourceResponsePrefix"])

	activity, err := b.Activity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, models.MessageTypeHandoff, activity[0].Type)
	assert.Equal(t, "HANDOFF: build X", activity[0].Content)
	assert.Equal(t, "coder", activity[0].To)

	pending, err := b.PendingHandoffs(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, h.ID, pending[0].ID)
}

func TestCreateHandoff_Validation(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	_, err := b.CreateHandoff(ctx, "planner", models.BroadcastRecipient, "x", nil)
	assert.True(t, errdefs.IsValidation(err))
	_, err = b.CreateHandoff(ctx, "planner", "coder", "", nil)
	assert.True(t, errdefs.IsValidation(err))
	_, err = b.CreateHandoff(ctx, "planner", "ghost", "x", nil)
	assert.True(t, errdefs.IsNotFound(err))
}

func TestCreateHandoffOnce_Idempotent(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	h1, created, err := b.CreateHandoffOnce(ctx, "key-1", "planner", "coder", "build X", nil)
	require.NoError(t, err)
	assert.True(t, created)
	h2, created, err := b.CreateHandoffOnce(ctx, "key-1", "planner", "coder", "build X", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, h1.ID, h2.ID)

	all, err := b.Handoffs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	activity, err := b.Activity(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, activity, 1)
}

func TestUpdateHandoff_Lifecycle(t *testing.T) {
	tests := []struct {
		name  string
		path  []models.HandoffStatus
		final models.HandoffStatus
		bad   models.HandoffStatus
	}{
		{"completed is terminal", []models.HandoffStatus{models.HandoffAccepted, models.HandoffCompleted}, models.HandoffCompleted, models.HandoffAccepted},
		{"rejected from pending is terminal", []models.HandoffStatus{models.HandoffRejected}, models.HandoffRejected, models.HandoffPending},
		{"rejected from accepted is terminal", []models.HandoffStatus{models.HandoffAccepted, models.HandoffRejected}, models.HandoffRejected, models.HandoffCompleted},
		{"pending cannot complete", nil, models.HandoffPending, models.HandoffCompleted},
		{"same state is illegal", []models.HandoffStatus{models.HandoffAccepted}, models.HandoffAccepted, models.HandoffAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBus(t)
			ctx := context.Background()
			h, err := b.CreateHandoff(ctx, "planner", "coder", "task", nil)
			require.NoError(t, err)
			for _, s := range tt.path {
				_, err := b.UpdateHandoff(ctx, h.ID, s, nil)
				require.NoError(t, err)
			}

			_, err = b.UpdateHandoff(ctx, h.ID, tt.bad, nil)
			require.Error(t, err)
			assert.True(t, errdefs.IsTransition(err))

			got, err := b.GetHandoff(ctx, h.ID)
			require.NoError(t, err)
			assert.Equal(t, string(tt.final), got.Status)
		})
	}
}

func TestUpdateHandoff_Result(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()
	h, err := b.CreateHandoff(ctx, "planner", "coder", "task", nil)
	require.NoError(t, err)
	_, err = b.UpdateHandoff(ctx, h.ID, models.HandoffAccepted, nil)
	require.NoError(t, err)
	result := "shipped"
	done, err := b.UpdateHandoff(ctx, h.ID, models.HandoffCompleted, &result)
	require.NoError(t, err)
	require.NotNil(t, done.Result)
	assert.Equal(t, "shipped", *done.Result)
}

func TestUpdateHandoff_Errors(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	_, err := b.UpdateHandoff(ctx, "missing", models.HandoffAccepted, nil)
	assert.True(t, errdefs.IsNotFound(err))

	h, err := b.CreateHandoff(ctx, "planner", "coder", "task", nil)
	require.NoError(t, err)
	_, err = b.UpdateHandoff(ctx, h.ID, "archived", nil)
	assert.True(t, errdefs.IsValidation(err))
}

func TestUpdateHandoff_ConcurrentTransitions(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()
	h, err := b.CreateHandoff(ctx, "planner", "coder", "task", nil)
	require.NoError(t, err)

	targets := []models.HandoffStatus{models.HandoffAccepted, models.HandoffRejected}
	var wg sync.WaitGroup
	for _, s := range targets {
		wg.Add(1)
		go func(s models.HandoffStatus) {
			defer wg.Done()
			_, _ = b.UpdateHandoff(ctx, h.ID, s, nil)
		}(s)
	}
	wg.Wait()

	got, err := b.GetHandoff(ctx, h.ID)
	require.NoError(t, err)
	assert.Contains(t, []string{"accepted", "rejected"}, got.Status)
}
