package directive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/kriya/internal/agents"
	"github.com/zulandar/kriya/internal/bus"
	"github.com/zulandar/kriya/internal/config"
	"github.com/zulandar/kriya/internal/models"
	"github.com/zulandar/kriya/internal/store"
	"github.com/zulandar/kriya/internal/testutil"
)

func newFixture(t *testing.T) (*Extractor, *bus.Bus) {
	t.Helper()
	dir, err := agents.New([]config.AgentConfig{
		{ID: "planner", Provider: "p"},
		{ID: "coder", Provider: "p"},
		{ID: "writer", Provider: "p"},
	}, nil, nil)
	require.NoError(t, err)
	b := bus.New(store.New(testutil.NewDB(t)), dir, nil)
	return NewExtractor(b, dir, nil), b
}

func TestProcess_TwoHandoffs(t *testing.T) {
	ctx := context.Background()
	ex, b := newFixture(t)

	res := ex.Process(ctx, "planner", "[HANDOFF:coder] build X [HANDOFF:writer] doc Y")
	assert.Equal(t, 2, res.Handoffs)

	hs, err := b.PendingHandoffs(ctx)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, "coder", hs[0].To)
	assert.Equal(t, "build X", hs[0].Task)
	assert.Equal(t, "writer", hs[1].To)
	assert.Equal(t, "doc Y", hs[1].Task)
	assert.Equal(t, "planner", hs[0].From)
	assert.Equal(t, "[HANDOFF:coder] build X [HANDOFF:writer] doc Y", hs[0].Context["sourceResponsePrefix"])
}

func TestProcess_MixedKinds(t *testing.T) {
	ctx := context.Background()
	ex, b := newFixture(t)

	text := "Plan ready.\n[MSG:CODER] please review\n[BROADCAST] standup at 10\n[MSG:ghost] lost"
	res := ex.Process(ctx, "planner", text)
	assert.Equal(t, Result{Messages: 1, Broadcasts: 1, Dropped: 1}, res)

	inbox, err := b.GetUnreadFor(ctx, "coder")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, models.MessageTypeRequest, inbox[0].Type)
	assert.Equal(t, "please review\n[BROADCAST] standup at 10", inbox[0].Content)
	assert.Equal(t, models.MessageTypeBroadcast, inbox[1].Type)
	assert.Equal(t, models.BroadcastRecipient, inbox[1].To)
}

func TestProcess_IdempotentUnderRetry(t *testing.T) {
	ctx := context.Background()
	ex, b := newFixture(t)
	text := "[HANDOFF:coder] build X [MSG:writer] hello"

	first := ex.Process(ctx, "planner", text)
	assert.Equal(t, 1, first.Handoffs)
	assert.Equal(t, 1, first.Messages, "MSG text inside a handoff payload is still its own directive")

	second := ex.Process(ctx, "planner", text)
	assert.Equal(t, 0, second.Handoffs)
	assert.Equal(t, 0, second.Messages)
	assert.Equal(t, 2, second.Duplicates)

	all, err := b.Handoffs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProcess_NoDirectives(t *testing.T) {
	ex, b := newFixture(t)
	res := ex.Process(context.Background(), "planner", "nothing to see")
	assert.Equal(t, Result{}, res)

	activity, err := b.Activity(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, activity)
}

func TestDedupeKey_Distinct(t *testing.T) {
	a := Directive{Kind: KindHandoff, Target: "coder", Payload: "x", Ordinal: 0}
	b := Directive{Kind: KindHandoff, Target: "coder", Payload: "x", Ordinal: 1}
	assert.NotEqual(t, dedupeKey("p", "t", a), dedupeKey("p", "t", b))
	assert.Equal(t, dedupeKey("p", "t", a), dedupeKey("p", "t", a))
	assert.NotEqual(t, dedupeKey("p", "t", a), dedupeKey("q", "t", a))
	assert.Len(t, dedupeKey("p", "t", a), 32)
}
