package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/kriya/internal/errdefs"
	"github.com/zulandar/kriya/internal/models"
	"github.com/zulandar/kriya/internal/store"
	"github.com/zulandar/kriya/internal/testutil"
)

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	return n.err
}

func newTestQueue(t *testing.T, n Notifier) *Queue {
	t.Helper()
	return New(store.New(testutil.NewDB(t)), n, nil)
}

func TestEnqueue_NotifiesAndListsPending(t *testing.T) {
	n := &recordingNotifier{}
	q := newTestQueue(t, n)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, "computer", `{"messages":[]}`)
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, "computer", "second")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionToBridge, a.Direction)
	assert.Equal(t, string(models.BridgePending), a.Status)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[1].ID)
	assert.Equal(t, []string{"Bridge request for computer", "Bridge request for computer"}, n.subjects)
}

func TestEnqueue_NotifyFailureIgnored(t *testing.T) {
	q := newTestQueue(t, &recordingNotifier{err: errors.New("webhook down")})
	_, err := q.Enqueue(context.Background(), "computer", "x")
	require.NoError(t, err)
}

func TestClaimThenComplete(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	item, err := q.Enqueue(ctx, "computer", "x")
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.BridgeProcessing), claimed.Status)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = q.Claim(ctx, item.ID)
	assert.True(t, errdefs.IsTransition(err))

	done, err := q.Complete(ctx, item.ID, "meow")
	require.NoError(t, err)
	assert.Equal(t, string(models.BridgeCompleted), done.Status)
	require.NotNil(t, done.Response)
	assert.Equal(t, "meow", *done.Response)

	_, err = q.Complete(ctx, item.ID, "again")
	assert.True(t, errdefs.IsTransition(err))
}

func TestComplete_Errors(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()

	_, err := q.Complete(ctx, "missing", "x")
	assert.True(t, errdefs.IsNotFound(err))

	item, err := q.Enqueue(ctx, "computer", "x")
	require.NoError(t, err)
	_, err = q.Complete(ctx, item.ID, "  ")
	assert.True(t, errdefs.IsValidation(err))
}

func TestAwait_Timeout(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	item, err := q.Enqueue(ctx, "computer", "x")
	require.NoError(t, err)

	got, completed, err := q.Await(ctx, item.ID, 5*time.Millisecond, 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, string(models.BridgePending), got.Status)
}

func TestAwait_WokenByComplete(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	item, err := q.Enqueue(ctx, "computer", "x")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = q.Complete(ctx, item.ID, "done")
	}()

	start := time.Now()
	got, completed, err := q.Await(ctx, item.ID, time.Hour, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, "done", *got.Response)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAwait_SeesOutOfProcessCompletion(t *testing.T) {
	gdb := testutil.NewDB(t)
	st := store.New(gdb)
	q := New(st, nil, nil)
	ctx := context.Background()
	item, err := q.Enqueue(ctx, "computer", "x")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		resp := "polled"
		_, _ = st.TransitionBridgeItem(ctx, item.ID, models.BridgePending, models.BridgeCompleted, &resp)
	}()

	got, completed, err := q.Await(ctx, item.ID, 5*time.Millisecond, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, "polled", *got.Response)
}

func TestAwait_Cancelled(t *testing.T) {
	q := newTestQueue(t, nil)
	item, err := q.Enqueue(context.Background(), "computer", "x")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, completed, err := q.Await(ctx, item.ID, 5*time.Millisecond, time.Second)
	assert.False(t, completed)
	assert.ErrorIs(t, err, context.Canceled)

	// The item is not removed.
	got, err := q.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.BridgePending), got.Status)
}
