package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStream = "coins:test-events"
	testGroup  = "coins-test"
	testIdle   = 20 * time.Millisecond
)

// flakyHandler fails its first failures calls.
type flakyHandler struct {
	mu       sync.Mutex
	failures int
	calls    []Event
}

func (h *flakyHandler) Handle(ctx context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, event)
	if len(h.calls) <= h.failures {
		return errors.New("discord unavailable")
	}
	return nil
}

func (h *flakyHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func newTestSubscriber(t *testing.T, handler Handler, maxDeliveries int64) (*Subscriber, *redis.Client) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.XGroupCreateMkStream(context.Background(), testStream, testGroup, "0").Err())
	sub := NewSubscriber(client, SubscriberConfig{
		Group:           testGroup,
		Consumer:        "worker-1",
		Stream:          testStream,
		Handler:         handler,
		BlockDuration:   10 * time.Millisecond,
		MinIdle:         testIdle,
		ReclaimInterval: testIdle,
		MaxDeliveries:   maxDeliveries,
	})
	return sub, client
}

func pendingCount(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	pending, err := client.XPending(context.Background(), testStream, testGroup).Result()
	require.NoError(t, err)
	return pending.Count
}

func TestSubscriber_AcksHandledMessages(t *testing.T) {
	handler := &flakyHandler{}
	sub, client := newTestSubscriber(t, handler.Handle, 5)
	ctx := context.Background()

	require.NoError(t, NewPublisher(client, 0).Publish(ctx, testStream, BalanceSet, BalanceSetEvent{MemberID: 1}))
	require.NoError(t, sub.readMessages(ctx))

	require.Equal(t, 1, handler.count())
	assert.Equal(t, BalanceSet, handler.calls[0].Type)
	assert.Zero(t, pendingCount(t, client))
}

func TestSubscriber_ReclaimsFailedMessage(t *testing.T) {
	handler := &flakyHandler{failures: 1}
	sub, client := newTestSubscriber(t, handler.Handle, 5)
	ctx := context.Background()

	require.NoError(t, NewPublisher(client, 0).Publish(ctx, testStream, BalanceSet, BalanceSetEvent{MemberID: 1}))
	require.NoError(t, sub.readMessages(ctx))
	assert.Equal(t, int64(1), pendingCount(t, client))

	// Not idle long enough yet.
	require.NoError(t, sub.reclaimOnce(ctx))
	assert.Equal(t, 1, handler.count())

	time.Sleep(2 * testIdle)
	require.NoError(t, sub.reclaimOnce(ctx))
	assert.Equal(t, 2, handler.count())
	assert.Equal(t, handler.calls[0].ID, handler.calls[1].ID)
	assert.Zero(t, pendingCount(t, client))
}

func TestSubscriber_DropsAfterMaxDeliveries(t *testing.T) {
	handler := &flakyHandler{failures: 100}
	sub, client := newTestSubscriber(t, handler.Handle, 2)
	ctx := context.Background()

	require.NoError(t, NewPublisher(client, 0).Publish(ctx, testStream, BalanceSet, BalanceSetEvent{MemberID: 1}))
	require.NoError(t, sub.readMessages(ctx))

	for range 3 {
		time.Sleep(2 * testIdle)
		require.NoError(t, sub.reclaimOnce(ctx))
	}

	assert.Equal(t, 2, handler.count())
	assert.Zero(t, pendingCount(t, client))
}

func TestSubscriber_AcksMalformedMessages(t *testing.T) {
	handler := &flakyHandler{}
	sub, client := newTestSubscriber(t, handler.Handle, 5)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: testStream, Values: map[string]any{"event": "{broken"}}).Err())
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: testStream, Values: map[string]any{"other": "x"}}).Err())
	require.NoError(t, sub.readMessages(ctx))

	assert.Zero(t, handler.count())
	assert.Zero(t, pendingCount(t, client))
}

func TestSubscriber_StartRetriesUntilHandled(t *testing.T) {
	handler := &flakyHandler{failures: 2}
	sub, client := newTestSubscriber(t, handler.Handle, 5)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sub.Start(ctx) }()

	require.NoError(t, NewPublisher(client, 0).Publish(ctx, testStream, ServicePurchased, ServicePurchasedEvent{BuyerID: 1}))
	require.Eventually(t, func() bool { return handler.count() == 3 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		pending, err := client.XPending(context.Background(), testStream, testGroup).Result()
		return err == nil && pending.Count == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
