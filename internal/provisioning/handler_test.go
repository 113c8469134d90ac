package provisioning

import (
	"context"
	"errors"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leonardo-panseri/discord-coins/shared/events"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvisioner records purchases and runs notify, channel and role steps. A step
// listed in fail returns its error.
type fakeProvisioner struct {
	mu    sync.Mutex
	calls []events.ServicePurchasedEvent
	runs  map[string]int
	fail  map[string]error
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{runs: make(map[string]int), fail: make(map[string]error)}
}

func (f *fakeProvisioner) Steps(purchase events.ServicePurchasedEvent) []Step {
	f.mu.Lock()
	f.calls = append(f.calls, purchase)
	f.mu.Unlock()

	var steps []Step
	for _, name := range []string{"notify", "channel", "role"} {
		steps = append(steps, Step{Name: name, Run: func(ctx context.Context) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			if err := f.fail[name]; err != nil {
				return err
			}
			f.runs[name]++
			return nil
		}})
	}
	return steps
}

func (f *fakeProvisioner) setFail(step string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[step] = err
}

func (f *fakeProvisioner) runCounts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.runs)
}

// purchaseEvent mimics an event read back from the stream, where Data is a generic map.
func purchaseEvent(id string) events.Event {
	return events.Event{
		ID:   id,
		Type: events.ServicePurchased,
		Data: map[string]any{
			"guildId":            "7",
			"buyerId":            "1",
			"service":            "vip",
			"cost":               "50",
			"notifyTo":           "42",
			"privateChannelName": "vip-lounge",
			"categoryId":         "500",
		},
	}
}

func TestHandle_ProvisionsOnce(t *testing.T) {
	prov := newFakeProvisioner()
	h := NewHandler(prov, NewMemoryProgressStore())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, purchaseEvent("evt-1")))
	require.NoError(t, h.Handle(ctx, purchaseEvent("evt-1")))

	assert.Equal(t, map[string]int{"notify": 1, "channel": 1, "role": 1}, prov.runCounts())
	got := prov.calls[0]
	assert.Equal(t, int64(7), got.GuildID)
	assert.Equal(t, int64(1), got.BuyerID)
	assert.Equal(t, "vip", got.Service)
	assert.True(t, got.Cost.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, int64(500), got.CategoryID)
	assert.Nil(t, got.RoleToAdd)
}

func TestHandle_RedeliveryResumesFailedStep(t *testing.T) {
	prov := newFakeProvisioner()
	denied := errors.New("missing permissions")
	prov.setFail("role", denied)
	h := NewHandler(prov, NewMemoryProgressStore())
	ctx := context.Background()

	for range 5 {
		assert.ErrorIs(t, h.Handle(ctx, purchaseEvent("evt-2")), denied)
	}
	assert.Equal(t, map[string]int{"notify": 1, "channel": 1}, prov.runCounts())

	prov.setFail("role", nil)
	require.NoError(t, h.Handle(ctx, purchaseEvent("evt-2")))
	assert.Equal(t, map[string]int{"notify": 1, "channel": 1, "role": 1}, prov.runCounts())
}

func TestHandle_LockedEventStaysPending(t *testing.T) {
	prov := newFakeProvisioner()
	store := NewMemoryProgressStore()
	h := NewHandler(prov, store)
	ctx := context.Background()

	ok, err := store.Lock(ctx, "evt-3")
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, h.Handle(ctx, purchaseEvent("evt-3")), ErrInProgress)
	assert.Empty(t, prov.runCounts())

	require.NoError(t, store.Unlock(ctx, "evt-3"))
	require.NoError(t, h.Handle(ctx, purchaseEvent("evt-3")))
	assert.Len(t, prov.runCounts(), 3)
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	prov := newFakeProvisioner()
	h := NewHandler(prov, NewMemoryProgressStore())

	require.NoError(t, h.Handle(context.Background(), events.Event{ID: "x", Type: events.BalanceSet}))
	assert.Empty(t, prov.calls)
}

func TestHandle_LargeSnowflakes(t *testing.T) {
	prov := newFakeProvisioner()
	h := NewHandler(prov, NewMemoryProgressStore())

	event := purchaseEvent("evt-4")
	data := event.Data.(map[string]any)
	data["buyerId"] = "1148309572936417341"
	data["roleToAdd"] = "1148309572936417399"

	require.NoError(t, h.Handle(context.Background(), event))
	require.Len(t, prov.calls, 1)
	assert.Equal(t, int64(1148309572936417341), prov.calls[0].BuyerID)
	require.NotNil(t, prov.calls[0].RoleToAdd)
	assert.Equal(t, int64(1148309572936417399), *prov.calls[0].RoleToAdd)
}

func TestDirectPublisher(t *testing.T) {
	prov := newFakeProvisioner()
	pub := NewDirectPublisher(prov)
	ctx := context.Background()

	require.NoError(t, pub.Publish(ctx, events.LedgerEventsStream, events.BalanceSet, events.BalanceSetEvent{MemberID: 1}))
	require.NoError(t, pub.Publish(ctx, events.PurchaseEventsStream, events.ServicePurchased, events.ServicePurchasedEvent{
		GuildID: 7, BuyerID: 1148309572936417341, Service: "vip", Cost: decimal.NewFromInt(50), NotifyTo: 42,
	}))
	pub.Close()

	require.Len(t, prov.calls, 1)
	assert.Equal(t, int64(1148309572936417341), prov.calls[0].BuyerID)
	assert.Zero(t, pub.progress.Len())

	err := pub.Publish(ctx, events.PurchaseEventsStream, events.ServicePurchased, events.ServicePurchasedEvent{BuyerID: 1})
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestDirectPublisher_RetriesFailedStep(t *testing.T) {
	prov := newFakeProvisioner()
	prov.setFail("channel", errors.New("rate limited"))
	pub := NewDirectPublisher(prov)
	pub.retryDelay = time.Millisecond
	ctx := context.Background()

	require.NoError(t, pub.Publish(ctx, events.PurchaseEventsStream, events.ServicePurchased, events.ServicePurchasedEvent{BuyerID: 1, Service: "vip"}))
	pub.Close()

	assert.Len(t, prov.calls, directAttempts)
	assert.Equal(t, map[string]int{"notify": 1}, prov.runCounts())
	assert.Zero(t, pub.progress.Len())
}

func TestDirectPublisher_CloseAbandonsRetries(t *testing.T) {
	prov := newFakeProvisioner()
	prov.setFail("notify", errors.New("gateway down"))
	pub := NewDirectPublisher(prov)
	pub.retryDelay = time.Hour

	require.NoError(t, pub.Publish(context.Background(), events.PurchaseEventsStream, events.ServicePurchased, events.ServicePurchasedEvent{BuyerID: 1}))

	closed := make(chan struct{})
	go func() {
		pub.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return while a retry was waiting")
	}
	assert.Zero(t, pub.progress.Len())
}

func TestRedisProgressStore(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewRedisProgressStore(client)
	ctx := context.Background()

	ok, err := store.Lock(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Lock(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, lockTTL, m.TTL("coins:provisioning:evt-1:lock"))

	require.NoError(t, store.Complete(ctx, "evt-1", "notify"))
	done, err := store.Done(ctx, "evt-1", "notify")
	require.NoError(t, err)
	assert.True(t, done)
	done, err = store.Done(ctx, "evt-1", "channel")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, progressTTL, m.TTL("coins:provisioning:evt-1:steps"))

	require.NoError(t, store.Unlock(ctx, "evt-1"))
	ok, err = store.Lock(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// A worker that died holding the lock does not block the event forever.
	m.FastForward(lockTTL + time.Second)
	ok, err = store.Lock(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)

	m.FastForward(progressTTL)
	done, err = store.Done(ctx, "evt-1", "notify")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestHandle_RedisRedeliveryResumesFailedStep(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })

	prov := newFakeProvisioner()
	denied := errors.New("missing permissions")
	prov.setFail("role", denied)
	ctx := context.Background()

	// Each delivery may land on a different replica sharing the same Redis.
	for range 3 {
		h := NewHandler(prov, NewRedisProgressStore(client))
		assert.ErrorIs(t, h.Handle(ctx, purchaseEvent("evt-9")), denied)
	}
	prov.setFail("role", nil)
	require.NoError(t, NewHandler(prov, NewRedisProgressStore(client)).Handle(ctx, purchaseEvent("evt-9")))

	assert.Equal(t, map[string]int{"notify": 1, "channel": 1, "role": 1}, prov.runCounts())
	assert.False(t, m.Exists("coins:provisioning:evt-9:lock"))
}
