package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-access-gate/metrics"
	"storefront-access-gate/shared"
)

func setupTestFeed(t *testing.T) (*miniredis.Miniredis, *redis.Client, *Feed) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client, NewFeed(client, zap.NewNop(), metrics.NewNop())
}

func receive(t *testing.T, ch <-chan shared.StoreRecord) shared.StoreRecord {
	t.Helper()
	select {
	case rec, ok := <-ch:
		require.True(t, ok, "channel closed")
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for store change")
	}
	return shared.StoreRecord{}
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "store:abc:changes", ChannelFor("abc"))

	id, ok := StoreIDFromChannel("store:abc:changes")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = StoreIDFromChannel("store::changes")
	assert.False(t, ok)
	_, ok = StoreIDFromChannel("orders:abc")
	assert.False(t, ok)
}

func TestFeed_SubscribeReceivesPublishedRecords(t *testing.T) {
	_, _, feed := setupTestFeed(t)
	ctx := context.Background()

	ch, unsubscribe, err := feed.Subscribe(ctx, "store-1")
	require.NoError(t, err)
	defer unsubscribe()

	first := &shared.StoreRecord{
		ID:                 "store-1",
		SubscriptionStatus: shared.StatusProspect,
		OnboardingTasks:    &shared.OnboardingTasks{ProductUploads: 1},
	}
	second := &shared.StoreRecord{ID: "store-1", SubscriptionStatus: shared.StatusTrial}
	require.NoError(t, feed.Publish(ctx, first))
	require.NoError(t, feed.Publish(ctx, second))

	got := receive(t, ch)
	assert.Equal(t, shared.StatusProspect, got.SubscriptionStatus)
	assert.Equal(t, 1, got.Tasks().ProductUploads)

	got = receive(t, ch)
	assert.Equal(t, shared.StatusTrial, got.SubscriptionStatus)
}

func TestFeed_SubscribeIgnoresOtherStores(t *testing.T) {
	_, _, feed := setupTestFeed(t)
	ctx := context.Background()

	ch, unsubscribe, err := feed.Subscribe(ctx, "store-1")
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, feed.Publish(ctx, &shared.StoreRecord{ID: "store-2"}))
	require.NoError(t, feed.Publish(ctx, &shared.StoreRecord{ID: "store-1"}))

	assert.Equal(t, "store-1", receive(t, ch).ID)
}

func TestFeed_SubscribeAll(t *testing.T) {
	_, _, feed := setupTestFeed(t)
	ctx := context.Background()

	ch, unsubscribe, err := feed.SubscribeAll(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, feed.Publish(ctx, &shared.StoreRecord{ID: "store-1"}))
	require.NoError(t, feed.Publish(ctx, &shared.StoreRecord{ID: "store-2"}))

	assert.Equal(t, "store-1", receive(t, ch).ID)
	assert.Equal(t, "store-2", receive(t, ch).ID)
}

func TestFeed_SkipsUndecodablePayloads(t *testing.T) {
	_, client, feed := setupTestFeed(t)
	ctx := context.Background()

	ch, unsubscribe, err := feed.Subscribe(ctx, "store-1")
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, client.Publish(ctx, ChannelFor("store-1"), "not json").Err())
	require.NoError(t, client.Publish(ctx, ChannelFor("store-1"), `{"subscriptionStatus":"trial"}`).Err())

	got := receive(t, ch)
	assert.Equal(t, "store-1", got.ID, "id falls back to the channel name")
	assert.Equal(t, shared.StatusTrial, got.SubscriptionStatus)
}

func TestFeed_UnsubscribeClosesChannel(t *testing.T) {
	_, _, feed := setupTestFeed(t)

	ch, unsubscribe, err := feed.Subscribe(context.Background(), "store-1")
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestFeed_ContextCancelClosesChannel(t *testing.T) {
	_, _, feed := setupTestFeed(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _, err := feed.Subscribe(ctx, "store-1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestFeed_PublishErrorWhenRedisDown(t *testing.T) {
	mr, _, feed := setupTestFeed(t)
	mr.Close()

	err := feed.Publish(context.Background(), &shared.StoreRecord{ID: "store-1"})
	assert.Error(t, err)
}
