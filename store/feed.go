package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"storefront-access-gate/config"
	"storefront-access-gate/metrics"
	"storefront-access-gate/shared"
)

// ChannelPattern matches the change channel of every store.
const ChannelPattern = "store:*:changes"

// ChannelFor returns the Redis pub/sub channel carrying changes of one store.
func ChannelFor(storeID string) string {
	return "store:" + storeID + ":changes"
}

// StoreIDFromChannel extracts the store id from a change channel name.
func StoreIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, "store:") || !strings.HasSuffix(channel, ":changes") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(channel, "store:"), ":changes")
	return id, id != ""
}

// NewRedisClient creates the change-feed Redis client.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Feed is the push side of the store record store. Every message is the full
// JSON-encoded record after a write; delivery is at-most-once per subscriber
// and in publish order.
type Feed struct {
	client  *redis.Client
	logger  *zap.Logger
	metrics *metrics.GateMetrics
}

// NewFeed returns a feed over client.
func NewFeed(client *redis.Client, logger *zap.Logger, m *metrics.GateMetrics) *Feed {
	return &Feed{client: client, logger: logger, metrics: m}
}

// Publish announces the current state of rec.
func (f *Feed) Publish(ctx context.Context, rec *shared.StoreRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		f.metrics.RecordFeedPublishError()
		return fmt.Errorf("failed to encode store %s: %w", rec.ID, err)
	}
	if err := f.client.Publish(ctx, ChannelFor(rec.ID), payload).Err(); err != nil {
		f.metrics.RecordFeedPublishError()
		return fmt.Errorf("failed to publish store %s: %w", rec.ID, err)
	}
	return nil
}

// Subscribe delivers changes of one store until unsubscribe is called or ctx
// is done. The returned channel is closed afterwards.
func (f *Feed) Subscribe(ctx context.Context, storeID string) (<-chan shared.StoreRecord, func(), error) {
	return f.listen(ctx, f.client.Subscribe(ctx, ChannelFor(storeID)))
}

// SubscribeAll delivers changes of every store.
func (f *Feed) SubscribeAll(ctx context.Context) (<-chan shared.StoreRecord, func(), error) {
	return f.listen(ctx, f.client.PSubscribe(ctx, ChannelPattern))
}

func (f *Feed) listen(ctx context.Context, ps *redis.PubSub) (<-chan shared.StoreRecord, func(), error) {
	// Wait for the subscription to be confirmed so no publish after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to store changes: %w", err)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { _ = ps.Close() })
	}

	out := make(chan shared.StoreRecord)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec shared.StoreRecord
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					f.logger.Warn("Dropping undecodable store change",
						zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				if rec.ID == "" {
					rec.ID, _ = StoreIDFromChannel(msg.Channel)
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, unsubscribe, nil
}
