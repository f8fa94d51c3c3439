package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.uber.org/zap"

	"storefront-access-gate/metrics"
	"storefront-access-gate/shared"
	"storefront-access-gate/store"
)

type mockSignaler struct {
	mock.Mock
	mu       sync.Mutex
	received []shared.StoreRecord
}

func (m *mockSignaler) SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error {
	m.mu.Lock()
	m.received = append(m.received, arg.(shared.StoreRecord))
	m.mu.Unlock()
	return m.Called(workflowID, runID, signalName).Error(0)
}

func (m *mockSignaler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func (m *mockSignaler) calledWith(workflowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.received {
		if shared.SessionWorkflowID(rec.ID) == workflowID {
			return true
		}
	}
	return false
}

func setupRelay(t *testing.T, signaler Signaler) (*store.Feed, *Relay) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	feed := store.NewFeed(client, zap.NewNop(), metrics.NewNop())
	return feed, New(feed, signaler, zap.NewNop(), metrics.NewNop())
}

// runRelay starts r and waits until its subscription is live.
func runRelay(t *testing.T, r *Relay, feed *store.Feed, signaler *mockSignaler) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Publish probes until the relay has subscribed.
	require.Eventually(t, func() bool {
		_ = feed.Publish(context.Background(), &shared.StoreRecord{ID: "probe"})
		return signaler.count() > 0
	}, 2*time.Second, 10*time.Millisecond)
	return cancel, done
}

func TestRelay_ForwardsChangesToSessions(t *testing.T) {
	signaler := &mockSignaler{}
	signaler.On("SignalWorkflow", "gate-session-probe", "", shared.SignalStoreChanged).Return(&serviceerror.NotFound{}).Maybe()
	signaler.On("SignalWorkflow", "gate-session-store-1", "", shared.SignalStoreChanged).Return(nil)

	feed, r := setupRelay(t, signaler)
	cancel, done := runRelay(t, r, feed, signaler)

	require.NoError(t, feed.Publish(context.Background(), &shared.StoreRecord{
		ID:                 "store-1",
		SubscriptionStatus: shared.StatusTrial,
	}))

	require.Eventually(t, func() bool {
		signaler.mu.Lock()
		defer signaler.mu.Unlock()
		for _, rec := range signaler.received {
			if rec.ID == "store-1" {
				return rec.SubscriptionStatus == shared.StatusTrial
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	signaler.AssertCalled(t, "SignalWorkflow", "gate-session-store-1", "", shared.SignalStoreChanged)
}

func TestRelay_SignalErrorsDoNotStopRelay(t *testing.T) {
	signaler := &mockSignaler{}
	signaler.On("SignalWorkflow", "gate-session-probe", "", shared.SignalStoreChanged).Return(errors.New("unavailable")).Maybe()
	signaler.On("SignalWorkflow", "gate-session-store-2", "", shared.SignalStoreChanged).Return(nil)

	feed, r := setupRelay(t, signaler)
	cancel, done := runRelay(t, r, feed, signaler)

	require.NoError(t, feed.Publish(context.Background(), &shared.StoreRecord{ID: "store-2"}))
	require.Eventually(t, func() bool {
		return signaler.calledWith("gate-session-store-2")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

type failingSubscriber struct{}

func (failingSubscriber) SubscribeAll(context.Context) (<-chan shared.StoreRecord, func(), error) {
	return nil, nil, errors.New("redis down")
}

func TestRelay_SubscribeFailure(t *testing.T) {
	r := New(failingSubscriber{}, &mockSignaler{}, zap.NewNop(), metrics.NewNop())

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

type closedSubscriber struct{}

func (closedSubscriber) SubscribeAll(context.Context) (<-chan shared.StoreRecord, func(), error) {
	ch := make(chan shared.StoreRecord)
	close(ch)
	return ch, func() {}, nil
}

func TestRelay_FeedClosed(t *testing.T) {
	r := New(closedSubscriber{}, &mockSignaler{}, zap.NewNop(), metrics.NewNop())

	err := r.Run(context.Background())
	assert.EqualError(t, err, "store change feed closed")
}
