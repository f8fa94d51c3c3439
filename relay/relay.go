// Package relay turns store change-feed messages into gate session signals.
package relay

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.uber.org/zap"

	"storefront-access-gate/metrics"
	"storefront-access-gate/shared"
)

// Subscriber is the change feed the relay listens to.
type Subscriber interface {
	SubscribeAll(ctx context.Context) (<-chan shared.StoreRecord, func(), error)
}

// Signaler delivers signals to workflows. client.Client satisfies it.
type Signaler interface {
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
}

// Relay forwards every store change to the gate session of that store, if
// one is running. Changes are forwarded one at a time in feed order.
type Relay struct {
	feed     Subscriber
	signaler Signaler
	logger   *zap.Logger
	metrics  *metrics.GateMetrics
}

func New(feed Subscriber, signaler Signaler, logger *zap.Logger, m *metrics.GateMetrics) *Relay {
	return &Relay{feed: feed, signaler: signaler, logger: logger, metrics: m}
}

// Run forwards changes until ctx is done. It returns an error if the feed
// cannot be subscribed or closes underneath it.
func (r *Relay) Run(ctx context.Context) error {
	changes, unsubscribe, err := r.feed.SubscribeAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to store changes: %w", err)
	}
	defer unsubscribe()

	r.logger.Info("Relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Relay stopped")
			return nil
		case rec, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("store change feed closed")
			}
			r.forward(ctx, rec)
		}
	}
}

func (r *Relay) forward(ctx context.Context, rec shared.StoreRecord) {
	workflowID := shared.SessionWorkflowID(rec.ID)
	err := r.signaler.SignalWorkflow(ctx, workflowID, "", shared.SignalStoreChanged, rec)

	var notFound *serviceerror.NotFound
	switch {
	case err == nil:
		r.metrics.RecordRelaySignal(metrics.OutcomeApplied)
		r.logger.Debug("Forwarded store change", zap.String("storeId", rec.ID))
	case errors.As(err, &notFound):
		// No admin session is open for this store.
		r.metrics.RecordRelaySignal(metrics.OutcomeSkipped)
	default:
		r.metrics.RecordRelaySignal(metrics.OutcomeError)
		r.logger.Warn("Failed to forward store change",
			zap.String("storeId", rec.ID),
			zap.String("workflowId", workflowID),
			zap.Error(err),
		)
	}
}
