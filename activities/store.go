package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"storefront-access-gate/metrics"
	"storefront-access-gate/shared"
	"storefront-access-gate/store"
)

// ReadStore loads the store record. A missing store fails with a
// non-retryable StoreNotFound error; the gate resolves it as locked.
func (a *Activities) ReadStore(ctx context.Context, storeID string) (*shared.StoreRecord, error) {
	logger := activity.GetLogger(ctx)

	rec, err := a.Store.Get(ctx, storeID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("Store record not found", "storeId", storeID)
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("store %s not found", storeID),
			shared.ErrTypeStoreNotFound,
			err,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	logger.Info("Store record loaded",
		"storeId", storeID,
		"subscriptionStatus", rec.SubscriptionStatus,
		"isSubscriptionActive", rec.IsSubscriptionActive,
	)
	return rec, nil
}

// LockStore sets the store's status to locked if it still has the expected
// status. It returns false when the record moved on in the meantime.
// Idempotency: a retry after a successful write returns false, which the
// workflow handles by re-reading.
func (a *Activities) LockStore(ctx context.Context, req shared.LockRequest) (bool, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Locking store", "storeId", req.StoreID, "expected", req.Expected)

	applied, err := a.Store.LockIfStatus(ctx, req.StoreID, req.Expected)
	if err != nil {
		a.Metrics.RecordTransition("lock", metrics.OutcomeError)
		return false, fmt.Errorf("failed to lock store: %w", err)
	}
	if !applied {
		a.Metrics.RecordTransition("lock", metrics.OutcomeConflict)
		logger.Info("Store status changed before lock, skipping", "storeId", req.StoreID)
		return false, nil
	}

	a.Metrics.RecordTransition("lock", metrics.OutcomeApplied)
	logger.Info("Store locked", "storeId", req.StoreID)
	return true, nil
}

// StartTrial moves a prospect store into its trial period.
// A store that is no longer a prospect fails with a non-retryable
// StatusConflict error.
func (a *Activities) StartTrial(ctx context.Context, req shared.TrialRequest) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Starting trial", "storeId", req.StoreID, "endDate", req.EndDate)

	applied, err := a.Store.StartTrial(ctx, req.StoreID, req.EndDate)
	if err != nil {
		a.Metrics.RecordTransition("start_trial", metrics.OutcomeError)
		return fmt.Errorf("failed to start trial: %w", err)
	}
	if !applied {
		a.Metrics.RecordTransition("start_trial", metrics.OutcomeConflict)
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("store %s is no longer a prospect", req.StoreID),
			shared.ErrTypeStatusConflict,
			nil,
		)
	}

	a.Metrics.RecordTransition("start_trial", metrics.OutcomeApplied)
	logger.Info("Trial started", "storeId", req.StoreID)
	return nil
}
