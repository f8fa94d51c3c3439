// Package tracker records onboarding task progress on store records as a side
// effect of catalog mutations. The gate only observes the counters through
// the change feed, so nothing here waits on or talks to a gate session.
package tracker

import (
	"context"

	"go.uber.org/zap"

	"storefront-access-gate/metrics"
)

// Task label values.
const (
	TaskCategoryCreated = "category_created"
	TaskProductUploaded = "product_uploaded"
	TaskViewed          = "viewed"
)

// TaskStore is the part of the store record store the tracker writes to.
type TaskStore interface {
	MarkCategoryCreated(ctx context.Context, storeID string) error
	IncrementProductUploads(ctx context.Context, storeID string) error
	IncrementViews(ctx context.Context, storeID string) error
}

// Tracker updates onboardingTasks counters. Counters only ever grow.
type Tracker struct {
	store   TaskStore
	logger  *zap.Logger
	metrics *metrics.GateMetrics
}

func New(store TaskStore, logger *zap.Logger, m *metrics.GateMetrics) *Tracker {
	return &Tracker{store: store, logger: logger, metrics: m}
}

// RecordCategoryCreated sets onboardingTasks.hasCreatedCategory.
func (t *Tracker) RecordCategoryCreated(ctx context.Context, storeID string) error {
	return t.record(ctx, storeID, TaskCategoryCreated, t.store.MarkCategoryCreated)
}

// RecordProductUploaded increments onboardingTasks.productUploads.
func (t *Tracker) RecordProductUploaded(ctx context.Context, storeID string) error {
	return t.record(ctx, storeID, TaskProductUploaded, t.store.IncrementProductUploads)
}

// RecordView increments onboardingTasks.views.
func (t *Tracker) RecordView(ctx context.Context, storeID string) error {
	return t.record(ctx, storeID, TaskViewed, t.store.IncrementViews)
}

func (t *Tracker) record(ctx context.Context, storeID, task string, write func(context.Context, string) error) error {
	if err := write(ctx, storeID); err != nil {
		t.metrics.RecordTrackerEvent(task, metrics.OutcomeError)
		t.logger.Warn("Failed to record onboarding task",
			zap.String("storeId", storeID),
			zap.String("task", task),
			zap.Error(err),
		)
		return err
	}
	t.metrics.RecordTrackerEvent(task, metrics.OutcomeApplied)
	t.logger.Debug("Recorded onboarding task", zap.String("storeId", storeID), zap.String("task", task))
	return nil
}
