package activities

import "context"

// The tracking activities let workflow-driven catalog flows record onboarding
// progress. They delegate to the tracker; store errors are retried by the
// caller's retry policy.

func (a *Activities) RecordCategoryCreated(ctx context.Context, storeID string) error {
	return a.Tracker.RecordCategoryCreated(ctx, storeID)
}

func (a *Activities) RecordProductUploaded(ctx context.Context, storeID string) error {
	return a.Tracker.RecordProductUploaded(ctx, storeID)
}

func (a *Activities) RecordView(ctx context.Context, storeID string) error {
	return a.Tracker.RecordView(ctx, storeID)
}
