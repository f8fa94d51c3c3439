package activities

import (
	"context"
	"time"

	"storefront-access-gate/metrics"
	"storefront-access-gate/shared"
	"storefront-access-gate/tracker"
)

// StoreRecords is the part of the store record store the gate reads and
// transitions.
type StoreRecords interface {
	Get(ctx context.Context, storeID string) (*shared.StoreRecord, error)
	LockIfStatus(ctx context.Context, storeID string, expected shared.SubscriptionStatus) (bool, error)
	StartTrial(ctx context.Context, storeID string, endDate time.Time) (bool, error)
}

// Notifier delivers merchant notifications (email, push).
type Notifier interface {
	Notify(ctx context.Context, req shared.NotificationRequest) (string, error)
}

// Activities is the receiver for all activity methods. Temporal registers
// every exported method via RegisterActivity(a); the fields carry the store,
// tracker and notifier each method needs. Workflow tests mock the methods and
// never touch these dependencies.
type Activities struct {
	Store    StoreRecords
	Tracker  *tracker.Tracker
	Notifier Notifier
	Metrics  *metrics.GateMetrics
}
