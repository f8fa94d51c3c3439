package shared

import "time"

// Task queue names.
const (
	GateWorkflowTaskQueue = "gate-workflow-tq"
	ActivityTaskQueue     = "gate-activity-tq"
)

// Signal, query and update names.
const (
	SignalStoreChanged       = "signal-store-changed"
	SignalDismissOnboarding  = "signal-dismiss-onboarding"
	SignalSessionClosed      = "signal-session-closed"
	QueryGateState           = "query-gate-state"
	UpdateCompleteOnboarding = "update-complete-onboarding"
)

// Default gate timeline and onboarding thresholds.
const (
	DefaultOnboardingWindow = 48 * time.Hour
	DefaultWarningDays      = 5
	DefaultTrialDays        = 14
	DefaultSessionTTL       = 24 * time.Hour

	DefaultCategoryThreshold = 1
	DefaultProductThreshold  = 3
	DefaultViewThreshold     = 10

	// MaxEventsPerRun bounds the history of a single gate session run before
	// it continues as new.
	MaxEventsPerRun = 500
)

// Error types for non-retryable failures.
const (
	ErrTypeStoreNotFound       = "StoreNotFound"
	ErrTypeStatusConflict      = "StatusConflict"
	ErrTypeOnboardingNotActive = "OnboardingNotActive"
)

// SessionWorkflowID is the business-meaningful workflow ID of the gate
// session for a store. At most one admin session runs per store.
func SessionWorkflowID(storeID string) string {
	return "gate-session-" + storeID
}
