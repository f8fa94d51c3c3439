package shared

import "time"

// SubscriptionStatus is the raw subscription status stored on a store record.
type SubscriptionStatus string

const (
	StatusProspect    SubscriptionStatus = "prospect"
	StatusTrial       SubscriptionStatus = "trial"
	StatusLocked      SubscriptionStatus = "locked"
	StatusGracePeriod SubscriptionStatus = "grace_period"
)

// ResolvedState is the UI state the merchant should see.
type ResolvedState string

const (
	StateLoading   ResolvedState = "loading"
	StateLocked    ResolvedState = "locked"
	StateDashboard ResolvedState = "dashboard"
)

// LockedReason qualifies StateLocked.
type LockedReason string

const (
	ReasonLocked  LockedReason = "locked"
	ReasonExpired LockedReason = "expired"
)

// TaskIntent is what the onboarding wizard reports when a task is clicked.
type TaskIntent string

const (
	IntentCategories TaskIntent = "categories"
	IntentAddProduct TaskIntent = "add"
	IntentHome       TaskIntent = "home"
)

// OnboardingTasks holds the counters the task tracker maintains.
type OnboardingTasks struct {
	HasCreatedCategory bool `json:"hasCreatedCategory"`
	ProductUploads     int  `json:"productUploads"`
	Views              int  `json:"views"`
}

// StoreRecord is the per-tenant store document.
type StoreRecord struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name,omitempty"`
	OwnerEmail           string             `json:"ownerEmail,omitempty"`
	SubscriptionStatus   SubscriptionStatus `json:"subscriptionStatus"`
	IsSubscriptionActive bool               `json:"isSubscriptionActive"`
	CreatedAt            time.Time          `json:"createdAt"`
	SubscriptionEndDate  *time.Time         `json:"subscriptionEndDate,omitempty"`
	OnboardingTasks      *OnboardingTasks   `json:"onboardingTasks,omitempty"`
}

// Tasks returns the onboarding counters, zero-valued when the record has none.
func (r *StoreRecord) Tasks() OnboardingTasks {
	if r == nil || r.OnboardingTasks == nil {
		return OnboardingTasks{}
	}
	return *r.OnboardingTasks
}

// TaskThresholds are the counts the wizard requires before it offers completion.
type TaskThresholds struct {
	Categories int `json:"categories"`
	Products   int `json:"products"`
	Views      int `json:"views"`
}

// GateConfig carries the gate's timeline settings into a session.
type GateConfig struct {
	OnboardingWindow time.Duration  `json:"onboardingWindow"`
	WarningDays      int            `json:"warningDays"`
	TrialDays        int            `json:"trialDays"`
	SessionTTL       time.Duration  `json:"sessionTtl"`
	Thresholds       TaskThresholds `json:"thresholds"`
}

// DefaultGateConfig returns the gate settings used when nothing is configured.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		OnboardingWindow: DefaultOnboardingWindow,
		WarningDays:      DefaultWarningDays,
		TrialDays:        DefaultTrialDays,
		SessionTTL:       DefaultSessionTTL,
		Thresholds: TaskThresholds{
			Categories: DefaultCategoryThreshold,
			Products:   DefaultProductThreshold,
			Views:      DefaultViewThreshold,
		},
	}
}

// TaskProgress is one row of the onboarding wizard.
type TaskProgress struct {
	Intent  TaskIntent `json:"intent"`
	Done    bool       `json:"done"`
	Current int        `json:"current"`
	Target  int        `json:"target"`
}

// OnboardingProgress is the wizard model derived from a prospect record.
type OnboardingProgress struct {
	Tasks    []TaskProgress `json:"tasks"`
	AllDone  bool           `json:"allDone"`
	Deadline time.Time      `json:"deadline"`
}

// GateState is returned by the query handler of a gate session.
type GateState struct {
	State         ResolvedState       `json:"state"`
	LockedReason  LockedReason        `json:"lockedReason,omitempty"`
	IsOnboarding  bool                `json:"isOnboarding"`
	DaysRemaining *int                `json:"daysRemaining"`
	Dismissed     bool                `json:"dismissed"`
	Onboarding    *OnboardingProgress `json:"onboarding,omitempty"`
}

// SessionRequest is the input to the GateSessionWorkflow. The fields after
// Config are only set when a session continues as new.
type SessionRequest struct {
	StoreID    string       `json:"storeId"`
	Config     GateConfig   `json:"config"`
	ExpiresAt  time.Time    `json:"expiresAt,omitempty"`
	Dismissed  bool         `json:"dismissed,omitempty"`
	Record     *StoreRecord `json:"record,omitempty"`
	Unread     bool         `json:"unread,omitempty"` // initial read failed or found nothing
	LockReason LockedReason `json:"lockReason,omitempty"`
}

// LockRequest is the input to the LockStore activity.
type LockRequest struct {
	StoreID  string             `json:"storeId"`
	Expected SubscriptionStatus `json:"expected"`
}

// TrialRequest is the input to the StartTrial activity.
type TrialRequest struct {
	StoreID string    `json:"storeId"`
	EndDate time.Time `json:"endDate"`
}

// NotificationRequest is the input to the NotifyMerchant activity.
type NotificationRequest struct {
	StoreID          string `json:"storeId"`
	Email            string `json:"email"`
	NotificationType string `json:"notificationType"` // "trialStarted", "locked", "expired"
}
