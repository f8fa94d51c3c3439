// Package gate resolves a store record into the UI state a merchant sees.
//
// Everything here is a pure function of its inputs. Hosts (the gate session
// workflow) own the record, the clock and the session dismissal flag, and
// carry out the transition a Decision asks for.
package gate

import (
	"math"
	"time"

	"storefront-access-gate/shared"
)

const day = 24 * time.Hour

// Transition is a status write the host must perform after resolving.
type Transition string

const (
	TransitionNone Transition = ""
	TransitionLock Transition = "lock"
)

// Decision is the outcome of resolving a record at an instant.
type Decision struct {
	State         shared.ResolvedState
	LockedReason  shared.LockedReason
	IsOnboarding  bool
	DaysRemaining *int

	// Transition, when set, must be applied as a conditional write that
	// only succeeds while the record still has status Expected.
	Transition Transition
	Expected   shared.SubscriptionStatus
}

func locked(reason shared.LockedReason) Decision {
	return Decision{State: shared.StateLocked, LockedReason: reason}
}

func dashboard(onboarding bool, daysRemaining *int) Decision {
	return Decision{State: shared.StateDashboard, IsOnboarding: onboarding, DaysRemaining: daysRemaining}
}

// Resolve applies the gate rules in precedence order. A nil record means the
// record was missing or could not be read.
func Resolve(rec *shared.StoreRecord, now time.Time, dismissed bool, cfg shared.GateConfig) Decision {
	if rec == nil {
		return locked(shared.ReasonLocked)
	}

	if rec.IsSubscriptionActive {
		if rec.SubscriptionEndDate == nil {
			return dashboard(false, nil)
		}
		return dashboard(false, warnDays(DaysRemaining(*rec.SubscriptionEndDate, now), cfg.WarningDays))
	}

	switch rec.SubscriptionStatus {
	case shared.StatusTrial:
		days := 0
		if rec.SubscriptionEndDate != nil {
			days = DaysRemaining(*rec.SubscriptionEndDate, now)
		}
		if days > 0 {
			return dashboard(false, warnDays(days, cfg.WarningDays))
		}
		d := locked(shared.ReasonExpired)
		d.Transition = TransitionLock
		d.Expected = shared.StatusTrial
		return d

	case shared.StatusProspect:
		if now.Sub(rec.CreatedAt) < cfg.OnboardingWindow {
			return dashboard(!dismissed, nil)
		}
		d := locked(shared.ReasonLocked)
		d.Transition = TransitionLock
		d.Expected = shared.StatusProspect
		return d

	case shared.StatusGracePeriod:
		return locked(shared.ReasonExpired)

	default:
		return locked(shared.ReasonLocked)
	}
}

// DaysRemaining returns the whole days left until end, rounded up and never
// negative.
func DaysRemaining(end, now time.Time) int {
	days := int(math.Ceil(float64(end.Sub(now)) / float64(day)))
	if days < 0 {
		return 0
	}
	return days
}

func warnDays(days, threshold int) *int {
	if days > threshold {
		return nil
	}
	return &days
}

// NextChange reports the instant at which resolving rec could first give a
// different state without the record itself changing.
func NextChange(rec *shared.StoreRecord, cfg shared.GateConfig) (time.Time, bool) {
	if rec == nil || rec.IsSubscriptionActive {
		return time.Time{}, false
	}
	switch rec.SubscriptionStatus {
	case shared.StatusProspect:
		return rec.CreatedAt.Add(cfg.OnboardingWindow), true
	case shared.StatusTrial:
		if rec.SubscriptionEndDate == nil {
			return time.Time{}, false
		}
		return *rec.SubscriptionEndDate, true
	}
	return time.Time{}, false
}

// NextCountdownTick reports the next instant the displayed days-remaining
// count drops by one. It only applies while a countdown is shown.
func NextCountdownTick(rec *shared.StoreRecord, now time.Time, cfg shared.GateConfig) (time.Time, bool) {
	if rec == nil || rec.SubscriptionEndDate == nil {
		return time.Time{}, false
	}
	if Resolve(rec, now, false, cfg).DaysRemaining == nil {
		return time.Time{}, false
	}
	remaining := rec.SubscriptionEndDate.Sub(now)
	if remaining <= 0 {
		return time.Time{}, false
	}
	step := remaining % day
	if step == 0 {
		step = day
	}
	return now.Add(step), true
}
