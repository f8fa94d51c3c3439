package gate

import (
	"time"

	"storefront-access-gate/shared"
)

// Progress builds the onboarding wizard model for rec. Completion is offered
// by the wizard once AllDone is true; the gate itself does not enforce it.
func Progress(rec *shared.StoreRecord, thresholds shared.TaskThresholds, window time.Duration) shared.OnboardingProgress {
	tasks := rec.Tasks()

	categories := 0
	if tasks.HasCreatedCategory {
		categories = 1
	}

	rows := []shared.TaskProgress{
		taskRow(shared.IntentCategories, categories, thresholds.Categories),
		taskRow(shared.IntentAddProduct, tasks.ProductUploads, thresholds.Products),
		taskRow(shared.IntentHome, tasks.Views, thresholds.Views),
	}

	allDone := true
	for _, row := range rows {
		if !row.Done {
			allDone = false
		}
	}

	var deadline time.Time
	if rec != nil {
		deadline = rec.CreatedAt.Add(window)
	}

	return shared.OnboardingProgress{
		Tasks:    rows,
		AllDone:  allDone,
		Deadline: deadline,
	}
}

func taskRow(intent shared.TaskIntent, current, target int) shared.TaskProgress {
	return shared.TaskProgress{
		Intent:  intent,
		Done:    current >= target,
		Current: current,
		Target:  target,
	}
}

// Snapshot resolves rec and packages the result for the query handler.
// Snapshot never asks for a transition; hosts call Resolve for that.
func Snapshot(rec *shared.StoreRecord, now time.Time, dismissed bool, cfg shared.GateConfig) shared.GateState {
	d := Resolve(rec, now, dismissed, cfg)
	st := shared.GateState{
		State:         d.State,
		LockedReason:  d.LockedReason,
		IsOnboarding:  d.IsOnboarding,
		DaysRemaining: d.DaysRemaining,
		Dismissed:     dismissed,
	}
	if d.IsOnboarding {
		p := Progress(rec, cfg.Thresholds, cfg.OnboardingWindow)
		st.Onboarding = &p
	}
	return st
}
