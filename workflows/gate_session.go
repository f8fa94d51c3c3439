package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"storefront-access-gate/gate"
	"storefront-access-gate/shared"
)

// gateSession holds the state of one merchant admin session and provides a
// method for each thing that can happen to it.
type gateSession struct {
	// Business state
	record    *shared.StoreRecord
	loaded    bool
	unread    bool
	dismissed bool
	closed    bool
	events    int
	// lockReason is the reason of the lock this session wrote; a locked
	// record alone no longer says whether it expired.
	lockReason shared.LockedReason

	// Workflow context
	req       shared.SessionRequest
	expiresAt time.Time
	logger    log.Logger
	readCtx   workflow.Context
	actCtx    workflow.Context
	changedCh workflow.ReceiveChannel
	dismissCh workflow.ReceiveChannel
	closeCh   workflow.ReceiveChannel
	wakeCh    workflow.Channel
}

// newGateSession initializes the session, registers the query and update
// handlers, and sets up signal channels and activity options.
func newGateSession(ctx workflow.Context, req shared.SessionRequest) (*gateSession, error) {
	w := &gateSession{
		req:       req,
		expiresAt: req.ExpiresAt,
		logger:    log.With(workflow.GetLogger(ctx), "storeId", req.StoreID),
		changedCh: workflow.GetSignalChannel(ctx, shared.SignalStoreChanged),
		dismissCh: workflow.GetSignalChannel(ctx, shared.SignalDismissOnboarding),
		closeCh:   workflow.GetSignalChannel(ctx, shared.SignalSessionClosed),
		wakeCh:    workflow.NewBufferedChannel(ctx, 1),
	}
	if w.expiresAt.IsZero() {
		w.expiresAt = workflow.Now(ctx).Add(req.Config.SessionTTL)
	}
	if req.Record != nil || req.Unread {
		w.record = req.Record
		w.loaded = true
		w.unread = req.Unread
		w.dismissed = req.Dismissed
		w.lockReason = req.LockReason
	}

	err := workflow.SetQueryHandler(ctx, shared.QueryGateState, func() (shared.GateState, error) {
		return w.state(ctx), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set query handler: %w", err)
	}

	err = workflow.SetUpdateHandlerWithOptions(ctx, shared.UpdateCompleteOnboarding,
		w.completeOnboarding,
		workflow.UpdateHandlerOptions{Validator: func() error {
			return w.validateCompleteOnboarding(ctx)
		}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set update handler: %w", err)
	}

	// The initial read is one-shot: a failure locks the session until the page
	// opens a new one.
	w.readCtx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           shared.ActivityTaskQueue,
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	w.actCtx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           shared.ActivityTaskQueue,
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{shared.ErrTypeStatusConflict},
		},
	})

	return w, nil
}

// state is the query view of the session.
func (w *gateSession) state(ctx workflow.Context) shared.GateState {
	if !w.loaded {
		return shared.GateState{State: shared.StateLoading}
	}
	st := gate.Snapshot(w.record, workflow.Now(ctx), w.dismissed, w.req.Config)
	if st.State == shared.StateLocked && w.lockReason != "" &&
		w.record != nil && w.record.SubscriptionStatus == shared.StatusLocked {
		st.LockedReason = w.lockReason
	}
	return st
}

// load performs the one-shot initial read.
func (w *gateSession) load(ctx workflow.Context) {
	var rec *shared.StoreRecord
	err := workflow.ExecuteActivity(w.readCtx, a.ReadStore, w.req.StoreID).Get(ctx, &rec)
	if err != nil {
		rec = nil
		if isStoreNotFound(err) {
			w.logger.Warn("Store record not found, locking session")
		} else {
			w.logger.Error("Failed to read store record, locking session", "error", err)
		}
	}
	w.record = rec
	w.unread = rec == nil
	w.loaded = true
}

func isStoreNotFound(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == shared.ErrTypeStoreNotFound
}

// refresh re-reads the record after a conditional write lost a race. Unlike
// load it never marks the session unread.
func (w *gateSession) refresh(ctx workflow.Context) {
	var rec *shared.StoreRecord
	err := workflow.ExecuteActivity(w.actCtx, a.ReadStore, w.req.StoreID).Get(ctx, &rec)
	if err != nil {
		w.logger.Error("Failed to re-read store record", "error", err)
		return
	}
	w.record = rec
}

// reconcile re-derives the gate state from the current record and performs
// the transition the resolution asks for. retry bounds how many times a lost
// conditional write is followed by a re-read.
func (w *gateSession) reconcile(ctx workflow.Context, retry bool) {
	if w.record == nil || w.record.SubscriptionStatus != shared.StatusProspect {
		w.dismissed = false
	}
	if w.record == nil || w.record.SubscriptionStatus != shared.StatusLocked {
		w.lockReason = ""
	}

	d := gate.Resolve(w.record, workflow.Now(ctx), w.dismissed, w.req.Config)
	w.logger.Info("Gate resolved",
		"state", d.State,
		"lockedReason", d.LockedReason,
		"isOnboarding", d.IsOnboarding,
	)

	if d.Transition != gate.TransitionLock {
		return
	}

	var applied bool
	err := workflow.ExecuteActivity(w.actCtx, a.LockStore, shared.LockRequest{
		StoreID:  w.req.StoreID,
		Expected: d.Expected,
	}).Get(ctx, &applied)
	if err != nil {
		// The session still resolves to locked; the write is retried on the
		// next evaluation.
		w.logger.Error("Failed to lock store", "error", err)
		return
	}

	if !applied {
		w.logger.Info("Store changed before lock, re-reading", "expected", d.Expected)
		if retry {
			w.refresh(ctx)
			w.reconcile(ctx, false)
		}
		return
	}

	rec := *w.record
	rec.SubscriptionStatus = shared.StatusLocked
	w.record = &rec
	w.lockReason = d.LockedReason

	notification := "locked"
	if d.LockedReason == shared.ReasonExpired {
		notification = "expired"
	}
	w.notify(ctx, notification)
}

// notify sends a merchant notification. Failures are logged and do not
// affect the gate.
func (w *gateSession) notify(ctx workflow.Context, notificationType string) {
	req := shared.NotificationRequest{
		StoreID:          w.req.StoreID,
		NotificationType: notificationType,
	}
	if w.record != nil {
		req.Email = w.record.OwnerEmail
	}
	var notificationID string
	if err := workflow.ExecuteActivity(w.actCtx, a.NotifyMerchant, req).Get(ctx, &notificationID); err != nil {
		w.logger.Error("Failed to notify merchant", "notificationType", notificationType, "error", err)
		return
	}
	w.logger.Info("Merchant notified", "notificationType", notificationType, "notificationId", notificationID)
}

// onStoreChanged applies a pushed record. Pushes are ignored once the
// initial read failed.
func (w *gateSession) onStoreChanged(ctx workflow.Context, rec shared.StoreRecord) {
	w.events++
	if w.unread {
		w.logger.Warn("Ignoring store change for unread session")
		return
	}
	w.record = &rec
	w.reconcile(ctx, true)
}

// onDismiss hides the onboarding overlay for the rest of the session. Only a
// prospect can dismiss; the flag is cleared when the status moves on.
func (w *gateSession) onDismiss() {
	w.events++
	if w.record == nil || w.record.SubscriptionStatus != shared.StatusProspect {
		w.logger.Info("Ignoring onboarding dismissal, store is not a prospect")
		return
	}
	w.dismissed = true
	w.logger.Info("Onboarding dismissed")
}

func (w *gateSession) validateCompleteOnboarding(ctx workflow.Context) error {
	if !w.loaded {
		return errors.New("gate session is still loading")
	}
	d := gate.Resolve(w.record, workflow.Now(ctx), w.dismissed, w.req.Config)
	if d.State != shared.StateDashboard || !d.IsOnboarding {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("onboarding is not active (state %s)", d.State),
			shared.ErrTypeOnboardingNotActive,
			nil,
		)
	}
	return nil
}

// completeOnboarding starts the trial. Task thresholds are not re-checked
// here; the wizard only offers completion once they are met.
func (w *gateSession) completeOnboarding(ctx workflow.Context) (shared.GateState, error) {
	w.events++
	endDate := workflow.Now(ctx).Add(time.Duration(w.req.Config.TrialDays) * 24 * time.Hour)

	err := workflow.ExecuteActivity(w.actCtx, a.StartTrial, shared.TrialRequest{
		StoreID: w.req.StoreID,
		EndDate: endDate,
	}).Get(ctx, nil)
	if err != nil {
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.Type() == shared.ErrTypeStatusConflict {
			w.logger.Info("Store changed before trial start, re-reading")
			w.refresh(ctx)
			w.reconcile(ctx, false)
			w.wake()
		}
		return w.state(ctx), fmt.Errorf("failed to complete onboarding: %w", err)
	}

	rec := *w.record
	rec.SubscriptionStatus = shared.StatusTrial
	rec.SubscriptionEndDate = &endDate
	w.record = &rec
	w.logger.Info("Onboarding completed, trial started", "endDate", endDate)

	w.reconcile(ctx, true)
	w.notify(ctx, "trialStarted")
	w.wake()
	return w.state(ctx), nil
}

// wake makes the event loop re-arm its deadline timer after the record
// changed outside the loop.
func (w *gateSession) wake() {
	w.wakeCh.SendAsync(true)
}

// waitForEvent blocks until one event has been handled: a push, a dismissal,
// a close, a wake-up, the resolution deadline, or session expiry.
func (w *gateSession) waitForEvent(ctx workflow.Context) {
	now := workflow.Now(ctx)
	if !now.Before(w.expiresAt) {
		w.logger.Info("Gate session expired")
		w.closed = true
		return
	}

	timerCtx, timerCancel := workflow.WithCancel(ctx)
	defer timerCancel()

	selector := workflow.NewSelector(ctx)

	selector.AddFuture(workflow.NewTimer(timerCtx, w.expiresAt.Sub(now)), func(f workflow.Future) {
		if err := f.Get(ctx, nil); err == nil {
			w.logger.Info("Gate session expired")
			w.closed = true
		}
	})

	at, hasDeadline := gate.NextChange(w.record, w.req.Config)
	if hasDeadline && at.After(now) && at.Before(w.expiresAt) {
		selector.AddFuture(workflow.NewTimer(timerCtx, at.Sub(now)), func(f workflow.Future) {
			if err := f.Get(ctx, nil); err == nil {
				w.logger.Info("Gate deadline reached", "deadline", at)
				w.reconcile(ctx, true)
			}
		})
	}

	// Wake when the countdown drops a day so queries see the new count.
	if tick, ok := gate.NextCountdownTick(w.record, now, w.req.Config); ok &&
		tick.Before(w.expiresAt) && (!hasDeadline || tick.Before(at)) {
		selector.AddFuture(workflow.NewTimer(timerCtx, tick.Sub(now)), func(f workflow.Future) {
			if err := f.Get(ctx, nil); err == nil {
				w.logger.Debug("Countdown day elapsed")
			}
		})
	}

	selector.AddReceive(w.changedCh, func(ch workflow.ReceiveChannel, more bool) {
		var rec shared.StoreRecord
		ch.Receive(ctx, &rec)
		w.onStoreChanged(ctx, rec)
	})

	selector.AddReceive(w.dismissCh, func(ch workflow.ReceiveChannel, more bool) {
		ch.Receive(ctx, nil)
		w.onDismiss()
	})

	selector.AddReceive(w.closeCh, func(ch workflow.ReceiveChannel, more bool) {
		ch.Receive(ctx, nil)
		w.logger.Info("Gate session closed")
		w.closed = true
	})

	selector.AddReceive(w.wakeCh, func(ch workflow.ReceiveChannel, more bool) {
		var woken bool
		ch.Receive(ctx, &woken)
	})

	selector.Select(ctx)
}

// continueAsNew drains pending signals into the carried-over state so none
// are lost between runs.
func (w *gateSession) continueAsNew(ctx workflow.Context) error {
	var rec shared.StoreRecord
	for w.changedCh.ReceiveAsync(&rec) {
		if !w.unread {
			latest := rec
			w.record = &latest
		}
	}
	for w.dismissCh.ReceiveAsync(nil) {
		if w.record != nil && w.record.SubscriptionStatus == shared.StatusProspect {
			w.dismissed = true
		}
	}

	w.logger.Info("Gate session continuing as new", "events", w.events)
	return workflow.NewContinueAsNewError(ctx, GateSessionWorkflow, shared.SessionRequest{
		StoreID:    w.req.StoreID,
		Config:     w.req.Config,
		ExpiresAt:  w.expiresAt,
		Dismissed:  w.dismissed,
		Record:     w.record,
		Unread:     w.unread,
		LockReason: w.lockReason,
	})
}

// GateSessionWorkflow hosts the access gate for one merchant admin session.
//
// The hosting page starts it when the dashboard mounts and signals
// SignalSessionClosed when it unmounts. In between it:
//
//	Start     → one-shot read of the store record (failure locks the session)
//	Push      → SignalStoreChanged re-resolves the gate on every record change
//	Deadline  → a timer re-resolves when the onboarding window or trial ends
//	Dismiss   → SignalDismissOnboarding hides onboarding while still a prospect
//	Complete  → UpdateCompleteOnboarding moves a prospect into its trial
//
// Expired prospects and trials are locked with a conditional write on the
// status the gate resolved from, so a stale session cannot re-lock a store
// that was renewed in the meantime.
func GateSessionWorkflow(ctx workflow.Context, req shared.SessionRequest) error {
	w, err := newGateSession(ctx, req)
	if err != nil {
		return err
	}

	w.logger.Info("Gate session started")

	if !w.loaded {
		w.load(ctx)
	}
	w.reconcile(ctx, true)

	for !w.closed {
		if w.events >= shared.MaxEventsPerRun {
			return w.continueAsNew(ctx)
		}
		w.waitForEvent(ctx)
	}

	// Let an in-flight completion finish before the session ends.
	if err := workflow.Await(ctx, func() bool {
		return workflow.AllHandlersFinished(ctx)
	}); err != nil {
		return err
	}
	return nil
}
