package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"storefront-access-gate/shared"
)

// NotifyMerchant tells the merchant about a subscription change.
// Idempotency: not naturally idempotent (retries would send duplicate
// messages). The returned notification ID is meant as the provider's
// idempotency key.
func (a *Activities) NotifyMerchant(ctx context.Context, req shared.NotificationRequest) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Sending merchant notification",
		"storeId", req.StoreID,
		"notificationType", req.NotificationType,
		"email", req.Email,
	)

	if a.Notifier == nil {
		return notificationID(req), nil
	}
	id, err := a.Notifier.Notify(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to notify merchant: %w", err)
	}
	logger.Info("Merchant notified", "notificationId", id)
	return id, nil
}

func notificationID(req shared.NotificationRequest) string {
	return fmt.Sprintf("NOTIFY-%s-%s", req.StoreID, req.NotificationType)
}

// LogNotifier writes notifications to the log. It stands in for an email
// provider in development deployments.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Notify(_ context.Context, req shared.NotificationRequest) (string, error) {
	id := notificationID(req)
	n.Logger.Info("Merchant notification",
		zap.String("notificationId", id),
		zap.String("storeId", req.StoreID),
		zap.String("email", req.Email),
		zap.String("notificationType", req.NotificationType),
	)
	return id, nil
}
