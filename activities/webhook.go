package activities

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"storefront-access-gate/shared"
)

// WebhookNotifier posts notifications to the merchant messaging service.
// Retries are left to the activity retry policy.
type WebhookNotifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

type webhookPayload struct {
	NotificationID   string `json:"notificationId"`
	StoreID          string `json:"storeId"`
	Email            string `json:"email"`
	NotificationType string `json:"notificationType"`
}

func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetBaseURL(url).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")

	return &WebhookNotifier{httpClient: client, logger: logger}
}

func (n *WebhookNotifier) Notify(ctx context.Context, req shared.NotificationRequest) (string, error) {
	id := notificationID(req)

	resp, err := n.httpClient.R().
		SetContext(ctx).
		// The provider de-duplicates on this key across activity retries.
		SetHeader("Idempotency-Key", id).
		SetBody(webhookPayload{
			NotificationID:   id,
			StoreID:          req.StoreID,
			Email:            req.Email,
			NotificationType: req.NotificationType,
		}).
		Post("")
	if err != nil {
		return "", fmt.Errorf("failed to call notification webhook: %w", err)
	}
	if resp.IsError() {
		n.logger.Warn("Notification webhook rejected request",
			zap.String("notificationId", id),
			zap.Int("status_code", resp.StatusCode()),
		)
		return "", fmt.Errorf("notification webhook returned %s", resp.Status())
	}
	return id, nil
}
