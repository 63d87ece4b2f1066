// Package delivery implements DeliveryReconciler: map a provider
// delivery-status callback onto the canonical Message lifecycle.
package delivery

import (
	"context"
	"log/slog"

	"github.com/organizer/sanctuary/internal/models"
	"github.com/organizer/sanctuary/internal/repository"
)

// Update is one provider delivery-status callback.
type Update struct {
	ProviderMessageID string
	ProviderStatus    string
	ErrorCode         string
	ErrorMessage      string
}

// Reconciler applies provider callbacks to outbound Message rows.
type Reconciler struct {
	messages *repository.MessageRepository
	logger   *slog.Logger
}

func New(messages *repository.MessageRepository, logger *slog.Logger) *Reconciler {
	return &Reconciler{messages: messages, logger: logger}
}

// Reconcile locates the Message by providerMessageId and updates its
// deliveryStatus. A missing message succeeds silently: it may predate
// delivery-status tracking.
func (r *Reconciler) Reconcile(ctx context.Context, update Update) error {
	msg, err := r.messages.FindByProviderMessageID(ctx, update.ProviderMessageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	status := canonicalStatus(update.ProviderStatus)
	if err := r.messages.UpdateDeliveryStatus(ctx, msg.ID, status); err != nil {
		return err
	}

	if update.ErrorCode != "" || update.ErrorMessage != "" {
		r.logger.Warn("delivery callback reported an error",
			"message_id", msg.ID,
			"provider_message_id", update.ProviderMessageID,
			"error_code", update.ErrorCode,
			"error_message", update.ErrorMessage,
		)
	}

	return nil
}

func canonicalStatus(providerStatus string) models.DeliveryStatus {
	switch providerStatus {
	case "delivered":
		return models.DeliveryDelivered
	case "failed":
		return models.DeliveryFailed
	case "undelivered":
		return models.DeliveryUndelivered
	case "sent", "queued", "sending", "receiving", "accepted":
		return models.DeliverySent
	default:
		return models.DeliverySent
	}
}
