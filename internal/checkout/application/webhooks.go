package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/paylinkbridge/checkout/internal/checkout/domain"
)

// ProviderEvent is the provider's webhook notification body.
type ProviderEvent struct {
	ID        string        `json:"id"`
	EventType string        `json:"event_type"`
	Resource  EventResource `json:"resource"`
}

type EventResource struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *struct {
		Value    string `json:"value"`
		Currency string `json:"currency_code"`
	} `json:"amount,omitempty"`
	SupplementaryData *struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data,omitempty"`
	StatusDetails *struct {
		Reason string `json:"reason"`
	} `json:"status_details,omitempty"`
}

func (r EventResource) orderID() string {
	if r.SupplementaryData != nil {
		return r.SupplementaryData.RelatedIDs.OrderID
	}
	return ""
}

// WebhookService reconciles license state from verified provider events.
// Verification happens at the transport boundary; HandleEvent assumes the
// event is authentic.
type WebhookService struct {
	log   *slog.Logger
	store Store
}

func NewWebhookService(log *slog.Logger, store Store) *WebhookService {
	return &WebhookService{log: log, store: store}
}

// HandleEvent appends an audit entry and applies the matching license
// transition. Unknown event types are logged and skipped without any store
// mutation. An illegal transition (e.g. a decline arriving after a verify)
// keeps the audit entry but leaves the license untouched.
func (w *WebhookService) HandleEvent(ctx context.Context, event ProviderEvent) error {
	now := time.Now().UTC()

	switch event.EventType {
	case domain.EventOrderApproved:
		w.log.Info("order approved by payer", "order_id", event.Resource.ID)
		return w.append(ctx, domain.WebhookEvent{Event: "APPROVED", OrderID: event.Resource.ID, Timestamp: now})

	case domain.EventOrderCompleted:
		w.log.Info("order completed", "order_id", event.Resource.ID, "status", event.Resource.Status)
		return w.append(ctx, domain.WebhookEvent{Event: "COMPLETED", OrderID: event.Resource.ID, Status: event.Resource.Status, Timestamp: now})

	case domain.EventCaptureComplete:
		orderID := event.Resource.orderID()
		audit := domain.WebhookEvent{
			Event:     "PAYMENT_CAPTURED",
			CaptureID: event.Resource.ID,
			OrderID:   orderID,
			Status:    event.Resource.Status,
			Timestamp: now,
		}
		if event.Resource.Amount != nil {
			audit.Amount = event.Resource.Amount.Value
		}
		w.log.Info("payment captured", "capture_id", event.Resource.ID, "order_id", orderID)
		return UpdateStore(ctx, w.store, func(db *domain.Database) ([]OutboxEntry, error) {
			db.WebhookEvents = append(db.WebhookEvents, audit)
			if lic := db.LicenseByOrderID(orderID); lic != nil {
				if err := lic.MarkCaptured(event.Resource.ID, event.Resource.Status); err != nil {
					w.log.Warn("capture event ignored", "license", lic.Key, "err", err)
				}
			}
			return nil, nil
		})

	case domain.EventCaptureDeclined:
		orderID := event.Resource.orderID()
		reason := ""
		if event.Resource.StatusDetails != nil {
			reason = event.Resource.StatusDetails.Reason
		}
		audit := domain.WebhookEvent{
			Event:     "PAYMENT_DECLINED",
			CaptureID: event.Resource.ID,
			OrderID:   orderID,
			Reason:    reason,
			Timestamp: now,
		}
		w.log.Error("payment declined", "capture_id", event.Resource.ID, "order_id", orderID, "reason", reason)
		return UpdateStore(ctx, w.store, func(db *domain.Database) ([]OutboxEntry, error) {
			db.WebhookEvents = append(db.WebhookEvents, audit)
			if lic := db.LicenseByOrderID(orderID); lic != nil {
				if err := lic.MarkDeclined(event.Resource.ID, reason); err != nil {
					w.log.Warn("decline event ignored", "license", lic.Key, "err", err)
				}
			}
			return nil, nil
		})

	case domain.EventOrderProcessed:
		w.log.Info("order processed", "order_id", event.Resource.ID)
		return nil

	default:
		w.log.Info("unhandled webhook event type", "event_type", event.EventType)
		return nil
	}
}

func (w *WebhookService) append(ctx context.Context, audit domain.WebhookEvent) error {
	return UpdateStore(ctx, w.store, func(db *domain.Database) ([]OutboxEntry, error) {
		db.WebhookEvents = append(db.WebhookEvents, audit)
		return nil, nil
	})
}
