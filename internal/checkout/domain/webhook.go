package domain

import "time"

// Provider webhook event types the receiver understands.
const (
	EventOrderApproved   = "CHECKOUT.ORDER.APPROVED"
	EventOrderCompleted  = "CHECKOUT.ORDER.COMPLETED"
	EventOrderProcessed  = "CHECKOUT.ORDER.PROCESSED"
	EventCaptureComplete = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDeclined = "PAYMENT.CAPTURE.DECLINED"
)

// WebhookEvent is an append-only audit entry. Replayed provider events append
// duplicate entries; the log is never deduplicated or mutated.
type WebhookEvent struct {
	Event     string    `json:"event"`
	OrderID   string    `json:"orderId,omitempty"`
	CaptureID string    `json:"captureId,omitempty"`
	Status    string    `json:"status,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
