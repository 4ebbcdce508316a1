package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paylinkbridge/checkout/internal/checkout/domain"
)

func captureEvent(t *testing.T, eventType, captureID, orderID, status, reason string) ProviderEvent {
	t.Helper()
	body := map[string]any{
		"id":     captureID,
		"status": status,
		"amount": map[string]string{"value": "25.00", "currency_code": "AUD"},
		"supplementary_data": map[string]any{
			"related_ids": map[string]string{"order_id": orderID},
		},
	}
	if reason != "" {
		body["status_details"] = map[string]string{"reason": reason}
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var resource EventResource
	require.NoError(t, json.Unmarshal(raw, &resource))
	return ProviderEvent{ID: "WH-" + captureID, EventType: eventType, Resource: resource}
}

func seedLicense(t *testing.T, store *memStore, orderID string) domain.License {
	t.Helper()
	fees, err := domain.DefaultFees.Calculate("25.00")
	require.NoError(t, err)
	lic := domain.NewLicense(orderID, "basic", "payer@example.com", "25.00", "COMPLETED", fees)
	store.db.Licenses = append(store.db.Licenses, lic)
	return lic
}

func TestHandleEventCaptureCompletedVerifiesLicense(t *testing.T) {
	store := &memStore{}
	seedLicense(t, store, "ORDER-1")
	ws := NewWebhookService(slog.Default(), store)

	event := captureEvent(t, domain.EventCaptureComplete, "CAP-1", "ORDER-1", "COMPLETED", "")
	require.NoError(t, ws.HandleEvent(context.Background(), event))

	lic := store.db.LicenseByOrderID("ORDER-1")
	require.Equal(t, domain.LicenseVerified, lic.Status)
	require.Equal(t, "CAP-1", lic.CaptureID)
	require.Equal(t, "COMPLETED", lic.CaptureStatus)

	require.Len(t, store.db.WebhookEvents, 1)
	require.Equal(t, "PAYMENT_CAPTURED", store.db.WebhookEvents[0].Event)
	require.Equal(t, "25.00", store.db.WebhookEvents[0].Amount)
}

func TestHandleEventCaptureDeclinedFailsLicense(t *testing.T) {
	store := &memStore{}
	seedLicense(t, store, "ORDER-1")
	ws := NewWebhookService(slog.Default(), store)

	event := captureEvent(t, domain.EventCaptureDeclined, "CAP-1", "ORDER-1", "DECLINED", "INSUFFICIENT_FUNDS")
	require.NoError(t, ws.HandleEvent(context.Background(), event))

	lic := store.db.LicenseByOrderID("ORDER-1")
	require.Equal(t, domain.LicenseFailed, lic.Status)
	require.Equal(t, "INSUFFICIENT_FUNDS", lic.FailureReason)
	require.Equal(t, "PAYMENT_DECLINED", store.db.WebhookEvents[0].Event)
}

func TestHandleEventDeclineAfterVerifyKeepsLicenseVerified(t *testing.T) {
	store := &memStore{}
	seedLicense(t, store, "ORDER-1")
	ws := NewWebhookService(slog.Default(), store)

	complete := captureEvent(t, domain.EventCaptureComplete, "CAP-1", "ORDER-1", "COMPLETED", "")
	require.NoError(t, ws.HandleEvent(context.Background(), complete))

	// late decline for the same order: audit is appended, license untouched
	declined := captureEvent(t, domain.EventCaptureDeclined, "CAP-1", "ORDER-1", "DECLINED", "CHARGEBACK")
	require.NoError(t, ws.HandleEvent(context.Background(), declined))

	lic := store.db.LicenseByOrderID("ORDER-1")
	require.Equal(t, domain.LicenseVerified, lic.Status)
	require.Empty(t, lic.FailureReason)
	require.Len(t, store.db.WebhookEvents, 2)
}

func TestHandleEventReplayAppendsAuditAgain(t *testing.T) {
	store := &memStore{}
	seedLicense(t, store, "ORDER-1")
	ws := NewWebhookService(slog.Default(), store)

	event := captureEvent(t, domain.EventCaptureComplete, "CAP-1", "ORDER-1", "COMPLETED", "")
	require.NoError(t, ws.HandleEvent(context.Background(), event))
	require.NoError(t, ws.HandleEvent(context.Background(), event))

	require.Equal(t, domain.LicenseVerified, store.db.LicenseByOrderID("ORDER-1").Status)
	require.Len(t, store.db.WebhookEvents, 2)
}

func TestHandleEventCaptureForUnknownOrderOnlyAudits(t *testing.T) {
	store := &memStore{}
	ws := NewWebhookService(slog.Default(), store)

	event := captureEvent(t, domain.EventCaptureComplete, "CAP-9", "ORDER-MISSING", "COMPLETED", "")
	require.NoError(t, ws.HandleEvent(context.Background(), event))

	require.Empty(t, store.db.Licenses)
	require.Len(t, store.db.WebhookEvents, 1)
}

func TestHandleEventApprovedAndCompletedAppendAudit(t *testing.T) {
	store := &memStore{}
	ws := NewWebhookService(slog.Default(), store)

	approved := ProviderEvent{EventType: domain.EventOrderApproved, Resource: EventResource{ID: "ORDER-1"}}
	require.NoError(t, ws.HandleEvent(context.Background(), approved))

	completed := ProviderEvent{EventType: domain.EventOrderCompleted, Resource: EventResource{ID: "ORDER-1", Status: "COMPLETED"}}
	require.NoError(t, ws.HandleEvent(context.Background(), completed))

	require.Len(t, store.db.WebhookEvents, 2)
	require.Equal(t, "APPROVED", store.db.WebhookEvents[0].Event)
	require.Equal(t, "COMPLETED", store.db.WebhookEvents[1].Event)
}

func TestHandleEventUnknownTypeWritesNothing(t *testing.T) {
	store := &memStore{}
	ws := NewWebhookService(slog.Default(), store)

	for _, eventType := range []string{domain.EventOrderProcessed, "BILLING.SUBSCRIPTION.CREATED"} {
		event := ProviderEvent{EventType: eventType, Resource: EventResource{ID: "ORDER-1"}}
		require.NoError(t, ws.HandleEvent(context.Background(), event))
	}

	require.Empty(t, store.db.WebhookEvents)
	require.Equal(t, uint64(0), store.version)
}
