package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
)

// providerWebhook receives asynchronous payment notifications. The event is
// verified before anything is processed or stored; a rejected signature is a
// uniform 401 with zero store mutations.
func (h *Handler) providerWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProviderWebhook")
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body", "")
		return
	}

	req := application.WebhookRequest{
		TransmissionID:   r.Header.Get("Paypal-Transmission-Id"),
		TransmissionTime: r.Header.Get("Paypal-Transmission-Time"),
		CertURL:          r.Header.Get("Paypal-Cert-Url"),
		AuthAlgo:         r.Header.Get("Paypal-Auth-Algo"),
		Signature:        r.Header.Get("Paypal-Transmission-Sig"),
		Body:             body,
	}
	ok, err := h.verifier.Verify(ctx, req)
	if err != nil || !ok {
		if err != nil {
			h.log.Warn("webhook verification errored", "err", err)
		} else {
			h.log.Warn("invalid webhook signature", "transmission_id", req.TransmissionID)
		}
		writeError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var event application.ProviderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body", "")
		return
	}
	h.log.Info("provider webhook event", "event_type", event.EventType)

	if err := h.webhooks.HandleEvent(ctx, event); err != nil {
		h.log.Error("webhook processing error", "event_type", event.EventType, "err", err)
		writeError(w, http.StatusInternalServerError, "Processing failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
