package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paylinkbridge/checkout/internal/checkout/domain"
)

// requireAdmin gates the admin query surface behind the shared secret,
// supplied as ?admin_pass=, ?pass= or the X-Admin-Pass header. The response
// is a uniform 401 with no hint of why.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		supplied := r.URL.Query().Get("admin_pass")
		if supplied == "" {
			supplied = r.URL.Query().Get("pass")
		}
		if supplied == "" {
			supplied = r.Header.Get("X-Admin-Pass")
		}
		if h.adminPass == "" || supplied == "" ||
			subtle.ConstantTimeCompare([]byte(supplied), []byte(h.adminPass)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) adminOverview(w http.ResponseWriter, r *http.Request) {
	db, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load records", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customers": db.Customers,
		"kyc":       db.KYC,
		"payouts":   db.Payouts,
		"licenses":  db.Licenses,
	})
}

func (h *Handler) adminPayouts(w http.ResponseWriter, r *http.Request) {
	db, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load payouts", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payouts": db.Payouts})
}

func (h *Handler) adminWebhooks(w http.ResponseWriter, r *http.Request) {
	db, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load webhook events", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhookEvents": db.WebhookEvents})
}

func (h *Handler) adminPayoutsReport(w http.ResponseWriter, r *http.Request) {
	db, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate report", err.Error())
		return
	}
	var settled []domain.Payout
	for _, p := range db.Payouts {
		if p.Status == domain.PayoutProcessed || p.Status == domain.PayoutTransferred {
			settled = append(settled, p)
		}
	}
	report := domain.BuildPayoutReport(settled, h.service.Config().BankAccount)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"period":      report.Period,
		"count":       report.Count,
		"totalGross":  report.TotalGross,
		"totalFees":   report.TotalFees,
		"totalNet":    report.TotalNet,
		"bankDetails": report.BankDetails,
		"payouts":     report.Payouts,
		"lastUpdated": time.Now().UTC(),
	})
}

func (h *Handler) adminBankDetails(w http.ResponseWriter, r *http.Request) {
	cfg := h.service.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"bankDetails": cfg.BankAccount,
		"feeStructure": map[string]float64{
			"paypal_percentage": cfg.Fees.Percentage.InexactFloat64(),
			"paypal_fixed":      cfg.Fees.Fixed.InexactFloat64(),
			"platform_fee":      0,
		},
	})
}

func (h *Handler) adminAllPayouts(w http.ResponseWriter, r *http.Request) {
	db, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve payouts", err.Error())
		return
	}
	count := func(status domain.PayoutStatus) int {
		n := 0
		for _, p := range db.Payouts {
			if p.Status == status {
				n++
			}
		}
		return n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":       len(db.Payouts),
		"pending":     count(domain.PayoutPendingTransfer),
		"processed":   count(domain.PayoutProcessed),
		"transferred": count(domain.PayoutTransferred),
		"payouts":     db.Payouts,
		"bankAccount": h.service.Config().BankAccount,
	})
}

func (h *Handler) adminCustomers(w http.ResponseWriter, r *http.Request) {
	db, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load customers", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(db.Customers), "customers": db.Customers})
}

func (h *Handler) adminCustomer(w http.ResponseWriter, r *http.Request) {
	db, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load customers", err.Error())
		return
	}
	customer := db.CustomerByID(chi.URLParam(r, "id"))
	if customer == nil {
		writeError(w, http.StatusNotFound, "Customer not found", "")
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) adminBankTransfers(w http.ResponseWriter, r *http.Request) {
	db, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch transfers", err.Error())
		return
	}
	var pending, completed []domain.BankTransfer
	var totalPending float64
	for _, t := range db.BankTransfers {
		if t.Status == domain.TransferPending {
			pending = append(pending, t)
			totalPending += t.Amount
		} else {
			completed = append(completed, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": map[string]any{
			"total":        len(db.BankTransfers),
			"pending":      len(pending),
			"completed":    len(completed),
			"totalPending": totalPending,
		},
		"pending":   pending,
		"completed": completed,
	})
}

type processPayoutReq struct {
	PayoutID string `json:"payout_id"`
	Action   string `json:"action"`
}

func (h *Handler) adminProcessPayout(w http.ResponseWriter, r *http.Request) {
	var req processPayoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "")
		return
	}
	payout, err := h.service.ProcessPayout(r.Context(), req.PayoutID, req.Action)
	if err != nil && payout.Status == domain.PayoutError {
		writeError(w, http.StatusInternalServerError, "payout failed", payout.Error)
		return
	}
	if err != nil {
		h.writeServiceError(w, err, "payout processing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payout": payout})
}

type markTransferredReq struct {
	PayoutID string `json:"payoutId"`
}

func (h *Handler) adminMarkTransferred(w http.ResponseWriter, r *http.Request) {
	var req markTransferredReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "")
		return
	}
	payout, err := h.service.MarkTransferred(r.Context(), req.PayoutID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to mark payout")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payout": payout})
}

type trackPaymentReq struct {
	OrderID string      `json:"orderId"`
	Amount  json.Number `json:"amount"`
	Email   string      `json:"email"`
	Plan    string      `json:"plan"`
}

func (h *Handler) adminTrackPayment(w http.ResponseWriter, r *http.Request) {
	var req trackPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "")
		return
	}
	payout, err := h.service.TrackPayment(r.Context(), req.OrderID, req.Amount.String(), req.Email, req.Plan)
	if err != nil {
		h.writeServiceError(w, err, "Failed to track payment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payout": payout})
}

type verifyTransferReq struct {
	PaymentCode string `json:"paymentCode"`
}

func (h *Handler) verifyBankTransfer(w http.ResponseWriter, r *http.Request) {
	var req verifyTransferReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "")
		return
	}
	lic, err := h.service.VerifyBankTransfer(r.Context(), req.PaymentCode)
	if err != nil {
		h.writeServiceError(w, err, "Verification failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"license": lic.Key,
		"message": "Transfer verified and license sent to customer email",
	})
}

type kycVerifyReq struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	DOB    string `json:"dob"`
}

func (h *Handler) kycVerify(w http.ResponseWriter, r *http.Request) {
	var req kycVerifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "")
		return
	}
	rec, err := h.service.ReviewKYC(r.Context(), req.ID, req.Action, req.DOB)
	if err != nil {
		h.writeServiceError(w, err, "KYC review failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": rec.ID, "status": rec.Status})
}
