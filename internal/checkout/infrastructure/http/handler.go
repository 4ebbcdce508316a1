package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
	"github.com/paylinkbridge/checkout/internal/checkout/domain"
)

const version = "1.0.0"

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	webhooks *application.WebhookService
	verifier application.WebhookVerifier
	tracer   trace.Tracer

	adminPass      string
	paypalClientID string
	paypalEnv      string
	uploadDir      string
}

func NewHandler(log *slog.Logger, service *application.Service, webhooks *application.WebhookService, verifier application.WebhookVerifier, adminPass, paypalClientID, paypalEnv, uploadDir string) *Handler {
	return &Handler{
		log:            log,
		service:        service,
		webhooks:       webhooks,
		verifier:       verifier,
		tracer:         otel.Tracer("checkout-http"),
		adminPass:      adminPass,
		paypalClientID: paypalClientID,
		paypalEnv:      paypalEnv,
		uploadDir:      uploadDir,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/server/health", h.health)
	r.Get("/server/config", h.config)
	r.Get("/server/plans", h.plans)
	r.Get("/server/bank-account", h.bankAccount)
	r.Get("/server/transfer/{code}", h.transferByCode)

	r.Post("/server/create-order", h.createOrder)
	r.Post("/server/capture-order", h.captureOrder)
	r.Post("/server/fees", h.fees)
	r.Post("/server/request-payout", h.requestPayout)
	r.Post("/server/create-bank-transfer", h.createBankTransfer)
	r.Post("/server/kyc/upload", h.kycUpload)

	r.Post("/server/webhooks/paypal", h.providerWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/server/admin", h.adminOverview)
		r.Get("/server/admin/payouts", h.adminPayouts)
		r.Get("/server/admin/webhooks", h.adminWebhooks)
		r.Get("/server/admin/payouts-report", h.adminPayoutsReport)
		r.Get("/server/admin/bank-details", h.adminBankDetails)
		r.Get("/server/admin/all-payouts", h.adminAllPayouts)
		r.Get("/server/customers", h.adminCustomers)
		r.Get("/server/customers/{id}", h.adminCustomer)
		r.Get("/server/bank-transfers", h.adminBankTransfers)
		r.Post("/server/admin/process-payout", h.adminProcessPayout)
		r.Post("/server/admin/mark-transferred", h.adminMarkTransferred)
		r.Post("/server/admin/track-payment", h.adminTrackPayment)
		r.Post("/server/verify-bank-transfer", h.verifyBankTransfer)
		r.Post("/server/kyc/admin/verify", h.kycVerify)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"mode":        h.service.Config().Mode,
		"version":     version,
		"paypalReady": h.paypalClientID != "",
	})
}

func (h *Handler) config(w http.ResponseWriter, r *http.Request) {
	// only the client id is safe to expose to the front end
	writeJSON(w, http.StatusOK, map[string]any{
		"paypalClientId": h.paypalClientID,
		"paypalEnv":      h.paypalEnv,
	})
}

func (h *Handler) plans(w http.ResponseWriter, r *http.Request) {
	bank := h.service.Config().BankAccount
	writeJSON(w, http.StatusOK, map[string]any{
		"plans":    domain.Plans,
		"currency": "AUD",
		"bankAccount": map[string]string{
			"name":   bank.Name,
			"bsb":    bank.BSB,
			"number": bank.Number,
			"bank":   bank.Bank,
		},
	})
}

func (h *Handler) bankAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Config().BankAccount)
}

type createOrderReq struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	Plan     string      `json:"plan"`
	Email    string      `json:"email"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "")
		return
	}
	order, err := h.service.CreateOrder(ctx, req.Amount.String(), req.Currency, req.Plan, req.Email)
	if err != nil {
		h.writeServiceError(w, err, "Order creation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     order.ID,
		"status": order.Status,
		"links":  order.Links,
	})
}

type captureOrderReq struct {
	OrderID    string `json:"orderId"`
	PayerEmail string `json:"payerEmail"`
	Plan       string `json:"plan"`
}

func (h *Handler) captureOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CaptureOrder")
	defer span.End()

	var req captureOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "")
		return
	}
	result, err := h.service.CaptureOrder(ctx, req.OrderID, req.PayerEmail, req.Plan)
	if err != nil {
		var incomplete *application.PaymentIncompleteError
		if errors.As(err, &incomplete) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "Payment not completed",
				"status": incomplete.Status,
			})
			return
		}
		h.writeServiceError(w, err, "Capture failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"license":   result.License.Key,
		"orderId":   result.License.OrderID,
		"status":    result.License.GatewayStatus,
		"fees":      result.Fees,
		"payout":    result.Payout,
		"duplicate": result.Duplicate,
	})
}

type feesReq struct {
	Amount json.Number `json:"amount"`
}

func (h *Handler) fees(w http.ResponseWriter, r *http.Request) {
	var req feesReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "")
		return
	}
	fees, err := h.service.Quote(req.Amount.String())
	if err != nil {
		h.writeServiceError(w, err, "Failed to calculate fees")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"amount":  fees.OriginalAmount,
		"breakdown": map[string]float64{
			"paypalPercentageFee": fees.PayPalPercentageFee,
			"paypalFixedFee":      fees.PayPalFixedFee,
			"totalFees":           fees.TotalFees,
		},
		"youReceive":  fees.PayoutAmount,
		"bankAccount": h.service.Config().BankAccount.Number,
	})
}

type requestPayoutReq struct {
	License  string  `json:"license"`
	Amount   float64 `json:"amount"`
	Receiver string  `json:"receiver"`
}

func (h *Handler) requestPayout(w http.ResponseWriter, r *http.Request) {
	var req requestPayoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "")
		return
	}
	payout, err := h.service.RequestPayout(r.Context(), req.License, req.Amount, req.Receiver)
	if err != nil {
		h.writeServiceError(w, err, "Payout request failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "request": payout})
}

type createBankTransferReq struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Plan     string `json:"plan"`
}

func (h *Handler) createBankTransfer(w http.ResponseWriter, r *http.Request) {
	var req createBankTransferReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "")
		return
	}
	transfer, err := h.service.CreateBankTransfer(r.Context(), req.Email, req.FullName, req.Plan)
	if err != nil {
		h.writeServiceError(w, err, "Failed to create bank transfer")
		return
	}
	bank := h.service.Config().BankAccount
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"paymentCode": transfer.PaymentCode,
		"transferId":  transfer.ID,
		"amount":      transfer.Amount,
		"bankAccount": bank,
		"instructions": map[string]string{
			"step1": "Use payment code: " + transfer.PaymentCode,
			"step2": "Transfer the plan amount in AUD",
			"step3": "Include payment code in bank transfer reference",
			"step4": "Screenshot proof of transfer (we verify manually)",
		},
	})
}

func (h *Handler) transferByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	db, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch transfer", err.Error())
		return
	}
	transfer := db.TransferByCode(code)
	if transfer == nil {
		writeError(w, http.StatusNotFound, "Transfer not found", "")
		return
	}
	// never expose the customer's email or name on the public lookup
	writeJSON(w, http.StatusOK, map[string]any{
		"paymentCode": transfer.PaymentCode,
		"plan":        transfer.Plan,
		"amount":      transfer.Amount,
		"status":      transfer.Status,
		"createdAt":   transfer.CreatedAt,
	})
}

func (h *Handler) kycUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body", "")
		return
	}
	license := r.FormValue("license")
	if license == "" {
		license = r.FormValue("email")
	}

	var files []domain.KYCFile
	for _, field := range []string{"file", "selfie"} {
		f, header, err := r.FormFile(field)
		if err != nil {
			continue
		}
		path, err := h.saveUpload(f, header.Filename)
		f.Close()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "upload failed", err.Error())
			return
		}
		files = append(files, domain.KYCFile{Field: field, Path: path, OriginalName: header.Filename})
	}

	rec, err := h.service.SubmitKYC(r.Context(), license, files)
	if err != nil {
		h.writeServiceError(w, err, "KYC submission failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": rec.ID})
}

func (h *Handler) saveUpload(f io.Reader, name string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(h.uploadDir, domain.RandomToken(8)+filepath.Ext(name))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return "", err
	}
	return path, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	var gw *application.GatewayError
	switch {
	case errors.Is(err, application.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, application.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "")
	case errors.Is(err, application.ErrUnderage):
		writeError(w, http.StatusForbidden, "underage", "")
	case errors.Is(err, application.ErrConfiguration):
		writeError(w, http.StatusInternalServerError, msg, err.Error())
	case errors.As(err, &gw):
		writeError(w, http.StatusInternalServerError, msg, gw.Body)
	default:
		h.log.Error(msg, "err", err)
		writeError(w, http.StatusInternalServerError, msg, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	body := map[string]string{"error": msg}
	if detail != "" {
		body["detail"] = detail
	}
	writeJSON(w, status, body)
}
