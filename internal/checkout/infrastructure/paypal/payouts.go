package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
)

// PayoutClient submits single-item disbursement batches. Batch ids are random
// UUIDs so concurrent payouts never collide.
type PayoutClient struct {
	log    *slog.Logger
	client *Client

	bankAccountNumber string
	bankRoutingNumber string
}

func NewPayoutClient(log *slog.Logger, client *Client, bankAccountNumber, bankRoutingNumber string) *PayoutClient {
	return &PayoutClient{
		log:               log,
		client:            client,
		bankAccountNumber: bankAccountNumber,
		bankRoutingNumber: bankRoutingNumber,
	}
}

type payoutBatchResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
	} `json:"batch_header"`
}

// SendToEmail disburses amount to a PayPal account by email address.
func (p *PayoutClient) SendToEmail(ctx context.Context, receiver string, amount float64, currency, note string) (application.PayoutResult, error) {
	item := map[string]any{
		"recipient_type": "EMAIL",
		"amount":         map[string]string{"value": fmt.Sprintf("%.2f", amount), "currency": currency},
		"receiver":       receiver,
		"note":           note,
	}
	return p.send(ctx, "Payout from PayLinkBridge", item)
}

// SendToBank disburses amount to the operator's configured bank account.
func (p *PayoutClient) SendToBank(ctx context.Context, amount float64, currency, note string) (application.PayoutResult, error) {
	item := map[string]any{
		"recipient_type": "BANK_ACCOUNT",
		"amount":         map[string]string{"value": fmt.Sprintf("%.2f", amount), "currency": currency},
		"receiver": map[string]string{
			"account_number": p.bankAccountNumber,
			"routing_number": p.bankRoutingNumber,
			"account_type":   "CHECKING",
		},
		"note": note,
	}
	return p.send(ctx, "Bank Transfer from PayLinkBridge", item)
}

func (p *PayoutClient) send(ctx context.Context, subject string, item map[string]any) (application.PayoutResult, error) {
	token, err := p.client.AccessToken(ctx)
	if err != nil {
		return application.PayoutResult{}, err
	}

	batchID := uuid.NewString()
	payload := map[string]any{
		"sender_batch_header": map[string]string{
			"sender_batch_id": batchID,
			"email_subject":   subject,
		},
		"items": []map[string]any{item},
	}
	body, err := p.client.post(ctx, token, "/v1/payments/payouts", payload)
	if err != nil {
		return application.PayoutResult{}, err
	}

	var resp payoutBatchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return application.PayoutResult{}, fmt.Errorf("decoding payout response: %w", err)
	}
	p.log.Info("payout batch submitted", "sender_batch_id", batchID, "payout_batch_id", resp.BatchHeader.PayoutBatchID)
	return application.PayoutResult{BatchID: resp.BatchHeader.PayoutBatchID, Raw: json.RawMessage(body)}, nil
}
