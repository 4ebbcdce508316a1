package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type PayoutStatus string

const (
	PayoutPending         PayoutStatus = "pending"
	PayoutPendingTransfer PayoutStatus = "pending_transfer"
	PayoutInitiated       PayoutStatus = "initiated"
	PayoutProcessed       PayoutStatus = "processed"
	PayoutTransferred     PayoutStatus = "transferred"
	PayoutCancelled       PayoutStatus = "cancelled"
	PayoutError           PayoutStatus = "error"
)

// payoutTransitions only moves forward; cancel is terminal and only legal
// from pending.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:         {PayoutInitiated, PayoutProcessed, PayoutCancelled, PayoutError},
	PayoutPendingTransfer: {PayoutProcessed, PayoutTransferred, PayoutError},
	PayoutInitiated:       {PayoutProcessed, PayoutError},
	PayoutProcessed:       {PayoutTransferred},
}

type Payout struct {
	ID                string          `json:"id"`
	License           string          `json:"license,omitempty"`
	OrderID           string          `json:"paymentId,omitempty"`
	CustomerEmail     string          `json:"customerEmail,omitempty"`
	Plan              string          `json:"plan,omitempty"`
	Receiver          string          `json:"receiver,omitempty"`
	Amount            float64         `json:"amount"`
	Currency          string          `json:"currency,omitempty"`
	Gross             float64         `json:"gross,omitempty"`
	Fees              float64         `json:"fees,omitempty"`
	Net               float64         `json:"net,omitempty"`
	Status            PayoutStatus    `json:"status"`
	Response          json.RawMessage `json:"response,omitempty"`
	Error             string          `json:"error,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	TransferredAt     *time.Time      `json:"transferredAt,omitempty"`
	TransferReference string          `json:"transferReference,omitempty"`
}

// NewPayoutRequest records a manual payout request against a license.
func NewPayoutRequest(license string, amount float64, receiver string) Payout {
	return Payout{
		ID:        NewPayoutID(),
		License:   license,
		Amount:    amount,
		Receiver:  receiver,
		Status:    PayoutPending,
		CreatedAt: time.Now().UTC(),
	}
}

// NewTrackedPayout records a payment awaiting manual bank transfer, with the
// fee split fixed at recording time.
func NewTrackedPayout(orderID, email, plan string, fees FeeBreakdown) Payout {
	return Payout{
		ID:            NewPayoutID(),
		OrderID:       orderID,
		CustomerEmail: email,
		Plan:          plan,
		Amount:        fees.PayoutAmount,
		Gross:         fees.OriginalAmount,
		Fees:          fees.TotalFees,
		Net:           fees.PayoutAmount,
		Status:        PayoutPendingTransfer,
		CreatedAt:     time.Now().UTC(),
	}
}

func (p *Payout) Transition(next PayoutStatus) error {
	for _, allowed := range payoutTransitions[p.Status] {
		if allowed == next {
			p.Status = next
			return nil
		}
	}
	return fmt.Errorf("payout %s: illegal transition %s -> %s", p.ID, p.Status, next)
}
