package domain

import (
	"fmt"
	"time"
)

type LicenseStatus string

const (
	LicenseActive   LicenseStatus = "active"
	LicenseVerified LicenseStatus = "verified"
	LicenseFailed   LicenseStatus = "failed"
)

// licenseTransitions lists the allowed status moves. A license starts active
// and only ever settles forward into verified or failed.
var licenseTransitions = map[LicenseStatus][]LicenseStatus{
	LicenseActive: {LicenseVerified, LicenseFailed},
}

type PayoutOutcomeStatus string

const (
	PayoutOutcomeInitiated PayoutOutcomeStatus = "initiated"
	PayoutOutcomeFailed    PayoutOutcomeStatus = "failed"
)

// PayoutOutcome is the payout sub-record attached to a license after the
// automatic disbursement attempt.
type PayoutOutcome struct {
	Status      PayoutOutcomeStatus `json:"status"`
	Amount      float64             `json:"amount,omitempty"`
	PayoutID    string              `json:"payoutId,omitempty"`
	Error       string              `json:"error,omitempty"`
	RequestDate time.Time           `json:"requestDate"`
}

type License struct {
	Key           string         `json:"license"`
	OrderID       string         `json:"orderId,omitempty"`
	TransferID    string         `json:"transferId,omitempty"`
	PaymentCode   string         `json:"paymentCode,omitempty"`
	Plan          string         `json:"plan"`
	Email         string         `json:"email"`
	Amount        string         `json:"amount"`
	Status        LicenseStatus  `json:"status"`
	GatewayStatus string         `json:"paypal_status,omitempty"`
	CaptureID     string         `json:"paypal_capture_id,omitempty"`
	CaptureStatus string         `json:"paypal_capture_status,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	Fees          FeeBreakdown   `json:"fees"`
	Payout        *PayoutOutcome `json:"payout,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	VerifiedAt    *time.Time     `json:"verified_at,omitempty"`
}

func NewLicense(orderID, plan, email, amount string, gatewayStatus string, fees FeeBreakdown) License {
	if plan == "" {
		plan = "one-time"
	}
	if email == "" {
		email = "unknown"
	}
	return License{
		Key:           NewLicenseKey(),
		OrderID:       orderID,
		Plan:          plan,
		Email:         email,
		Amount:        amount,
		Status:        LicenseActive,
		GatewayStatus: gatewayStatus,
		Fees:          fees,
		CreatedAt:     time.Now().UTC(),
	}
}

// Transition moves the license to next, rejecting anything outside the
// allowed table (including backward moves like verified -> active).
func (l *License) Transition(next LicenseStatus) error {
	for _, allowed := range licenseTransitions[l.Status] {
		if allowed == next {
			l.Status = next
			return nil
		}
	}
	return fmt.Errorf("license %s: illegal transition %s -> %s", l.Key, l.Status, next)
}

// MarkCaptured records a provider capture confirmation and verifies the
// license. Replaying the same event is a no-op transition.
func (l *License) MarkCaptured(captureID, captureStatus string) error {
	if l.Status != LicenseVerified {
		if err := l.Transition(LicenseVerified); err != nil {
			return err
		}
	}
	l.CaptureID = captureID
	l.CaptureStatus = captureStatus
	return nil
}

// MarkDeclined records a provider decline and fails the license. Replaying
// the same event is a no-op transition.
func (l *License) MarkDeclined(captureID, reason string) error {
	if l.Status != LicenseFailed {
		if err := l.Transition(LicenseFailed); err != nil {
			return err
		}
	}
	l.CaptureID = captureID
	l.FailureReason = reason
	return nil
}
