package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the append-only ledger record written after a successful
// payment. At most one exists per capture.
type Customer struct {
	ID                 string    `json:"id"`
	Email              string    `json:"paypalEmail"`
	FullName           string    `json:"fullName"`
	Plan               string    `json:"plan"`
	Amount             string    `json:"amount"`
	Currency           string    `json:"currency"`
	License            string    `json:"license"`
	OrderID            string    `json:"orderId"`
	PaymentMethod      string    `json:"paymentMethod,omitempty"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	GithubIssueCreated bool      `json:"githubIssueCreated"`
	GithubIssueURL     string    `json:"githubIssueUrl,omitempty"`
}

func NewCustomer(email, fullName, plan, amount, currency, license, orderID string) Customer {
	if fullName == "" {
		fullName = "Unknown"
	}
	if currency == "" {
		currency = "AUD"
	}
	return Customer{
		ID:        "CUST-" + uuid.NewString(),
		Email:     email,
		FullName:  fullName,
		Plan:      plan,
		Amount:    amount,
		Currency:  currency,
		License:   license,
		OrderID:   orderID,
		Status:    "active",
		CreatedAt: time.Now().UTC(),
	}
}
