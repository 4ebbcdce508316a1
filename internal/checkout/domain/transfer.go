package domain

import "time"

// Plan is a purchasable subscription tier paid by PayPal order or manual
// bank transfer.
type Plan struct {
	Price    float64 `json:"price"`
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	Duration string  `json:"duration"`
}

var Plans = map[string]Plan{
	"starter": {Price: 10.00, Name: "Starter Plan", Currency: "AUD", Duration: "30 days"},
	"basic":   {Price: 25.00, Name: "Basic Plan", Currency: "AUD", Duration: "90 days"},
	"pro":     {Price: 99.00, Name: "Pro Plan", Currency: "AUD", Duration: "1 year"},
}

// BankAccount is the operator's receiving account shown in transfer
// instructions and payout reports.
type BankAccount struct {
	Name    string `json:"name"`
	Number  string `json:"number"`
	BSB     string `json:"bsb"`
	Address string `json:"address,omitempty"`
	Swift   string `json:"swift,omitempty"`
	Bank    string `json:"bank,omitempty"`
}

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
)

// BankTransfer is a manual payment staged against a unique payment code the
// customer places in their transfer reference.
type BankTransfer struct {
	ID          string         `json:"id"`
	PaymentCode string         `json:"paymentCode"`
	Email       string         `json:"email"`
	FullName    string         `json:"fullName"`
	Plan        string         `json:"plan"`
	Amount      float64        `json:"amount"`
	Currency    string         `json:"currency"`
	Status      TransferStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	License     string         `json:"license,omitempty"`
	CustomerID  string         `json:"customerId,omitempty"`
}

func NewBankTransfer(email, fullName, planKey string, plan Plan) BankTransfer {
	return BankTransfer{
		ID:          NewTransferID(),
		PaymentCode: NewPaymentCode(),
		Email:       email,
		FullName:    fullName,
		Plan:        planKey,
		Amount:      plan.Price,
		Currency:    plan.Currency,
		Status:      TransferPending,
		CreatedAt:   time.Now().UTC(),
	}
}
