package domain

// LicenseMinted is published to the outbox when a license is created, either
// from a captured order or a verified bank transfer. Email, customer-ledger
// and issue-tracker side effects consume it off the event stream.
type LicenseMinted struct {
	License  string `json:"license"`
	OrderID  string `json:"orderId"`
	Plan     string `json:"plan"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
}
