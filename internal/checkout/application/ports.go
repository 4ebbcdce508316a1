package application

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/paylinkbridge/checkout/internal/checkout/domain"
)

// OutboxEntry is an event to be appended atomically with a document save and
// relayed to the event stream afterwards.
type OutboxEntry struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Traceparent   string
}

// Store persists the single checkout document with optimistic concurrency.
// Save must fail with ErrConflict when version no longer matches the stored
// document, so concurrent read-modify-write cycles never drop each other.
type Store interface {
	Load(ctx context.Context) (domain.Database, uint64, error)
	Save(ctx context.Context, db domain.Database, version uint64, events ...OutboxEntry) error
}

const updateRetries = 5

// UpdateStore runs fn against a fresh copy of the document and saves it,
// retrying on version conflicts. fn returns the outbox entries to append
// with the save.
func UpdateStore(ctx context.Context, s Store, fn func(*domain.Database) ([]OutboxEntry, error)) error {
	var err error
	for i := 0; i < updateRetries; i++ {
		var db domain.Database
		var version uint64
		db, version, err = s.Load(ctx)
		if err != nil {
			return err
		}
		var events []OutboxEntry
		events, err = fn(&db)
		if err != nil {
			return err
		}
		err = s.Save(ctx, db, version, events...)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}

type OrderLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// OrderResource is the provider's order as returned by create.
type OrderResource struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Links  []OrderLink `json:"links"`
}

// CaptureResource is the provider's view of a captured order.
type CaptureResource struct {
	ID         string
	Status     string
	Amount     string
	Currency   string
	PayerEmail string
}

// Gateway wraps the payment provider. Every call acquires its own access
// token; implementations surface non-2xx responses as *GatewayError.
type Gateway interface {
	CreateOrder(ctx context.Context, amount, currency string) (OrderResource, error)
	CaptureOrder(ctx context.Context, orderID string) (CaptureResource, error)
}

// PayoutResult is the provider's response to a disbursement batch.
type PayoutResult struct {
	BatchID string
	Raw     json.RawMessage
}

// PayoutSender submits single-item disbursement batches.
type PayoutSender interface {
	SendToEmail(ctx context.Context, receiver string, amount float64, currency, note string) (PayoutResult, error)
	SendToBank(ctx context.Context, amount float64, currency, note string) (PayoutResult, error)
}

// Mailer delivers license and operator notification emails. Fire-and-forget:
// callers log failures and move on.
type Mailer interface {
	SendLicenseEmail(ctx context.Context, to, license, plan, orderID string) error
	SendAdminNotification(ctx context.Context, plan, amount, email, orderID string) error
}

// IssueTracker files a tracker issue for a recorded customer and returns its
// URL. Best-effort.
type IssueTracker interface {
	CreateIssue(ctx context.Context, customer domain.Customer) (string, error)
}

// WebhookRequest carries the raw body and transmission headers of an inbound
// provider notification.
type WebhookRequest struct {
	TransmissionID   string
	TransmissionTime string
	CertURL          string
	AuthAlgo         string
	Signature        string
	Body             []byte
}

// WebhookVerifier authenticates an inbound event. A false result rejects the
// event before any processing or storage.
type WebhookVerifier interface {
	Verify(ctx context.Context, req WebhookRequest) (bool, error)
}
