package paypal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
	"github.com/paylinkbridge/checkout/internal/checkout/domain"
)

// MockGateway stands in for the real provider in mock mode. Orders are held
// in memory and capture always completes with the created amount.
type MockGateway struct {
	log     *slog.Logger
	selfURL string

	mu     sync.Mutex
	orders map[string]string
}

func NewMockGateway(log *slog.Logger, selfURL string) *MockGateway {
	if selfURL == "" {
		selfURL = "http://localhost:4000"
	}
	return &MockGateway{log: log, selfURL: selfURL, orders: make(map[string]string)}
}

func (m *MockGateway) CreateOrder(ctx context.Context, amount, currency string) (application.OrderResource, error) {
	id := "MOCK-" + domain.RandomToken(6)
	m.mu.Lock()
	m.orders[id] = amount
	m.mu.Unlock()

	m.log.Info("mock order created", "order_id", id, "amount", amount, "currency", currency)
	return application.OrderResource{
		ID:     id,
		Status: "CREATED",
		Links: []application.OrderLink{
			{Rel: "approve", Href: m.selfURL + "/mock/approve?order=" + id},
		},
	}, nil
}

func (m *MockGateway) CaptureOrder(ctx context.Context, orderID string) (application.CaptureResource, error) {
	m.mu.Lock()
	amount, ok := m.orders[orderID]
	m.mu.Unlock()
	if !ok {
		amount = "25.00"
	}
	return application.CaptureResource{
		ID:       orderID,
		Status:   "COMPLETED",
		Amount:   amount,
		Currency: "AUD",
	}, nil
}
