package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is a staged domain event awaiting relay to the event stream. It is
// appended in the same store write as the state change that produced it.
type Event struct {
	ID            int64     `json:"id"`
	AggregateType string    `json:"aggregateType"`
	AggregateID   string    `json:"aggregateId"`
	Type          string    `json:"type"`
	Payload       []byte    `json:"payload"`
	Traceparent   string    `json:"traceparent,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Status        Status    `json:"status"`
	RelayID       string    `json:"relayId,omitempty"`
	LeaseUntil    time.Time `json:"leaseUntil,omitempty"`
	RetryCount    int       `json:"retryCount,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
}
