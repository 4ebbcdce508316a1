package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/paylinkbridge/checkout/pkg/tracing"
)

type memOutbox struct {
	mu     sync.Mutex
	events []Event
}

func (m *memOutbox) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var claimed []Event
	for i := range m.events {
		if len(claimed) == batchSize {
			break
		}
		e := &m.events[i]
		expired := e.Status == StatusInProgress && now.After(e.LeaseUntil)
		if e.Status != StatusPending && !expired {
			continue
		}
		e.Status = StatusInProgress
		e.RelayID = relayID
		e.LeaseUntil = now.Add(lease)
		claimed = append(claimed, *e)
	}
	return claimed, nil
}

func (m *memOutbox) MarkSent(ctx context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for i := range m.events {
			if m.events[i].ID == id {
				m.events[i].Status = StatusSent
			}
		}
	}
	return nil
}

func (m *memOutbox) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			m.events[i].Status = StatusFailed
			m.events[i].RetryCount++
			m.events[i].LastError = errMsg
		}
	}
	return nil
}

func (m *memOutbox) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	return nil
}

func (m *memOutbox) statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, len(m.events))
	for i, e := range m.events {
		out[i] = e.Status
	}
	return out
}

type recordingDispatcher struct {
	mu      sync.Mutex
	sent    []Event
	failIDs map[int64]bool
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, event Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failIDs[event.ID] {
		return errors.New("broker unreachable")
	}
	d.sent = append(d.sent, event)
	return nil
}

func (d *recordingDispatcher) sentIDs() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]int64, len(d.sent))
	for i, e := range d.sent {
		ids[i] = e.ID
	}
	return ids
}

func newFastRelay(store Store, dispatch Dispatcher) *Relay {
	r := NewRelay(slog.Default(), store, dispatch, "relay-test")
	r.interval = 10 * time.Millisecond
	return r
}

func TestRelayDispatchesPendingEvents(t *testing.T) {
	store := &memOutbox{events: []Event{
		{ID: 1, AggregateID: "LIC-AAA", Type: "LicenseMinted", Payload: []byte(`{}`), Status: StatusPending},
		{ID: 2, AggregateID: "LIC-BBB", Type: "LicenseMinted", Payload: []byte(`{}`), Status: StatusPending},
	}}
	dispatch := &recordingDispatcher{}
	relay := newFastRelay(store, dispatch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = relay.Run(ctx); close(done) }()

	require.Eventually(t, func() bool {
		return len(dispatch.sentIDs()) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	require.Equal(t, []Status{StatusSent, StatusSent}, store.statuses())
}

func TestRelayMarksFailedAndKeepsGoing(t *testing.T) {
	store := &memOutbox{events: []Event{
		{ID: 1, Type: "LicenseMinted", Payload: []byte(`{}`), Status: StatusPending},
		{ID: 2, Type: "LicenseMinted", Payload: []byte(`{}`), Status: StatusPending},
	}}
	dispatch := &recordingDispatcher{failIDs: map[int64]bool{1: true}}
	relay := newFastRelay(store, dispatch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = relay.Run(ctx); close(done) }()

	require.Eventually(t, func() bool {
		s := store.statuses()
		return s[0] == StatusFailed && s[1] == StatusSent
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	require.Equal(t, []int64{2}, dispatch.sentIDs())
	require.Equal(t, "broker unreachable", store.events[0].LastError)
	require.Equal(t, 1, store.events[0].RetryCount)
}

type capturingProducer struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (p *capturingProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestKafkaDispatcherMessageShape(t *testing.T) {
	producer := &capturingProducer{}
	d := NewKafkaDispatcher(slog.Default(), producer, "license.events")

	event := Event{ID: 7, AggregateType: "license", AggregateID: "LIC-AAA", Type: "LicenseMinted", Payload: []byte(`{"license":"LIC-AAA"}`)}
	require.NoError(t, d.Dispatch(context.Background(), event))

	require.Len(t, producer.msgs, 1)
	msg := producer.msgs[0]
	require.Equal(t, "license.events", msg.Topic)
	require.Equal(t, []byte("LIC-AAA"), msg.Key)
	require.Equal(t, []byte(`{"license":"LIC-AAA"}`), msg.Value)
	require.Equal(t, "event_type", msg.Headers[0].Key)
	require.Equal(t, []byte("LicenseMinted"), msg.Headers[0].Value)
}

func TestKafkaDispatcherCarriesTraceparent(t *testing.T) {
	producer := &capturingProducer{}
	d := NewKafkaDispatcher(slog.Default(), producer, "license.events")

	traceparent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	event := Event{ID: 8, AggregateType: "license", AggregateID: "LIC-BBB", Type: "LicenseMinted", Traceparent: traceparent}
	require.NoError(t, d.Dispatch(context.Background(), event))

	require.Len(t, producer.msgs, 1)
	headers := map[string]string{}
	for _, h := range producer.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, traceparent, headers[tracing.TraceparentHeader])

	// no span context, no header
	producer.msgs = nil
	require.NoError(t, d.Dispatch(context.Background(), Event{ID: 9, AggregateID: "LIC-CCC", Type: "LicenseMinted"}))
	for _, h := range producer.msgs[0].Headers {
		require.NotEqual(t, tracing.TraceparentHeader, h.Key)
	}
}
