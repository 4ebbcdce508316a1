package jsonstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
	"github.com/paylinkbridge/checkout/internal/checkout/domain"
	"github.com/paylinkbridge/checkout/pkg/outbox"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(slog.Default(), filepath.Join(t.TempDir(), "db.json"))
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	db, version, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(0), version)
	require.Empty(t, db.Licenses)
}

func TestSaveAndReload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	db, version, err := s.Load(ctx)
	require.NoError(t, err)
	db.Licenses = append(db.Licenses, domain.License{Key: "LIC-AAA", OrderID: "ORDER-1", Amount: "25.00", Status: domain.LicenseActive})
	require.NoError(t, s.Save(ctx, db, version))

	// a fresh store over the same file sees the committed state
	reopened := New(slog.Default(), s.path)
	db2, version2, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), version2)
	require.Len(t, db2.Licenses, 1)
	require.Equal(t, "LIC-AAA", db2.Licenses[0].Key)
}

func TestSaveStaleVersionConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	db, version, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, db, version))

	// second writer saving against the old version must conflict
	err = s.Save(ctx, db, version)
	require.ErrorIs(t, err, application.ErrConflict)
}

func TestUpdateStoreRetriesThroughConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := application.UpdateStore(ctx, s, func(db *domain.Database) ([]application.OutboxEntry, error) {
			db.WebhookEvents = append(db.WebhookEvents, domain.WebhookEvent{Event: "APPROVED", Timestamp: time.Now().UTC()})
			return nil, nil
		})
		require.NoError(t, err)
	}

	db, version, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), version)
	require.Len(t, db.WebhookEvents, 3)
}

func TestOutboxLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	db, version, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, db, version,
		application.OutboxEntry{AggregateType: "license", AggregateID: "LIC-AAA", Type: "LicenseMinted", Payload: []byte(`{"license":"LIC-AAA"}`), Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
		application.OutboxEntry{AggregateType: "license", AggregateID: "LIC-BBB", Type: "LicenseMinted", Payload: []byte(`{"license":"LIC-BBB"}`)},
	))

	claimed, err := s.LockBatch(ctx, "relay-1", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	require.Equal(t, int64(1), claimed[0].ID)
	require.Equal(t, outbox.StatusInProgress, claimed[0].Status)
	require.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", claimed[0].Traceparent)
	require.Empty(t, claimed[1].Traceparent)

	// claimed events are invisible to a second relay while leased
	other, err := s.LockBatch(ctx, "relay-2", 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, other)

	require.NoError(t, s.MarkSent(ctx, []int64{claimed[0].ID}))
	require.NoError(t, s.MarkFailed(ctx, claimed[1].ID, "broker unreachable"))

	// neither sent nor failed events are reclaimed
	again, err := s.LockBatch(ctx, "relay-1", 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestLockBatchReclaimsExpiredLease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	db, version, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, db, version,
		application.OutboxEntry{AggregateType: "license", AggregateID: "LIC-AAA", Type: "LicenseMinted", Payload: []byte(`{}`)},
	))

	claimed, err := s.LockBatch(ctx, "relay-1", 10, -time.Second)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// the lease is already expired, so another relay may take over
	stolen, err := s.LockBatch(ctx, "relay-2", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, stolen, 1)
	require.Equal(t, "relay-2", stolen[0].RelayID)
}

func TestLockBatchRespectsBatchSize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	db, version, err := s.Load(ctx)
	require.NoError(t, err)
	var entries []application.OutboxEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, application.OutboxEntry{AggregateType: "license", Type: "LicenseMinted", Payload: []byte(`{}`)})
	}
	require.NoError(t, s.Save(ctx, db, version, entries...))

	claimed, err := s.LockBatch(ctx, "relay-1", 3, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 3)

	rest, err := s.LockBatch(ctx, "relay-1", 3, time.Minute)
	require.NoError(t, err)
	require.Len(t, rest, 2)
}
