package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
	"github.com/paylinkbridge/checkout/internal/checkout/domain"
	"github.com/paylinkbridge/checkout/pkg/outbox"
)

// Store keeps the checkout document as a single versioned jsonb row and the
// outbox as its own table, written in one transaction per save.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

// Migrate creates the backing tables.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS checkout_state (
			id      int PRIMARY KEY,
			version bigint NOT NULL,
			body    jsonb NOT NULL
		);
		CREATE TABLE IF NOT EXISTS checkout_outbox (
			id             bigserial PRIMARY KEY,
			aggregate_type text NOT NULL,
			aggregate_id   text NOT NULL,
			type           text NOT NULL,
			payload        bytea NOT NULL,
			traceparent    text NOT NULL DEFAULT '',
			status         text NOT NULL DEFAULT 'pending',
			relay_id       text,
			lease_until    timestamptz,
			retry_count    int NOT NULL DEFAULT 0,
			last_error     text,
			created_at     timestamptz NOT NULL DEFAULT now()
		);
		INSERT INTO checkout_state (id, version, body)
		VALUES (1, 0, '{}'::jsonb)
		ON CONFLICT (id) DO NOTHING;
	`)
	return err
}

func (s *Store) Load(ctx context.Context) (domain.Database, uint64, error) {
	var version uint64
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT version, body FROM checkout_state WHERE id = 1`).Scan(&version, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Database{}, 0, nil
	}
	if err != nil {
		return domain.Database{}, 0, err
	}
	var db domain.Database
	if err := json.Unmarshal(body, &db); err != nil {
		return domain.Database{}, 0, fmt.Errorf("parsing checkout state: %w", err)
	}
	return db, version, nil
}

func (s *Store) Save(ctx context.Context, db domain.Database, version uint64, events ...application.OutboxEntry) error {
	body, err := json.Marshal(db)
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx,
		`UPDATE checkout_state SET body = $1, version = version + 1 WHERE id = 1 AND version = $2`,
		body, version)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("version %d moved: %w", version, application.ErrConflict)
	}

	for _, e := range events {
		_, err = tx.Exec(ctx,
			`INSERT INTO checkout_outbox (aggregate_type, aggregate_id, type, payload, traceparent, status) VALUES ($1,$2,$3,$4,$5,'pending')`,
			e.AggregateType, e.AggregateID, e.Type, e.Payload, e.Traceparent)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, traceparent, created_at
		FROM checkout_outbox
		WHERE status = 'pending'
		   OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var e outbox.Event
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload, &e.Traceparent, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	_, err = tx.Exec(ctx,
		`UPDATE checkout_outbox SET status = 'in_progress', relay_id = $1, lease_until = now() + $2::interval WHERE id = ANY($3)`,
		relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE checkout_outbox SET status = 'sent' WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no outbox rows updated")
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE checkout_outbox SET status = 'failed', last_error = $2, retry_count = retry_count + 1 WHERE id = $1`,
		id, errMsg)
	return err
}

func (s *Store) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE checkout_outbox SET lease_until = now() + $1::interval WHERE id = ANY($2) AND relay_id = $3`,
		lease.String(), ids, relayID)
	return err
}
