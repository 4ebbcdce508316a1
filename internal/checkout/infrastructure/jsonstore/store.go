package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paylinkbridge/checkout/internal/checkout/application"
	"github.com/paylinkbridge/checkout/internal/checkout/domain"
	"github.com/paylinkbridge/checkout/pkg/outbox"
)

// document is the on-disk shape: the checkout state plus the staged outbox,
// under a single version counter.
type document struct {
	Version   uint64          `json:"version"`
	Data      domain.Database `json:"data"`
	Outbox    []outbox.Event  `json:"outbox"`
	OutboxSeq int64           `json:"outboxSeq"`
}

// Store persists the whole checkout document as one JSON file. Every save
// rewrites the file; a version check makes concurrent read-modify-write
// cycles fail with a conflict instead of silently dropping a writer.
type Store struct {
	log  *slog.Logger
	path string
	mu   sync.Mutex
}

func New(log *slog.Logger, path string) *Store {
	return &Store{log: log, path: path}
}

func (s *Store) Load(ctx context.Context) (domain.Database, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return domain.Database{}, 0, err
	}
	return doc.Data, doc.Version, nil
}

func (s *Store) Save(ctx context.Context, db domain.Database, version uint64, events ...application.OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc.Version != version {
		return fmt.Errorf("version %d moved to %d: %w", version, doc.Version, application.ErrConflict)
	}

	doc.Data = db
	doc.Version++
	now := time.Now().UTC()
	for _, e := range events {
		doc.OutboxSeq++
		doc.Outbox = append(doc.Outbox, outbox.Event{
			ID:            doc.OutboxSeq,
			AggregateType: e.AggregateType,
			AggregateID:   e.AggregateID,
			Type:          e.Type,
			Payload:       e.Payload,
			Traceparent:   e.Traceparent,
			CreatedAt:     now,
			Status:        outbox.StatusPending,
		})
	}
	return s.write(doc)
}

// LockBatch claims up to batchSize pending events (or events whose previous
// lease expired) for this relay.
func (s *Store) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var claimed []outbox.Event
	for i := range doc.Outbox {
		if len(claimed) == batchSize {
			break
		}
		e := &doc.Outbox[i]
		expired := e.Status == outbox.StatusInProgress && now.After(e.LeaseUntil)
		if e.Status != outbox.StatusPending && !expired {
			continue
		}
		e.Status = outbox.StatusInProgress
		e.RelayID = relayID
		e.LeaseUntil = now.Add(lease)
		claimed = append(claimed, *e)
	}
	if len(claimed) == 0 {
		return nil, nil
	}
	if err := s.write(doc); err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) MarkSent(ctx context.Context, ids []int64) error {
	return s.mutateOutbox(func(e *outbox.Event) {
		e.Status = outbox.StatusSent
	}, ids...)
}

func (s *Store) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return s.mutateOutbox(func(e *outbox.Event) {
		e.Status = outbox.StatusFailed
		e.RetryCount++
		e.LastError = errMsg
	}, id)
}

func (s *Store) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	until := time.Now().UTC().Add(lease)
	return s.mutateOutbox(func(e *outbox.Event) {
		if e.RelayID == relayID {
			e.LeaseUntil = until
		}
	}, ids...)
}

func (s *Store) mutateOutbox(fn func(*outbox.Event), ids ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range doc.Outbox {
		if want[doc.Outbox[i].ID] {
			fn(&doc.Outbox[i])
		}
	}
	return s.write(doc)
}

func (s *Store) read() (document, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("reading %s: %w", s.path, err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return doc, nil
}

// write replaces the file atomically so a crash mid-save never leaves a
// truncated document.
func (s *Store) write(doc document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
