package store

import (
	"context"
	"database/sql"
	"time"
)

// OutboxEntry is one pending mirror write. Entries are enqueued in the same
// transaction as the local commit they replicate and removed once the remote
// mirror acknowledges them.
type OutboxEntry struct {
	ID        string
	Kind      string
	Payload   string
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Outbox entry kinds.
const (
	OutboxSigningUpsert = "signing_request_upsert"
)

func enqueueOutboxTx(ctx context.Context, tx *sql.Tx, entry *OutboxEntry) error {
	if entry == nil {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO mirror_outbox (id, kind, payload, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, 0, NULL, ?, ?)
	`, entry.ID, entry.Kind, entry.Payload, formatTime(entry.CreatedAt), formatTime(entry.CreatedAt))
	return err
}

// ListOutbox returns pending mirror writes, oldest first.
func (s *Store) ListOutbox(ctx context.Context, limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, payload, attempts, last_error, created_at, updated_at
		FROM mirror_outbox ORDER BY created_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []OutboxEntry{}
	for rows.Next() {
		var e OutboxEntry
		var lastError *string
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Payload, &e.Attempts, &lastError, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.LastError = stringOrEmpty(lastError)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOutboxEntry removes an entry after a successful mirror write.
func (s *Store) DeleteOutboxEntry(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM mirror_outbox WHERE id = ?", id)
	return err
}

// RecordOutboxFailure bumps the attempt counter and stores the last error
// so failed mirror writes stay observable instead of silently lost.
func (s *Store) RecordOutboxFailure(ctx context.Context, id string, cause string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mirror_outbox SET attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?
	`, cause, formatTime(now), id)
	return err
}

// OutboxDepth returns the number of pending mirror writes.
func (s *Store) OutboxDepth(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM mirror_outbox").Scan(&count)
	return count, err
}
