package mirror

import (
	"context"
	"log/slog"
	"time"

	"fieldsign/internal/store"
)

const flushBatchSize = 100

// OutboxStore is the slice of the local store the flusher needs.
type OutboxStore interface {
	ListOutbox(ctx context.Context, limit int) ([]store.OutboxEntry, error)
	DeleteOutboxEntry(ctx context.Context, id string) error
	RecordOutboxFailure(ctx context.Context, id string, cause string, now time.Time) error
}

// Flusher drains the mirror outbox. It runs on a schedule and can be woken
// early after a local commit; either way each entry is pushed at most once
// per pass and left in place, with its failure recorded, when the remote is
// unreachable.
type Flusher struct {
	store  OutboxStore
	client Client
	logger *slog.Logger
	now    func() time.Time
	wake   chan struct{}
}

func NewFlusher(st OutboxStore, client Client, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flusher{
		store:  st,
		client: client,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		wake:   make(chan struct{}, 1),
	}
}

// Wake requests a prompt flush. Non-blocking; coalesces repeated pokes.
func (f *Flusher) Wake() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Run flushes once at startup, then on every wake signal and at every
// interval tick until the context is cancelled. The startup pass drains
// entries a previous process left behind without waiting a full interval.
func (f *Flusher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := f.Flush(ctx); err != nil && ctx.Err() == nil {
		f.logger.Warn("outbox flush pass failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.wake:
		case <-ticker.C:
		}
		if err := f.Flush(ctx); err != nil && ctx.Err() == nil {
			f.logger.Warn("outbox flush pass failed", "error", err)
		}
	}
}

// Flush pushes pending outbox entries to the remote mirror. Per-entry
// failures are recorded and skipped; only a store-level failure aborts
// the pass.
func (f *Flusher) Flush(ctx context.Context) error {
	for {
		entries, err := f.store.ListOutbox(ctx, flushBatchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		progressed := false
		for _, entry := range entries {
			if err := f.push(ctx, entry); err != nil {
				f.logger.Warn("mirror write failed; will retry",
					"entry_id", entry.ID, "kind", entry.Kind, "attempts", entry.Attempts+1, "error", err)
				if recErr := f.store.RecordOutboxFailure(ctx, entry.ID, err.Error(), f.now()); recErr != nil {
					return recErr
				}
				continue
			}
			if err := f.store.DeleteOutboxEntry(ctx, entry.ID); err != nil {
				return err
			}
			progressed = true
		}

		// Stop when a full batch made no progress; the remote is down and
		// rescanning the same entries would spin.
		if !progressed || len(entries) < flushBatchSize {
			return nil
		}
	}
}

func (f *Flusher) push(ctx context.Context, entry store.OutboxEntry) error {
	switch entry.Kind {
	case store.OutboxSigningUpsert:
		if err := f.client.UpsertSigningRequest(ctx, []byte(entry.Payload)); err != nil {
			return &SyncError{EntryID: entry.ID, Err: err}
		}
		return nil
	default:
		return &SyncError{EntryID: entry.ID, Err: errUnknownKind(entry.Kind)}
	}
}

type errUnknownKind string

func (e errUnknownKind) Error() string { return "unknown outbox kind: " + string(e) }
