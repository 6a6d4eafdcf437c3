// Package mirror replicates signing requests to a remote datastore on a
// best-effort basis. The local SQLite store stays authoritative; a failed
// mirror write never fails the caller's operation. Pending writes live in
// the store's outbox until the remote acknowledges them.
package mirror

import (
	"context"
	"fmt"
)

// Client is the narrow remote-datastore interface: insert-or-update by id.
type Client interface {
	UpsertSigningRequest(ctx context.Context, payload []byte) error
	Close() error
}

// SyncError wraps a failed mirror write. Logged and retried, never fatal.
type SyncError struct {
	EntryID string
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("mirror sync of %s failed: %v", e.EntryID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
