package mirror

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsign/internal/store"
)

type memOutbox struct {
	entries []store.OutboxEntry
}

func (m *memOutbox) ListOutbox(ctx context.Context, limit int) ([]store.OutboxEntry, error) {
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]store.OutboxEntry, limit)
	copy(out, m.entries[:limit])
	return out, nil
}

func (m *memOutbox) DeleteOutboxEntry(ctx context.Context, id string) error {
	for i, entry := range m.entries {
		if entry.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memOutbox) RecordOutboxFailure(ctx context.Context, id string, cause string, now time.Time) error {
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Attempts++
			m.entries[i].LastError = cause
		}
	}
	return nil
}

type recordingClient struct {
	payloads []string
	fail     bool
	pushed   chan struct{}
}

func (c *recordingClient) UpsertSigningRequest(ctx context.Context, payload []byte) error {
	if c.fail {
		return fmt.Errorf("connection refused")
	}
	c.payloads = append(c.payloads, string(payload))
	select {
	case c.pushed <- struct{}{}:
	default:
	}
	return nil
}

func (c *recordingClient) Close() error { return nil }

func entry(id string) store.OutboxEntry {
	return store.OutboxEntry{
		ID:        id,
		Kind:      store.OutboxSigningUpsert,
		Payload:   `{"id":"req-` + id + `"}`,
		CreatedAt: time.Now().UTC(),
	}
}

func TestFlushDrainsOutbox(t *testing.T) {
	outbox := &memOutbox{entries: []store.OutboxEntry{entry("1"), entry("2")}}
	client := &recordingClient{}
	flusher := NewFlusher(outbox, client, nil)

	require.NoError(t, flusher.Flush(context.Background()))
	assert.Len(t, client.payloads, 2)
	assert.Empty(t, outbox.entries)
}

func TestFlushRecordsFailuresAndKeepsEntries(t *testing.T) {
	outbox := &memOutbox{entries: []store.OutboxEntry{entry("1")}}
	client := &recordingClient{fail: true}
	flusher := NewFlusher(outbox, client, nil)

	require.NoError(t, flusher.Flush(context.Background()))
	require.Len(t, outbox.entries, 1)
	assert.Equal(t, 1, outbox.entries[0].Attempts)
	assert.Contains(t, outbox.entries[0].LastError, "connection refused")

	// The remote comes back; the retained entry drains on the next pass.
	client.fail = false
	require.NoError(t, flusher.Flush(context.Background()))
	assert.Empty(t, outbox.entries)
	assert.Len(t, client.payloads, 1)
}

func TestFlushSkipsUnknownKinds(t *testing.T) {
	bad := entry("1")
	bad.Kind = "mystery"
	outbox := &memOutbox{entries: []store.OutboxEntry{bad, entry("2")}}
	client := &recordingClient{}
	flusher := NewFlusher(outbox, client, nil)

	require.NoError(t, flusher.Flush(context.Background()))
	assert.Len(t, client.payloads, 1)
	require.Len(t, outbox.entries, 1)
	assert.Equal(t, "mystery", outbox.entries[0].Kind)
}

func TestRunFlushesLeftoverEntriesAtStartup(t *testing.T) {
	outbox := &memOutbox{entries: []store.OutboxEntry{entry("1")}}
	client := &recordingClient{pushed: make(chan struct{}, 1)}
	flusher := NewFlusher(outbox, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- flusher.Run(ctx, time.Hour) }()

	// With an hour-long interval and no wake, only the startup pass can
	// have pushed the entry left over from a previous process.
	select {
	case <-client.pushed:
	case <-time.After(5 * time.Second):
		t.Fatal("startup flush never ran")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, outbox.entries)
}

func TestWakeCoalesces(t *testing.T) {
	flusher := NewFlusher(&memOutbox{}, &recordingClient{}, nil)
	for i := 0; i < 10; i++ {
		flusher.Wake()
	}
	// One buffered signal at most; a second non-blocking send must not hang.
	select {
	case <-flusher.wake:
	default:
		t.Fatal("expected a pending wake signal")
	}
	select {
	case <-flusher.wake:
		t.Fatal("wake signals were not coalesced")
	default:
	}
}
