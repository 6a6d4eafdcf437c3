package store

import (
	"context"
	"testing"
	"time"

	"fieldsign/internal/models"
)

func testSigningRequest(id, jobID string, status models.SigningStatus, created time.Time) *models.SigningRequest {
	return &models.SigningRequest{
		ID:             id,
		JobID:          jobID,
		UserID:         "wk-abc123",
		ContactMethod:  models.ContactEmail,
		ContactAddress: "client@example.com",
		SecureToken:    "token-" + id,
		Status:         status,
		CreatedAt:      created,
		ExpiresAt:      created.Add(models.SigningTTL),
	}
}

func testOutboxEntry(id string, now time.Time) *OutboxEntry {
	return &OutboxEntry{ID: "ob-" + id, Kind: OutboxSigningUpsert, Payload: "{}", CreatedAt: now}
}

func TestCreateSigningRequestAttachesToJob(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := st.CreateJob(ctx, testJob("job-1", "wk-abc123", now)); err != nil {
		t.Fatalf("create job: %v", err)
	}

	req := testSigningRequest("req-1", "job-1", models.SigningPending, now)
	if err := st.CreateSigningRequest(ctx, req, testOutboxEntry("req-1", now)); err != nil {
		t.Fatalf("create request: %v", err)
	}

	job, err := st.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != models.JobPendingRemoteSignature {
		t.Fatalf("expected pending_remote_signature, got %q", job.Status)
	}
	if job.SigningRef == nil || job.SigningRef.RequestID != "req-1" {
		t.Fatalf("signing ref not attached: %+v", job.SigningRef)
	}
	if !job.SigningRef.ExpiresAt.Equal(req.ExpiresAt) {
		t.Fatalf("signing ref expiry drifted: want %v, got %v", req.ExpiresAt, job.SigningRef.ExpiresAt)
	}

	depth, err := st.OutboxDepth(ctx)
	if err != nil {
		t.Fatalf("outbox depth: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected 1 outbox entry, got %d", depth)
	}
}

func TestSigningRequestRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 8, 30, 15, 123456789, time.UTC)

	if err := st.CreateJob(ctx, testJob("job-1", "wk-abc123", now)); err != nil {
		t.Fatalf("create job: %v", err)
	}

	// Mixed states persisted and reloaded with identical field values,
	// including sub-second timestamp precision.
	reviewed := now.Add(3 * time.Hour)
	requests := []*models.SigningRequest{
		testSigningRequest("req-1", "job-1", models.SigningPending, now),
		testSigningRequest("req-2", "job-1", models.SigningViewed, now.Add(time.Minute)),
	}
	approved := testSigningRequest("req-3", "job-1", models.SigningApproved, now.Add(2*time.Minute))
	approved.ReviewedAt = &reviewed
	approved.ClientFeedback = "looks great"
	approved.SignatureRef = "blobs/sig-3"
	approved.ClientSignedName = "Jane Doe"
	requests = append(requests, approved)

	for _, req := range requests {
		if err := st.CreateSigningRequest(ctx, req, nil); err != nil {
			t.Fatalf("create %s: %v", req.ID, err)
		}
	}

	for _, want := range requests {
		got, err := st.GetSigningRequest(ctx, want.ID)
		if err != nil {
			t.Fatalf("get %s: %v", want.ID, err)
		}
		if got == nil {
			t.Fatalf("request %s not found", want.ID)
		}
		if got.Status != want.Status {
			t.Fatalf("%s: status %q != %q", want.ID, got.Status, want.Status)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) || !got.ExpiresAt.Equal(want.ExpiresAt) {
			t.Fatalf("%s: timestamp drift", want.ID)
		}
		if got.ClientFeedback != want.ClientFeedback || got.ClientSignedName != want.ClientSignedName {
			t.Fatalf("%s: review fields drifted", want.ID)
		}
		if want.ReviewedAt != nil {
			if got.ReviewedAt == nil || !got.ReviewedAt.Equal(*want.ReviewedAt) {
				t.Fatalf("%s: reviewed_at drifted", want.ID)
			}
		}
	}
}

func TestGetSigningRequestByToken(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := st.CreateJob(ctx, testJob("job-1", "wk-abc123", now)); err != nil {
		t.Fatalf("create job: %v", err)
	}
	req := testSigningRequest("req-1", "job-1", models.SigningPending, now)
	if err := st.CreateSigningRequest(ctx, req, nil); err != nil {
		t.Fatalf("create request: %v", err)
	}

	got, err := st.GetSigningRequestByToken(ctx, "token-req-1")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.ID != "req-1" {
		t.Fatalf("unexpected result: %+v", got)
	}

	missing, err := st.GetSigningRequestByToken(ctx, "token-unknown")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown token, got %+v", missing)
	}
}

func TestUpdateSigningRequestApprovalCompletesJob(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := st.CreateJob(ctx, testJob("job-1", "wk-abc123", now)); err != nil {
		t.Fatalf("create job: %v", err)
	}
	req := testSigningRequest("req-1", "job-1", models.SigningPending, now)
	if err := st.CreateSigningRequest(ctx, req, nil); err != nil {
		t.Fatalf("create request: %v", err)
	}

	reviewed := now.Add(time.Hour)
	feedback := "thanks"
	sig := "blobs/remote-sig"
	name := "Jane Doe"
	update := SigningUpdate{
		Status:           models.SigningApproved,
		ReviewedAt:       &reviewed,
		ClientFeedback:   &feedback,
		SignatureRef:     &sig,
		ClientSignedName: &name,
	}
	if err := st.UpdateSigningRequest(ctx, "req-1", update, testOutboxEntry("upd-1", reviewed)); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := st.GetSigningRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if got.Status != models.SigningApproved {
		t.Fatalf("expected approved, got %q", got.Status)
	}
	if got.ReviewedAt == nil || !got.ReviewedAt.Equal(reviewed) {
		t.Fatal("reviewed_at not stamped")
	}

	job, err := st.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != models.JobCompleted {
		t.Fatalf("expected completed job, got %q", job.Status)
	}
	if job.SignatureRef != sig || job.ClientSignedName != name {
		t.Fatal("signature not copied onto job")
	}
}

func TestMarkSigningRequestsExpiredIdempotent(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := st.CreateJob(ctx, testJob("job-1", "wk-abc123", now)); err != nil {
		t.Fatalf("create job: %v", err)
	}
	for _, req := range []*models.SigningRequest{
		testSigningRequest("req-1", "job-1", models.SigningPending, now.Add(-72*time.Hour)),
		testSigningRequest("req-2", "job-1", models.SigningApproved, now.Add(-72*time.Hour)),
	} {
		if err := st.CreateSigningRequest(ctx, req, nil); err != nil {
			t.Fatalf("create %s: %v", req.ID, err)
		}
	}

	// The guard must not touch terminal records and must tolerate reruns.
	for i := 0; i < 2; i++ {
		if err := st.MarkSigningRequestsExpired(ctx, []string{"req-1", "req-2"}, nil); err != nil {
			t.Fatalf("mark expired (pass %d): %v", i+1, err)
		}
	}

	got, err := st.GetSigningRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("get req-1: %v", err)
	}
	if got.Status != models.SigningExpired {
		t.Fatalf("expected expired, got %q", got.Status)
	}

	got, err = st.GetSigningRequest(ctx, "req-2")
	if err != nil {
		t.Fatalf("get req-2: %v", err)
	}
	if got.Status != models.SigningApproved {
		t.Fatalf("terminal record modified: %q", got.Status)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := st.CreateJob(ctx, testJob("job-1", "wk-abc123", now)); err != nil {
		t.Fatalf("create job: %v", err)
	}
	req := testSigningRequest("req-1", "job-1", models.SigningPending, now)
	if err := st.CreateSigningRequest(ctx, req, testOutboxEntry("req-1", now)); err != nil {
		t.Fatalf("create request: %v", err)
	}

	entries, err := st.ListOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	if err := st.RecordOutboxFailure(ctx, entries[0].ID, "connection refused", now.Add(time.Second)); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	entries, err = st.ListOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list after failure: %v", err)
	}
	if entries[0].Attempts != 1 || entries[0].LastError != "connection refused" {
		t.Fatalf("failure not recorded: %+v", entries[0])
	}

	if err := st.DeleteOutboxEntry(ctx, entries[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	depth, err := st.OutboxDepth(ctx)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 0 {
		t.Fatalf("expected empty outbox, got %d", depth)
	}
}
