package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fieldsign/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testJob(id, userID string, now time.Time) *models.Job {
	return &models.Job{
		ID:          id,
		UserID:      userID,
		ClientName:  "Jane Doe",
		ClientEmail: "client@example.com",
		ServiceType: "hvac",
		CreatedAt:   now,
	}
}

func TestCreateAndGetJob(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := st.CreateJob(ctx, testJob("job-1", "wk-abc123", now)); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected job, got nil")
	}
	if got.Status != models.JobCreated {
		t.Fatalf("expected status created, got %q", got.Status)
	}
	if got.ClientEmail != "client@example.com" {
		t.Fatalf("unexpected client email %q", got.ClientEmail)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at drifted: want %v, got %v", now, got.CreatedAt)
	}
}

func TestGetJobMissing(t *testing.T) {
	st := testStore(t)
	got, err := st.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestAddPhotoRefreshesStatus(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := st.CreateJob(ctx, testJob("job-1", "wk-abc123", now)); err != nil {
		t.Fatalf("create job: %v", err)
	}

	for i, tag := range []models.PhotoTag{models.PhotoBefore, models.PhotoDuring} {
		photo := &models.Photo{
			ID:        "photo-" + string(tag),
			JobID:     "job-1",
			BlobRef:   "blobs/p" + string(rune('1'+i)),
			Tag:       tag,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := st.AddPhoto(ctx, photo); err != nil {
			t.Fatalf("add photo: %v", err)
		}
	}

	got, err := st.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.JobInProgress {
		t.Fatalf("expected in_progress, got %q", got.Status)
	}
	if len(got.Photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(got.Photos))
	}
	if got.Photos[0].Tag != models.PhotoBefore || got.Photos[1].Tag != models.PhotoDuring {
		t.Fatal("photo ordering is not insertion order")
	}
}

func TestSetJobSignatureCompletes(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := st.CreateJob(ctx, testJob("job-1", "wk-abc123", now)); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := st.SetJobSignature(ctx, "job-1", "blobs/sig", "Jane Doe", now); err != nil {
		t.Fatalf("set signature: %v", err)
	}

	got, err := st.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.JobCompleted {
		t.Fatalf("expected completed, got %q", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped")
	}
	if got.ClientSignedName != "Jane Doe" {
		t.Fatalf("unexpected signed name %q", got.ClientSignedName)
	}
}

func TestCountJobsAndPhotos(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"job-1", "job-2"} {
		if err := st.CreateJob(ctx, testJob(id, "wk-abc123", now)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := st.CreateJob(ctx, testJob("job-3", "wk-other1", now)); err != nil {
		t.Fatalf("create job-3: %v", err)
	}

	count, err := st.CountJobs(ctx, "wk-abc123")
	if err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 jobs, got %d", count)
	}

	photos, err := st.CountPhotos(ctx, "job-1")
	if err != nil {
		t.Fatalf("count photos: %v", err)
	}
	if photos != 0 {
		t.Fatalf("expected 0 photos, got %d", photos)
	}
}

func TestCreateUserAndLookup(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	user, err := st.CreateUser(ctx, "Alex.Field", "hash", "free", now)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Username != "alex.field" {
		t.Fatalf("username not normalized: %q", user.Username)
	}

	got, err := st.GetUserByUsername(ctx, "ALEX.FIELD")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("lookup mismatch: %+v", got)
	}
	if got.Tier != "free" {
		t.Fatalf("expected tier free, got %q", got.Tier)
	}

	if _, err := st.CreateUser(ctx, "alex.field", "hash2", "pro", now); !IsUniqueConstraint(err) {
		t.Fatalf("expected unique constraint error, got %v", err)
	}

	if err := st.UpdateUserTier(ctx, user.ID, "pro", now.Add(time.Minute)); err != nil {
		t.Fatalf("update tier: %v", err)
	}
	got, err = st.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Tier != "pro" {
		t.Fatalf("expected tier pro, got %q", got.Tier)
	}
}
