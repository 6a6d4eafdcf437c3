package models

import (
	"testing"
	"time"
)

func TestResolveJobStatusPriorityOrder(t *testing.T) {
	ref := &SigningRef{RequestID: "r1", ExpiresAt: time.Now().Add(time.Hour)}
	photo := Photo{ID: "p1", JobID: "j1", BlobRef: "blob", Tag: PhotoBefore}

	cases := []struct {
		name      string
		signature string
		ref       *SigningRef
		photos    []Photo
		want      JobStatus
	}{
		{"none", "", nil, nil, JobCreated},
		{"photos only", "", nil, []Photo{photo}, JobInProgress},
		{"ref only", "", ref, nil, JobPendingRemoteSignature},
		{"ref and photos", "", ref, []Photo{photo}, JobPendingRemoteSignature},
		{"signature only", "sig", nil, nil, JobCompleted},
		{"signature and photos", "sig", nil, []Photo{photo}, JobCompleted},
		{"signature and ref", "sig", ref, nil, JobCompleted},
		{"signature ref photos", "sig", ref, []Photo{photo}, JobCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := &Job{ID: "j1", SignatureRef: tc.signature, SigningRef: tc.ref, Photos: tc.photos}
			if got := ResolveJobStatus(job); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestResolveJobStatusIgnoresExpiredRefWhenSigned(t *testing.T) {
	// A signed job stays completed even when the attached request expired long ago.
	job := &Job{
		ID:           "j1",
		SignatureRef: "sig",
		SigningRef:   &SigningRef{RequestID: "r1", ExpiresAt: time.Now().Add(-72 * time.Hour)},
	}
	if got := ResolveJobStatus(job); got != JobCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
}

func TestCanTransitionSigning(t *testing.T) {
	allowed := []struct{ from, to SigningStatus }{
		{SigningPending, SigningViewed},
		{SigningPending, SigningApproved},
		{SigningPending, SigningRejected},
		{SigningPending, SigningExpired},
		{SigningViewed, SigningApproved},
		{SigningViewed, SigningRejected},
		{SigningViewed, SigningExpired},
	}
	for _, tc := range allowed {
		if !CanTransitionSigning(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to SigningStatus }{
		{SigningViewed, SigningPending},
		{SigningApproved, SigningRejected},
		{SigningApproved, SigningExpired},
		{SigningRejected, SigningApproved},
		{SigningExpired, SigningViewed},
		{SigningExpired, SigningApproved},
		{SigningPending, SigningPending},
	}
	for _, tc := range denied {
		if CanTransitionSigning(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestSigningRequestExpiredAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	req := &SigningRequest{
		ID:        "r1",
		Status:    SigningPending,
		CreatedAt: created,
		ExpiresAt: created.Add(SigningTTL),
	}

	if req.ExpiredAt(created.Add(47*time.Hour + 59*time.Minute)) {
		t.Fatal("request should still be live one minute before the deadline")
	}
	if !req.ExpiredAt(created.Add(48*time.Hour + time.Minute)) {
		t.Fatal("request should be expired one minute past the deadline")
	}

	req.Status = SigningApproved
	if req.ExpiredAt(created.Add(100 * time.Hour)) {
		t.Fatal("terminal request must never flip to expired")
	}
}

func TestParseContactMethod(t *testing.T) {
	if _, err := ParseContactMethod("Email"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseContactMethod("carrier-pigeon"); err == nil {
		t.Fatal("expected error for unknown method")
	}
	if _, err := ParseContactMethod(""); err == nil {
		t.Fatal("expected error for empty method")
	}
}

func TestParsePhotoTag(t *testing.T) {
	for _, raw := range []string{"before", "during", "AFTER"} {
		if _, err := ParsePhotoTag(raw); err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
	}
	if _, err := ParsePhotoTag("mid"); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}
