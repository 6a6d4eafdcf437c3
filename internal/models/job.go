package models

import "time"

// Job is a single field-service job owned by one worker.
//
// Status is a materialized view over the other fields; every write path
// must recompute it via ResolveJobStatus and no code may set it directly.
type Job struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	ClientName       string     `json:"client_name,omitempty"`
	ClientEmail      string     `json:"client_email,omitempty"`
	ClientPhone      string     `json:"client_phone,omitempty"`
	ServiceType      string     `json:"service_type,omitempty"`
	Description      string     `json:"description,omitempty"`
	Status           JobStatus  `json:"status"`
	Photos           []Photo    `json:"photos,omitempty"`
	SignatureRef     string     `json:"signature_ref,omitempty"`
	ClientSignedName string     `json:"client_signed_name,omitempty"`
	SigningRef       *SigningRef `json:"signing_ref,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Photo is an append-only attachment on a job; ordering is insertion order.
type Photo struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	BlobRef   string    `json:"blob_ref"`
	Tag       PhotoTag  `json:"tag"`
	CreatedAt time.Time `json:"created_at"`
}

// SigningRef is the denormalized pointer from a job to its remote signing
// request. The request record itself stays authoritative for its own state.
type SigningRef struct {
	RequestID string    `json:"request_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResolveJobStatus derives a job's lifecycle state from its data.
// First match wins: a signature is terminal and takes priority even when a
// signing request is still attached (possibly expired) on the job.
func ResolveJobStatus(job *Job) JobStatus {
	switch {
	case job.SignatureRef != "":
		return JobCompleted
	case job.SigningRef != nil:
		return JobPendingRemoteSignature
	case len(job.Photos) > 0:
		return JobInProgress
	default:
		return JobCreated
	}
}
