package models

import "time"

// SigningTTL is the fixed lifetime of a remote signing request.
const SigningTTL = 48 * time.Hour

// SigningRequest is one remote-approval attempt for a job. Created once,
// never deleted; only the status and review fields are mutable, and only
// through the workflow state machine.
type SigningRequest struct {
	ID               string        `json:"id"`
	JobID            string        `json:"job_id"`
	UserID           string        `json:"user_id"`
	ContactMethod    ContactMethod `json:"contact_method"`
	ContactAddress   string        `json:"contact_address"`
	SecureToken      string        `json:"secure_token"`
	Status           SigningStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
	ReviewedAt       *time.Time    `json:"reviewed_at,omitempty"`
	ClientFeedback   string        `json:"client_feedback,omitempty"`
	SignatureRef     string        `json:"signature_ref,omitempty"`
	ClientSignedName string        `json:"client_signed_name,omitempty"`
}

// ExpiredAt is the single expiry predicate shared by the lookup path,
// the pending listing and the maintenance sweep. A terminal request
// never flips to expired.
func (r *SigningRequest) ExpiredAt(now time.Time) bool {
	if r == nil || IsTerminalSigningStatus(r.Status) {
		return false
	}
	return now.After(r.ExpiresAt)
}

// Active reports whether the request is still awaiting a client decision.
func (r *SigningRequest) Active(now time.Time) bool {
	if r == nil || IsTerminalSigningStatus(r.Status) {
		return false
	}
	return !r.ExpiredAt(now)
}
