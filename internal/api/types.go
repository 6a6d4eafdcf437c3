package api

import "time"

// ErrorResponse is a generic JSON error wrapper. Policy denials carry the
// upgrade advisory alongside the error.
type ErrorResponse struct {
	Error     string        `json:"error"`
	Code      string        `json:"code,omitempty"`
	ErrorCode int           `json:"error_code,omitempty"`
	Advisory  *AdvisoryInfo `json:"advisory,omitempty"`
}

// InfoResponse describes the running server.
type InfoResponse struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	SchemaVersion int    `json:"schema_version"`
	OutboxDepth   int    `json:"outbox_depth"`
}

// LoginRequest carries worker credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns a session token for subsequent requests.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Tier      string    `json:"tier"`
}

// JobCreateRequest defines the JSON payload for creating a job.
type JobCreateRequest struct {
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`
	ServiceType string `json:"service_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// PhotoAddRequest attaches one photo reference to a job.
type PhotoAddRequest struct {
	Tag     string `json:"tag"`
	BlobRef string `json:"blob_ref"`
}

// SignatureRequest attaches an on-device client signature to a job. Either
// an existing reference or the raw captured payload must be supplied.
type SignatureRequest struct {
	SignatureRef     string `json:"signature_ref,omitempty"`
	SignatureData    string `json:"signature_data,omitempty"`
	ClientSignedName string `json:"client_signed_name,omitempty"`
}

// PhotoResponse is one photo reference on a job.
type PhotoResponse struct {
	ID        string    `json:"id"`
	Tag       string    `json:"tag"`
	BlobRef   string    `json:"blob_ref"`
	CreatedAt time.Time `json:"created_at"`
}

// JobResponse is the API representation of a job.
type JobResponse struct {
	ID               string          `json:"id"`
	Status           string          `json:"status"`
	ClientName       string          `json:"client_name"`
	ClientEmail      string          `json:"client_email,omitempty"`
	ClientPhone      string          `json:"client_phone,omitempty"`
	ServiceType      string          `json:"service_type,omitempty"`
	Description      string          `json:"description,omitempty"`
	Photos           []PhotoResponse `json:"photos,omitempty"`
	SignatureRef     string          `json:"signature_ref,omitempty"`
	ClientSignedName string          `json:"client_signed_name,omitempty"`
	SigningRequestID string          `json:"signing_request_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	Advisory         *AdvisoryInfo   `json:"advisory,omitempty"`
}

// AdvisoryInfo is a usage warning attached to a successful response.
type AdvisoryInfo struct {
	Urgency       string `json:"urgency"`
	Message       string `json:"message"`
	SuggestedTier string `json:"suggested_tier,omitempty"`
}

// SigningCreateRequest asks for a remote approval link to be sent.
type SigningCreateRequest struct {
	ContactMethod  string `json:"contact_method"`
	ContactAddress string `json:"contact_address"`
}

// SigningResponse is the API representation of a remote approval request.
type SigningResponse struct {
	ID             string     `json:"id"`
	JobID          string     `json:"job_id"`
	Status         string     `json:"status"`
	ContactMethod  string     `json:"contact_method"`
	ContactAddress string     `json:"contact_address"`
	ReviewURL      string     `json:"review_url,omitempty"`
	ClientFeedback string     `json:"client_feedback,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
}

// ReviewResponse is what the client's review page sees for a token. It
// deliberately omits the worker's account details.
type ReviewResponse struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	ClientName  string          `json:"client_name"`
	ServiceType string          `json:"service_type,omitempty"`
	Description string          `json:"description,omitempty"`
	Photos      []PhotoResponse `json:"photos,omitempty"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// DecisionRequest carries the client's approval or rejection details.
type DecisionRequest struct {
	Feedback         string `json:"feedback,omitempty"`
	SignatureData    string `json:"signature_data,omitempty"`
	ClientSignedName string `json:"client_signed_name,omitempty"`
}

// UsageWindow reports one rate-limit window's consumption.
type UsageWindow struct {
	Window  string `json:"window"`
	Used    int    `json:"used"`
	Ceiling *int   `json:"ceiling"`
}

// UsageResponse summarizes the caller's consumption against tier limits.
type UsageResponse struct {
	Tier         string        `json:"tier"`
	JobCount     int           `json:"job_count"`
	MaxJobs      *int          `json:"max_jobs"`
	PhotoWindows []UsageWindow `json:"photo_windows"`
	Advisory     *AdvisoryInfo `json:"advisory,omitempty"`
}

// CleanupResponse reports a maintenance sweep's effect.
type CleanupResponse struct {
	ExpiredRequests int `json:"expired_requests"`
	OutboxDepth     int `json:"outbox_depth"`
}
