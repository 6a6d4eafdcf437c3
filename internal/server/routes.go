package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Worker authentication.
	mux.HandleFunc("POST /v1/auth/login", s.handleAuthLogin)

	// Jobs.
	mux.HandleFunc("POST /v1/jobs", s.requireAuth(s.handleCreateJob))
	mux.HandleFunc("GET /v1/jobs", s.requireAuth(s.handleListJobs))
	mux.HandleFunc("GET /v1/jobs/{id}", s.requireAuth(s.handleGetJob))
	mux.HandleFunc("POST /v1/jobs/{id}/photos", s.requireAuth(s.handleAddPhoto))
	mux.HandleFunc("POST /v1/jobs/{id}/signature", s.requireAuth(s.handleSetSignature))

	// Remote approval requests (worker-facing).
	mux.HandleFunc("POST /v1/jobs/{id}/signing-requests", s.requireAuth(s.handleCreateSigningRequest))
	mux.HandleFunc("GET /v1/signing-requests", s.requireAuth(s.handleListSigningRequests))
	mux.HandleFunc("POST /v1/signing-requests/{id}/status", s.requireAuth(s.handleSigningStatus))

	// Usage and maintenance.
	mux.HandleFunc("GET /v1/usage", s.requireAuth(s.handleUsage))
	mux.HandleFunc("POST /v1/admin/cleanup", s.requireAuth(s.handleAdminCleanup))

	// Client review pages (public, token-addressed).
	mux.HandleFunc("GET /review/{token}", s.handleReviewGet)
	mux.HandleFunc("POST /review/{token}/approve", s.handleReviewApprove)
	mux.HandleFunc("POST /review/{token}/reject", s.handleReviewReject)

	return mux
}
