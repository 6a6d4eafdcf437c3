package server

import (
	"fmt"
	"net/http"

	"fieldsign/internal/api"
	"fieldsign/internal/models"
	"fieldsign/internal/policy"
	"fieldsign/internal/signing"
)

func (s *Server) handleCreateSigningRequest(w http.ResponseWriter, r *http.Request) {
	job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}

	var req api.SigningCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	method, err := models.ParseContactMethod(req.ContactMethod)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidContactMethod))
		return
	}

	result, err := s.signing.CreateRequest(r.Context(), job.ID, method, req.ContactAddress)
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, signingResponse(result.Request, result.ReviewURL))
}

func (s *Server) handleListSigningRequests(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(r)
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(nil))
		return
	}

	requests, err := s.signing.ListPending(r.Context())
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}

	responses := make([]api.SigningResponse, 0, len(requests))
	for i := range requests {
		if requests[i].UserID != principal.UserID {
			continue
		}
		responses = append(responses, signingResponse(&requests[i], ""))
	}
	s.writeJSON(w, http.StatusOK, responses)
}

// handleSigningStatus lets the owning worker drive a transition directly,
// e.g. cancelling by rejecting a request the client abandoned.
func (s *Server) handleSigningStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(r)
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(nil))
		return
	}
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
		api.DecisionRequest
	}
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	status, err := models.ParseSigningStatus(req.Status)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidStatus))
		return
	}

	existing, err := s.store.GetSigningRequest(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if existing == nil || existing.UserID != principal.UserID {
		s.writeErrorReq(w, r, http.StatusNotFound,
			notFoundCode(fmt.Errorf("signing request not found"), ErrCodeRequestNotFound))
		return
	}

	signatureRef, err := s.persistSignature(r.Context(), req.SignatureData)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	updated, err := s.signing.UpdateStatus(r.Context(), id, status, &signing.Review{
		Feedback:         req.Feedback,
		SignatureRef:     signatureRef,
		ClientSignedName: req.ClientSignedName,
	})
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, signingResponse(updated, ""))
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(r)
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(nil))
		return
	}

	jobCount, err := s.store.CountJobs(r.Context(), principal.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := api.UsageResponse{Tier: principal.Tier, JobCount: jobCount}

	tier, err := s.catalog.Tier(principal.Tier)
	if err == nil {
		resp.MaxJobs = tier.MaxJobs
		minute, hour, day := s.limiter.WindowCounts(principal.UserID, s.now())
		resp.PhotoWindows = []api.UsageWindow{
			{Window: "minute", Used: minute, Ceiling: tier.PhotosPerMinute},
			{Window: "hour", Used: hour, Ceiling: tier.PhotosPerHour},
			{Window: "day", Used: day, Ceiling: tier.PhotosPerDay},
		}
	}

	decision := s.engine.CanPerform(principal.Tier, policy.ActionCreateJob, policy.UsageContext{JobCount: jobCount})
	resp.Advisory = advisoryInfo(decision.Advisory)

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminCleanup(w http.ResponseWriter, r *http.Request) {
	expired, err := s.signing.CleanupExpired(r.Context())
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}

	depth, err := s.store.OutboxDepth(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.CleanupResponse{ExpiredRequests: expired, OutboxDepth: depth})
}
