package server

import (
	"fmt"
	"net/http"
	"strings"

	"fieldsign/internal/api"
	"fieldsign/internal/models"
	"fieldsign/internal/signing"
)

// handleReviewGet serves the client's review page data. First sight of a
// pending request marks it viewed, so the worker can tell an ignored link
// from an unopened one.
func (s *Server) handleReviewGet(w http.ResponseWriter, r *http.Request) {
	req, ok := s.reviewRequest(w, r)
	if !ok {
		return
	}

	if req.Status == models.SigningPending {
		updated, err := s.signing.UpdateStatus(r.Context(), req.ID, models.SigningViewed, nil)
		if err != nil {
			s.writeWorkflowError(w, r, err)
			return
		}
		req = updated
	}

	job, err := s.store.GetJob(r.Context(), req.JobID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if job == nil {
		s.writeErrorReq(w, r, http.StatusNotFound,
			notFoundCode(fmt.Errorf("signing request not found"), ErrCodeRequestNotFound))
		return
	}

	s.writeJSON(w, http.StatusOK, api.ReviewResponse{
		JobID:       job.ID,
		Status:      string(req.Status),
		ClientName:  job.ClientName,
		ServiceType: job.ServiceType,
		Description: job.Description,
		Photos:      photoResponses(job.Photos),
		ExpiresAt:   req.ExpiresAt,
	})
}

func (s *Server) handleReviewApprove(w http.ResponseWriter, r *http.Request) {
	s.handleReviewDecision(w, r, models.SigningApproved)
}

func (s *Server) handleReviewReject(w http.ResponseWriter, r *http.Request) {
	s.handleReviewDecision(w, r, models.SigningRejected)
}

func (s *Server) handleReviewDecision(w http.ResponseWriter, r *http.Request, decision models.SigningStatus) {
	req, ok := s.reviewRequest(w, r)
	if !ok {
		return
	}

	var body api.DecisionRequest
	if !s.decodeJSONReq(w, r, &body) {
		return
	}
	if decision == models.SigningApproved && strings.TrimSpace(body.SignatureData) == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("signature_data is required for approval"), ErrCodeMissingRequired))
		return
	}

	signatureRef, err := s.persistSignature(r.Context(), body.SignatureData)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	updated, err := s.signing.UpdateStatus(r.Context(), req.ID, decision, &signing.Review{
		Feedback:         body.Feedback,
		SignatureRef:     signatureRef,
		ClientSignedName: strings.TrimSpace(body.ClientSignedName),
	})
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": string(updated.Status),
		"job_id": updated.JobID,
	})
}

// reviewRequest resolves the path token. Unknown and expired tokens are
// indistinguishable to the caller.
func (s *Server) reviewRequest(w http.ResponseWriter, r *http.Request) (*models.SigningRequest, bool) {
	token := strings.TrimSpace(r.PathValue("token"))
	if token == "" {
		s.writeErrorReq(w, r, http.StatusNotFound,
			notFoundCode(fmt.Errorf("signing request not found"), ErrCodeRequestNotFound))
		return nil, false
	}

	req, err := s.signing.GetByToken(r.Context(), token)
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return nil, false
	}
	return req, true
}
