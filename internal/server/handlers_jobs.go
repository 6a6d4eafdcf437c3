package server

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"fieldsign/internal/api"
	"fieldsign/internal/models"
	"fieldsign/internal/policy"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(r)
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(nil))
		return
	}

	var req api.JobCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ClientName) == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("client_name is required"), ErrCodeMissingRequired))
		return
	}

	jobCount, err := s.store.CountJobs(r.Context(), principal.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	decision := s.engine.CanPerform(principal.Tier, policy.ActionCreateJob, policy.UsageContext{JobCount: jobCount})
	if !decision.Allowed {
		s.writePolicyDenied(w, r, decision)
		return
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		UserID:      principal.UserID,
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientEmail: strings.TrimSpace(req.ClientEmail),
		ClientPhone: strings.TrimSpace(req.ClientPhone),
		ServiceType: strings.TrimSpace(req.ServiceType),
		Description: req.Description,
		CreatedAt:   s.now(),
	}
	job.Status = models.ResolveJobStatus(job)

	if err := s.store.CreateJob(r.Context(), job); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := jobResponse(job)
	resp.Advisory = advisoryInfo(decision.Advisory)
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(r)
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(nil))
		return
	}

	jobs, err := s.store.ListJobs(r.Context(), principal.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	responses := make([]api.JobResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, jobResponse(&jobs[i]))
	}
	s.writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, jobResponse(job))
}

func (s *Server) handleAddPhoto(w http.ResponseWriter, r *http.Request) {
	principal, _ := s.principal(r)
	job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}

	var req api.PhotoAddRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.BlobRef) == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("blob_ref is required"), ErrCodeMissingRequired))
		return
	}
	tag, err := models.ParsePhotoTag(req.Tag)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidPhotoTag))
		return
	}

	now := s.now()
	decision := s.engine.AttemptPhoto(principal.UserID, principal.Tier,
		policy.UsageContext{PhotosInJob: len(job.Photos)}, now)
	if !decision.Allowed {
		s.writePolicyDenied(w, r, decision)
		return
	}

	photo := &models.Photo{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		BlobRef:   strings.TrimSpace(req.BlobRef),
		Tag:       tag,
		CreatedAt: now,
	}
	if err := s.store.AddPhoto(r.Context(), photo); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	job, err = s.store.GetJob(r.Context(), job.ID)
	if err != nil || job == nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := jobResponse(job)
	resp.Advisory = advisoryInfo(decision.Advisory)
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSetSignature(w http.ResponseWriter, r *http.Request) {
	job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}

	var req api.SignatureRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	signatureRef := strings.TrimSpace(req.SignatureRef)
	if signatureRef == "" {
		var err error
		signatureRef, err = s.persistSignature(r.Context(), req.SignatureData)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
	}
	if signatureRef == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("signature_ref or signature_data is required"), ErrCodeMissingRequired))
		return
	}

	err := s.store.SetJobSignature(r.Context(), job.ID,
		signatureRef, strings.TrimSpace(req.ClientSignedName), s.now())
	if errors.Is(err, sql.ErrNoRows) {
		s.writeErrorReq(w, r, http.StatusNotFound,
			notFoundCode(fmt.Errorf("job not found"), ErrCodeJobNotFound))
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	job, err = s.store.GetJob(r.Context(), job.ID)
	if err != nil || job == nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobResponse(job))
}

// ownedJob loads the path job and enforces ownership. A job belonging to
// another worker is reported as not found, not forbidden.
func (s *Server) ownedJob(w http.ResponseWriter, r *http.Request) (*models.Job, bool) {
	principal, ok := s.principal(r)
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(nil))
		return nil, false
	}
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return nil, false
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return nil, false
	}
	if job == nil || job.UserID != principal.UserID {
		s.writeErrorReq(w, r, http.StatusNotFound,
			notFoundCode(fmt.Errorf("job not found"), ErrCodeJobNotFound))
		return nil, false
	}
	return job, true
}
