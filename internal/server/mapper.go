package server

import (
	"fieldsign/internal/api"
	"fieldsign/internal/models"
	"fieldsign/internal/policy"
)

func jobResponse(job *models.Job) api.JobResponse {
	resp := api.JobResponse{
		ID:               job.ID,
		Status:           string(job.Status),
		ClientName:       job.ClientName,
		ClientEmail:      job.ClientEmail,
		ClientPhone:      job.ClientPhone,
		ServiceType:      job.ServiceType,
		Description:      job.Description,
		SignatureRef:     job.SignatureRef,
		ClientSignedName: job.ClientSignedName,
		CreatedAt:        job.CreatedAt,
		CompletedAt:      job.CompletedAt,
		Photos:           photoResponses(job.Photos),
	}
	if job.SigningRef != nil {
		resp.SigningRequestID = job.SigningRef.RequestID
	}
	return resp
}

func photoResponses(photos []models.Photo) []api.PhotoResponse {
	if len(photos) == 0 {
		return nil
	}
	out := make([]api.PhotoResponse, 0, len(photos))
	for _, p := range photos {
		out = append(out, api.PhotoResponse{
			ID:        p.ID,
			Tag:       string(p.Tag),
			BlobRef:   p.BlobRef,
			CreatedAt: p.CreatedAt,
		})
	}
	return out
}

func signingResponse(req *models.SigningRequest, reviewURL string) api.SigningResponse {
	return api.SigningResponse{
		ID:             req.ID,
		JobID:          req.JobID,
		Status:         string(req.Status),
		ContactMethod:  string(req.ContactMethod),
		ContactAddress: req.ContactAddress,
		ReviewURL:      reviewURL,
		ClientFeedback: req.ClientFeedback,
		CreatedAt:      req.CreatedAt,
		ExpiresAt:      req.ExpiresAt,
		ReviewedAt:     req.ReviewedAt,
	}
}

func advisoryInfo(advisory *policy.Advisory) *api.AdvisoryInfo {
	if advisory == nil {
		return nil
	}
	return &api.AdvisoryInfo{
		Urgency:       string(advisory.Urgency),
		Message:       advisory.Message,
		SuggestedTier: advisory.SuggestedTier,
	}
}
