package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fieldsign/internal/models"
)

// SigningUpdate describes the mutable review fields on a signing request.
type SigningUpdate struct {
	Status           models.SigningStatus
	ReviewedAt       *time.Time
	ClientFeedback   *string
	SignatureRef     *string
	ClientSignedName *string
}

// CreateSigningRequest durably commits a new signing request, attaches it to
// the job and enqueues the mirror outbox entry, all in one transaction.
// This commit is the success boundary of request creation.
func (s *Store) CreateSigningRequest(ctx context.Context, req *models.SigningRequest, outbox *OutboxEntry) error {
	if req == nil {
		return fmt.Errorf("signing request is required")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO signing_requests (
				id, job_id, user_id, contact_method, contact_address, secure_token,
				status, created_at, expires_at, reviewed_at, client_feedback,
				signature_ref, client_signed_name
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			req.ID,
			req.JobID,
			req.UserID,
			string(req.ContactMethod),
			req.ContactAddress,
			req.SecureToken,
			string(req.Status),
			formatTime(req.CreatedAt),
			formatTime(req.ExpiresAt),
			nullTime(req.ReviewedAt),
			nullIfEmpty(req.ClientFeedback),
			nullIfEmpty(req.SignatureRef),
			nullIfEmpty(req.ClientSignedName),
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE jobs SET signing_request_id = ? WHERE id = ?", req.ID, req.JobID,
		); err != nil {
			return err
		}
		if err := refreshJobStatusTx(ctx, tx, req.JobID, req.CreatedAt); err != nil {
			return err
		}
		return enqueueOutboxTx(ctx, tx, outbox)
	})
}

// GetSigningRequest returns a request by id, or nil when not found.
func (s *Store) GetSigningRequest(ctx context.Context, id string) (*models.SigningRequest, error) {
	row := s.db.QueryRowContext(ctx, signingSelect+" WHERE id = ?", id)
	return scanSigningRequest(row)
}

// GetSigningRequestByToken returns a request by its secure token, or nil.
func (s *Store) GetSigningRequestByToken(ctx context.Context, token string) (*models.SigningRequest, error) {
	row := s.db.QueryRowContext(ctx, signingSelect+" WHERE secure_token = ?", token)
	return scanSigningRequest(row)
}

// ListSigningRequestsByStatus returns requests in any of the given states,
// in insertion order.
func (s *Store) ListSigningRequestsByStatus(ctx context.Context, statuses ...models.SigningStatus) ([]models.SigningRequest, error) {
	if len(statuses) == 0 {
		return []models.SigningRequest{}, nil
	}

	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	query := fmt.Sprintf("%s WHERE status IN (%s) ORDER BY created_at ASC", signingSelect, placeholders(len(statuses)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []models.SigningRequest{}
	for rows.Next() {
		req, err := scanSigningRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// UpdateSigningRequest applies a review transition and enqueues the mirror
// outbox entry. An approval carrying a signature also copies it onto the
// job, which completes it through the status resolver.
func (s *Store) UpdateSigningRequest(ctx context.Context, id string, update SigningUpdate, outbox *OutboxEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var jobID string
		if err := tx.QueryRowContext(ctx,
			"SELECT job_id FROM signing_requests WHERE id = ?", id,
		).Scan(&jobID); err != nil {
			return err
		}

		set := []string{"status = ?"}
		args := []any{string(update.Status)}
		if update.ReviewedAt != nil {
			set = append(set, "reviewed_at = ?")
			args = append(args, formatTime(*update.ReviewedAt))
		}
		if update.ClientFeedback != nil {
			set = append(set, "client_feedback = ?")
			args = append(args, nullIfEmpty(*update.ClientFeedback))
		}
		if update.SignatureRef != nil {
			set = append(set, "signature_ref = ?")
			args = append(args, nullIfEmpty(*update.SignatureRef))
		}
		if update.ClientSignedName != nil {
			set = append(set, "client_signed_name = ?")
			args = append(args, nullIfEmpty(*update.ClientSignedName))
		}
		args = append(args, id)

		query := fmt.Sprintf("UPDATE signing_requests SET %s WHERE id = ?", strings.Join(set, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		if update.Status == models.SigningApproved && update.SignatureRef != nil && *update.SignatureRef != "" {
			signedName := ""
			if update.ClientSignedName != nil {
				signedName = *update.ClientSignedName
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE jobs SET signature_ref = ?, client_signed_name = ? WHERE id = ?
			`, *update.SignatureRef, nullIfEmpty(signedName), jobID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if update.ReviewedAt != nil {
			now = *update.ReviewedAt
		}
		if err := refreshJobStatusTx(ctx, tx, jobID, now); err != nil {
			return err
		}
		return enqueueOutboxTx(ctx, tx, outbox)
	})
}

// MarkSigningRequestsExpired flips stale non-terminal requests to expired.
// The status guard makes the sweep idempotent and safe to run concurrently
// with the lazy check on the lookup path; both converge on the same state.
func (s *Store) MarkSigningRequestsExpired(ctx context.Context, ids []string, entries []OutboxEntry) error {
	if len(ids) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		args := make([]any, 0, len(ids))
		for _, id := range ids {
			args = append(args, id)
		}
		query := fmt.Sprintf(
			"UPDATE signing_requests SET status = 'expired' WHERE id IN (%s) AND status IN ('pending', 'viewed')",
			placeholders(len(ids)),
		)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		for i := range entries {
			if err := enqueueOutboxTx(ctx, tx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

const signingSelect = `
	SELECT id, job_id, user_id, contact_method, contact_address, secure_token,
	       status, created_at, expires_at, reviewed_at, client_feedback,
	       signature_ref, client_signed_name
	FROM signing_requests
`

func scanSigningRequest(scanner interface {
	Scan(dest ...any) error
}) (*models.SigningRequest, error) {
	var req models.SigningRequest
	var method, status, createdAt, expiresAt string
	var reviewedAt, feedback, signatureRef, signedName *string

	err := scanner.Scan(
		&req.ID, &req.JobID, &req.UserID, &method, &req.ContactAddress,
		&req.SecureToken, &status, &createdAt, &expiresAt, &reviewedAt,
		&feedback, &signatureRef, &signedName,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	req.ContactMethod = models.ContactMethod(method)
	req.Status = models.SigningStatus(status)
	req.ClientFeedback = stringOrEmpty(feedback)
	req.SignatureRef = stringOrEmpty(signatureRef)
	req.ClientSignedName = stringOrEmpty(signedName)

	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if req.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if req.ReviewedAt, err = parseNullableTime(reviewedAt); err != nil {
		return nil, err
	}

	return &req, nil
}
