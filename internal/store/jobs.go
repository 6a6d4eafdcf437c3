package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fieldsign/internal/models"
)

// CreateJob inserts a new job for a worker.
func (s *Store) CreateJob(ctx context.Context, job *models.Job) error {
	if job == nil {
		return fmt.Errorf("job is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (
			id, user_id, client_name, client_email, client_phone, service_type,
			description, status, signature_ref, client_signed_name,
			signing_request_id, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID,
		job.UserID,
		nullIfEmpty(job.ClientName),
		nullIfEmpty(job.ClientEmail),
		nullIfEmpty(job.ClientPhone),
		nullIfEmpty(job.ServiceType),
		nullIfEmpty(job.Description),
		string(models.ResolveJobStatus(job)),
		nullIfEmpty(job.SignatureRef),
		nullIfEmpty(job.ClientSignedName),
		nil,
		formatTime(job.CreatedAt),
		nullTime(job.CompletedAt),
	)
	return err
}

// GetJob returns a job with its photos, or nil when not found.
// The stored status is recomputed from the loaded aggregate before
// returning; it is a cached projection, never ground truth.
func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT j.id, j.user_id, j.client_name, j.client_email, j.client_phone,
		       j.service_type, j.description, j.status, j.signature_ref,
		       j.client_signed_name, j.signing_request_id, r.expires_at,
		       j.created_at, j.completed_at
		FROM jobs j
		LEFT JOIN signing_requests r ON r.id = j.signing_request_id
		WHERE j.id = ?
	`, id)

	job, err := scanJob(row)
	if err != nil || job == nil {
		return nil, err
	}

	photos, err := s.ListPhotos(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Photos = photos
	job.Status = models.ResolveJobStatus(job)

	return job, nil
}

// ListJobs returns all jobs for a worker, newest first, without photos.
func (s *Store) ListJobs(ctx context.Context, userID string) ([]models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT j.id, j.user_id, j.client_name, j.client_email, j.client_phone,
		       j.service_type, j.description, j.status, j.signature_ref,
		       j.client_signed_name, j.signing_request_id, r.expires_at,
		       j.created_at, j.completed_at
		FROM jobs j
		LEFT JOIN signing_requests r ON r.id = j.signing_request_id
		WHERE j.user_id = ?
		ORDER BY j.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountJobs returns the number of jobs owned by a worker.
func (s *Store) CountJobs(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE user_id = ?", userID).Scan(&count)
	return count, err
}

// CountPhotos returns the number of photos attached to a job.
func (s *Store) CountPhotos(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos WHERE job_id = ?", jobID).Scan(&count)
	return count, err
}

// ListPhotos returns a job's photos in insertion order.
func (s *Store) ListPhotos(ctx context.Context, jobID string) ([]models.Photo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, blob_ref, tag, created_at
		FROM photos WHERE job_id = ? ORDER BY seq ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []models.Photo{}
	for rows.Next() {
		var p models.Photo
		var createdAt string
		if err := rows.Scan(&p.ID, &p.JobID, &p.BlobRef, &p.Tag, &createdAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// AddPhoto appends a photo to a job and refreshes the cached status.
func (s *Store) AddPhoto(ctx context.Context, photo *models.Photo) error {
	if photo == nil {
		return fmt.Errorf("photo is required")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var seq int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), 0) + 1 FROM photos WHERE job_id = ?", photo.JobID,
		).Scan(&seq); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO photos (id, job_id, blob_ref, tag, created_at, seq)
			VALUES (?, ?, ?, ?, ?, ?)
		`, photo.ID, photo.JobID, photo.BlobRef, string(photo.Tag), formatTime(photo.CreatedAt), seq); err != nil {
			return err
		}
		return refreshJobStatusTx(ctx, tx, photo.JobID, photo.CreatedAt)
	})
}

// SetJobSignature records a locally captured client signature and refreshes
// the cached status, which completes the job.
func (s *Store) SetJobSignature(ctx context.Context, jobID, signatureRef, signedName string, now time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs SET signature_ref = ?, client_signed_name = ? WHERE id = ?
		`, signatureRef, nullIfEmpty(signedName), jobID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return sql.ErrNoRows
		}
		return refreshJobStatusTx(ctx, tx, jobID, now)
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// refreshJobStatusTx recomputes the materialized status column from the
// job's current data. Every write path that touches photos, signature or
// the signing ref must call this inside its transaction.
func refreshJobStatusTx(ctx context.Context, tx *sql.Tx, jobID string, now time.Time) error {
	var signatureRef, signingRequestID sql.NullString
	var photoCount int
	err := tx.QueryRowContext(ctx, `
		SELECT j.signature_ref, j.signing_request_id,
		       (SELECT COUNT(*) FROM photos p WHERE p.job_id = j.id)
		FROM jobs j WHERE j.id = ?
	`, jobID).Scan(&signatureRef, &signingRequestID, &photoCount)
	if err != nil {
		return err
	}

	job := &models.Job{SignatureRef: signatureRef.String}
	if signingRequestID.Valid && signingRequestID.String != "" {
		job.SigningRef = &models.SigningRef{RequestID: signingRequestID.String}
	}
	if photoCount > 0 {
		job.Photos = make([]models.Photo, photoCount)
	}
	status := models.ResolveJobStatus(job)

	if status == models.JobCompleted {
		_, err = tx.ExecContext(ctx, `
			UPDATE jobs SET status = ?, completed_at = COALESCE(completed_at, ?) WHERE id = ?
		`, string(status), formatTime(now), jobID)
		return err
	}
	_, err = tx.ExecContext(ctx, "UPDATE jobs SET status = ?, completed_at = NULL WHERE id = ?", string(status), jobID)
	return err
}

func scanJob(scanner interface {
	Scan(dest ...any) error
}) (*models.Job, error) {
	var job models.Job
	var clientName, clientEmail, clientPhone, serviceType, description *string
	var signatureRef, signedName, signingRequestID, refExpiresAt *string
	var status, createdAt string
	var completedAt *string

	err := scanner.Scan(
		&job.ID, &job.UserID, &clientName, &clientEmail, &clientPhone,
		&serviceType, &description, &status, &signatureRef,
		&signedName, &signingRequestID, &refExpiresAt,
		&createdAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.ClientName = stringOrEmpty(clientName)
	job.ClientEmail = stringOrEmpty(clientEmail)
	job.ClientPhone = stringOrEmpty(clientPhone)
	job.ServiceType = stringOrEmpty(serviceType)
	job.Description = stringOrEmpty(description)
	job.Status = models.JobStatus(status)
	job.SignatureRef = stringOrEmpty(signatureRef)
	job.ClientSignedName = stringOrEmpty(signedName)

	if signingRequestID != nil && *signingRequestID != "" {
		ref := &models.SigningRef{RequestID: *signingRequestID}
		if expires, err := parseNullableTime(refExpiresAt); err != nil {
			return nil, err
		} else if expires != nil {
			ref.ExpiresAt = *expires
		}
		job.SigningRef = ref
	}

	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}

	return &job, nil
}
