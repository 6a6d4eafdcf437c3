package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// signingRow is the subset of the outbox payload the mirror table indexes;
// the full record rides along as JSON.
type signingRow struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PostgresClient mirrors signing requests into a central Postgres table.
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient connects to the mirror database and ensures the
// target table exists.
func NewPostgresClient(dsn string) (*PostgresClient, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mirror database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mirror database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signing_requests (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			record JSONB NOT NULL,
			mirrored_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure mirror table: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpsertSigningRequest inserts or updates the mirrored record by id.
func (c *PostgresClient) UpsertSigningRequest(ctx context.Context, payload []byte) error {
	var row signingRow
	if err := json.Unmarshal(payload, &row); err != nil {
		return fmt.Errorf("decode mirror payload: %w", err)
	}
	if row.ID == "" {
		return fmt.Errorf("mirror payload has no id")
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO signing_requests (id, job_id, user_id, status, created_at, expires_at, record, mirrored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			record = EXCLUDED.record,
			mirrored_at = now()
	`, row.ID, row.JobID, row.UserID, row.Status, row.CreatedAt, row.ExpiresAt, payload)
	if err != nil {
		return fmt.Errorf("upsert mirrored request %s: %w", row.ID, err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
