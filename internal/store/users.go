package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fieldsign/internal/models"
)

// CreateUser provisions one worker account.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, tier string, now time.Time) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, fmt.Errorf("password hash is required")
	}
	if strings.TrimSpace(tier) == "" {
		return nil, fmt.Errorf("tier is required")
	}

	id, err := GenerateUserID(func(candidate string) (bool, error) {
		return s.userExists(ctx, candidate)
	})
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, tier, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, id, username, passwordHash, tier, formatTime(now), formatTime(now))
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Tier:         tier,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

// GetUserByUsername returns a worker by username, or nil.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, userSelect+" WHERE username = ? LIMIT 1", username)
	return scanUser(row)
}

// GetUserByID returns a worker by id, or nil.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, userSelect+" WHERE id = ? LIMIT 1", id)
	return scanUser(row)
}

// ListUsers returns all provisioned workers.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, userSelect+" ORDER BY username ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdateUserTier changes a worker's subscription tier.
func (s *Store) UpdateUserTier(ctx context.Context, id, tier string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET tier = ?, updated_at = ? WHERE id = ?",
		tier, formatTime(now), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) userExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const userSelect = `
	SELECT id, username, password_hash, tier, disabled, created_at, updated_at
	FROM users
`

func scanUser(scanner interface {
	Scan(dest ...any) error
}) (*models.User, error) {
	var user models.User
	var disabled int
	var createdAt, updatedAt string

	err := scanner.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Tier, &disabled, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.Disabled = disabled != 0
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}
