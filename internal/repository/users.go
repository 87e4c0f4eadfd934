package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// UserRepository resolves notification addresses for stakeholders.
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetNotificationAddress returns the user's email address, or "" when the
// user does not exist or has no address on file. A missing address is not
// an error: the caller skips that delivery and carries on.
func (r *UserRepository) GetNotificationAddress(ctx context.Context, userID int64) (string, error) {
	var email sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT email FROM users WHERE id = $1`, userID,
	).Scan(&email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get notification address: %w", err)
	}

	if !email.Valid {
		return "", nil
	}
	return email.String, nil
}
