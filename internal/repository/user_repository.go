package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/room-reservation-api/internal/models"
)

// UserRepository provides read access to accounts referenced by bookings.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier. It returns sql.ErrNoRows when absent.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, full_name, role, active, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := executor(ctx, r.db).GetContext(ctx, &user, query, id); err != nil {
		if err = lookupErr(err); isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ListIDsByRole returns the ids of active users holding role.
func (r *UserRepository) ListIDsByRole(ctx context.Context, role models.UserRole) ([]string, error) {
	const query = `SELECT id FROM users WHERE role = $1 AND active = TRUE ORDER BY created_at ASC`
	var ids []string
	if err := executor(ctx, r.db).SelectContext(ctx, &ids, query, role); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return ids, nil
}
