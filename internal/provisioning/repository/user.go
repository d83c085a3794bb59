package repository

import (
	"context"
	"database/sql"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/domain"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
)

// UserRepository handles the public user registry
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts or refreshes a registry row keyed by the external user ID.
// user.created and user.updated share this path, so redelivery of either is
// harmless.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO public.users (clerk_user_id, email, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (clerk_user_id) DO UPDATE
		SET email = EXCLUDED.email,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		u.ClerkUserID, u.Email, u.FirstName, u.LastName,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// GetByClerkID returns the registry user for an external user ID
func (r *UserRepository) GetByClerkID(ctx context.Context, clerkUserID string) (*domain.User, error) {
	var u domain.User
	query := `
		SELECT id, clerk_user_id, email, first_name, last_name, created_at, updated_at
		FROM public.users
		WHERE clerk_user_id = $1
	`
	err := r.db.GetContext(ctx, &u, query, clerkUserID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
