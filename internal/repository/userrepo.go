// Package repository defines storage interfaces consumed by services.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/avdeev7/collabcode/internal/model"
)

// UserRepository provides access to registered accounts.
type UserRepository interface {
	// Create inserts a new user row.
	Create(ctx context.Context, u *model.User) error

	// GetByID selects a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	// GetByUsername selects a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
