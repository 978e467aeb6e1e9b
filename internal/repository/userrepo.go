package repository

import (
	"context"

	"github.com/avarghese/clinicsync/internal/model"
)

// UserRepository provides access to staff accounts.
type UserRepository interface {
	// Create inserts a new account; errs.ErrAlreadyExists on a username clash.
	Create(ctx context.Context, a *model.StaffAccount) error
	// GetByUsername loads an account by username or errs.ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*model.StaffAccount, error)
}
