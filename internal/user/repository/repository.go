package repository

import (
	"context"
	"errors"

	"launtriserv/backend/internal/user/domain"
)

// ErrDuplicate is returned by Create and Update when a uniqueness constraint on
// email or phone is violated (e.g. a concurrent create won the race).
var ErrDuplicate = errors.New("duplicate email or phone")

// Repository defines persistence for users. Lookups return nil, nil for missing
// rows; errors are database failures only.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	// Create persists the user and assigns its ID.
	Create(ctx context.Context, u *domain.User) error
	// Update saves all mutable fields of an existing user by primary key.
	Update(ctx context.Context, u *domain.User) error
}
