// Package service implements customer queries and partial updates over the user
// store. It dispatches parameters; domain logic lives with the OTP service.
package service

import (
	"context"
	"errors"

	"launtriserv/backend/internal/apperror"
	"launtriserv/backend/internal/user/domain"
	"launtriserv/backend/internal/user/repository"
)

// UpdateFields carries the optional fields of a partial customer update.
// Nil fields are left untouched.
type UpdateFields struct {
	Name          *string
	Email         *string
	Phone         *string
	AccountStatus *string
	ProfileStatus *string
	Latitude      *float64
	Longitude     *float64
}

// CustomerService exposes lookup and update operations over the user store.
type CustomerService struct {
	repo repository.Repository
}

// NewCustomerService returns a CustomerService backed by repo.
func NewCustomerService(repo repository.Repository) *CustomerService {
	return &CustomerService{repo: repo}
}

// List returns all customers.
func (s *CustomerService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return users, nil
}

// FindByIDOrEmailOrPhone returns the user matching the first non-zero criterion,
// in precedence order id > email > phone. Returns nil, nil when no row matches;
// a validation error when no criterion is given.
func (s *CustomerService) FindByIDOrEmailOrPhone(ctx context.Context, id int64, email, phone string) (*domain.User, error) {
	var (
		u   *domain.User
		err error
	)
	switch {
	case id > 0:
		u, err = s.repo.GetByID(ctx, id)
	case email != "":
		u, err = s.repo.GetByEmail(ctx, email)
	case phone != "":
		u, err = s.repo.GetByPhone(ctx, phone)
	default:
		return nil, apperror.Validation("one of id, email or phone is required")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return u, nil
}

// Update applies a partial field merge to the user with the given id and
// returns the updated user. Returns nil, nil when the user does not exist,
// a valid outcome rather than a fault.
func (s *CustomerService) Update(ctx context.Context, id int64, fields UpdateFields) (*domain.User, error) {
	if id <= 0 {
		return nil, apperror.Validation("id is required")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if u == nil {
		return nil, nil
	}

	if fields.Name != nil && *fields.Name != "" {
		u.Name = *fields.Name
	}
	if fields.Email != nil && *fields.Email != "" {
		u.Email = *fields.Email
	}
	if fields.Phone != nil && *fields.Phone != "" {
		u.Phone = *fields.Phone
	}
	if fields.AccountStatus != nil && *fields.AccountStatus != "" {
		u.AccountStatus = *fields.AccountStatus
	}
	if fields.ProfileStatus != nil && *fields.ProfileStatus != "" {
		u.ProfileStatus = *fields.ProfileStatus
	}
	if fields.Latitude != nil {
		u.Latitude = fields.Latitude
	}
	if fields.Longitude != nil {
		u.Longitude = fields.Longitude
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("email or phone already registered")
		}
		return nil, apperror.Internal(err)
	}
	return u, nil
}
