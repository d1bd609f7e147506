// Package service implements the OTP lifecycle: issuing a code bound to the
// identity owning an email+phone pair, and verifying a presented code with
// expiry and single-use semantics.
package service

import (
	"context"
	"errors"
	"time"

	"launtriserv/backend/internal/apperror"
	"launtriserv/backend/internal/otp"
	"launtriserv/backend/internal/user/domain"
	"launtriserv/backend/internal/user/repository"
)

// UserRepo is the minimal user repository needed by the OTP service.
type UserRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
}

// Limiter throttles issue requests per contact pair. A nil Limiter disables throttling.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// IssueResult holds the outcome of Issue. Code is the plain one-time code; the
// boundary decides whether to return it to the caller (dev mode) or deliver it
// out of band.
type IssueResult struct {
	Code      string
	UserID    int64
	ExpiresAt time.Time
}

// OTPService resolves or creates the identity for a contact pair, issues codes,
// and verifies them. It holds no state of its own; everything lives in the store.
type OTPService struct {
	repo    UserRepo
	limiter Limiter
	ttl     time.Duration
	nowF    func() time.Time
}

// NewOTPService returns an OTPService issuing codes valid for ttl. limiter may be nil.
func NewOTPService(repo UserRepo, limiter Limiter, ttl time.Duration) *OTPService {
	return &OTPService{
		repo:    repo,
		limiter: limiter,
		ttl:     ttl,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// matchOutcome classifies how the email and phone lookups resolved.
type matchOutcome int

const (
	matchNone matchOutcome = iota
	matchEmailOnly
	matchPhoneOnly
	matchBothSame
	matchBothDifferent
)

// resolve classifies the two independent lookups. A partial match or a split
// across two accounts means the caller is mixing contact channels of different
// identities.
func resolve(byEmail, byPhone *domain.User) matchOutcome {
	switch {
	case byEmail == nil && byPhone == nil:
		return matchNone
	case byEmail != nil && byPhone == nil:
		return matchEmailOnly
	case byEmail == nil && byPhone != nil:
		return matchPhoneOnly
	case byEmail.ID == byPhone.ID:
		return matchBothSame
	default:
		return matchBothDifferent
	}
}

// Issue resolves the identity owning email and phone (creating it when neither
// is known), installs a fresh code valid for the configured TTL, and returns
// the code with the identity id. A prior unconsumed code is overwritten.
func (s *OTPService) Issue(ctx context.Context, email, phone string) (*IssueResult, error) {
	if email == "" {
		return nil, apperror.Validation("email is required")
	}
	if phone == "" {
		return nil, apperror.Validation("phone is required")
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, email+":"+phone); err != nil {
			return nil, err
		}
	}

	byEmail, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	byPhone, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	var target *domain.User
	switch resolve(byEmail, byPhone) {
	case matchBothSame:
		target = byEmail
	case matchEmailOnly, matchPhoneOnly, matchBothDifferent:
		return nil, apperror.Conflict("mismatched identity")
	case matchNone:
		target = domain.NewCustomer(email, phone)
		if err := target.Validate(); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		if err := s.repo.Create(ctx, target); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				// Lost the race against a concurrent create for the same pair.
				return nil, apperror.Conflict("email or phone already registered")
			}
			return nil, apperror.Internal(err)
		}
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return nil, apperror.Internal(err)
	}
	expiresAt := s.nowF().Add(s.ttl)
	target.SetOTP(code, expiresAt)
	if err := s.repo.Update(ctx, target); err != nil {
		return nil, apperror.Internal(err)
	}

	return &IssueResult{Code: code, UserID: target.ID, ExpiresAt: expiresAt}, nil
}

// Verify checks the presented code for the identity. Unknown identity, absent
// or expired credential, and a wrong code are all the same policy outcome:
// false with no error. A match consumes the credential (it can never be
// replayed) and promotes the account status to verified.
func (s *OTPService) Verify(ctx context.Context, userID int64, code string) (bool, error) {
	if userID <= 0 {
		return false, apperror.Validation("user id is required")
	}
	if code == "" {
		return false, apperror.Validation("otp is required")
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return false, apperror.Internal(err)
	}
	if u == nil {
		return false, nil
	}
	if !u.HasLiveOTP(s.nowF()) {
		return false, nil
	}
	if !otp.Equal(code, u.OTP) {
		return false, nil
	}

	u.ConsumeOTP()
	if err := s.repo.Update(ctx, u); err != nil {
		return false, apperror.Internal(err)
	}
	return true, nil
}
