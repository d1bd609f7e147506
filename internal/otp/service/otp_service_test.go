package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"launtriserv/backend/internal/apperror"
	"launtriserv/backend/internal/user/domain"
	"launtriserv/backend/internal/user/repository"
)

type memUserRepo struct {
	mu        sync.Mutex
	nextID    int64
	byID      map[int64]*domain.User
	createErr error
	getErr    error
	updateErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, byID: make(map[int64]*domain.User)}
}

func (r *memUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	if u, ok := r.byID[id]; ok {
		u2 := *u
		return &u2, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, u := range r.byID {
		if u.Email == email {
			u2 := *u
			return &u2, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, u := range r.byID {
		if u.Phone == phone {
			u2 := *u
			return &u2, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) List(ctx context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.byID {
		u2 := *u
		out = append(out, &u2)
	}
	return out, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.byID {
		if existing.Email == u.Email || (u.Phone != "" && existing.Phone == u.Phone) {
			return repository.ErrDuplicate
		}
	}
	u.ID = r.nextID
	r.nextID++
	u2 := *u
	r.byID[u.ID] = &u2
	return nil
}

func (r *memUserRepo) Update(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	u2 := *u
	r.byID[u.ID] = &u2
	return nil
}

type fixedLimiter struct{ err error }

func (l *fixedLimiter) Allow(ctx context.Context, key string) error { return l.err }

var codeRe = regexp.MustCompile(`^[0-9]{6}$`)

func newService(repo *memUserRepo) *OTPService {
	return NewOTPService(repo, nil, 5*time.Minute)
}

func TestIssue_MissingInput(t *testing.T) {
	svc := newService(newMemUserRepo())

	if _, err := svc.Issue(context.Background(), "", "5551234"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Issue with empty email: err = %v, want validation error", err)
	}
	if _, err := svc.Issue(context.Background(), "a@b.com", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Issue with empty phone: err = %v, want validation error", err)
	}
}

func TestIssue_CreatesIdentityOnEmptyStore(t *testing.T) {
	repo := newMemUserRepo()
	svc := newService(repo)

	res, err := svc.Issue(context.Background(), "new@x.com", "5551234")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !codeRe.MatchString(res.Code) {
		t.Errorf("code = %q, want 6 digits", res.Code)
	}
	if res.UserID <= 0 {
		t.Errorf("UserID = %d, want positive", res.UserID)
	}

	u, _ := repo.GetByID(context.Background(), res.UserID)
	if u == nil {
		t.Fatal("identity should have been created")
	}
	if u.Name != "new" {
		t.Errorf("Name = %q, want %q", u.Name, "new")
	}
	if u.Role != domain.RoleCustomer {
		t.Errorf("Role = %q, want customer", u.Role)
	}
	if u.AccountStatus != domain.AccountStatusPending {
		t.Errorf("AccountStatus = %q, want pending", u.AccountStatus)
	}
	if u.OTP != res.Code {
		t.Errorf("stored code = %q, want %q", u.OTP, res.Code)
	}
	if u.OTPVerified {
		t.Error("fresh credential should not be verified")
	}
	if len(repo.byID) != 1 {
		t.Errorf("store holds %d identities, want exactly 1", len(repo.byID))
	}
}

func TestIssue_ExistingIdentityBothChannelsMatch(t *testing.T) {
	repo := newMemUserRepo()
	svc := newService(repo)

	first, err := svc.Issue(context.Background(), "a@b.com", "5551234")
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	second, err := svc.Issue(context.Background(), "a@b.com", "5551234")
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}
	if first.UserID != second.UserID {
		t.Errorf("reissue created a new identity: %d then %d", first.UserID, second.UserID)
	}
	if len(repo.byID) != 1 {
		t.Errorf("store holds %d identities, want 1", len(repo.byID))
	}
}

func TestIssue_ReissueInvalidatesPriorCode(t *testing.T) {
	repo := newMemUserRepo()
	svc := newService(repo)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "a@b.com", "5551234")
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	if _, err := svc.Issue(ctx, "a@b.com", "5551234"); err != nil {
		t.Fatalf("second Issue: %v", err)
	}

	ok, err := svc.Verify(ctx, first.UserID, first.Code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("first code should be invalid after reissue")
	}
}

func TestIssue_MismatchedIdentity(t *testing.T) {
	repo := newMemUserRepo()
	svc := newService(repo)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "a@b.com", "5551111"); err != nil {
		t.Fatalf("seed a: %v", err)
	}
	if _, err := svc.Issue(ctx, "b@b.com", "5552222"); err != nil {
		t.Fatalf("seed b: %v", err)
	}

	// Email of A with phone of B: two distinct accounts.
	if _, err := svc.Issue(ctx, "a@b.com", "5552222"); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("split match: err = %v, want conflict", err)
	}
	// Known email, unknown phone.
	if _, err := svc.Issue(ctx, "a@b.com", "5559999"); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("email-only match: err = %v, want conflict", err)
	}
	// Unknown email, known phone.
	if _, err := svc.Issue(ctx, "c@b.com", "5551111"); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("phone-only match: err = %v, want conflict", err)
	}
}

func TestIssue_CreateRaceLosesToConflict(t *testing.T) {
	repo := newMemUserRepo()
	repo.createErr = repository.ErrDuplicate
	svc := newService(repo)

	_, err := svc.Issue(context.Background(), "new@x.com", "5551234")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("err = %v, want conflict on duplicate create", err)
	}
}

func TestIssue_StoreFaultIsInternal(t *testing.T) {
	repo := newMemUserRepo()
	repo.getErr = errors.New("connection reset")
	svc := newService(repo)

	_, err := svc.Issue(context.Background(), "a@b.com", "5551234")
	if !errors.Is(err, apperror.ErrInternal) {
		t.Errorf("err = %v, want internal error", err)
	}
}

func TestIssue_LimiterBlocks(t *testing.T) {
	repo := newMemUserRepo()
	limited := &fixedLimiter{err: apperror.ErrRateLimited}
	svc := NewOTPService(repo, limited, 5*time.Minute)

	_, err := svc.Issue(context.Background(), "a@b.com", "5551234")
	if !errors.Is(err, apperror.ErrRateLimited) {
		t.Errorf("err = %v, want rate limited", err)
	}
	if len(repo.byID) != 0 {
		t.Error("limited request should not create an identity")
	}
}

func TestVerify_MissingInput(t *testing.T) {
	svc := newService(newMemUserRepo())

	if _, err := svc.Verify(context.Background(), 0, "123456"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Verify with zero id: err = %v, want validation error", err)
	}
	if _, err := svc.Verify(context.Background(), 1, ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Verify with empty code: err = %v, want validation error", err)
	}
}

func TestVerify_UnknownIdentityIsFalseNotError(t *testing.T) {
	svc := newService(newMemUserRepo())

	ok, err := svc.Verify(context.Background(), 42, "123456")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("unknown identity should verify false")
	}
}

func TestVerify_WrongCode(t *testing.T) {
	repo := newMemUserRepo()
	svc := newService(repo)
	ctx := context.Background()

	res, err := svc.Issue(ctx, "a@b.com", "5551234")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	wrong := "000000"
	if wrong == res.Code {
		wrong = "000001"
	}
	ok, err := svc.Verify(ctx, res.UserID, wrong)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("wrong code should verify false")
	}

	// The credential is untouched; the right code still works.
	ok, err = svc.Verify(ctx, res.UserID, res.Code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("correct code should still verify after a failed attempt")
	}
}

func TestVerify_ExpiredCode(t *testing.T) {
	repo := newMemUserRepo()
	svc := newService(repo)
	ctx := context.Background()

	res, err := svc.Issue(ctx, "a@b.com", "5551234")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Move the clock past the expiry window.
	svc.nowF = func() time.Time { return time.Now().UTC().Add(6 * time.Minute) }

	ok, err := svc.Verify(ctx, res.UserID, res.Code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("expired code should verify false")
	}
}

func TestVerify_ConsumesCodeOnce(t *testing.T) {
	repo := newMemUserRepo()
	svc := newService(repo)
	ctx := context.Background()

	res, err := svc.Issue(ctx, "new@x.com", "5551234")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	ok, err := svc.Verify(ctx, res.UserID, res.Code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("first Verify with the issued code should succeed")
	}

	u, _ := repo.GetByID(ctx, res.UserID)
	if u.AccountStatus != domain.AccountStatusVerified {
		t.Errorf("AccountStatus = %q, want verified", u.AccountStatus)
	}
	if u.OTP != "" || u.OTPExpiresAt != nil {
		t.Error("consumed credential should be cleared")
	}
	if !u.OTPVerified {
		t.Error("verified flag should be set")
	}

	// Replay: the same code must never verify again.
	ok, err = svc.Verify(ctx, res.UserID, res.Code)
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if ok {
		t.Error("consumed code should not verify a second time")
	}
}

func TestVerify_StoreFaultIsInternal(t *testing.T) {
	repo := newMemUserRepo()
	repo.getErr = errors.New("connection reset")
	svc := newService(repo)

	_, err := svc.Verify(context.Background(), 1, "123456")
	if !errors.Is(err, apperror.ErrInternal) {
		t.Errorf("err = %v, want internal error", err)
	}
}

func TestResolve_DecisionTable(t *testing.T) {
	a := &domain.User{ID: 1}
	b := &domain.User{ID: 2}

	cases := []struct {
		name    string
		byEmail *domain.User
		byPhone *domain.User
		want    matchOutcome
	}{
		{"no match", nil, nil, matchNone},
		{"email only", a, nil, matchEmailOnly},
		{"phone only", nil, a, matchPhoneOnly},
		{"both same", a, a, matchBothSame},
		{"both different", a, b, matchBothDifferent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resolve(tc.byEmail, tc.byPhone); got != tc.want {
				t.Errorf("resolve = %d, want %d", got, tc.want)
			}
		})
	}
}
