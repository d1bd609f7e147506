package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"launtriserv/backend/internal/user/domain"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

const userColumns = `user_id, name, email, phone, role, account_status, profile_status,
	otp, otp_expires_at, is_otp_verified, latitude, longitude, created_at, updated_at`

// PostgresRepository persists users in the users table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetByPhone returns the user with the given phone, or nil if not found.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	return scanUser(row)
}

// List returns all users ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create persists the user and assigns its ID. Returns ErrDuplicate when the
// email or phone uniqueness constraint is violated.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, phone, role, account_status, profile_status,
			otp, otp_expires_at, is_otp_verified, latitude, longitude, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING user_id
	`, u.Name, u.Email, nullString(u.Phone), string(u.Role), u.AccountStatus, u.ProfileStatus,
		nullString(u.OTP), nullTime(u.OTPExpiresAt), u.OTPVerified, u.Latitude, u.Longitude,
		u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Update saves all mutable fields of the user by primary key. Returns
// ErrDuplicate when a changed email or phone collides with another row.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, phone = $4, role = $5, account_status = $6,
			profile_status = $7, otp = $8, otp_expires_at = $9, is_otp_verified = $10,
			latitude = $11, longitude = $12, updated_at = $13
		WHERE user_id = $1
	`, u.ID, u.Name, u.Email, nullString(u.Phone), string(u.Role), u.AccountStatus,
		u.ProfileStatus, nullString(u.OTP), nullTime(u.OTPExpiresAt), u.OTPVerified,
		u.Latitude, u.Longitude, time.Now().UTC())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		phone     sql.NullString
		role      string
		otp       sql.NullString
		expiresAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &phone, &role, &u.AccountStatus, &u.ProfileStatus,
		&otp, &expiresAt, &u.OTPVerified, &u.Latitude, &u.Longitude, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Phone = phone.String
	u.Role = domain.Role(role)
	u.OTP = otp.String
	if expiresAt.Valid {
		t := expiresAt.Time
		u.OTPExpiresAt = &t
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
