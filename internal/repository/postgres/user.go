package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"vtu/internal/domain"
	vtuerrors "vtu/pkg/errors"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (
			id, full_name, email, phone, password_hash, role, balance, kyc_status,
			referral_code, referred_by, is_active, created_at, updated_at
		) VALUES (
			:id, :full_name, :email, :phone, :password_hash, :role, :balance, :kyc_status,
			:referral_code, :referred_by, :is_active, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, user)
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.GetContext(ctx, user, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrUserNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find user by id")
	}
	return user, nil
}

// FindByEmailOrPhone resolves the login identifier; the client sends either.
func (r *UserRepository) FindByEmailOrPhone(ctx context.Context, identifier string) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.GetContext(ctx, user, `
		SELECT * FROM users WHERE email = $1 OR phone = $1
	`, identifier)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrUserNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find user by identifier")
	}
	return user, nil
}

func (r *UserRepository) FindByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.GetContext(ctx, user, `SELECT * FROM users WHERE referral_code = $1`, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrUserNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find user by referral code")
	}
	return user, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
	return exists, vtuerrors.Wrap(err, "failed to check email")
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now()
	query := `
		UPDATE users SET
			full_name = :full_name,
			phone = :phone,
			password_hash = :password_hash,
			kyc_status = :kyc_status,
			kyc_document = :kyc_document,
			avatar = :avatar,
			is_active = :is_active,
			totp_secret = :totp_secret,
			is_totp_enabled = :is_totp_enabled,
			last_login = :last_login,
			updated_at = :updated_at
		WHERE id = :id
	`
	_, err := r.db.NamedExecContext(ctx, query, user)
	return vtuerrors.Wrap(err, "failed to update user")
}

// UpdateRole is admin-only; role never changes through any other path.
func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2
	`, role, id)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to update role")
	}
	return checkFound(result, vtuerrors.ErrUserNotFound)
}

func (r *UserRepository) UpdateActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2
	`, active, id)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to update active flag")
	}
	return checkFound(result, vtuerrors.ErrUserNotFound)
}

func (r *UserRepository) UpdateKYC(ctx context.Context, id uuid.UUID, status domain.KYCStatus, document *string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET kyc_status = $1, kyc_document = COALESCE($2, kyc_document), updated_at = NOW()
		WHERE id = $3
	`, status, document, id)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to update kyc status")
	}
	return checkFound(result, vtuerrors.ErrUserNotFound)
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	var users []*domain.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list users")
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, vtuerrors.Wrap(err, "failed to count users")
}

// CountReferred returns how many users registered with this user's code.
func (r *UserRepository) CountReferred(ctx context.Context, referrerID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE referred_by = $1`, referrerID)
	return count, vtuerrors.Wrap(err, "failed to count referred users")
}

func checkFound(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return vtuerrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
