package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/miyomint/storefront/services/auth/internal/domain"
)

type ProfileRepository interface {
	// Get returns (nil, nil) when the profile is absent; only transport
	// failures surface as errors.
	Get(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create has upsert semantics keyed by email: re-creating overwrites the
	// denormalized fields instead of failing.
	Create(ctx context.Context, req *domain.SignUpRequest, passwordHash string) (*domain.User, error)
	Update(ctx context.Context, id int64, patch *domain.ProfilePatch) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type profileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

const profileCols = `id, email, password_hash, full_name, phone, email_verified, verified_at, created_at, updated_at`

func (r *profileRepository) Get(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + profileCols + ` FROM profiles WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.EmailVerified, &u.VerifiedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &u, err
}

func (r *profileRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + profileCols + ` FROM profiles WHERE lower(email) = lower($1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.pool.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.EmailVerified, &u.VerifiedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &u, err
}

func (r *profileRepository) Create(ctx context.Context, req *domain.SignUpRequest, passwordHash string) (*domain.User, error) {
	const q = `
		INSERT INTO profiles (email, password_hash, full_name, phone, email_verified)
		VALUES ($1, $2, $3, $4, false)
		ON CONFLICT (email) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			updated_at = now()
		RETURNING ` + profileCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.pool.QueryRow(ctx, q, req.Email, passwordHash, req.FullName, req.Phone).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.EmailVerified, &u.VerifiedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

func (r *profileRepository) Update(ctx context.Context, id int64, patch *domain.ProfilePatch) (*domain.User, error) {
	const q = `
		UPDATE profiles
		SET
			full_name = COALESCE($2, full_name),
			phone = COALESCE($3, phone),
			email_verified = COALESCE($4, email_verified),
			verified_at = COALESCE($5, verified_at),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + profileCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.pool.QueryRow(ctx, q, id, patch.FullName, patch.Phone, patch.EmailVerified, patch.VerifiedAt).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.EmailVerified, &u.VerifiedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &u, err
}

func (r *profileRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const q = `UPDATE profiles SET password_hash = $2, updated_at = now() WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id, passwordHash)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}
