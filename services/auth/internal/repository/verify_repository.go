package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrVerificationExpired reports a verification token that exists but whose
// expiry has passed. Callers distinguish it from unknown or replayed tokens.
var ErrVerificationExpired = errors.New("verification token expired")

type VerifyRepository interface {
	// Email verification tokens
	CreateEmailVerification(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	// ConsumeEmailVerification marks a token used and returns its user id.
	// Unknown or replayed tokens come back (0, nil); expired ones come back
	// as ErrVerificationExpired.
	ConsumeEmailVerification(ctx context.Context, token string) (userID int64, err error)

	// Password reset tokens (stored hashed; the raw token only travels in the
	// reset email)
	CreatePasswordReset(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, userID int64, token string) (bool, error)

	DeleteExpiredTokens(ctx context.Context) (int64, error)
}

type verifyRepository struct {
	pool *pgxpool.Pool
}

func NewVerifyRepository(pool *pgxpool.Pool) VerifyRepository {
	return &verifyRepository{pool: pool}
}

func (r *verifyRepository) CreateEmailVerification(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	const q = `
		INSERT INTO email_verification_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, userID, token, expiresAt)
	return err
}

func (r *verifyRepository) ConsumeEmailVerification(ctx context.Context, token string) (int64, error) {
	const q = `
		UPDATE email_verification_tokens
		SET used_at = now()
		WHERE token = $1
		  AND used_at IS NULL
		RETURNING user_id, expires_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		userID    int64
		expiresAt time.Time
	)
	err := r.pool.QueryRow(ctx, q, token).Scan(&userID, &expiresAt)
	if err == pgx.ErrNoRows {
		return 0, nil // Unknown or already used
	}
	if err != nil {
		return 0, err
	}
	if !expiresAt.After(time.Now()) {
		// The row is consumed either way; an expired token stays dead.
		return 0, ErrVerificationExpired
	}
	return userID, nil
}

func (r *verifyRepository) CreatePasswordReset(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO password_reset_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err = r.pool.Exec(ctx, q, userID, string(hash), expiresAt)
	return err
}

func (r *verifyRepository) ConsumePasswordReset(ctx context.Context, userID int64, token string) (bool, error) {
	const q = `
		SELECT id, token_hash
		FROM password_reset_tokens
		WHERE user_id = $1
		  AND used_at IS NULL
		  AND expires_at > now()
		ORDER BY id DESC
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		id   int64
		hash string
	)
	err := r.pool.QueryRow(ctx, q, userID).Scan(&id, &hash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return false, nil
	}

	_, _ = r.pool.Exec(ctx, `UPDATE password_reset_tokens SET used_at = now() WHERE id = $1`, id)
	return true, nil
}

func (r *verifyRepository) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	const q = `
		DELETE FROM email_verification_tokens
		WHERE (used_at IS NOT NULL AND used_at < now() - interval '30 days')
		   OR (used_at IS NULL AND expires_at < now() - interval '7 days')`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
