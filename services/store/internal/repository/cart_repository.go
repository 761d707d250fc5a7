package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/miyomint/storefront/services/store/internal/domain"
)

// CartRepository persists the two disjoint cart worlds: rows keyed by user id
// for signed-in customers and rows keyed by the client-held guest key.
type CartRepository interface {
	GetUserCart(ctx context.Context, userID int64) ([]domain.CartLine, error)
	GetGuestCart(ctx context.Context, guestKey string) ([]domain.CartLine, error)

	// AddUserLine inserts a line or bumps the quantity of an existing one.
	AddUserLine(ctx context.Context, userID int64, req *domain.AddLineRequest) (*domain.CartLine, error)
	AddGuestLine(ctx context.Context, guestKey string, req *domain.AddLineRequest) (*domain.CartLine, error)

	// SetUserQuantity overwrites the quantity. Nil result means no such line.
	SetUserQuantity(ctx context.Context, userID int64, productID string, quantity int) (*domain.CartLine, error)
	SetGuestQuantity(ctx context.Context, guestKey, productID string, quantity int) (*domain.CartLine, error)

	RemoveUserLine(ctx context.Context, userID int64, productID string) error
	RemoveGuestLine(ctx context.Context, guestKey, productID string) error

	// Clearing an already empty cart is a no-op, not an error.
	ClearUserCart(ctx context.Context, userID int64) error
	ClearGuestCart(ctx context.Context, guestKey string) error

	// MergeGuestCart folds a guest cart into a user cart and deletes the guest
	// rows, all in one transaction. Quantities of shared products add up.
	MergeGuestCart(ctx context.Context, guestKey string, userID int64) error
}

type cartRepository struct {
	pool *pgxpool.Pool
}

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &cartRepository{pool: pool}
}

const cartCols = `id, product_id, name, price, image, quantity, created_at, updated_at`

func (r *cartRepository) GetUserCart(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	const q = `SELECT ` + cartCols + ` FROM cart_items WHERE user_id=$1 ORDER BY created_at`
	return r.queryLines(ctx, q, userID)
}

func (r *cartRepository) GetGuestCart(ctx context.Context, guestKey string) ([]domain.CartLine, error) {
	const q = `SELECT ` + cartCols + ` FROM guest_cart_items WHERE guest_key=$1 ORDER BY created_at`
	return r.queryLines(ctx, q, guestKey)
}

func (r *cartRepository) queryLines(ctx context.Context, q string, arg any) ([]domain.CartLine, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(
			&l.ID, &l.ProductID, &l.Name, &l.Price, &l.Image, &l.Quantity,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *cartRepository) AddUserLine(ctx context.Context, userID int64, req *domain.AddLineRequest) (*domain.CartLine, error) {
	const q = `INSERT INTO cart_items (user_id, product_id, name, price, image, quantity)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity   = cart_items.quantity + EXCLUDED.quantity,
			name       = EXCLUDED.name,
			price      = EXCLUDED.price,
			image      = EXCLUDED.image,
			updated_at = now()
		RETURNING ` + cartCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var l domain.CartLine
	err := r.pool.QueryRow(ctx, q, userID, req.ProductID, req.Name, req.Price, req.Image, req.Quantity).Scan(
		&l.ID, &l.ProductID, &l.Name, &l.Price, &l.Image, &l.Quantity,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *cartRepository) AddGuestLine(ctx context.Context, guestKey string, req *domain.AddLineRequest) (*domain.CartLine, error) {
	const q = `INSERT INTO guest_cart_items (guest_key, product_id, name, price, image, quantity)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (guest_key, product_id) DO UPDATE SET
			quantity   = guest_cart_items.quantity + EXCLUDED.quantity,
			name       = EXCLUDED.name,
			price      = EXCLUDED.price,
			image      = EXCLUDED.image,
			updated_at = now()
		RETURNING ` + cartCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var l domain.CartLine
	err := r.pool.QueryRow(ctx, q, guestKey, req.ProductID, req.Name, req.Price, req.Image, req.Quantity).Scan(
		&l.ID, &l.ProductID, &l.Name, &l.Price, &l.Image, &l.Quantity,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *cartRepository) SetUserQuantity(ctx context.Context, userID int64, productID string, quantity int) (*domain.CartLine, error) {
	const q = `UPDATE cart_items SET quantity=$3, updated_at=now()
		WHERE user_id=$1 AND product_id=$2
		RETURNING ` + cartCols
	return r.setQuantity(ctx, q, userID, productID, quantity)
}

func (r *cartRepository) SetGuestQuantity(ctx context.Context, guestKey, productID string, quantity int) (*domain.CartLine, error) {
	const q = `UPDATE guest_cart_items SET quantity=$3, updated_at=now()
		WHERE guest_key=$1 AND product_id=$2
		RETURNING ` + cartCols
	return r.setQuantity(ctx, q, guestKey, productID, quantity)
}

func (r *cartRepository) setQuantity(ctx context.Context, q string, owner any, productID string, quantity int) (*domain.CartLine, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var l domain.CartLine
	err := r.pool.QueryRow(ctx, q, owner, productID, quantity).Scan(
		&l.ID, &l.ProductID, &l.Name, &l.Price, &l.Image, &l.Quantity,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *cartRepository) RemoveUserLine(ctx context.Context, userID int64, productID string) error {
	const q = `DELETE FROM cart_items WHERE user_id=$1 AND product_id=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, userID, productID)
	return err
}

func (r *cartRepository) RemoveGuestLine(ctx context.Context, guestKey, productID string) error {
	const q = `DELETE FROM guest_cart_items WHERE guest_key=$1 AND product_id=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, guestKey, productID)
	return err
}

func (r *cartRepository) ClearUserCart(ctx context.Context, userID int64) error {
	const q = `DELETE FROM cart_items WHERE user_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, userID)
	return err
}

func (r *cartRepository) ClearGuestCart(ctx context.Context, guestKey string) error {
	const q = `DELETE FROM guest_cart_items WHERE guest_key=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, guestKey)
	return err
}

func (r *cartRepository) MergeGuestCart(ctx context.Context, guestKey string, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const move = `INSERT INTO cart_items (user_id, product_id, name, price, image, quantity)
		SELECT $2, product_id, name, price, image, quantity
		FROM guest_cart_items WHERE guest_key=$1
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity   = cart_items.quantity + EXCLUDED.quantity,
			updated_at = now()`
	if _, err := tx.Exec(ctx, move, guestKey, userID); err != nil {
		return err
	}

	const drop = `DELETE FROM guest_cart_items WHERE guest_key=$1`
	if _, err := tx.Exec(ctx, drop, guestKey); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
