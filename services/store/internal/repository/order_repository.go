package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/miyomint/storefront/services/store/internal/domain"
)

type OrderRepository interface {
	// SubmitOrder writes the header and all lines in one transaction; either
	// the whole order lands or nothing does.
	SubmitOrder(ctx context.Context, order *domain.Order, lines []domain.OrderLine) (*domain.Order, error)
	SubmitGuestOrder(ctx context.Context, order *domain.Order, lines []domain.OrderLine) (*domain.Order, error)

	// SubmitGuestOrderLines appends lines to an already written guest order
	// one row at a time. A failure partway through returns PartialWriteError;
	// rows already written stay. Only the channel order-import path uses this.
	SubmitGuestOrderLines(ctx context.Context, orderID int64, lines []domain.OrderLine) error

	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)

	// GetGuestByNumber looks up a guest order by number plus the contact email
	// given at checkout. Both must match; guests hold no other credential.
	GetGuestByNumber(ctx context.Context, orderNumber, email string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Order, error)
	List(ctx context.Context, limit, offset int, status *domain.OrderStatus) ([]domain.Order, error)

	// MoveStatus applies a guarded transition; false means the current status
	// does not allow it.
	MoveStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (bool, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderCols = `id, order_number, user_id, status, total_amount, coupon_code, discount_amount,
delivery_estimate, contact_name, contact_email, contact_phone, ship_address, ship_city, ship_notes,
created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.TotalAmount, &o.CouponCode, &o.DiscountAmount,
		&o.DeliveryEstimate, &o.ContactName, &o.ContactEmail, &o.ContactPhone,
		&o.ShipAddress, &o.ShipCity, &o.ShipNotes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) SubmitOrder(ctx context.Context, order *domain.Order, lines []domain.OrderLine) (*domain.Order, error) {
	return r.submit(ctx, "orders", "order_items", order, lines, true)
}

func (r *orderRepository) SubmitGuestOrder(ctx context.Context, order *domain.Order, lines []domain.OrderLine) (*domain.Order, error) {
	return r.submit(ctx, "guest_orders", "guest_order_items", order, lines, false)
}

func (r *orderRepository) submit(ctx context.Context, headerTable, lineTable string, order *domain.Order, lines []domain.OrderLine, withUser bool) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var saved *domain.Order
	if withUser {
		const q = `INSERT INTO orders (
			order_number, user_id, status, total_amount, coupon_code, discount_amount,
			delivery_estimate, contact_name, contact_email, contact_phone,
			ship_address, ship_city, ship_notes
		) VALUES ($1,$2,'pending',$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING ` + orderCols
		saved, err = scanOrder(tx.QueryRow(ctx, q,
			order.OrderNumber, order.UserID, order.TotalAmount, order.CouponCode, order.DiscountAmount,
			order.DeliveryEstimate, order.ContactName, order.ContactEmail, order.ContactPhone,
			order.ShipAddress, order.ShipCity, order.ShipNotes,
		))
	} else {
		const q = `INSERT INTO guest_orders (
			order_number, status, total_amount, coupon_code, discount_amount,
			delivery_estimate, contact_name, contact_email, contact_phone,
			ship_address, ship_city, ship_notes
		) VALUES ($1,'pending',$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, order_number, status, total_amount, coupon_code, discount_amount,
			delivery_estimate, contact_name, contact_email, contact_phone, ship_address, ship_city, ship_notes,
			created_at, updated_at`
		var o domain.Order
		err = tx.QueryRow(ctx, q,
			order.OrderNumber, order.TotalAmount, order.CouponCode, order.DiscountAmount,
			order.DeliveryEstimate, order.ContactName, order.ContactEmail, order.ContactPhone,
			order.ShipAddress, order.ShipCity, order.ShipNotes,
		).Scan(
			&o.ID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.CouponCode, &o.DiscountAmount,
			&o.DeliveryEstimate, &o.ContactName, &o.ContactEmail, &o.ContactPhone,
			&o.ShipAddress, &o.ShipCity, &o.ShipNotes,
			&o.CreatedAt, &o.UpdatedAt,
		)
		saved = &o
	}
	if err != nil {
		return nil, err
	}

	rows := make([][]any, len(lines))
	for i, l := range lines {
		rows[i] = []any{saved.ID, l.ProductID, l.Name, l.Price, l.Image, l.Quantity}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{lineTable},
		[]string{"order_id", "product_id", "name", "price", "image", "quantity"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	saved.Lines = lines
	return saved, nil
}

func (r *orderRepository) SubmitGuestOrderLines(ctx context.Context, orderID int64, lines []domain.OrderLine) error {
	const q = `INSERT INTO guest_order_items (order_id, product_id, name, price, image, quantity)
		VALUES ($1,$2,$3,$4,$5,$6)`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for i, l := range lines {
		if _, err := r.pool.Exec(ctx, q, orderID, l.ProductID, l.Name, l.Price, l.Image, l.Quantity); err != nil {
			return &domain.PartialWriteError{OrderID: orderID, Written: i, Total: len(lines), Err: err}
		}
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	order, err := scanOrder(r.pool.QueryRow(ctx, q, id))
	if err != nil || order == nil {
		return order, err
	}
	order.Lines, err = r.queryLines(ctx, order.ID)
	return order, err
}

func (r *orderRepository) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders WHERE order_number=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	order, err := scanOrder(r.pool.QueryRow(ctx, q, orderNumber))
	if err != nil || order == nil {
		return order, err
	}
	order.Lines, err = r.queryLines(ctx, order.ID)
	return order, err
}

func (r *orderRepository) GetGuestByNumber(ctx context.Context, orderNumber, email string) (*domain.Order, error) {
	const q = `SELECT id, order_number, status, total_amount, coupon_code, discount_amount,
		delivery_estimate, contact_name, contact_email, contact_phone, ship_address, ship_city, ship_notes,
		created_at, updated_at
		FROM guest_orders WHERE order_number=$1 AND contact_email=$2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var o domain.Order
	err := r.pool.QueryRow(ctx, q, orderNumber, email).Scan(
		&o.ID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.CouponCode, &o.DiscountAmount,
		&o.DeliveryEstimate, &o.ContactName, &o.ContactEmail, &o.ContactPhone,
		&o.ShipAddress, &o.ShipCity, &o.ShipNotes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	o.Lines, err = r.queryTableLines(ctx, "guest_order_items", o.ID)
	return &o, err
}

func (r *orderRepository) queryLines(ctx context.Context, orderID int64) ([]domain.OrderLine, error) {
	return r.queryTableLines(ctx, "order_items", orderID)
}

func (r *orderRepository) queryTableLines(ctx context.Context, table string, orderID int64) ([]domain.OrderLine, error) {
	q := `SELECT id, order_id, product_id, name, price, image, quantity
		FROM ` + table + ` WHERE order_id=$1 ORDER BY id`

	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Name, &l.Price, &l.Image, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT ` + orderCols + ` FROM orders WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.queryOrders(ctx, q, userID, limit, offset)
}

func (r *orderRepository) List(ctx context.Context, limit, offset int, status *domain.OrderStatus) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if status != nil {
		const q = `SELECT ` + orderCols + ` FROM orders WHERE status=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		return r.queryOrders(ctx, q, *status, limit, offset)
	}
	const q = `SELECT ` + orderCols + ` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.queryOrders(ctx, q, limit, offset)
}

func (r *orderRepository) queryOrders(ctx context.Context, q string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.TotalAmount, &o.CouponCode, &o.DiscountAmount,
			&o.DeliveryEstimate, &o.ContactName, &o.ContactEmail, &o.ContactPhone,
			&o.ShipAddress, &o.ShipCity, &o.ShipNotes,
			&o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *orderRepository) MoveStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (bool, error) {
	const q = `UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id, from, to)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
