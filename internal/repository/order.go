package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vkornev/keymart/internal/models"
	"github.com/vkornev/keymart/internal/repository/postgres"
)

const pgErrUniqueViolationCode = "23505"

const (
	insertOrderQuery = `
						INSERT INTO payment_orders
							(public_token, order_id, amount_cents, currency, status, customer_email, description, product_id, license_duration)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
						RETURNING id, created_at, updated_at
`
	selectOrderByTokenQuery = `
						SELECT id, public_token, order_id, amount_cents, currency, status, customer_email, description,
							product_id, license_duration, payment_id, paid_at, needs_review, created_at, updated_at
						FROM payment_orders
						WHERE public_token = $1
`
	selectOrderByOrderIDQuery = `
						SELECT id, public_token, order_id, amount_cents, currency, status, customer_email, description,
							product_id, license_duration, payment_id, paid_at, needs_review, created_at, updated_at
						FROM payment_orders
						WHERE order_id = $1
`
	selectStalePendingQuery = `
						SELECT id, public_token, order_id, amount_cents, currency, status, customer_email, description,
							product_id, license_duration, payment_id, paid_at, needs_review, created_at, updated_at
						FROM payment_orders
						WHERE status = 'pending' AND updated_at < $1
						ORDER BY updated_at
`
	settleOrderQuery = `
						UPDATE payment_orders
						SET status = $2, payment_id = $3, paid_at = $4, updated_at = now()
						WHERE public_token = $1 AND status = 'pending'
`
	refundOrderQuery = `
						UPDATE payment_orders
						SET status = 'cancelled', updated_at = now()
						WHERE public_token = $1 AND status IN ('pending', 'completed')
`
	markReviewQuery = `
						UPDATE payment_orders
						SET needs_review = TRUE, updated_at = now()
						WHERE public_token = $1
`
)

// OrderRepository implements the order store over postgres
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder inserts new payment order to database
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.PaymentOrder) (*models.PaymentOrder, error) {
	err := or.db.QueryRow(ctx, insertOrderQuery,
		order.PublicToken, order.OrderID, order.AmountCents, order.Currency, order.Status,
		order.CustomerEmail, order.Description, order.ProductID, order.LicenseDuration,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errCode := or.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return order, nil
}

// GetOrderByToken returns order by public token
func (or *OrderRepository) GetOrderByToken(ctx context.Context, token string) (*models.PaymentOrder, error) {
	return or.scanOrder(or.db.QueryRow(ctx, selectOrderByTokenQuery, token))
}

// GetOrderByOrderID returns order by caller-supplied order id
func (or *OrderRepository) GetOrderByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	return or.scanOrder(or.db.QueryRow(ctx, selectOrderByOrderIDQuery, orderID))
}

// GetStalePending returns pending orders not touched since the cutoff
func (or *OrderRepository) GetStalePending(ctx context.Context, cutoff time.Time) ([]models.PaymentOrder, error) {
	rows, err := or.db.Query(ctx, selectStalePendingQuery, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.PaymentOrder{}

	for rows.Next() {
		order := models.PaymentOrder{}
		err = rows.Scan(&order.ID, &order.PublicToken, &order.OrderID, &order.AmountCents, &order.Currency,
			&order.Status, &order.CustomerEmail, &order.Description, &order.ProductID, &order.LicenseDuration,
			&order.PaymentID, &order.PaidAt, &order.NeedsReview, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			continue
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// SettleOrder transitions a pending order to a terminal status. The update is
// conditional on the current status so concurrent settlement attempts resolve
// to exactly one transition; losers get ErrOrderSettled.
func (or *OrderRepository) SettleOrder(ctx context.Context, token string, settlement models.Settlement) error {
	var paymentID *string
	var paidAt *time.Time
	if settlement.PaymentID != "" {
		paymentID = &settlement.PaymentID
		paidAt = &settlement.PaidAt
	}

	cmd, err := or.db.Exec(ctx, settleOrderQuery, token, settlement.Status, paymentID, paidAt)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		if _, err := or.GetOrderByToken(ctx, token); err != nil {
			return err
		}
		return models.ErrOrderSettled
	}

	return nil
}

// RefundOrder marks a pending or completed order cancelled. Payment fields
// are kept for the audit trail.
func (or *OrderRepository) RefundOrder(ctx context.Context, token string) error {
	cmd, err := or.db.Exec(ctx, refundOrderQuery, token)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		if _, err := or.GetOrderByToken(ctx, token); err != nil {
			return err
		}
		return models.ErrOrderSettled
	}

	return nil
}

// MarkForReview flags an order for manual review
func (or *OrderRepository) MarkForReview(ctx context.Context, token string) error {
	cmd, err := or.db.Exec(ctx, markReviewQuery, token)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

func (or *OrderRepository) scanOrder(row pgx.Row) (*models.PaymentOrder, error) {
	order := models.PaymentOrder{}
	err := row.Scan(&order.ID, &order.PublicToken, &order.OrderID, &order.AmountCents, &order.Currency,
		&order.Status, &order.CustomerEmail, &order.Description, &order.ProductID, &order.LicenseDuration,
		&order.PaymentID, &order.PaidAt, &order.NeedsReview, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return &order, nil
}
