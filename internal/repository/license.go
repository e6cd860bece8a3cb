package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/vkornev/keymart/internal/models"
	"github.com/vkornev/keymart/internal/repository/postgres"
)

const (
	selectAvailableKeyQuery = `
						SELECT id, product_id, key, status, order_id, duration, activated_at, created_at
						FROM license_keys
						WHERE product_id = $1 AND status = 'available'
						ORDER BY id
						LIMIT 1
						FOR UPDATE SKIP LOCKED
`
	selectActiveKeyByOrderQuery = `
						SELECT id, product_id, key, status, order_id, duration, activated_at, created_at
						FROM license_keys
						WHERE order_id = $1 AND status = 'active'
`
	activateKeyQuery = `
						UPDATE license_keys
						SET status = 'active', order_id = $2, duration = $3, activated_at = now()
						WHERE id = $1
						RETURNING status, order_id, duration, activated_at
`
	revokeKeyQuery = `
						UPDATE license_keys
						SET status = 'revoked'
						WHERE order_id = $1 AND status = 'active'
`
	releaseKeyQuery = `
						UPDATE license_keys
						SET status = 'available', order_id = NULL, duration = NULL, activated_at = NULL
						WHERE order_id = $1 AND status = 'active'
`
)

// LicenseRepository implements the license stock over postgres
type LicenseRepository struct {
	db *postgres.DB
}

// NewLicenseRepository creates new LicenseRepository instance
func NewLicenseRepository(db *postgres.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

// ClaimKey picks one available key for the product and activates it for the
// order. At most one key is ever active per order: a replayed claim returns
// the key already issued. SKIP LOCKED keeps concurrent claims from fighting
// over the same stock row.
func (lr *LicenseRepository) ClaimKey(ctx context.Context, productID, orderID string, duration *string) (*models.LicenseKey, error) {
	tx, err := lr.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	issued, err := scanKey(tx.QueryRow(ctx, selectActiveKeyByOrderQuery, orderID))
	if err == nil {
		return issued, nil
	}
	if !errors.Is(err, models.ErrDataNotFound) {
		return nil, err
	}

	key, err := scanKey(tx.QueryRow(ctx, selectAvailableKeyQuery, productID))
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, activateKeyQuery, key.ID, orderID, duration).Scan(
		&key.Status, &key.OrderID, &key.Duration, &key.ActivatedAt)
	if err != nil {
		// the active-per-order unique index catches a concurrent claim,
		// the winner's key is the one issued for the order
		if lr.db.ErrorCode(err) == pgErrUniqueViolationCode {
			_ = tx.Rollback(ctx)
			return scanKey(lr.db.QueryRow(ctx, selectActiveKeyByOrderQuery, orderID))
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return key, nil
}

func scanKey(row pgx.Row) (*models.LicenseKey, error) {
	key := models.LicenseKey{}
	err := row.Scan(&key.ID, &key.ProductID, &key.Key, &key.Status, &key.OrderID, &key.Duration, &key.ActivatedAt, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return &key, nil
}

// RevokeKeyByOrder revokes the active key issued for the order
func (lr *LicenseRepository) RevokeKeyByOrder(ctx context.Context, orderID string) error {
	cmd, err := lr.db.Exec(ctx, revokeKeyQuery, orderID)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

// ReleaseKeyByOrder returns the order's key to available stock
func (lr *LicenseRepository) ReleaseKeyByOrder(ctx context.Context, orderID string) error {
	cmd, err := lr.db.Exec(ctx, releaseKeyQuery, orderID)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}
