package service

import (
	"context"
	"errors"
	"time"

	"github.com/vkornev/keymart/internal/models"
)

// OrderStore is interface for interacting with payment-order data. Core
// services depend on this capability, never on a concrete map or pool.
type OrderStore interface {
	// CreateOrder inserts new payment order
	CreateOrder(ctx context.Context, order *models.PaymentOrder) (*models.PaymentOrder, error)
	// GetOrderByToken returns order by public token
	GetOrderByToken(ctx context.Context, token string) (*models.PaymentOrder, error)
	// GetOrderByOrderID returns order by caller-supplied order id
	GetOrderByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	// GetStalePending returns pending orders not touched since the cutoff
	GetStalePending(ctx context.Context, cutoff time.Time) ([]models.PaymentOrder, error)
	// SettleOrder transitions a pending order to a terminal status exactly once
	SettleOrder(ctx context.Context, token string, settlement models.Settlement) error
	// RefundOrder marks a pending or completed order cancelled
	RefundOrder(ctx context.Context, token string) error
	// MarkForReview flags an order for manual review
	MarkForReview(ctx context.Context, token string) error
}

// LicenseStore is interface for interacting with license stock
type LicenseStore interface {
	// ClaimKey picks one available key for the product and activates it for the order
	ClaimKey(ctx context.Context, productID, orderID string, duration *string) (*models.LicenseKey, error)
	// RevokeKeyByOrder revokes the active key issued for the order
	RevokeKeyByOrder(ctx context.Context, orderID string) error
	// ReleaseKeyByOrder returns the order's key to available stock
	ReleaseKeyByOrder(ctx context.Context, orderID string) error
}

// applySettlement settles the order idempotently: losing a settlement race or
// replaying an identical settlement is a no-op, anything else surfaces.
func applySettlement(ctx context.Context, store OrderStore, token string, settlement models.Settlement) error {
	err := store.SettleOrder(ctx, token, settlement)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrOrderSettled) {
		return err
	}

	cur, getErr := store.GetOrderByToken(ctx, token)
	if getErr != nil {
		return getErr
	}

	if cur.Status != settlement.Status {
		return err
	}
	if settlement.PaymentID == "" {
		// terminal state without payment, replay carries no payment fields
		return nil
	}
	if cur.PaymentID != nil && *cur.PaymentID == settlement.PaymentID {
		return nil
	}

	return err
}
