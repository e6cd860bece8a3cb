package repository

import (
	"context"
	"sync"
	"time"

	"github.com/vkornev/keymart/internal/models"
)

// MemoryOrderStore is a mutex-guarded order store with the same conditional
// settlement semantics as the postgres repository. Used in mock mode when no
// database is configured, and by tests. State does not survive a restart.
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]models.PaymentOrder
	nextID uint64
}

// NewMemoryOrderStore creates new MemoryOrderStore instance
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders: make(map[string]models.PaymentOrder),
	}
}

// CreateOrder inserts new payment order
func (ms *MemoryOrderStore) CreateOrder(_ context.Context, order *models.PaymentOrder) (*models.PaymentOrder, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.orders[order.PublicToken]; ok {
		return nil, models.ErrConflictData
	}
	for _, o := range ms.orders {
		if o.OrderID == order.OrderID {
			return nil, models.ErrConflictData
		}
	}

	ms.nextID++
	order.ID = ms.nextID
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	ms.orders[order.PublicToken] = *order

	return order, nil
}

// GetOrderByToken returns order by public token
func (ms *MemoryOrderStore) GetOrderByToken(_ context.Context, token string) (*models.PaymentOrder, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	order, ok := ms.orders[token]
	if !ok {
		return nil, models.ErrDataNotFound
	}

	return &order, nil
}

// GetOrderByOrderID returns order by caller-supplied order id
func (ms *MemoryOrderStore) GetOrderByOrderID(_ context.Context, orderID string) (*models.PaymentOrder, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, order := range ms.orders {
		if order.OrderID == orderID {
			return &order, nil
		}
	}

	return nil, models.ErrDataNotFound
}

// GetStalePending returns pending orders not touched since the cutoff
func (ms *MemoryOrderStore) GetStalePending(_ context.Context, cutoff time.Time) ([]models.PaymentOrder, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	orders := []models.PaymentOrder{}
	for _, order := range ms.orders {
		if order.Status == models.OrderStatusPending && order.UpdatedAt.Before(cutoff) {
			orders = append(orders, order)
		}
	}

	return orders, nil
}

// SettleOrder transitions a pending order to a terminal status exactly once
func (ms *MemoryOrderStore) SettleOrder(_ context.Context, token string, settlement models.Settlement) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	order, ok := ms.orders[token]
	if !ok {
		return models.ErrDataNotFound
	}

	if order.Settled() {
		return models.ErrOrderSettled
	}

	order.Status = settlement.Status
	if settlement.PaymentID != "" {
		paymentID := settlement.PaymentID
		paidAt := settlement.PaidAt
		order.PaymentID = &paymentID
		order.PaidAt = &paidAt
	}
	order.UpdatedAt = time.Now()

	ms.orders[token] = order

	return nil
}

// RefundOrder marks a pending or completed order cancelled
func (ms *MemoryOrderStore) RefundOrder(_ context.Context, token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	order, ok := ms.orders[token]
	if !ok {
		return models.ErrDataNotFound
	}

	if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusCompleted {
		return models.ErrOrderSettled
	}

	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = time.Now()
	ms.orders[token] = order

	return nil
}

// MarkForReview flags an order for manual review
func (ms *MemoryOrderStore) MarkForReview(_ context.Context, token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	order, ok := ms.orders[token]
	if !ok {
		return models.ErrDataNotFound
	}

	order.NeedsReview = true
	order.UpdatedAt = time.Now()
	ms.orders[token] = order

	return nil
}

// MemoryLicenseStore keeps license stock in memory for mock mode and tests.
type MemoryLicenseStore struct {
	mu     sync.Mutex
	keys   []models.LicenseKey
	nextID uint64
}

// NewMemoryLicenseStore creates new MemoryLicenseStore instance
func NewMemoryLicenseStore() *MemoryLicenseStore {
	return &MemoryLicenseStore{}
}

// AddKey adds one available key to stock
func (ml *MemoryLicenseStore) AddKey(productID, key string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.nextID++
	ml.keys = append(ml.keys, models.LicenseKey{
		ID:        ml.nextID,
		ProductID: productID,
		Key:       key,
		Status:    models.LicenseStatusAvailable,
		CreatedAt: time.Now(),
	})
}

// ClaimKey picks one available key for the product and activates it for the
// order. A replayed claim returns the key already issued for the order.
func (ml *MemoryLicenseStore) ClaimKey(_ context.Context, productID, orderID string, duration *string) (*models.LicenseKey, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	for i := range ml.keys {
		key := ml.keys[i]
		if key.Status == models.LicenseStatusActive && key.OrderID != nil && *key.OrderID == orderID {
			issued := key
			return &issued, nil
		}
	}

	for i := range ml.keys {
		key := &ml.keys[i]
		if key.ProductID != productID || key.Status != models.LicenseStatusAvailable {
			continue
		}

		now := time.Now()
		oid := orderID
		key.Status = models.LicenseStatusActive
		key.OrderID = &oid
		key.Duration = duration
		key.ActivatedAt = &now

		claimed := *key
		return &claimed, nil
	}

	return nil, models.ErrDataNotFound
}

// RevokeKeyByOrder revokes the active key issued for the order
func (ml *MemoryLicenseStore) RevokeKeyByOrder(_ context.Context, orderID string) error {
	return ml.updateByOrder(orderID, func(key *models.LicenseKey) {
		key.Status = models.LicenseStatusRevoked
	})
}

// ReleaseKeyByOrder returns the order's key to available stock
func (ml *MemoryLicenseStore) ReleaseKeyByOrder(_ context.Context, orderID string) error {
	return ml.updateByOrder(orderID, func(key *models.LicenseKey) {
		key.Status = models.LicenseStatusAvailable
		key.OrderID = nil
		key.Duration = nil
		key.ActivatedAt = nil
	})
}

func (ml *MemoryLicenseStore) updateByOrder(orderID string, update func(*models.LicenseKey)) error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	for i := range ml.keys {
		key := &ml.keys[i]
		if key.Status == models.LicenseStatusActive && key.OrderID != nil && *key.OrderID == orderID {
			update(key)
			return nil
		}
	}

	return models.ErrDataNotFound
}
