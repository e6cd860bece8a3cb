package models

import "time"

// order status
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusExpired   = "expired"
)

// PaymentOrder is one purchase attempt and its settlement lifecycle.
// PublicToken is the opaque identifier a client may hold and poll;
// OrderID is the caller-supplied identifier of the purchase attempt.
type PaymentOrder struct {
	ID              uint64
	PublicToken     string
	OrderID         string
	AmountCents     int64
	Currency        string
	Status          string
	CustomerEmail   string
	Description     string
	ProductID       *string
	LicenseDuration *string
	PaymentID       *string
	PaidAt          *time.Time
	NeedsReview     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Settled reports whether the order has left the pending state.
func (o *PaymentOrder) Settled() bool {
	return o.Status != OrderStatusPending
}

// Settlement carries the provider-confirmed outcome applied to a pending order.
// PaymentID and PaidAt are always populated together.
type Settlement struct {
	Status    string
	PaymentID string
	PaidAt    time.Time
}
