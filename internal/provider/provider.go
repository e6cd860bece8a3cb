package provider

import (
	"context"
	"time"
)

// InvoiceRequest is the payload sent to the provider to open an invoice.
// Amount is in minor currency units.
type InvoiceRequest struct {
	OrderID       string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	Description   string
}

// Invoice is the provider-side representation of a requested payment.
type Invoice struct {
	ID          string
	PublicToken string
	AmountCents int64
	Currency    string
	Status      string
	PaymentLink string
	ExpiresAt   time.Time
}

// InvoiceStatus is the provider's current view of an invoice.
type InvoiceStatus struct {
	Paid        bool
	Status      string
	AmountCents int64
	Currency    string
	PaymentID   string
	PaidAt      *time.Time
}

// Client abstracts the payment provider. The live invoice gateway, the
// checkout-session gateway and the mock all implement it; the concrete
// client is selected once at startup.
type Client interface {
	// CreateInvoice opens an invoice with the provider
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
	// GetInvoiceStatus returns the current payment status for a public token
	GetInvoiceStatus(ctx context.Context, token string) (*InvoiceStatus, error)
}
