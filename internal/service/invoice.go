package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vkornev/keymart/internal/models"
	"github.com/vkornev/keymart/internal/provider"
)

const defaultCurrency = "USD"

var oneHundred = decimal.NewFromInt(100)

// ToCents converts a decimal currency amount to integer minor units.
// Rounding is half up: 19.995 becomes 2000. The conversion goes through
// decimal arithmetic so binary float noise never reaches the provider.
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(oneHundred).Round(0).IntPart()
}

// CreateInvoiceRequest is a purchase attempt from the storefront.
type CreateInvoiceRequest struct {
	Amount          float64
	Currency        string
	CustomerEmail   string
	Description     string
	OrderID         string
	ProductID       *string
	LicenseDuration *string
}

// CreateInvoiceResult is what the storefront needs to send the buyer to checkout.
type CreateInvoiceResult struct {
	InvoiceID   string
	PaymentLink string
	PublicToken string
}

// InvoiceService issues invoices against the configured payment gateway and
// records the resulting order.
type InvoiceService struct {
	store  OrderStore
	client provider.Client
}

// NewInvoiceService creates new InvoiceService instance
func NewInvoiceService(store OrderStore, client provider.Client) *InvoiceService {
	return &InvoiceService{
		store:  store,
		client: client,
	}
}

// CreateInvoice validates the purchase, opens an invoice with the provider
// and stores exactly one pending order under the provider's public token.
// A failed provider call is surfaced as is; the caller retries the purchase.
func (is *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*CreateInvoiceResult, error) {
	if req.Amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	if strings.TrimSpace(req.CustomerEmail) == "" {
		return nil, models.ErrMissingEmail
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, models.ErrMissingOrderID
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	inv, err := is.client.CreateInvoice(ctx, provider.InvoiceRequest{
		OrderID:       req.OrderID,
		AmountCents:   ToCents(req.Amount),
		Currency:      currency,
		CustomerEmail: req.CustomerEmail,
		Description:   req.Description,
	})
	if err != nil {
		return nil, err
	}

	order := models.PaymentOrder{
		PublicToken:     inv.PublicToken,
		OrderID:         req.OrderID,
		AmountCents:     inv.AmountCents,
		Currency:        inv.Currency,
		Status:          models.OrderStatusPending,
		CustomerEmail:   req.CustomerEmail,
		Description:     req.Description,
		ProductID:       req.ProductID,
		LicenseDuration: req.LicenseDuration,
	}

	if _, err := is.store.CreateOrder(ctx, &order); err != nil {
		return nil, err
	}

	return &CreateInvoiceResult{
		InvoiceID:   inv.ID,
		PaymentLink: inv.PaymentLink,
		PublicToken: inv.PublicToken,
	}, nil
}
