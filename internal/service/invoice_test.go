package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkornev/keymart/internal/models"
	"github.com/vkornev/keymart/internal/provider"
	"github.com/vkornev/keymart/internal/repository"
)

// stubClient is a programmable provider.Client recording call counts.
type stubClient struct {
	invoice       *provider.Invoice
	invoiceErr    error
	status        *provider.InvoiceStatus
	statusErr     error
	createCalls   int
	statusCalls   int
	lastCreateReq provider.InvoiceRequest
}

func (sc *stubClient) CreateInvoice(_ context.Context, req provider.InvoiceRequest) (*provider.Invoice, error) {
	sc.createCalls++
	sc.lastCreateReq = req
	if sc.invoiceErr != nil {
		return nil, sc.invoiceErr
	}
	return sc.invoice, nil
}

func (sc *stubClient) GetInvoiceStatus(_ context.Context, _ string) (*provider.InvoiceStatus, error) {
	sc.statusCalls++
	if sc.statusErr != nil {
		return nil, sc.statusErr
	}
	return sc.status, nil
}

func TestToCents(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{7.90, 790},
		{19.995, 2000}, // half up
		{0.01, 1},
		{100, 10000},
		{2.675, 268},
		{0.004, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToCents(tt.amount), "amount %v", tt.amount)
	}
}

func TestInvoiceService_ValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateInvoiceRequest
		wantErr error
	}{
		{
			name:    "zero_amount",
			req:     CreateInvoiceRequest{Amount: 0, CustomerEmail: "a@b.com", OrderID: "ORD-1"},
			wantErr: models.ErrInvalidAmount,
		},
		{
			name:    "negative_amount",
			req:     CreateInvoiceRequest{Amount: -7.90, CustomerEmail: "a@b.com", OrderID: "ORD-1"},
			wantErr: models.ErrInvalidAmount,
		},
		{
			name:    "missing_email",
			req:     CreateInvoiceRequest{Amount: 7.90, OrderID: "ORD-1"},
			wantErr: models.ErrMissingEmail,
		},
		{
			name:    "missing_order_id",
			req:     CreateInvoiceRequest{Amount: 7.90, CustomerEmail: "a@b.com"},
			wantErr: models.ErrMissingOrderID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{}
			svc := NewInvoiceService(repository.NewMemoryOrderStore(), client)

			_, err := svc.CreateInvoice(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, client.createCalls, "no network call on validation failure")
		})
	}
}

func TestInvoiceService_MockModeScenario(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	svc := NewInvoiceService(store, provider.NewMockClient())

	result, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		Amount:        7.90,
		Currency:      "USD",
		CustomerEmail: "a@b.com",
		OrderID:       "ORD-1",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.PublicToken, provider.MockTokenPrefix))
	assert.Contains(t, result.PaymentLink, result.PublicToken)

	order, err := store.GetOrderByToken(context.Background(), result.PublicToken)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", order.OrderID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, int64(790), order.AmountCents)
	assert.Equal(t, "USD", order.Currency)
	assert.Nil(t, order.PaymentID)
	assert.Nil(t, order.PaidAt)
}

func TestInvoiceService_StoresExactlyOneOrder(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	client := &stubClient{
		invoice: &provider.Invoice{
			ID:          "inv_1",
			PublicToken: "tok_1",
			AmountCents: 790,
			Currency:    "EUR",
			Status:      "pending",
			PaymentLink: "https://pay.example/tok_1",
		},
	}
	svc := NewInvoiceService(store, client)

	result, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		Amount:        7.90,
		Currency:      "EUR",
		CustomerEmail: "a@b.com",
		OrderID:       "ORD-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok_1", result.PublicToken)
	assert.Equal(t, int64(790), client.lastCreateReq.AmountCents)

	// a second attempt with the same order id conflicts
	_, err = svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		Amount:        7.90,
		Currency:      "EUR",
		CustomerEmail: "a@b.com",
		OrderID:       "ORD-2",
	})
	assert.ErrorIs(t, err, models.ErrConflictData)
}

func TestInvoiceService_ProviderErrorsSurface(t *testing.T) {
	rateLimited := models.NewTooManyRequestsError(30 * time.Second)

	tests := []struct {
		name string
		err  error
	}{
		{"rate_limit", rateLimited},
		{"service_error", errors.New("create invoice: status 503: " + models.ErrProviderInternal.Error())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryOrderStore()
			svc := NewInvoiceService(store, &stubClient{invoiceErr: tt.err})

			_, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
				Amount:        7.90,
				CustomerEmail: "a@b.com",
				OrderID:       "ORD-3",
			})
			assert.Error(t, err)

			// no store entry on a failed provider call
			_, err = store.GetOrderByOrderID(context.Background(), "ORD-3")
			assert.ErrorIs(t, err, models.ErrDataNotFound)
		})
	}
}
