package provider

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockTokenPrefix marks tokens fabricated without a real provider.
const MockTokenPrefix = "MOCK-"

// default probability that a mock status check reports the invoice paid
const defaultPaidProbability = 0.5

// MockClient fabricates plausible provider responses for development and
// demos. The outcome source is injectable so tests can pin the result.
type MockClient struct {
	paidProbability float64
	roll            func() float64
}

// MockOption configures a MockClient.
type MockOption func(*MockClient)

// WithOutcome replaces the random outcome source. roll must return a value
// in [0, 1); values below the paid probability report the invoice as paid.
func WithOutcome(roll func() float64) MockOption {
	return func(m *MockClient) {
		m.roll = roll
	}
}

// WithPaidProbability sets the fraction of status checks reported paid.
func WithPaidProbability(p float64) MockOption {
	return func(m *MockClient) {
		m.paidProbability = p
	}
}

// NewMockClient creates new MockClient instance
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		paidProbability: defaultPaidProbability,
		roll:            rand.Float64,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateInvoice fabricates a pending invoice with a marked token.
func (m *MockClient) CreateInvoice(_ context.Context, inv InvoiceRequest) (*Invoice, error) {
	token := MockTokenPrefix + uuid.NewString()

	return &Invoice{
		ID:          "inv_" + uuid.NewString(),
		PublicToken: token,
		AmountCents: inv.AmountCents,
		Currency:    inv.Currency,
		Status:      "pending",
		PaymentLink: "/checkout/" + token,
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil
}

// GetInvoiceStatus reports a randomized paid or pending outcome.
func (m *MockClient) GetInvoiceStatus(_ context.Context, token string) (*InvoiceStatus, error) {
	if m.roll() >= m.paidProbability {
		return &InvoiceStatus{
			Paid:   false,
			Status: "pending",
		}, nil
	}

	now := time.Now()
	return &InvoiceStatus{
		Paid:      true,
		Status:    "paid",
		PaymentID: "pay_" + strings.TrimPrefix(token, MockTokenPrefix),
		PaidAt:    &now,
	}, nil
}
