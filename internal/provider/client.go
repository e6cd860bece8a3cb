package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vkornev/keymart/internal/models"
)

// default time of retry after
const delaySeconds = 60

// InvoiceClient talks to the invoicing gateway over HTTP with bearer auth.
type InvoiceClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewInvoiceClient creates new InvoiceClient instance
func NewInvoiceClient(baseURL, apiKey string) *InvoiceClient {
	return &InvoiceClient{
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type createInvoiceRequest struct {
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
	Description   string `json:"description,omitempty"`
	OrderID       string `json:"order_id"`
}

type invoiceResponse struct {
	ID          string    `json:"id"`
	PublicToken string    `json:"public_token"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	PaymentLink string    `json:"payment_link"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type invoiceStatusResponse struct {
	Paid        bool       `json:"paid"`
	Status      string     `json:"status"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	PaymentID   string     `json:"payment_id,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

// CreateInvoice opens an invoice with the provider
// 200/201 — invoice created.
// 429 — request rate exceeded, honor Retry-After.
// 5xx — provider internal error.
func (c *InvoiceClient) CreateInvoice(ctx context.Context, inv InvoiceRequest) (*Invoice, error) {
	// POST /api/v1/invoices
	u, err := url.JoinPath(c.baseURL, "api", "v1", "invoices")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(createInvoiceRequest{
		AmountCents:   inv.AmountCents,
		Currency:      inv.Currency,
		CustomerEmail: inv.CustomerEmail,
		Description:   inv.Description,
		OrderID:       inv.OrderID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		invResp := invoiceResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&invResp); err != nil {
			return nil, err
		}
		return &Invoice{
			ID:          invResp.ID,
			PublicToken: invResp.PublicToken,
			AmountCents: invResp.AmountCents,
			Currency:    invResp.Currency,
			Status:      invResp.Status,
			PaymentLink: invResp.PaymentLink,
			ExpiresAt:   invResp.ExpiresAt,
		}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, models.NewTooManyRequestsError(retryAfter(resp))
	default:
		return nil, fmt.Errorf("create invoice: status %d: %w", resp.StatusCode, models.ErrProviderInternal)
	}
}

// GetInvoiceStatus returns the current payment status for a public token
// 200 — status returned.
// 404 — token is not known to the provider.
// 429 — request rate exceeded, honor Retry-After.
func (c *InvoiceClient) GetInvoiceStatus(ctx context.Context, token string) (*InvoiceStatus, error) {
	// GET /api/v1/invoices/{token}/status
	u, err := url.JoinPath(c.baseURL, "api", "v1", "invoices", token, "status")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		stResp := invoiceStatusResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&stResp); err != nil {
			return nil, err
		}
		return &InvoiceStatus{
			Paid:        stResp.Paid,
			Status:      stResp.Status,
			AmountCents: stResp.AmountCents,
			Currency:    stResp.Currency,
			PaymentID:   stResp.PaymentID,
			PaidAt:      stResp.PaidAt,
		}, nil
	case http.StatusNotFound:
		return nil, models.ErrDataNotFound
	case http.StatusTooManyRequests:
		return nil, models.NewTooManyRequestsError(retryAfter(resp))
	default:
		return nil, fmt.Errorf("invoice status: status %d: %w", resp.StatusCode, models.ErrProviderInternal)
	}
}

// retryAfter extracts the Retry-After header, falling back to the default delay.
func retryAfter(resp *http.Response) time.Duration {
	val := resp.Header.Get("Retry-After")
	t, err := strconv.Atoi(val)
	if err != nil || t <= 0 {
		t = delaySeconds
	}
	return time.Duration(t) * time.Second
}
