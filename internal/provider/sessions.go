package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vkornev/keymart/internal/models"
)

// SessionsClient talks to the checkout-session gateway. The gateway wraps
// every response in a result.data.json envelope.
type SessionsClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewSessionsClient creates new SessionsClient instance
func NewSessionsClient(baseURL, apiKey string) *SessionsClient {
	return &SessionsClient{
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type sessionEnvelope struct {
	Result struct {
		Data struct {
			JSON sessionData `json:"json"`
		} `json:"data"`
	} `json:"result"`
}

type sessionData struct {
	ID          string     `json:"id"`
	Token       string     `json:"token"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	URL         string     `json:"url"`
	PaymentID   string     `json:"payment_id,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

type createSessionRequest struct {
	JSON struct {
		AmountCents   int64  `json:"amount_cents"`
		Currency      string `json:"currency"`
		CustomerEmail string `json:"customer_email"`
		Description   string `json:"description,omitempty"`
		OrderID       string `json:"order_id"`
	} `json:"json"`
}

// session statuses reported by the gateway
const (
	sessionStatusPaid = "PAID"
)

// CreateInvoice opens a checkout session with the provider
func (c *SessionsClient) CreateInvoice(ctx context.Context, inv InvoiceRequest) (*Invoice, error) {
	// POST /api/checkout.create
	u, err := url.JoinPath(c.baseURL, "api", "checkout.create")
	if err != nil {
		return nil, err
	}

	sessReq := createSessionRequest{}
	sessReq.JSON.AmountCents = inv.AmountCents
	sessReq.JSON.Currency = inv.Currency
	sessReq.JSON.CustomerEmail = inv.CustomerEmail
	sessReq.JSON.Description = inv.Description
	sessReq.JSON.OrderID = inv.OrderID

	body, err := json.Marshal(sessReq)
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

	data, err := decodeSession(resp, "checkout.create")
	if err != nil {
		return nil, err
	}

	return &Invoice{
		ID:          data.ID,
		PublicToken: data.Token,
		AmountCents: data.AmountCents,
		Currency:    data.Currency,
		Status:      data.Status,
		PaymentLink: data.URL,
		ExpiresAt:   data.ExpiresAt,
	}, nil
}

// GetInvoiceStatus returns the current session status for a public token
func (c *SessionsClient) GetInvoiceStatus(ctx context.Context, token string) (*InvoiceStatus, error) {
	// GET /api/checkout.status?token={token}
	u, err := url.JoinPath(c.baseURL, "api", "checkout.status")
	if err != nil {
		return nil, err
	}
	u += "?token=" + url.QueryEscape(token)

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

	data, err := decodeSession(resp, "checkout.status")
	if err != nil {
		return nil, err
	}

	return &InvoiceStatus{
		Paid:        data.Status == sessionStatusPaid,
		Status:      data.Status,
		AmountCents: data.AmountCents,
		Currency:    data.Currency,
		PaymentID:   data.PaymentID,
		PaidAt:      data.PaidAt,
	}, nil
}

// decodeSession maps gateway status codes and unwraps the response envelope.
func decodeSession(resp *http.Response, op string) (*sessionData, error) {
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, models.ErrDataNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, models.NewTooManyRequestsError(retryAfter(resp))
	default:
		return nil, fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, models.ErrProviderInternal)
	}

	env := sessionEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}

	return &env.Result.Data.JSON, nil
}
