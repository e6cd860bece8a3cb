package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vkornev/keymart/internal/models"
	"github.com/vkornev/keymart/internal/service"
)

// InvoiceService issues payment invoices
type InvoiceService interface {
	// CreateInvoice validates the purchase and opens an invoice with the provider
	CreateInvoice(ctx context.Context, req service.CreateInvoiceRequest) (*service.CreateInvoiceResult, error)
}

// StatusService answers settlement status polls
type StatusService interface {
	// CheckStatus fetches the provider's view for the token
	CheckStatus(ctx context.Context, token string) (*service.StatusResult, error)
}

// PaymentHandler represents HTTP handler for payment-related requests
type PaymentHandler struct {
	invoices InvoiceService
	status   StatusService
}

// NewPaymentHandler creates new PaymentHandler instance
func NewPaymentHandler(invoices InvoiceService, status StatusService) *PaymentHandler {
	return &PaymentHandler{
		invoices: invoices,
		status:   status,
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeError writes the structured error envelope
func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Success: false, Error: msg})
}

// writeProviderError maps provider failures onto response codes
func writeProviderError(w http.ResponseWriter, err error) {
	var errTooManyReq models.TooManyRequestsError
	switch {
	case errors.As(err, &errTooManyReq):
		w.Header().Set("Retry-After", strconv.Itoa(int(errTooManyReq.RetryAfter.Seconds())))
		writeError(w, http.StatusTooManyRequests, "payment provider rate limit exceeded")
	case errors.Is(err, models.ErrProviderInternal):
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type createInvoiceRequest struct {
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency,omitempty"`
	CustomerEmail   string  `json:"customer_email"`
	Description     string  `json:"description,omitempty"`
	OrderID         string  `json:"order_id"`
	ProductID       *string `json:"product_id,omitempty"`
	LicenseDuration *string `json:"license_duration,omitempty"`
}

type createInvoiceResponse struct {
	Success     bool   `json:"success"`
	InvoiceID   string `json:"invoice_id"`
	PaymentLink string `json:"payment_link"`
	PublicToken string `json:"public_token"`
}

// CreateInvoice opens an invoice for a purchase attempt
// 200 — invoice created.
// 400 — validation failure or malformed request.
// 429 — provider rate limit, Retry-After is set.
// 502 — provider failure.
// 500 — internal error.
func (ph *PaymentHandler) CreateInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createInvoiceRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		result, err := ph.invoices.CreateInvoice(r.Context(), service.CreateInvoiceRequest{
			Amount:          req.Amount,
			Currency:        req.Currency,
			CustomerEmail:   req.CustomerEmail,
			Description:     req.Description,
			OrderID:         req.OrderID,
			ProductID:       req.ProductID,
			LicenseDuration: req.LicenseDuration,
		})
		if err != nil {
			switch {
			case errors.Is(err, models.ErrInvalidAmount),
				errors.Is(err, models.ErrMissingEmail),
				errors.Is(err, models.ErrMissingOrderID):
				writeError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, models.ErrConflictData):
				writeError(w, http.StatusConflict, "order already exists")
			default:
				writeProviderError(w, err)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(createInvoiceResponse{
			Success:     true,
			InvoiceID:   result.InvoiceID,
			PaymentLink: result.PaymentLink,
			PublicToken: result.PublicToken,
		}); err != nil {
			return
		}
	}
}

type statusResponse struct {
	Success     bool   `json:"success"`
	Paid        bool   `json:"paid"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	Currency    string `json:"currency,omitempty"`
	PaidAt      string `json:"paid_at,omitempty"`
	PaymentID   string `json:"payment_id,omitempty"`
}

// CheckStatus returns the settlement status for a public token
// 200 — status returned.
// 400 — token is missing.
// 404 — token is unknown to the provider.
// 429 — provider rate limit, Retry-After is set.
// 502 — provider failure.
func (ph *PaymentHandler) CheckStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")

		result, err := ph.status.CheckStatus(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrEmptyToken):
				writeError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, models.ErrDataNotFound):
				writeError(w, http.StatusNotFound, "unknown token")
			default:
				writeProviderError(w, err)
			}
			return
		}

		resp := statusResponse{
			Success:     true,
			Paid:        result.Paid,
			Status:      result.Status,
			AmountCents: result.AmountCents,
			Currency:    result.Currency,
			PaymentID:   result.PaymentID,
		}
		if result.PaidAt != nil {
			resp.PaidAt = result.PaidAt.Format(time.RFC3339)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			return
		}
	}
}
