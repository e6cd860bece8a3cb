package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vkornev/keymart/internal/models"
)

// SignatureHeader carries the provider's HMAC of the raw request body.
const SignatureHeader = "x-webhook-signature"

// WebhookService verifies and dispatches provider callbacks
type WebhookService interface {
	// Handle verifies the callback and dispatches it, returning the event kind
	Handle(ctx context.Context, rawBody []byte, signatureHeader string) (string, error)
}

// WebhookHandler represents HTTP handler for provider callbacks
type WebhookHandler struct {
	svc WebhookService
}

// NewWebhookHandler creates new WebhookHandler instance
func NewWebhookHandler(svc WebhookService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Event    string `json:"event"`
}

// Receive accepts a provider callback
// 200 — signature and parse succeeded, event acknowledged.
// 400 — malformed payload.
// 401 — missing or invalid signature.
// 500 — webhook secret is not configured.
func (wh *WebhookHandler) Receive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		event, err := wh.svc.Handle(r.Context(), body, r.Header.Get(SignatureHeader))
		if err != nil {
			switch {
			case errors.Is(err, models.ErrSecretNotConfigured):
				writeError(w, http.StatusInternalServerError, err.Error())
			case errors.Is(err, models.ErrMissingSignature), errors.Is(err, models.ErrInvalidSignature):
				writeError(w, http.StatusUnauthorized, err.Error())
			case errors.Is(err, models.ErrMalformedPayload):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(webhookResponse{Received: true, Event: event}); err != nil {
			return
		}
	}
}
