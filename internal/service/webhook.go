package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vkornev/keymart/internal/logger"
	"github.com/vkornev/keymart/internal/models"
	"github.com/vkornev/keymart/internal/signature"
	"go.uber.org/zap"
)

// webhook event kinds sent by the payment provider
const (
	EventCheckoutCompleted = "checkout.completed"
	EventCheckoutRefunded  = "checkout.refunded"
	EventCheckoutExpired   = "checkout.expired"
	EventCheckoutDisputed  = "checkout.disputed"
	EventCheckoutCreated   = "checkout.created"
)

// Event is a provider callback payload.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData carries the order fields a callback may reference.
type EventData struct {
	Token         string     `json:"token"`
	OrderID       string     `json:"order_id"`
	PaymentID     string     `json:"payment_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	AmountCents   int64      `json:"amount_cents,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	ProductID     *string    `json:"product_id,omitempty"`
	Duration      *string    `json:"license_duration,omitempty"`
}

// EventHandler reacts to one webhook event kind.
type EventHandler func(ctx context.Context, event *Event) error

// WebhookService verifies and dispatches provider callbacks. Event kinds map
// to registered handlers; adding a kind means registering a handler.
type WebhookService struct {
	secret   string
	verifier *signature.Verifier
	orders   OrderStore
	licenses LicenseStore
	handlers map[string]EventHandler
}

// NewWebhookService creates new WebhookService instance with the built-in
// checkout event handlers registered.
func NewWebhookService(secret string, orders OrderStore, licenses LicenseStore) *WebhookService {
	ws := &WebhookService{
		secret:   secret,
		verifier: signature.NewVerifier(secret),
		orders:   orders,
		licenses: licenses,
		handlers: make(map[string]EventHandler),
	}

	ws.Register(EventCheckoutCompleted, ws.handleCompleted)
	ws.Register(EventCheckoutRefunded, ws.handleRefunded)
	ws.Register(EventCheckoutExpired, ws.handleExpired)
	ws.Register(EventCheckoutDisputed, ws.handleDisputed)
	ws.Register(EventCheckoutCreated, ws.handleCreated)

	return ws
}

// Register binds a handler to an event kind, replacing any previous one.
func (ws *WebhookService) Register(event string, handler EventHandler) {
	ws.handlers[event] = handler
}

// Handle verifies the callback and dispatches it. The gate order is fixed:
// configured secret, signature present, signature valid, body parses. Once
// the gate passes the event is always acknowledged; handler failures are
// logged, not returned, because the provider would retry on a non-2xx and
// settlement is already idempotent under redelivery.
func (ws *WebhookService) Handle(ctx context.Context, rawBody []byte, signatureHeader string) (string, error) {
	if ws.secret == "" {
		return "", models.ErrSecretNotConfigured
	}
	if signatureHeader == "" {
		return "", models.ErrMissingSignature
	}
	if !ws.verifier.Verify(rawBody, signatureHeader) {
		return "", models.ErrInvalidSignature
	}

	event := Event{}
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return "", models.ErrMalformedPayload
	}
	if event.Event == "" {
		return "", models.ErrMalformedPayload
	}

	handler, ok := ws.handlers[event.Event]
	if !ok {
		logger.Log.Info("ignoring unrecognized webhook event", zap.String("event", event.Event))
		return event.Event, nil
	}

	if err := handler(ctx, &event); err != nil {
		logger.Log.Error("webhook handler error",
			zap.String("event", event.Event),
			zap.String("token", event.Data.Token),
			zap.Error(err))
	}

	return event.Event, nil
}

// handleCompleted settles the order and issues a license key from stock.
func (ws *WebhookService) handleCompleted(ctx context.Context, event *Event) error {
	paidAt := time.Now()
	if event.Data.PaidAt != nil {
		paidAt = *event.Data.PaidAt
	}

	err := applySettlement(ctx, ws.orders, event.Data.Token, models.Settlement{
		Status:    models.OrderStatusCompleted,
		PaymentID: event.Data.PaymentID,
		PaidAt:    paidAt,
	})
	switch {
	case errors.Is(err, models.ErrDataNotFound):
		logger.Log.Warn("completed event for unknown token", zap.String("token", event.Data.Token))
		return nil
	case err != nil:
		return err
	}

	order, err := ws.orders.GetOrderByToken(ctx, event.Data.Token)
	if err != nil {
		return err
	}
	if order.ProductID == nil {
		return nil
	}

	key, err := ws.licenses.ClaimKey(ctx, *order.ProductID, order.OrderID, order.LicenseDuration)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			logger.Log.Error("no license stock for settled order",
				zap.String("order", order.OrderID),
				zap.String("product", *order.ProductID))
		}
		return err
	}

	logger.Log.Info("license key issued",
		zap.String("order", order.OrderID),
		zap.Uint64("key_id", key.ID))
	return nil
}

// handleRefunded revokes issued access and marks the order cancelled.
func (ws *WebhookService) handleRefunded(ctx context.Context, event *Event) error {
	err := ws.orders.RefundOrder(ctx, event.Data.Token)
	switch {
	case errors.Is(err, models.ErrDataNotFound):
		logger.Log.Warn("refunded event for unknown token", zap.String("token", event.Data.Token))
		return nil
	case errors.Is(err, models.ErrOrderSettled):
		// refund replay
		return nil
	case err != nil:
		return err
	}

	order, err := ws.orders.GetOrderByToken(ctx, event.Data.Token)
	if err != nil {
		return err
	}

	if err := ws.licenses.RevokeKeyByOrder(ctx, order.OrderID); err != nil && !errors.Is(err, models.ErrDataNotFound) {
		return err
	}

	logger.Log.Info("order refunded", zap.String("order", order.OrderID))
	return nil
}

// handleExpired expires the pending order and releases reserved stock.
func (ws *WebhookService) handleExpired(ctx context.Context, event *Event) error {
	err := applySettlement(ctx, ws.orders, event.Data.Token, models.Settlement{
		Status: models.OrderStatusExpired,
	})
	switch {
	case errors.Is(err, models.ErrDataNotFound):
		logger.Log.Warn("expired event for unknown token", zap.String("token", event.Data.Token))
		return nil
	case errors.Is(err, models.ErrOrderSettled):
		return nil
	case err != nil:
		return err
	}

	order, err := ws.orders.GetOrderByToken(ctx, event.Data.Token)
	if err != nil {
		return err
	}

	if err := ws.licenses.ReleaseKeyByOrder(ctx, order.OrderID); err != nil && !errors.Is(err, models.ErrDataNotFound) {
		return err
	}

	return nil
}

// handleDisputed flags the order for manual review.
func (ws *WebhookService) handleDisputed(ctx context.Context, event *Event) error {
	err := ws.orders.MarkForReview(ctx, event.Data.Token)
	if errors.Is(err, models.ErrDataNotFound) {
		logger.Log.Warn("disputed event for unknown token", zap.String("token", event.Data.Token))
		return nil
	}
	return err
}

// handleCreated records a pending order opened on the provider side.
func (ws *WebhookService) handleCreated(ctx context.Context, event *Event) error {
	if _, err := ws.orders.GetOrderByToken(ctx, event.Data.Token); err == nil {
		// already recorded by the issuer
		return nil
	} else if !errors.Is(err, models.ErrDataNotFound) {
		return err
	}

	order := models.PaymentOrder{
		PublicToken:     event.Data.Token,
		OrderID:         event.Data.OrderID,
		AmountCents:     event.Data.AmountCents,
		Currency:        event.Data.Currency,
		Status:          models.OrderStatusPending,
		CustomerEmail:   event.Data.CustomerEmail,
		ProductID:       event.Data.ProductID,
		LicenseDuration: event.Data.Duration,
	}

	if _, err := ws.orders.CreateOrder(ctx, &order); err != nil {
		if errors.Is(err, models.ErrConflictData) {
			return nil
		}
		return err
	}

	return nil
}
