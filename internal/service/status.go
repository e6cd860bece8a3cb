package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vkornev/keymart/internal/logger"
	"github.com/vkornev/keymart/internal/models"
	"github.com/vkornev/keymart/internal/provider"
	"go.uber.org/zap"
)

// how long an order may stay pending before the reconciler re-checks it
const stalePendingAge = 5 * time.Minute

// StatusResult is the current settlement view for a public token.
type StatusResult struct {
	Paid        bool
	Status      string
	AmountCents int64
	Currency    string
	PaymentID   string
	PaidAt      *time.Time
}

// StatusService answers status polls and reconciles provider state into the
// order store. It is the pull path converging with the webhook push path on
// the same conditional settlement.
type StatusService struct {
	store  OrderStore
	client provider.Client
}

// NewStatusService creates new StatusService instance
func NewStatusService(store OrderStore, client provider.Client) *StatusService {
	return &StatusService{
		store:  store,
		client: client,
	}
}

// CheckStatus fetches the provider's view for the token and, when the
// provider reports the invoice paid, settles the stored order. Settlement is
// idempotent; a replay of the same payment changes nothing.
func (ss *StatusService) CheckStatus(ctx context.Context, token string) (*StatusResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, models.ErrEmptyToken
	}

	st, err := ss.client.GetInvoiceStatus(ctx, token)
	if err != nil {
		return nil, err
	}

	result := StatusResult{
		Paid:        st.Paid,
		Status:      st.Status,
		AmountCents: st.AmountCents,
		Currency:    st.Currency,
		PaymentID:   st.PaymentID,
		PaidAt:      st.PaidAt,
	}

	if st.Paid {
		paidAt := time.Now()
		if st.PaidAt != nil {
			paidAt = *st.PaidAt
		}

		err := applySettlement(ctx, ss.store, token, models.Settlement{
			Status:    models.OrderStatusCompleted,
			PaymentID: st.PaymentID,
			PaidAt:    paidAt,
		})
		switch {
		case err == nil:
			result.Status = models.OrderStatusCompleted
		case errors.Is(err, models.ErrDataNotFound):
			// provider is the source of truth, a missing local record
			// must not block the answer
			logger.Log.Warn("no stored order for paid token", zap.String("token", token))
		case errors.Is(err, models.ErrOrderSettled):
			logger.Log.Warn("paid token already settled differently", zap.String("token", token))
		default:
			return nil, err
		}
	}

	return &result, nil
}

// ReconcilePending re-checks tokens arriving on the channel against the provider
func (ss *StatusService) ReconcilePending(ctx context.Context, tokenCh <-chan string) {
	for {
		var errTooManyReq models.TooManyRequestsError
		select {
		case <-ctx.Done():
			logger.Log.Debug("reconciler is done")
			return
		case token, ok := <-tokenCh:
			if !ok {
				return
			}

			logger.Log.Debug("reconciling pending order", zap.String("token", token))
			if _, err := ss.CheckStatus(ctx, token); err != nil {
				if errors.As(err, &errTooManyReq) {
					logger.Log.Debug("too many requests", zap.Duration("retry-after", errTooManyReq.RetryAfter))
					select {
					case <-ctx.Done():
						return
					case <-time.After(errTooManyReq.RetryAfter):
					}
					continue
				}
				logger.Log.Error("status reconciliation error", zap.String("token", token), zap.Error(err))
			}
		}
	}
}

// GetPendingForReconcile writes stale pending tokens to the channel
func (ss *StatusService) GetPendingForReconcile(ctx context.Context, tokenCh chan<- string) error {
	orders, err := ss.store.GetStalePending(ctx, time.Now().Add(-stalePendingAge))
	if err != nil {
		return err
	}

	for _, order := range orders {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tokenCh <- order.PublicToken:
		}
	}

	return nil
}
