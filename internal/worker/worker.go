package worker

import (
	"context"
	"time"

	"github.com/vkornev/keymart/internal/logger"
)

type StatusService interface {
	ReconcilePending(ctx context.Context, tokenCh <-chan string)
	GetPendingForReconcile(ctx context.Context, tokenCh chan<- string) error
}

// Reconciler is worker re-checking stale pending orders against the provider
type Reconciler struct {
	svc StatusService
}

// NewReconciler creates new reconciler
func NewReconciler(svc StatusService) *Reconciler {
	return &Reconciler{svc: svc}
}

// Run polls the store for stale pending orders until the context is cancelled
func (r *Reconciler) Run(ctx context.Context) {
	tokens := make(chan string, 10)

	go r.svc.ReconcilePending(ctx, tokens)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Debug("reconcile worker is done")
			return
		case <-ticker.C:
			if err := r.svc.GetPendingForReconcile(ctx, tokens); err != nil {
				logger.Log.Error("error getting pending orders for reconcile")
			}
		}
	}
}
