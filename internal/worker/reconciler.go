// Package worker runs the background reconciler that re-queries the gateway
// for payments stuck in WAITING, covering lost or never-delivered callbacks.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ecomkit/orderflow/internal/ports"
	"github.com/ecomkit/orderflow/internal/service"
)

// CallbackHandler applies a gateway-side payment status locally. The
// reconciler reuses the same idempotent path a webhook delivery takes.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, payload service.CallbackPayload) error
}

type Reconciler struct {
	repo      ports.OrderRepository
	callbacks CallbackHandler
	olderThan time.Duration
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewReconciler(
	repo ports.OrderRepository,
	callbacks CallbackHandler,
	olderThan time.Duration,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		repo:      repo,
		callbacks: callbacks,
		olderThan: olderThan,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting background reconciler",
		"interval", r.interval, "batch_size", r.batchSize)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping background reconciler")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) {
	stale, err := r.repo.FindStaleWaitingPayments(ctx, r.olderThan, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch stale waiting payments", "error", err)
		return
	}

	if len(stale) == 0 {
		return
	}

	r.logger.Info("reconciling stale waiting payments", "count", len(stale))

	for _, remoteID := range stale {
		err := r.callbacks.HandleCallback(ctx, service.CallbackPayload{PaymentID: remoteID})
		if err != nil {
			r.logger.Error("reconciliation failed for payment",
				"remote_id", remoteID, "error", err)
			continue
		}
		r.logger.Info("reconciled payment", "remote_id", remoteID)
	}
}
