package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ecomkit/orderflow/internal/config"
	"github.com/ecomkit/orderflow/internal/domain"
	"github.com/ecomkit/orderflow/internal/ports"
)

// RetryGatewayClient wraps a GatewayPort with bounded exponential backoff.
// Retrying is safe because remote payment ids are stable across retries with
// the same idempotency key.
type RetryGatewayClient struct {
	inner      ports.GatewayPort
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryGatewayClient(inner ports.GatewayPort, cfg config.RetryConfig) ports.GatewayPort {
	return &RetryGatewayClient{
		inner:      inner,
		baseDelay:  time.Duration(cfg.BaseDelay) * time.Second,
		maxRetries: int(cfg.MaxRetries),
	}
}

func (r *RetryGatewayClient) CreatePayment(ctx context.Context, req domain.RemotePaymentRequest, idempotencyKey string) (*domain.RemotePayment, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*domain.RemotePayment, error) {
			return r.inner.CreatePayment(ctx, req, idempotencyKey)
		},
	)
}

func (r *RetryGatewayClient) GetPayment(ctx context.Context, remoteID string) (*domain.RemotePayment, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*domain.RemotePayment, error) {
			return r.inner.GetPayment(ctx, remoteID)
		},
	)
}

func (r *RetryGatewayClient) Refund(ctx context.Context, remoteID string, amountCents int64, idempotencyKey string) (int64, error) {
	cents, err := retry(
		r,
		ctx,
		func(ctx context.Context) (*int64, error) {
			refunded, err := r.inner.Refund(ctx, remoteID, amountCents, idempotencyKey)
			if err != nil {
				return nil, err
			}
			return &refunded, nil
		},
	)
	if err != nil {
		return 0, err
	}
	return *cents, nil
}

// Generic retry helper
func retry[T any](r *RetryGatewayClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, domain.NewGatewayUnavailableError(ctx.Err())
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			time.Sleep(r.backoff(attempt))
		}
	}

	return nil, domain.NewGatewayUnavailableError(
		fmt.Errorf("maximum retries exceeded: %w", lastErr))
}

func isRetryable(err error) bool {
	var classified domain.Retryable
	if errors.As(err, &classified) {
		return classified.IsRetryable()
	}
	if domain.IsErrorCode(err, domain.ErrCodeUnmappedGatewayStatus) {
		return false
	}
	// Transport failures and timeouts.
	return true
}

// Backoff calculation with exponential delay and jitter
func (r *RetryGatewayClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond

	return base + jitter
}
