package ports

import (
	"context"

	"github.com/ecomkit/orderflow/internal/domain"
)

// GatewayPort defines the behavior of the external payment gateway. Remote
// payment ids are gateway-assigned and stable across retries of CreatePayment
// with the same idempotency key, which is what makes caller retries safe.
// Implementations must classify every remote status or fail with
// UNMAPPED_GATEWAY_STATUS, and surface timeouts as GATEWAY_UNAVAILABLE.
type GatewayPort interface {
	CreatePayment(ctx context.Context, req domain.RemotePaymentRequest, idempotencyKey string) (*domain.RemotePayment, error)
	GetPayment(ctx context.Context, remoteID string) (*domain.RemotePayment, error)
	Refund(ctx context.Context, remoteID string, amountCents int64, idempotencyKey string) (int64, error)
}
