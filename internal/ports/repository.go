// Package ports defines the collaborator contracts the order core depends
// on: persistence, the payment gateway, and the checkout-time collaborators.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ecomkit/orderflow/internal/domain"
)

// OrderRepository persists the order aggregate. Save and Create are atomic
// over the whole aggregate (order, groups, lines, payments, history); a
// partial save could desynchronize derived status from stored child state.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByToken(ctx context.Context, token string) (*domain.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByRemotePaymentID(ctx context.Context, remoteID string) (*domain.Order, error)
	Save(ctx context.Context, order *domain.Order) error

	// UpdatePayment persists a payment mutation guarded by the status the
	// caller observed before mutating. A lost race surfaces as STALE_STATE,
	// never a double-apply.
	UpdatePayment(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error

	// FindStaleWaitingPayments returns remote ids of WAITING payments not
	// touched since the cutoff, for gateway reconciliation.
	FindStaleWaitingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]string, error)

	// WithTx executes fn within a single database transaction.
	WithTx(ctx context.Context, fn func(OrderRepository) error) error
}
