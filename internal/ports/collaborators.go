package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/ecomkit/orderflow/internal/domain"
)

// Pricer supplies net/gross unit prices at checkout time. Tax amounts are
// given inputs; the core never computes them.
type Pricer interface {
	UnitPrice(ctx context.Context, productID uuid.UUID) (domain.TaxedMoney, error)
}

// LineProcessor runs stock allocation and price reconciliation when a NEW
// group is (re)processed.
type LineProcessor interface {
	ProcessLines(ctx context.Context, group *domain.DeliveryGroup) error
}

// ShipmentNotifier is told when a group ships.
type ShipmentNotifier interface {
	NotifyShipped(ctx context.Context, order *domain.Order, group *domain.DeliveryGroup) error
}

// StockReleaser returns allocated stock when a group is cancelled.
type StockReleaser interface {
	ReleaseStock(ctx context.Context, group *domain.DeliveryGroup) error
}
