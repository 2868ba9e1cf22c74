package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ecomkit/orderflow/internal/domain"
	"github.com/ecomkit/orderflow/internal/ports"
)

// FulfillmentService drives delivery group transitions. Each operation
// reloads the aggregate inside a transaction so the guard predicate is
// evaluated against current state; two concurrent callers get one mutation
// and one rejection, never two.
type FulfillmentService struct {
	repo      ports.OrderRepository
	lines     ports.LineProcessor
	shipments ports.ShipmentNotifier
	stock     ports.StockReleaser
	logger    *slog.Logger
}

func NewFulfillmentService(
	repo ports.OrderRepository,
	lines ports.LineProcessor,
	shipments ports.ShipmentNotifier,
	stock ports.StockReleaser,
	logger *slog.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		repo:      repo,
		lines:     lines,
		shipments: shipments,
		stock:     stock,
		logger:    logger,
	}
}

// ProcessGroup re-runs stock and price reconciliation on a NEW group. The
// group stays NEW; only the line-processing side effect runs.
func (s *FulfillmentService) ProcessGroup(ctx context.Context, orderToken string, groupID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(tx ports.OrderRepository) error {
		order, err := tx.GetByToken(ctx, orderToken)
		if err != nil {
			return err
		}
		group, err := order.GroupByID(groupID)
		if err != nil {
			return err
		}
		if err := group.Process(); err != nil {
			return err
		}
		if err := s.lines.ProcessLines(ctx, group); err != nil {
			return err
		}
		return tx.Save(ctx, order)
	})
}

// ShipGroup ships a NEW, shipping-required group and records the tracking
// number. Shipping the last NEW group closes the order.
func (s *FulfillmentService) ShipGroup(ctx context.Context, orderToken string, groupID uuid.UUID, trackingNumber string) error {
	var shippedOrder *domain.Order
	var shippedGroup *domain.DeliveryGroup

	err := s.repo.WithTx(ctx, func(tx ports.OrderRepository) error {
		order, err := tx.GetByToken(ctx, orderToken)
		if err != nil {
			return err
		}
		group, err := order.GroupByID(groupID)
		if err != nil {
			return err
		}
		if err := group.Ship(trackingNumber); err != nil {
			return err
		}
		order.TouchStatus()
		order.AddHistoryEntry(fmt.Sprintf("shipment %s shipped", group.ID), nil)
		if err := tx.Save(ctx, order); err != nil {
			return err
		}
		shippedOrder = order
		shippedGroup = group
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.shipments.NotifyShipped(ctx, shippedOrder, shippedGroup); err != nil {
		// The shipment itself is committed; notification failure is not
		// allowed to roll back a physical event.
		s.logger.Error("shipment notification failed",
			"order", orderToken, "group", groupID, "error", err)
	}

	s.logger.Info("group shipped",
		"order", orderToken,
		"group", groupID,
		"order_status", shippedOrder.Status(),
	)
	return nil
}

// CancelGroup cancels a NEW or SHIPPED group and releases its stock.
// Refunding captured funds for a shipped-then-cancelled group is left to the
// caller.
func (s *FulfillmentService) CancelGroup(ctx context.Context, orderToken string, groupID uuid.UUID) error {
	var cancelled *domain.DeliveryGroup

	err := s.repo.WithTx(ctx, func(tx ports.OrderRepository) error {
		order, err := tx.GetByToken(ctx, orderToken)
		if err != nil {
			return err
		}
		group, err := order.GroupByID(groupID)
		if err != nil {
			return err
		}
		if err := group.Cancel(); err != nil {
			return err
		}
		order.TouchStatus()
		order.AddHistoryEntry(fmt.Sprintf("shipment %s cancelled", group.ID), nil)
		if err := tx.Save(ctx, order); err != nil {
			return err
		}
		cancelled = group
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.stock.ReleaseStock(ctx, cancelled); err != nil {
		s.logger.Error("stock release failed",
			"order", orderToken, "group", groupID, "error", err)
	}
	return nil
}

// CancelOrder cancels every remaining cancellable group of an OPEN order.
func (s *FulfillmentService) CancelOrder(ctx context.Context, orderToken string) error {
	var released []*domain.DeliveryGroup

	err := s.repo.WithTx(ctx, func(tx ports.OrderRepository) error {
		order, err := tx.GetByToken(ctx, orderToken)
		if err != nil {
			return err
		}
		for _, group := range order.Groups {
			if group.CanCancel() {
				released = append(released, group)
			}
		}
		if err := order.Cancel(); err != nil {
			released = nil
			return err
		}
		order.AddHistoryEntry("order cancelled", nil)
		return tx.Save(ctx, order)
	})
	if err != nil {
		return err
	}

	for _, group := range released {
		if err := s.stock.ReleaseStock(ctx, group); err != nil {
			s.logger.Error("stock release failed",
				"order", orderToken, "group", group.ID, "error", err)
		}
	}
	return nil
}
