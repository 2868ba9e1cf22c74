// Package service exposes the state-mutating operations and read-only views
// of the order core. Every operation runs to completion synchronously; the
// only caller-visible signals beyond errors are the redirect-required payment
// signal and the derived order views.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ecomkit/orderflow/internal/domain"
	"github.com/ecomkit/orderflow/internal/ports"
)

// CartLine is the checkout-time snapshot of one cart position.
type CartLine struct {
	ProductID          uuid.UUID
	ProductName        string
	ProductSKU         string
	Quantity           int
	IsShippingRequired bool
	StockLocation      string
}

// GroupSnapshot describes one shipment-to-be and the cart lines it fulfills.
type GroupSnapshot struct {
	ShippingMethodName string
	Lines              []CartLine
}

// DiscountSnapshot carries an applied voucher's flat amount and display name.
type DiscountSnapshot struct {
	Amount domain.Money
	Name   string
}

type CreateOrderCommand struct {
	UserID          *uuid.UUID
	UserEmail       string
	BillingAddress  domain.Address
	ShippingAddress *domain.Address
	Currency        string
	ShippingPrice   *domain.TaxedMoney
	Discount        *DiscountSnapshot
	Groups          []GroupSnapshot
}

type CheckoutService struct {
	repo   ports.OrderRepository
	pricer ports.Pricer
	logger *slog.Logger
}

func NewCheckoutService(repo ports.OrderRepository, pricer ports.Pricer, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		repo:   repo,
		pricer: pricer,
		logger: logger,
	}
}

// CreateOrder builds the order aggregate from a cart snapshot, prices it
// through the pricing collaborator, and persists it atomically. The stored
// total is subtotal plus shipping minus the voucher discount.
func (s *CheckoutService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if len(cmd.Groups) == 0 {
		return nil, domain.NewValidationError("checkout requires at least one delivery group")
	}

	groups := make([]*domain.DeliveryGroup, 0, len(cmd.Groups))
	for _, snapshot := range cmd.Groups {
		lines := make([]*domain.OrderLine, 0, len(snapshot.Lines))
		for _, cartLine := range snapshot.Lines {
			unitPrice, err := s.pricer.UnitPrice(ctx, cartLine.ProductID)
			if err != nil {
				return nil, err
			}
			if unitPrice.Currency() != cmd.Currency {
				return nil, domain.NewCurrencyMismatchError(cmd.Currency, unitPrice.Currency())
			}
			productID := cartLine.ProductID
			line, err := domain.NewOrderLine(
				&productID,
				cartLine.ProductName,
				cartLine.ProductSKU,
				cartLine.Quantity,
				unitPrice,
				cartLine.IsShippingRequired,
			)
			if err != nil {
				return nil, err
			}
			line.StockLocation = cartLine.StockLocation
			lines = append(lines, line)
		}
		group, err := domain.NewDeliveryGroup(snapshot.ShippingMethodName, lines)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	order, err := domain.NewOrder(
		cmd.UserID,
		cmd.UserEmail,
		cmd.BillingAddress,
		cmd.ShippingAddress,
		cmd.Currency,
		groups,
	)
	if err != nil {
		return nil, err
	}

	if cmd.ShippingPrice != nil {
		if cmd.ShippingPrice.Currency() != cmd.Currency {
			return nil, domain.NewCurrencyMismatchError(cmd.Currency, cmd.ShippingPrice.Currency())
		}
		order.ShippingPrice = *cmd.ShippingPrice
	}

	total, err := order.Subtotal()
	if err != nil {
		return nil, err
	}
	total, err = total.Add(order.ShippingPrice)
	if err != nil {
		return nil, err
	}
	if cmd.Discount != nil {
		total, err = total.SubDiscount(cmd.Discount.Amount)
		if err != nil {
			return nil, err
		}
		discount := cmd.Discount.Amount
		order.DiscountAmount = &discount
		order.DiscountName = cmd.Discount.Name
	}
	order.Total = &total

	order.AddHistoryEntry("order placed", cmd.UserID)

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		"token", order.Token,
		"groups", len(order.Groups),
		"total_gross", order.Total.Gross.String(),
	)
	return order, nil
}
