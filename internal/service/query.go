package service

import (
	"context"

	"github.com/ecomkit/orderflow/internal/domain"
	"github.com/ecomkit/orderflow/internal/ports"
)

// QueryService exposes the read-only derived views. Everything here is
// recomputed from child state on every read; nothing is cached.
type QueryService struct {
	repo ports.OrderRepository
}

func NewQueryService(repo ports.OrderRepository) *QueryService {
	return &QueryService{repo: repo}
}

func (s *QueryService) OrderStatus(ctx context.Context, orderToken string) (domain.OrderStatus, error) {
	order, err := s.repo.GetByToken(ctx, orderToken)
	if err != nil {
		return "", err
	}
	return order.Status(), nil
}

func (s *QueryService) IsFullyPaid(ctx context.Context, orderToken string) (bool, error) {
	order, err := s.repo.GetByToken(ctx, orderToken)
	if err != nil {
		return false, err
	}
	return order.IsFullyPaid()
}

func (s *QueryService) Subtotal(ctx context.Context, orderToken string) (domain.TaxedMoney, error) {
	order, err := s.repo.GetByToken(ctx, orderToken)
	if err != nil {
		return domain.TaxedMoney{}, err
	}
	return order.Subtotal()
}

// LastPaymentStatus reports the most recent attempt's status; ok is false
// when the order has no payments yet.
func (s *QueryService) LastPaymentStatus(ctx context.Context, orderToken string) (domain.PaymentStatus, bool, error) {
	order, err := s.repo.GetByToken(ctx, orderToken)
	if err != nil {
		return "", false, err
	}
	status, ok := order.LastPaymentStatus()
	return status, ok, nil
}
