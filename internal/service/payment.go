package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ecomkit/orderflow/internal/domain"
	"github.com/ecomkit/orderflow/internal/ports"
)

// CallbackPayload is the webhook-style push from the gateway. Only the
// remote payment id is trusted; the authoritative status is re-queried.
type CallbackPayload struct {
	PaymentID string
}

// PaymentURLs are the externally visible URLs handed to the gateway. The %s
// placeholder is filled with the order token. URL generation proper lives
// with the caller.
type PaymentURLs struct {
	SuccessURL string
	WebhookURL string
}

// PaymentService drives the payment state machine: outbound creation against
// the gateway, inbound callback mapping, and refunds. Every status mutation
// is guarded by the state observed before the mutation, so a webhook and a
// retry racing on the same payment can never double-apply.
type PaymentService struct {
	repo    ports.OrderRepository
	gateway ports.GatewayPort
	urls    PaymentURLs
	logger  *slog.Logger
}

func NewPaymentService(repo ports.OrderRepository, gateway ports.GatewayPort, urls PaymentURLs, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:    repo,
		gateway: gateway,
		urls:    urls,
		logger:  logger,
	}
}

// Start opens a settlement attempt for the order's total, rounded half up to
// cents at submission. An open remote payment leaves the local status
// WAITING and returns a RedirectRequired signal carrying the gateway URL;
// any other remote state marks the attempt ERROR and fails with
// PAYMENT_ERROR. A GATEWAY_UNAVAILABLE failure persists nothing, so the
// caller can retry with the same idempotency key.
func (s *PaymentService) Start(ctx context.Context, orderToken string, idempotencyKey string) (*domain.Payment, error) {
	order, err := s.repo.GetByToken(ctx, orderToken)
	if err != nil {
		return nil, err
	}

	payment, err := domain.NewPayment(order)
	if err != nil {
		return nil, err
	}

	req := domain.RemotePaymentRequest{
		AmountCents: order.Total.Gross.Cents(),
		Currency:    order.Currency,
		Description: fmt.Sprintf("Order #%s", order.Token),
		RedirectURL: fmt.Sprintf(s.urls.SuccessURL, order.Token),
		WebhookURL:  fmt.Sprintf(s.urls.WebhookURL, order.Token),
		Items:       payment.PurchasedItems(order),
	}

	remote, err := s.gateway.CreatePayment(ctx, req, idempotencyKey)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeGatewayUnavailable) {
			return nil, err
		}
		if _, statusErr := payment.ChangeStatus(domain.PaymentError); statusErr != nil {
			return nil, statusErr
		}
		if attachErr := s.persistNewPayment(ctx, order, payment); attachErr != nil {
			return nil, attachErr
		}
		return payment, domain.NewPaymentError("gateway rejected payment creation", err)
	}

	payment.RemoteID = remote.ID

	if remote.Status != domain.RemoteOpen {
		if _, statusErr := payment.ChangeStatus(domain.PaymentError); statusErr != nil {
			return nil, statusErr
		}
		if attachErr := s.persistNewPayment(ctx, order, payment); attachErr != nil {
			return nil, attachErr
		}
		s.logger.Warn("remote payment not open after creation",
			"order", order.Token, "remote_status", remote.Status)
		return payment, domain.NewPaymentError(
			fmt.Sprintf("remote payment created in state %s", remote.Status), nil)
	}

	if err := s.persistNewPayment(ctx, order, payment); err != nil {
		return nil, err
	}

	s.logger.Info("payment started",
		"order", order.Token,
		"payment", payment.ID,
		"remote_id", remote.ID,
	)
	return payment, &domain.RedirectRequired{URL: remote.PaymentURL}
}

func (s *PaymentService) persistNewPayment(ctx context.Context, order *domain.Order, payment *domain.Payment) error {
	if err := order.AttachPayment(payment); err != nil {
		return err
	}
	return s.repo.Save(ctx, order)
}

// HandleCallback processes a gateway push. The remote status is re-queried,
// classified, and applied idempotently under a row lock: re-delivering the
// same "paid" callback transitions once and captures once.
func (s *PaymentService) HandleCallback(ctx context.Context, payload CallbackPayload) error {
	if payload.PaymentID == "" {
		return domain.NewValidationError("callback payload missing payment id")
	}

	remote, err := s.gateway.GetPayment(ctx, payload.PaymentID)
	if err != nil {
		return err
	}

	return s.repo.WithTx(ctx, func(tx ports.OrderRepository) error {
		order, err := tx.GetByRemotePaymentID(ctx, remote.ID)
		if err != nil {
			return err
		}
		payment, err := order.PaymentByRemoteID(remote.ID)
		if err != nil {
			return err
		}

		expected := payment.Status
		changed, err := payment.ApplyRemoteStatus(remote.Status, remote.Amount())
		if err != nil {
			return err
		}
		if !changed {
			// Pending/open, or a replayed terminal status: acknowledge.
			return nil
		}

		if err := tx.UpdatePayment(ctx, payment, expected); err != nil {
			return err
		}
		s.logger.Info("payment status updated from gateway",
			"order", order.Token,
			"payment", payment.ID,
			"status", payment.Status,
		)
		return nil
	})
}

// Refund refunds a confirmed payment, defaulting to the full captured
// amount. The local status moves to REFUNDED only once the gateway confirms,
// and the gateway-reported refunded amount is returned.
func (s *PaymentService) Refund(ctx context.Context, orderToken string, amount *domain.Money, idempotencyKey string) (domain.Money, error) {
	order, err := s.repo.GetByToken(ctx, orderToken)
	if err != nil {
		return domain.Money{}, err
	}
	payment := order.LastPayment()
	if payment == nil {
		return domain.Money{}, domain.NewPaymentNotFoundError(orderToken)
	}
	if payment.Status != domain.PaymentConfirmed {
		return domain.Money{}, domain.NewInvalidTransitionError(
			string(payment.Status), string(domain.PaymentRefunded))
	}

	toRefund := payment.CapturedPrice().Gross
	if amount != nil {
		if amount.Currency != payment.Currency {
			return domain.Money{}, domain.NewCurrencyMismatchError(payment.Currency, amount.Currency)
		}
		if amount.Amount.GreaterThan(payment.CapturedAmount) {
			return domain.Money{}, domain.NewValidationError("refund exceeds captured amount")
		}
		toRefund = *amount
	}

	refundedCents, err := s.gateway.Refund(ctx, payment.RemoteID, toRefund.Cents(), idempotencyKey)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeGatewayUnavailable) {
			return domain.Money{}, err
		}
		return domain.Money{}, domain.NewPaymentError("gateway rejected refund", err)
	}

	remote := domain.RemotePayment{AmountCents: refundedCents, Currency: payment.Currency}
	refunded := remote.Amount()

	err = s.repo.WithTx(ctx, func(tx ports.OrderRepository) error {
		current, err := tx.GetByToken(ctx, orderToken)
		if err != nil {
			return err
		}
		p, err := current.PaymentByRemoteID(payment.RemoteID)
		if err != nil {
			return err
		}
		expected := p.Status
		changed, err := p.MarkRefunded(refunded)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return tx.UpdatePayment(ctx, p, expected)
	})
	if err != nil {
		return domain.Money{}, err
	}

	s.logger.Info("payment refunded",
		"order", orderToken,
		"payment", payment.ID,
		"amount", refunded.String(),
	)
	return refunded, nil
}
