package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecomkit/orderflow/internal/domain"
	"github.com/ecomkit/orderflow/internal/ports"
)

// MockOrderRepository
type MockOrderRepository struct {
	mu              sync.RWMutex
	orders          map[string]*domain.Order
	paymentStatuses map[uuid.UUID]domain.PaymentStatus

	CreateFn                   func(ctx context.Context, order *domain.Order) error
	GetByTokenFn               func(ctx context.Context, token string) (*domain.Order, error)
	GetByIDFn                  func(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByRemotePaymentIDFn     func(ctx context.Context, remoteID string) (*domain.Order, error)
	SaveFn                     func(ctx context.Context, order *domain.Order) error
	UpdatePaymentFn            func(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error
	FindStaleWaitingPaymentsFn func(ctx context.Context, olderThan time.Duration, limit int) ([]string, error)
	WithTxFn                   func(ctx context.Context, fn func(ports.OrderRepository) error) error
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders:          make(map[string]*domain.Order),
		paymentStatuses: make(map[uuid.UUID]domain.PaymentStatus),
	}
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.Token] = order
	m.recordStatusesLocked(order)
	return nil
}

func (m *MockOrderRepository) GetByToken(ctx context.Context, token string) (*domain.Order, error) {
	if m.GetByTokenFn != nil {
		return m.GetByTokenFn(ctx, token)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if order, ok := m.orders[token]; ok {
		return order, nil
	}
	return nil, domain.NewOrderNotFoundError(token)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, order := range m.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return nil, domain.NewOrderNotFoundError(id.String())
}

func (m *MockOrderRepository) GetByRemotePaymentID(ctx context.Context, remoteID string) (*domain.Order, error) {
	if m.GetByRemotePaymentIDFn != nil {
		return m.GetByRemotePaymentIDFn(ctx, remoteID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, order := range m.orders {
		for _, payment := range order.Payments {
			if payment.RemoteID == remoteID {
				return order, nil
			}
		}
	}
	return nil, domain.NewOrderNotFoundError(remoteID)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.Token] = order
	m.recordStatusesLocked(order)
	return nil
}

// UpdatePayment compares the expected source status against the last
// persisted status, mirroring the guarded UPDATE of the real repository.
func (m *MockOrderRepository) UpdatePayment(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error {
	if m.UpdatePaymentFn != nil {
		return m.UpdatePaymentFn(ctx, payment, expected)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	persisted, ok := m.paymentStatuses[payment.ID]
	if !ok {
		return domain.NewPaymentNotFoundError(payment.ID.String())
	}
	if persisted != expected {
		return domain.NewStaleStateError("payment")
	}
	m.paymentStatuses[payment.ID] = payment.Status
	return nil
}

func (m *MockOrderRepository) FindStaleWaitingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]string, error) {
	if m.FindStaleWaitingPaymentsFn != nil {
		return m.FindStaleWaitingPaymentsFn(ctx, olderThan, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var remoteIDs []string
	for _, order := range m.orders {
		for _, payment := range order.Payments {
			if payment.Status == domain.PaymentWaiting && payment.RemoteID != "" {
				remoteIDs = append(remoteIDs, payment.RemoteID)
			}
		}
	}
	if limit > 0 && len(remoteIDs) > limit {
		remoteIDs = remoteIDs[:limit]
	}
	return remoteIDs, nil
}

func (m *MockOrderRepository) WithTx(ctx context.Context, fn func(ports.OrderRepository) error) error {
	if m.WithTxFn != nil {
		return m.WithTxFn(ctx, fn)
	}
	return fn(m)
}

func (m *MockOrderRepository) recordStatusesLocked(order *domain.Order) {
	for _, payment := range order.Payments {
		m.paymentStatuses[payment.ID] = payment.Status
	}
}

// MockGateway
type MockGateway struct {
	mu    sync.Mutex
	calls map[string]int

	CreatePaymentFn func(ctx context.Context, req domain.RemotePaymentRequest, idempotencyKey string) (*domain.RemotePayment, error)
	GetPaymentFn    func(ctx context.Context, remoteID string) (*domain.RemotePayment, error)
	RefundFn        func(ctx context.Context, remoteID string, amountCents int64, idempotencyKey string) (int64, error)
}

func (m *MockGateway) inc(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

func (m *MockGateway) GetCalls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockGateway) CreatePayment(ctx context.Context, req domain.RemotePaymentRequest, idempotencyKey string) (*domain.RemotePayment, error) {
	m.inc("CreatePayment")
	if m.CreatePaymentFn != nil {
		return m.CreatePaymentFn(ctx, req, idempotencyKey)
	}
	return &domain.RemotePayment{
		ID:          "tr_" + uuid.NewString()[:8],
		Status:      domain.RemoteOpen,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		PaymentURL:  "https://gateway.example/pay/tr_test",
	}, nil
}

func (m *MockGateway) GetPayment(ctx context.Context, remoteID string) (*domain.RemotePayment, error) {
	m.inc("GetPayment")
	if m.GetPaymentFn != nil {
		return m.GetPaymentFn(ctx, remoteID)
	}
	return &domain.RemotePayment{
		ID:     remoteID,
		Status: domain.RemoteOpen,
	}, nil
}

func (m *MockGateway) Refund(ctx context.Context, remoteID string, amountCents int64, idempotencyKey string) (int64, error) {
	m.inc("Refund")
	if m.RefundFn != nil {
		return m.RefundFn(ctx, remoteID, amountCents, idempotencyKey)
	}
	return amountCents, nil
}

// MockPricer
type MockPricer struct {
	Prices      map[uuid.UUID]domain.TaxedMoney
	UnitPriceFn func(ctx context.Context, productID uuid.UUID) (domain.TaxedMoney, error)
}

func (m *MockPricer) UnitPrice(ctx context.Context, productID uuid.UUID) (domain.TaxedMoney, error) {
	if m.UnitPriceFn != nil {
		return m.UnitPriceFn(ctx, productID)
	}
	if price, ok := m.Prices[productID]; ok {
		return price, nil
	}
	return domain.TaxedMoney{}, domain.NewValidationError("no price for product")
}

// Recording fulfillment hooks
type RecordingHooks struct {
	mu            sync.Mutex
	Processed     int
	Shipped       int
	StockReleased int
	FailShipment  error
}

func (h *RecordingHooks) ProcessLines(ctx context.Context, group *domain.DeliveryGroup) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Processed++
	return nil
}

func (h *RecordingHooks) NotifyShipped(ctx context.Context, order *domain.Order, group *domain.DeliveryGroup) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Shipped++
	return h.FailShipment
}

func (h *RecordingHooks) ReleaseStock(ctx context.Context, group *domain.DeliveryGroup) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.StockReleased++
	return nil
}
