package service

import (
	"context"
	"testing"

	"github.com/ecomkit/orderflow/internal/domain"
)

func TestQueryService_OrderStatus(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	service := NewQueryService(mockRepo)

	order := buildOrder(t, "10.00")
	persistOrder(t, mockRepo, order)

	// Action
	status, err := service.OrderStatus(context.Background(), order.Token)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if status != domain.OrderOpen {
		t.Errorf("expected status OPEN, got %s", status)
	}
}

func TestQueryService_OrderStatus_NotFound(t *testing.T) {
	// Setup
	service := NewQueryService(NewMockOrderRepository())

	// Action
	_, err := service.OrderStatus(context.Background(), "missing-token")

	// Assert
	if !domain.IsErrorCode(err, domain.ErrCodeOrderNotFound) {
		t.Errorf("expected error code %s, got %v", domain.ErrCodeOrderNotFound, err)
	}
}

func TestQueryService_Subtotal(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	service := NewQueryService(mockRepo)

	order := buildOrder(t, "10.00", "5.00")
	persistOrder(t, mockRepo, order)

	// Action
	subtotal, err := service.Subtotal(context.Background(), order.Token)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !subtotal.Gross.Equal(usdAmount(t, "15.00")) {
		t.Errorf("expected subtotal gross 15.00, got %s", subtotal.Gross)
	}
}

func TestQueryService_LastPaymentStatus(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	mockGateway := &MockGateway{}
	queries := NewQueryService(mockRepo)

	order := buildOrder(t, "20.00")
	persistOrder(t, mockRepo, order)

	// No attempts yet.
	_, ok, err := queries.LastPaymentStatus(context.Background(), order.Token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Error("expected ok=false before any payment attempt")
	}

	startedPayment(t, mockRepo, mockGateway, order)

	// Action
	status, ok, err := queries.LastPaymentStatus(context.Background(), order.Token)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !ok || status != domain.PaymentWaiting {
		t.Errorf("expected WAITING with ok=true, got %s ok=%v", status, ok)
	}
}

func TestQueryService_IsFullyPaid(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	mockGateway := &MockGateway{}
	payments := NewPaymentService(mockRepo, mockGateway, testURLs(), testLogger())
	queries := NewQueryService(mockRepo)

	order := buildOrder(t, "20.00")
	persistOrder(t, mockRepo, order)

	paid, err := queries.IsFullyPaid(context.Background(), order.Token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if paid {
		t.Error("expected not fully paid before any capture")
	}

	confirmedPayment(t, mockRepo, mockGateway, payments, order)

	// Action
	paid, err = queries.IsFullyPaid(context.Background(), order.Token)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !paid {
		t.Error("expected fully paid after confirmed capture")
	}
}
