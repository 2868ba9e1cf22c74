package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ecomkit/orderflow/internal/domain"
)

func buildOrder(t *testing.T, groupGross ...string) *domain.Order {
	t.Helper()
	groups := make([]*domain.DeliveryGroup, 0, len(groupGross))
	for _, gross := range groupGross {
		line, err := domain.NewOrderLine(nil, "widget", "SKU-1", 1, usdPrice(t, gross, gross), true)
		if err != nil {
			t.Fatalf("failed to build line: %v", err)
		}
		group, err := domain.NewDeliveryGroup("standard", []*domain.OrderLine{line})
		if err != nil {
			t.Fatalf("failed to build group: %v", err)
		}
		groups = append(groups, group)
	}

	shipping := testAddress()
	order, err := domain.NewOrder(nil, "ada@example.com", testAddress(), &shipping, "USD", groups)
	if err != nil {
		t.Fatalf("failed to build order: %v", err)
	}

	subtotal, err := order.Subtotal()
	if err != nil {
		t.Fatalf("failed to compute subtotal: %v", err)
	}
	order.Total = &subtotal
	return order
}

func persistOrder(t *testing.T, repo *MockOrderRepository, order *domain.Order) {
	t.Helper()
	if err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("failed to persist order: %v", err)
	}
}

func TestFulfillmentService_ShipGroup(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	hooks := &RecordingHooks{}
	service := NewFulfillmentService(mockRepo, hooks, hooks, hooks, testLogger())

	order := buildOrder(t, "10.00")
	persistOrder(t, mockRepo, order)

	// Action
	err := service.ShipGroup(context.Background(), order.Token, order.Groups[0].ID, "TRACK-1")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if order.Groups[0].Status != domain.GroupShipped {
		t.Errorf("expected group SHIPPED, got %s", order.Groups[0].Status)
	}
	if order.Groups[0].TrackingNumber != "TRACK-1" {
		t.Errorf("expected tracking number recorded, got %q", order.Groups[0].TrackingNumber)
	}
	if hooks.Shipped != 1 {
		t.Errorf("expected 1 shipment notification, got %d", hooks.Shipped)
	}
	// Shipping the only group closes the order.
	if order.Status() != domain.OrderClosed {
		t.Errorf("expected order CLOSED, got %s", order.Status())
	}
}

func TestFulfillmentService_ShipGroup_NotificationFailureIsNotFatal(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	hooks := &RecordingHooks{FailShipment: errors.New("smtp down")}
	service := NewFulfillmentService(mockRepo, hooks, hooks, hooks, testLogger())

	order := buildOrder(t, "10.00")
	persistOrder(t, mockRepo, order)

	// Action
	err := service.ShipGroup(context.Background(), order.Token, order.Groups[0].ID, "TRACK-1")

	// Assert
	if err != nil {
		t.Fatalf("expected shipment to commit despite notification failure, got %v", err)
	}
	if order.Groups[0].Status != domain.GroupShipped {
		t.Errorf("expected group SHIPPED, got %s", order.Groups[0].Status)
	}
}

func TestFulfillmentService_ShipGroup_AlreadyShipped(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	hooks := &RecordingHooks{}
	service := NewFulfillmentService(mockRepo, hooks, hooks, hooks, testLogger())

	order := buildOrder(t, "10.00")
	persistOrder(t, mockRepo, order)
	if err := service.ShipGroup(context.Background(), order.Token, order.Groups[0].ID, "TRACK-1"); err != nil {
		t.Fatalf("first shipment failed: %v", err)
	}

	// Action
	err := service.ShipGroup(context.Background(), order.Token, order.Groups[0].ID, "TRACK-2")

	// Assert
	if !domain.IsErrorCode(err, domain.ErrCodeInvalidTransition) {
		t.Errorf("expected error code %s, got %v", domain.ErrCodeInvalidTransition, err)
	}
	if hooks.Shipped != 1 {
		t.Errorf("expected no second notification, got %d", hooks.Shipped)
	}
}

func TestFulfillmentService_ProcessGroup(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	hooks := &RecordingHooks{}
	service := NewFulfillmentService(mockRepo, hooks, hooks, hooks, testLogger())

	order := buildOrder(t, "10.00")
	persistOrder(t, mockRepo, order)

	// Action
	err := service.ProcessGroup(context.Background(), order.Token, order.Groups[0].ID)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if hooks.Processed != 1 {
		t.Errorf("expected line processing to run once, got %d", hooks.Processed)
	}
	if order.Groups[0].Status != domain.GroupNew {
		t.Errorf("expected group to stay NEW, got %s", order.Groups[0].Status)
	}
}

func TestFulfillmentService_CancelGroup(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	hooks := &RecordingHooks{}
	service := NewFulfillmentService(mockRepo, hooks, hooks, hooks, testLogger())

	order := buildOrder(t, "10.00", "5.00")
	persistOrder(t, mockRepo, order)

	// Action
	err := service.CancelGroup(context.Background(), order.Token, order.Groups[0].ID)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if order.Groups[0].Status != domain.GroupCancelled {
		t.Errorf("expected group CANCELLED, got %s", order.Groups[0].Status)
	}
	if hooks.StockReleased != 1 {
		t.Errorf("expected 1 stock release, got %d", hooks.StockReleased)
	}
	// The other group is untouched, so the order stays open.
	if order.Status() != domain.OrderOpen {
		t.Errorf("expected order OPEN, got %s", order.Status())
	}
}

func TestFulfillmentService_CancelGroup_WrongOrder(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	hooks := &RecordingHooks{}
	service := NewFulfillmentService(mockRepo, hooks, hooks, hooks, testLogger())

	order := buildOrder(t, "10.00")
	other := buildOrder(t, "5.00")
	persistOrder(t, mockRepo, order)
	persistOrder(t, mockRepo, other)

	// Action
	err := service.CancelGroup(context.Background(), order.Token, other.Groups[0].ID)

	// Assert
	if !domain.IsErrorCode(err, domain.ErrCodeValidation) {
		t.Errorf("expected error code %s, got %v", domain.ErrCodeValidation, err)
	}
}

func TestFulfillmentService_CancelOrder(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	hooks := &RecordingHooks{}
	service := NewFulfillmentService(mockRepo, hooks, hooks, hooks, testLogger())

	order := buildOrder(t, "10.00", "5.00")
	persistOrder(t, mockRepo, order)

	// Action
	err := service.CancelOrder(context.Background(), order.Token)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if order.Status() != domain.OrderClosed {
		t.Errorf("expected order CLOSED, got %s", order.Status())
	}
	if hooks.StockReleased != 2 {
		t.Errorf("expected stock released for both groups, got %d", hooks.StockReleased)
	}
}

func TestFulfillmentService_CancelOrder_AlreadyClosed(t *testing.T) {
	// Setup
	mockRepo := NewMockOrderRepository()
	hooks := &RecordingHooks{}
	service := NewFulfillmentService(mockRepo, hooks, hooks, hooks, testLogger())

	order := buildOrder(t, "10.00")
	persistOrder(t, mockRepo, order)
	if err := service.ShipGroup(context.Background(), order.Token, order.Groups[0].ID, "TRACK-1"); err != nil {
		t.Fatalf("shipment failed: %v", err)
	}

	// Action
	err := service.CancelOrder(context.Background(), order.Token)

	// Assert
	if !domain.IsErrorCode(err, domain.ErrCodeInvalidTransition) {
		t.Errorf("expected error code %s, got %v", domain.ErrCodeInvalidTransition, err)
	}
	if hooks.StockReleased != 0 {
		t.Errorf("expected no stock release on a rejected cancel, got %d", hooks.StockReleased)
	}
}
