package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomkit/orderflow/internal/domain"
)

var testAddress = domain.Address{
	FirstName:     "Ada",
	LastName:      "Lovelace",
	StreetAddress: "1 Analytical Way",
	City:          "London",
	PostalCode:    "E1 6AN",
	Country:       "GB",
}

func createTestOrder(t *testing.T, groups ...*domain.DeliveryGroup) *domain.Order {
	t.Helper()
	if len(groups) == 0 {
		groups = []*domain.DeliveryGroup{
			createTestGroup(t, createTestLine(t, "widget", 2, "10.00", true)),
		}
	}
	shipping := testAddress
	order, err := domain.NewOrder(nil, "ada@example.com", testAddress, &shipping, "USD", groups)
	require.NoError(t, err)
	return order
}

func createPaidOrder(t *testing.T) *domain.Order {
	t.Helper()
	order := createTestOrder(t)
	total := usdTaxed(t, "20.00", "20.00")
	order.Total = &total
	return order
}

func TestNewOrder(t *testing.T) {
	t.Run("guest checkout requires an email", func(t *testing.T) {
		_, err := domain.NewOrder(nil, "", testAddress, nil, "USD", nil)

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))
	})

	t.Run("billing address is required", func(t *testing.T) {
		_, err := domain.NewOrder(nil, "ada@example.com", domain.Address{}, nil, "USD", nil)

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))
	})

	t.Run("requires a shipping address when any line needs shipping", func(t *testing.T) {
		groups := []*domain.DeliveryGroup{
			createTestGroup(t, createTestLine(t, "widget", 1, "10.00", true)),
		}

		_, err := domain.NewOrder(nil, "ada@example.com", testAddress, nil, "USD", groups)

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))
	})

	t.Run("digital-only order needs no shipping address", func(t *testing.T) {
		groups := []*domain.DeliveryGroup{
			createTestGroup(t, createTestLine(t, "ebook", 1, "10.00", false)),
		}

		order, err := domain.NewOrder(nil, "ada@example.com", testAddress, nil, "USD", groups)

		require.NoError(t, err)
		assert.False(t, order.IsShippingRequired())
	})

	t.Run("assigns an opaque token distinct from the id", func(t *testing.T) {
		order := createTestOrder(t)

		assert.NotEmpty(t, order.Token)
		assert.NotEqual(t, order.ID.String(), order.Token)
	})
}

func TestOrder_StatusDerivation(t *testing.T) {
	t.Run("open while any group is NEW", func(t *testing.T) {
		order := createTestOrder(t,
			createTestGroup(t, createTestLine(t, "widget", 1, "10.00", true)),
			createTestGroup(t, createTestLine(t, "gadget", 1, "5.00", true)),
		)
		require.NoError(t, order.Groups[0].Ship("TRACK-1"))

		assert.Equal(t, domain.OrderOpen, order.Status())
	})

	t.Run("closed once no group is NEW", func(t *testing.T) {
		order := createTestOrder(t,
			createTestGroup(t, createTestLine(t, "widget", 1, "10.00", true)),
			createTestGroup(t, createTestLine(t, "gadget", 1, "5.00", true)),
		)
		require.NoError(t, order.Groups[0].Ship("TRACK-1"))
		require.NoError(t, order.Groups[1].Cancel())

		assert.Equal(t, domain.OrderClosed, order.Status())
	})
}

func TestOrder_Cancel(t *testing.T) {
	t.Run("cancels every cancellable group", func(t *testing.T) {
		order := createTestOrder(t,
			createTestGroup(t, createTestLine(t, "widget", 1, "10.00", true)),
			createTestGroup(t, createTestLine(t, "gadget", 1, "5.00", true)),
		)

		require.NoError(t, order.Cancel())

		assert.Equal(t, domain.GroupCancelled, order.Groups[0].Status)
		assert.Equal(t, domain.GroupCancelled, order.Groups[1].Status)
		assert.Equal(t, domain.OrderClosed, order.Status())
	})

	t.Run("rejects cancelling a closed order", func(t *testing.T) {
		order := createTestOrder(t)
		require.NoError(t, order.Groups[0].Ship("TRACK-1"))

		err := order.Cancel()

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	})
}

func TestOrder_Subtotal(t *testing.T) {
	t.Run("folds line totals across groups", func(t *testing.T) {
		order := createTestOrder(t,
			createTestGroup(t, createTestLine(t, "widget", 2, "10.00", true)),
			createTestGroup(t, createTestLine(t, "gadget", 1, "5.00", true)),
		)

		subtotal, err := order.Subtotal()

		require.NoError(t, err)
		assert.True(t, subtotal.Gross.Equal(usd(t, "25.00")))
	})
}

func TestOrder_IsFullyPaid(t *testing.T) {
	t.Run("errors without a computed total", func(t *testing.T) {
		order := createTestOrder(t)

		_, err := order.IsFullyPaid()

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))
	})

	t.Run("only CONFIRMED payments count", func(t *testing.T) {
		order := createPaidOrder(t)
		payment, err := domain.NewPayment(order)
		require.NoError(t, err)
		require.NoError(t, order.AttachPayment(payment))

		paid, err := order.IsFullyPaid()

		require.NoError(t, err)
		assert.False(t, paid)
	})

	t.Run("confirmed gross covering the total is fully paid", func(t *testing.T) {
		order := createPaidOrder(t)
		payment, err := domain.NewPayment(order)
		require.NoError(t, err)
		_, err = payment.Confirm(usd(t, "20.00"))
		require.NoError(t, err)
		require.NoError(t, order.AttachPayment(payment))

		paid, err := order.IsFullyPaid()

		require.NoError(t, err)
		assert.True(t, paid)
	})
}

func TestOrder_Payments(t *testing.T) {
	t.Run("rejects a payment in another currency", func(t *testing.T) {
		order := createPaidOrder(t)
		payment, err := domain.NewPayment(order)
		require.NoError(t, err)
		payment.Currency = "EUR"

		err = order.AttachPayment(payment)

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeCurrencyMismatch))
	})

	t.Run("last payment is the most recent attempt", func(t *testing.T) {
		order := createPaidOrder(t)
		first, err := domain.NewPayment(order)
		require.NoError(t, err)
		second, err := domain.NewPayment(order)
		require.NoError(t, err)
		require.NoError(t, order.AttachPayment(first))
		require.NoError(t, order.AttachPayment(second))

		assert.Equal(t, second.ID, order.LastPayment().ID)
	})

	t.Run("no attempts yet", func(t *testing.T) {
		order := createTestOrder(t)

		_, ok := order.LastPaymentStatus()

		assert.False(t, ok)
		assert.Nil(t, order.LastPayment())
	})

	t.Run("finds a payment by remote id", func(t *testing.T) {
		order := createPaidOrder(t)
		payment, err := domain.NewPayment(order)
		require.NoError(t, err)
		payment.RemoteID = "tr_123"
		require.NoError(t, order.AttachPayment(payment))

		found, err := order.PaymentByRemoteID("tr_123")
		require.NoError(t, err)
		assert.Equal(t, payment.ID, found.ID)

		_, err = order.PaymentByRemoteID("tr_missing")
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodePaymentNotFound))
	})
}

func TestOrder_UserCurrentEmail(t *testing.T) {
	t.Run("prefers the live account email", func(t *testing.T) {
		userID := uuid.New()
		groups := []*domain.DeliveryGroup{
			createTestGroup(t, createTestLine(t, "ebook", 1, "10.00", false)),
		}
		order, err := domain.NewOrder(&userID, "old@example.com", testAddress, nil, "USD", groups)
		require.NoError(t, err)

		assert.Equal(t, "new@example.com", order.UserCurrentEmail("new@example.com"))
	})

	t.Run("falls back to the checkout snapshot for guests", func(t *testing.T) {
		order := createTestOrder(t)

		assert.Equal(t, "ada@example.com", order.UserCurrentEmail(""))
	})
}
