package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ecomkit/orderflow/internal/domain"
	"github.com/ecomkit/orderflow/internal/infrastructure/persistence/postgres"
	"github.com/ecomkit/orderflow/internal/ports"
	"github.com/ecomkit/orderflow/internal/service/testhelpers"
)

type OrderRepositoryTestSuite struct {
	suite.Suite
	testDB *testhelpers.TestDatabase
	repo   *postgres.OrderRepository
}

func TestOrderRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed repository tests in short mode")
	}
	suite.Run(t, new(OrderRepositoryTestSuite))
}

func (suite *OrderRepositoryTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.repo = postgres.NewOrderRepository(suite.testDB.DB)
}

func (suite *OrderRepositoryTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *OrderRepositoryTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *OrderRepositoryTestSuite) buildOrder() *domain.Order {
	t := suite.T()
	t.Helper()

	address := domain.Address{
		FirstName:     "Ada",
		LastName:      "Lovelace",
		StreetAddress: "1 Analytical Way",
		City:          "London",
		PostalCode:    "E1 6AN",
		Country:       "GB",
	}
	unit := domain.Money{Amount: decimal.RequireFromString("10.00"), Currency: "USD"}
	price := domain.TaxedMoney{Net: unit, Gross: unit}

	line, err := domain.NewOrderLine(nil, "widget", "SKU-1", 2, price, true)
	require.NoError(t, err)
	group, err := domain.NewDeliveryGroup("standard", []*domain.OrderLine{line})
	require.NoError(t, err)
	order, err := domain.NewOrder(nil, "ada@example.com", address, &address, "USD", []*domain.DeliveryGroup{group})
	require.NoError(t, err)

	subtotal, err := order.Subtotal()
	require.NoError(t, err)
	order.Total = &subtotal
	order.AddHistoryEntry("order placed", nil)
	return order
}

func (suite *OrderRepositoryTestSuite) attachWaitingPayment(order *domain.Order, remoteID string) *domain.Payment {
	t := suite.T()
	t.Helper()

	payment, err := domain.NewPayment(order)
	require.NoError(t, err)
	payment.RemoteID = remoteID
	require.NoError(t, order.AttachPayment(payment))
	return payment
}

func (suite *OrderRepositoryTestSuite) Test_Create_And_GetByToken() {
	ctx := context.Background()
	t := suite.T()

	order := suite.buildOrder()
	suite.attachWaitingPayment(order, "tr_123")
	require.NoError(t, suite.repo.Create(ctx, order))

	loaded, err := suite.repo.GetByToken(ctx, order.Token)
	require.NoError(t, err)

	require.Equal(t, order.ID, loaded.ID)
	require.Equal(t, "USD", loaded.Currency)
	require.Equal(t, "ada@example.com", loaded.UserEmail)
	require.Equal(t, "Ada", loaded.BillingAddress.FirstName)
	require.NotNil(t, loaded.ShippingAddress)

	require.Len(t, loaded.Groups, 1)
	require.Equal(t, domain.GroupNew, loaded.Groups[0].Status)
	require.Len(t, loaded.Groups[0].Lines, 1)
	require.Equal(t, 2, loaded.Groups[0].Lines[0].Quantity)
	require.True(t, loaded.Groups[0].Lines[0].UnitPrice.Gross.Equal(
		domain.Money{Amount: decimal.RequireFromString("10.00"), Currency: "USD"}))

	require.NotNil(t, loaded.Total)
	require.Equal(t, "20.00", loaded.Total.Gross.Amount.StringFixed(2))

	require.Len(t, loaded.Payments, 1)
	require.Equal(t, domain.PaymentWaiting, loaded.Payments[0].Status)
	require.Equal(t, "tr_123", loaded.Payments[0].RemoteID)
	require.Equal(t, "20.00", loaded.Payments[0].Total.StringFixed(2))

	require.Len(t, loaded.History, 1)
	require.Equal(t, "order placed", loaded.History[0].Content)
}

func (suite *OrderRepositoryTestSuite) Test_GetByToken_NotFound() {
	ctx := context.Background()
	t := suite.T()

	_, err := suite.repo.GetByToken(ctx, "missing-token")

	require.True(t, domain.IsErrorCode(err, domain.ErrCodeOrderNotFound))
}

func (suite *OrderRepositoryTestSuite) Test_Save_PersistsGroupTransition() {
	ctx := context.Background()
	t := suite.T()

	order := suite.buildOrder()
	require.NoError(t, suite.repo.Create(ctx, order))

	require.NoError(t, order.Groups[0].Ship("TRACK-1"))
	order.TouchStatus()
	order.AddNote("left at the door", true, nil)
	require.NoError(t, suite.repo.Save(ctx, order))

	loaded, err := suite.repo.GetByToken(ctx, order.Token)
	require.NoError(t, err)
	require.Equal(t, domain.GroupShipped, loaded.Groups[0].Status)
	require.Equal(t, "TRACK-1", loaded.Groups[0].TrackingNumber)
	require.Equal(t, domain.OrderClosed, loaded.Status())
	require.Len(t, loaded.Notes, 1)
	require.Equal(t, "left at the door", loaded.Notes[0].Content)
}

func (suite *OrderRepositoryTestSuite) Test_GetByRemotePaymentID() {
	ctx := context.Background()
	t := suite.T()

	order := suite.buildOrder()
	suite.attachWaitingPayment(order, "tr_lookup")
	require.NoError(t, suite.repo.Create(ctx, order))

	loaded, err := suite.repo.GetByRemotePaymentID(ctx, "tr_lookup")
	require.NoError(t, err)
	require.Equal(t, order.ID, loaded.ID)

	_, err = suite.repo.GetByRemotePaymentID(ctx, "tr_unknown")
	require.True(t, domain.IsErrorCode(err, domain.ErrCodeOrderNotFound))
}

func (suite *OrderRepositoryTestSuite) Test_UpdatePayment_Guarded() {
	ctx := context.Background()
	t := suite.T()

	order := suite.buildOrder()
	payment := suite.attachWaitingPayment(order, "tr_guarded")
	require.NoError(t, suite.repo.Create(ctx, order))

	captured := domain.Money{Amount: decimal.RequireFromString("20.00"), Currency: "USD"}
	changed, err := payment.Confirm(captured)
	require.NoError(t, err)
	require.True(t, changed)

	require.NoError(t, suite.repo.UpdatePayment(ctx, payment, domain.PaymentWaiting))

	loaded, err := suite.repo.GetByToken(ctx, order.Token)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentConfirmed, loaded.Payments[0].Status)
	require.Equal(t, "20.00", loaded.Payments[0].CapturedAmount.StringFixed(2))
}

func (suite *OrderRepositoryTestSuite) Test_UpdatePayment_StaleState() {
	ctx := context.Background()
	t := suite.T()

	order := suite.buildOrder()
	payment := suite.attachWaitingPayment(order, "tr_stale")
	require.NoError(t, suite.repo.Create(ctx, order))

	// Another writer already moved the row off WAITING.
	captured := domain.Money{Amount: decimal.RequireFromString("20.00"), Currency: "USD"}
	_, err := payment.Confirm(captured)
	require.NoError(t, err)
	require.NoError(t, suite.repo.UpdatePayment(ctx, payment, domain.PaymentWaiting))

	// A replay observing the old WAITING status must lose.
	err = suite.repo.UpdatePayment(ctx, payment, domain.PaymentWaiting)
	require.True(t, domain.IsErrorCode(err, domain.ErrCodeStaleState))
}

func (suite *OrderRepositoryTestSuite) Test_UpdatePayment_NotFound() {
	ctx := context.Background()
	t := suite.T()

	order := suite.buildOrder()
	payment := suite.attachWaitingPayment(order, "tr_orphan")

	err := suite.repo.UpdatePayment(ctx, payment, domain.PaymentWaiting)
	require.True(t, domain.IsErrorCode(err, domain.ErrCodePaymentNotFound))
}

func (suite *OrderRepositoryTestSuite) Test_FindStaleWaitingPayments() {
	ctx := context.Background()
	t := suite.T()

	order := suite.buildOrder()
	stale := suite.attachWaitingPayment(order, "tr_old")
	stale.Modified = time.Now().Add(-time.Hour)
	suite.attachWaitingPayment(order, "tr_new")
	require.NoError(t, suite.repo.Create(ctx, order))

	remoteIDs, err := suite.repo.FindStaleWaitingPayments(ctx, 10*time.Minute, 50)
	require.NoError(t, err)
	require.Equal(t, []string{"tr_old"}, remoteIDs)
}

func (suite *OrderRepositoryTestSuite) Test_WithTx_RollsBackOnError() {
	ctx := context.Background()
	t := suite.T()

	order := suite.buildOrder()

	err := suite.repo.WithTx(ctx, func(tx ports.OrderRepository) error {
		if err := tx.Create(ctx, order); err != nil {
			return err
		}
		return domain.NewValidationError("abort")
	})
	require.Error(t, err)

	_, err = suite.repo.GetByToken(ctx, order.Token)
	require.True(t, domain.IsErrorCode(err, domain.ErrCodeOrderNotFound))
}
