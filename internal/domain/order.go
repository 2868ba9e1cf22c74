package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is derived from shipment groups and never stored.
type OrderStatus string

const (
	OrderOpen   OrderStatus = "OPEN"
	OrderClosed OrderStatus = "CLOSED"
)

// Address is the denormalized postal address snapshot kept on the order.
type Address struct {
	FirstName     string
	LastName      string
	StreetAddress string
	City          string
	PostalCode    string
	Country       string
	Phone         string
}

func (a Address) isZero() bool {
	return a == Address{}
}

// Order is the root aggregate. It owns its delivery groups, which own their
// lines, and it accumulates payment attempts ordered by recency. All payments
// must be in the order's currency.
type Order struct {
	ID               uuid.UUID
	Token            string
	UserID           *uuid.UUID
	UserEmail        string
	BillingAddress   Address
	ShippingAddress  *Address
	ShippingPrice    TaxedMoney
	Currency         string
	Total            *TaxedMoney
	DiscountAmount   *Money
	DiscountName     string
	Created          time.Time
	LastStatusChange time.Time
	Groups           []*DeliveryGroup
	Payments         []*Payment
	History          []HistoryEntry
	Notes            []Note
}

func NewOrder(
	userID *uuid.UUID,
	userEmail string,
	billingAddress Address,
	shippingAddress *Address,
	currency string,
	groups []*DeliveryGroup,
) (*Order, error) {
	if userID == nil && userEmail == "" {
		return nil, NewValidationError("guest checkout requires an email")
	}
	if billingAddress.isZero() {
		return nil, NewValidationError("billing address is required")
	}
	if currency == "" {
		return nil, NewValidationError("currency is required")
	}
	if len(groups) == 0 {
		return nil, NewValidationError("order requires at least one delivery group")
	}

	now := time.Now()
	order := &Order{
		ID:               uuid.New(),
		Token:            uuid.NewString(),
		UserID:           userID,
		UserEmail:        userEmail,
		BillingAddress:   billingAddress,
		ShippingAddress:  shippingAddress,
		ShippingPrice:    ZeroTaxed(currency),
		Currency:         currency,
		Created:          now,
		LastStatusChange: now,
		Groups:           groups,
	}

	if order.IsShippingRequired() && shippingAddress == nil {
		return nil, NewValidationError("order requires a shipping address")
	}
	return order, nil
}

// Status is deduced from shipment groups: OPEN while any group is still NEW.
func (o *Order) Status() OrderStatus {
	for _, group := range o.Groups {
		if group.Status == GroupNew {
			return OrderOpen
		}
	}
	return OrderClosed
}

func (o *Order) IsOpen() bool {
	return o.Status() == OrderOpen
}

func (o *Order) CanCancel() bool {
	return o.Status() == OrderOpen
}

// Cancel cancels every group that can still be cancelled.
func (o *Order) Cancel() error {
	if !o.CanCancel() {
		return NewInvalidTransitionError(string(o.Status()), string(OrderClosed))
	}
	for _, group := range o.Groups {
		if group.CanCancel() {
			if err := group.Cancel(); err != nil {
				return err
			}
		}
	}
	o.TouchStatus()
	return nil
}

// TouchStatus records that a group status changed.
func (o *Order) TouchStatus() {
	o.LastStatusChange = time.Now()
}

// Lines returns every line across all groups.
func (o *Order) Lines() []*OrderLine {
	var lines []*OrderLine
	for _, group := range o.Groups {
		lines = append(lines, group.Lines...)
	}
	return lines
}

func (o *Order) GroupByID(id uuid.UUID) (*DeliveryGroup, error) {
	for _, group := range o.Groups {
		if group.ID == id {
			return group, nil
		}
	}
	return nil, NewValidationError("delivery group does not belong to this order")
}

func (o *Order) IsShippingRequired() bool {
	for _, group := range o.Groups {
		if group.IsShippingRequired() {
			return true
		}
	}
	return false
}

func (o *Order) TotalQuantity() int {
	quantity := 0
	for _, group := range o.Groups {
		quantity += group.TotalQuantity()
	}
	return quantity
}

// Subtotal folds line totals from the zero element. Unlike group totals, an
// order mid-construction may legitimately have no lines yet.
func (o *Order) Subtotal() (TaxedMoney, error) {
	subtotal := ZeroTaxed(o.Currency)
	for _, line := range o.Lines() {
		var err error
		subtotal, err = subtotal.Add(line.Total())
		if err != nil {
			return TaxedMoney{}, err
		}
	}
	return subtotal, nil
}

// IsFullyPaid reports whether the gross sum of CONFIRMED payments covers the
// order's stored gross total. The comparison is >= so over-payment or
// rounding drift in the gateway's favor never yields a false negative.
func (o *Order) IsFullyPaid() (bool, error) {
	if o.Total == nil {
		return false, NewValidationError("order has no computed total")
	}
	paid := ZeroTaxed(o.Currency)
	for _, payment := range o.Payments {
		if payment.Status != PaymentConfirmed {
			continue
		}
		price, err := payment.TotalPrice()
		if err != nil {
			return false, err
		}
		paid, err = paid.Add(price)
		if err != nil {
			return false, err
		}
	}
	return paid.Gross.GreaterOrEqual(o.Total.Gross)
}

// AttachPayment appends a new payment attempt. Payments are kept forever as
// an audit trail; "last" means the most recent attempt.
func (o *Order) AttachPayment(payment *Payment) error {
	if payment.Currency != o.Currency {
		return NewCurrencyMismatchError(o.Currency, payment.Currency)
	}
	o.Payments = append(o.Payments, payment)
	return nil
}

func (o *Order) LastPayment() *Payment {
	if len(o.Payments) == 0 {
		return nil
	}
	return o.Payments[len(o.Payments)-1]
}

// LastPaymentStatus returns the most recent attempt's status; ok is false
// when no payment has been attempted yet.
func (o *Order) LastPaymentStatus() (PaymentStatus, bool) {
	last := o.LastPayment()
	if last == nil {
		return "", false
	}
	return last.Status, true
}

func (o *Order) PaymentByRemoteID(remoteID string) (*Payment, error) {
	for _, payment := range o.Payments {
		if payment.RemoteID == remoteID {
			return payment, nil
		}
	}
	return nil, NewPaymentNotFoundError(remoteID)
}

func (o *Order) IsPreAuthorized() bool {
	for _, payment := range o.Payments {
		if payment.Status == PaymentPreauth {
			return true
		}
	}
	return false
}

// UserCurrentEmail prefers the live account email over the checkout snapshot.
func (o *Order) UserCurrentEmail(accountEmail string) string {
	if o.UserID != nil && accountEmail != "" {
		return accountEmail
	}
	return o.UserEmail
}

func (o *Order) AddHistoryEntry(content string, userID *uuid.UUID) {
	o.History = append(o.History, HistoryEntry{
		Date:    time.Now(),
		Content: content,
		UserID:  userID,
	})
}

func (o *Order) AddNote(content string, isPublic bool, userID *uuid.UUID) {
	o.Notes = append(o.Notes, Note{
		Date:     time.Now(),
		Content:  content,
		IsPublic: isPublic,
		UserID:   userID,
	})
}
