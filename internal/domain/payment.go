package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks a payment attempt's lifecycle against the gateway.
type PaymentStatus string

const (
	PaymentWaiting   PaymentStatus = "WAITING"
	PaymentPreauth   PaymentStatus = "PREAUTH"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentRejected  PaymentStatus = "REJECTED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
	PaymentError     PaymentStatus = "ERROR"
)

// Payment is one settlement attempt against the gateway. An order may
// accumulate several attempts; none is ever deleted. All mutations go through
// guarded transitions so a replayed gateway callback can never double-apply.
type Payment struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Status         PaymentStatus
	RemoteID       string
	Total          decimal.Decimal
	Tax            decimal.Decimal
	Currency       string
	CapturedAmount decimal.Decimal
	Created        time.Time
	Modified       time.Time
}

// NewPayment opens a settlement attempt for the order's stored total.
func NewPayment(order *Order) (*Payment, error) {
	if order.Total == nil {
		return nil, NewValidationError("order has no computed total")
	}
	now := time.Now()
	return &Payment{
		ID:       uuid.New(),
		OrderID:  order.ID,
		Status:   PaymentWaiting,
		Total:    order.Total.Gross.Amount,
		Tax:      order.Total.Gross.Amount.Sub(order.Total.Net.Amount),
		Currency: order.Currency,
		Created:  now,
		Modified: now,
	}, nil
}

// ChangeStatus applies a guarded transition. Re-applying the current status
// is a no-op, reported through the changed flag, so callers can skip side
// effects on replays.
func (p *Payment) ChangeStatus(target PaymentStatus) (bool, error) {
	if p.Status == target {
		return false, nil
	}
	if err := p.canTransitionTo(target); err != nil {
		return false, err
	}
	p.Status = target
	p.Modified = time.Now()
	return true, nil
}

func (p *Payment) canTransitionTo(target PaymentStatus) error {
	switch p.Status {
	case PaymentWaiting:
		return p.allow(target, PaymentPreauth, PaymentConfirmed, PaymentRejected, PaymentRefunded, PaymentError)
	case PaymentPreauth:
		return p.allow(target, PaymentConfirmed, PaymentRejected, PaymentRefunded, PaymentError)
	case PaymentConfirmed:
		return p.allow(target, PaymentRefunded)
	}
	return NewInvalidTransitionError(string(p.Status), string(target))
}

func (p *Payment) allow(target PaymentStatus, allowed ...PaymentStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(string(p.Status), string(target))
}

// Confirm transitions to CONFIRMED and records the captured amount exactly
// once. Reconfirming an already confirmed payment is a no-op and never
// re-captures funds.
func (p *Payment) Confirm(captured Money) (bool, error) {
	if captured.Currency != p.Currency {
		return false, NewCurrencyMismatchError(p.Currency, captured.Currency)
	}
	changed, err := p.ChangeStatus(PaymentConfirmed)
	if err != nil || !changed {
		return changed, err
	}
	p.CapturedAmount = captured.Amount
	return true, nil
}

// MarkRefunded transitions to REFUNDED and deducts the gateway-confirmed
// refunded amount from the captured balance. A refund arriving before any
// capture (a lost paid callback) is status-only; the balance never goes
// negative.
func (p *Payment) MarkRefunded(refunded Money) (bool, error) {
	if refunded.Currency != p.Currency {
		return false, NewCurrencyMismatchError(p.Currency, refunded.Currency)
	}
	changed, err := p.ChangeStatus(PaymentRefunded)
	if err != nil || !changed {
		return changed, err
	}
	deduction := refunded.Amount
	if deduction.GreaterThan(p.CapturedAmount) {
		deduction = p.CapturedAmount
	}
	p.CapturedAmount = p.CapturedAmount.Sub(deduction)
	return true, nil
}

// ApplyRemoteStatus maps a gateway-reported status onto the local state
// machine. Pending and open report no change; the mapping is idempotent.
func (p *Payment) ApplyRemoteStatus(status RemoteStatus, amount Money) (bool, error) {
	switch status {
	case RemotePaid:
		return p.Confirm(amount)
	case RemotePending, RemoteOpen:
		return false, nil
	case RemoteFailed:
		return p.ChangeStatus(PaymentError)
	case RemoteCancelled, RemoteExpired:
		return p.ChangeStatus(PaymentRejected)
	case RemoteRefunded:
		return p.MarkRefunded(amount)
	}
	return false, NewUnmappedGatewayStatusError(string(status))
}

func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentRejected, PaymentRefunded, PaymentError:
		return true
	default:
		return false
	}
}

// TotalDue is the gross amount owed on this attempt.
func (p *Payment) TotalDue() Money {
	return Money{Amount: p.Total, Currency: p.Currency}
}

// TotalPrice splits the total due into its net/gross pair.
func (p *Payment) TotalPrice() (TaxedMoney, error) {
	net, err := NewMoney(p.Total.Sub(p.Tax), p.Currency)
	if err != nil {
		return TaxedMoney{}, err
	}
	gross, err := NewMoney(p.Total, p.Currency)
	if err != nil {
		return TaxedMoney{}, err
	}
	return NewTaxedMoney(net, gross)
}

func (p *Payment) CapturedPrice() TaxedMoney {
	captured := Money{Amount: p.CapturedAmount, Currency: p.Currency}
	return TaxedMoney{Net: captured, Gross: captured}
}

// PurchasedItems builds the gateway-facing line item list: one entry per
// order line priced at the unit gross rounded to cents, plus a synthetic
// negative DISCOUNT item when a voucher applies. Gateways have no native
// discount concept.
func (p *Payment) PurchasedItems(order *Order) []PurchasedItem {
	var items []PurchasedItem
	for _, line := range order.Lines() {
		items = append(items, PurchasedItem{
			Name:     line.ProductName,
			SKU:      line.ProductSKU,
			Quantity: line.Quantity,
			Price:    line.UnitPrice.Gross.RoundCents().Amount,
			Currency: line.UnitPrice.Gross.Currency,
		})
	}
	if order.DiscountAmount != nil {
		items = append(items, PurchasedItem{
			Name:     order.DiscountName,
			SKU:      "DISCOUNT",
			Quantity: 1,
			Price:    order.DiscountAmount.Amount.Neg(),
			Currency: order.DiscountAmount.Currency,
		})
	}
	return items
}

// ReconstitutePayment - special constructor for loading from the database.
func ReconstitutePayment(
	id, orderID uuid.UUID,
	status PaymentStatus,
	remoteID string,
	total, tax, capturedAmount decimal.Decimal,
	currency string,
	created, modified time.Time,
) *Payment {
	return &Payment{
		ID:             id,
		OrderID:        orderID,
		Status:         status,
		RemoteID:       remoteID,
		Total:          total,
		Tax:            tax,
		Currency:       currency,
		CapturedAmount: capturedAmount,
		Created:        created,
		Modified:       modified,
	}
}
