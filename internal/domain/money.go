// Package domain holds the order aggregate, its delivery groups and the
// payment state machine, together with the money arithmetic that drives them.
package domain

import (
	"github.com/shopspring/decimal"
)

// Money is a decimal amount in a single currency. Amounts are kept at full
// precision (unit prices are stored at 4 decimal places); rounding to cents
// happens only at the point of gateway submission.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if currency == "" {
		return Money{}, NewValidationError("currency is required")
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Zero is the identity element for folds over Money.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return NewCurrencyMismatchError(m.Currency, other.Currency)
	}
	return nil
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

func (m Money) Mul(quantity int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(quantity))), Currency: m.Currency}
}

func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// GreaterOrEqual is defined only within one currency.
func (m Money) GreaterOrEqual(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.Amount.GreaterThanOrEqual(other.Amount), nil
}

func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// RoundCents rounds to two decimal places, half up. decimal.Round rounds half
// away from zero, which is half up for the non-negative amounts submitted to
// the gateway.
func (m Money) RoundCents() Money {
	return Money{Amount: m.Amount.Round(2), Currency: m.Currency}
}

// Cents returns the amount rounded half up to cents, as an integer number of
// cents. Gateways are quoted in cents; stored amounts keep full precision.
func (m Money) Cents() int64 {
	return m.Amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

// TaxedMoney is a net/gross pair in one currency. Net and gross come from an
// external tax collaborator; gross >= net is expected but not enforced here.
type TaxedMoney struct {
	Net   Money
	Gross Money
}

func NewTaxedMoney(net, gross Money) (TaxedMoney, error) {
	if err := net.sameCurrency(gross); err != nil {
		return TaxedMoney{}, err
	}
	return TaxedMoney{Net: net, Gross: gross}, nil
}

// ZeroTaxed is the identity element for folds over TaxedMoney.
func ZeroTaxed(currency string) TaxedMoney {
	return TaxedMoney{Net: Zero(currency), Gross: Zero(currency)}
}

func (t TaxedMoney) Currency() string {
	return t.Net.Currency
}

func (t TaxedMoney) Add(other TaxedMoney) (TaxedMoney, error) {
	net, err := t.Net.Add(other.Net)
	if err != nil {
		return TaxedMoney{}, err
	}
	gross, err := t.Gross.Add(other.Gross)
	if err != nil {
		return TaxedMoney{}, err
	}
	return TaxedMoney{Net: net, Gross: gross}, nil
}

func (t TaxedMoney) Sub(other TaxedMoney) (TaxedMoney, error) {
	net, err := t.Net.Sub(other.Net)
	if err != nil {
		return TaxedMoney{}, err
	}
	gross, err := t.Gross.Sub(other.Gross)
	if err != nil {
		return TaxedMoney{}, err
	}
	return TaxedMoney{Net: net, Gross: gross}, nil
}

// SubDiscount subtracts a flat discount from both sides of the pair.
func (t TaxedMoney) SubDiscount(discount Money) (TaxedMoney, error) {
	net, err := t.Net.Sub(discount)
	if err != nil {
		return TaxedMoney{}, err
	}
	gross, err := t.Gross.Sub(discount)
	if err != nil {
		return TaxedMoney{}, err
	}
	return TaxedMoney{Net: net, Gross: gross}, nil
}

func (t TaxedMoney) Mul(quantity int) TaxedMoney {
	return TaxedMoney{Net: t.Net.Mul(quantity), Gross: t.Gross.Mul(quantity)}
}

func (t TaxedMoney) Equal(other TaxedMoney) bool {
	return t.Net.Equal(other.Net) && t.Gross.Equal(other.Gross)
}
