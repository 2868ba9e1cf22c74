package domain

import (
	"github.com/google/uuid"
)

// MaxLineQuantity mirrors the storage constraint on order line quantity.
const MaxLineQuantity = 999

// OrderLine is a quantity of a single product inside one delivery group.
// Product name and sku are denormalized so the line survives product
// deletion; the shipping-required flag is captured at line creation time and
// is independent of the product's current state.
type OrderLine struct {
	ID                 uuid.UUID
	ProductID          *uuid.UUID
	ProductName        string
	ProductSKU         string
	Quantity           int
	UnitPrice          TaxedMoney
	IsShippingRequired bool
	StockLocation      string
}

func NewOrderLine(
	productID *uuid.UUID,
	productName string,
	productSKU string,
	quantity int,
	unitPrice TaxedMoney,
	isShippingRequired bool,
) (*OrderLine, error) {
	if productName == "" {
		return nil, NewValidationError("product name is required")
	}
	if productSKU == "" {
		return nil, NewValidationError("product sku is required")
	}
	if quantity < 0 || quantity > MaxLineQuantity {
		return nil, NewValidationError("quantity must be between 0 and 999")
	}

	return &OrderLine{
		ID:                 uuid.New(),
		ProductID:          productID,
		ProductName:        productName,
		ProductSKU:         productSKU,
		Quantity:           quantity,
		UnitPrice:          unitPrice,
		IsShippingRequired: isShippingRequired,
	}, nil
}

// Total is unit price times quantity, component-wise over net and gross.
func (l *OrderLine) Total() TaxedMoney {
	return l.UnitPrice.Mul(l.Quantity)
}
