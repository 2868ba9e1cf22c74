package postgres

import (
	"time"

	"github.com/google/uuid"
)

// Row models. Numeric columns travel as strings (NUMERIC::text) so decimal
// precision survives the round trip.
type orderModel struct {
	ID                 uuid.UUID
	Token              string
	UserID             *uuid.UUID
	UserEmail          string
	BillingAddress     []byte
	ShippingAddress    []byte
	ShippingPriceNet   string
	ShippingPriceGross string
	Currency           string
	TotalNet           *string
	TotalGross         *string
	DiscountAmount     *string
	DiscountName       string
	Created            time.Time
	LastStatusChange   time.Time
}

type groupModel struct {
	ID                 uuid.UUID
	OrderID            uuid.UUID
	Status             string
	ShippingMethodName string
	TrackingNumber     string
	LastUpdated        time.Time
	Position           int
}

type lineModel struct {
	ID                 uuid.UUID
	GroupID            uuid.UUID
	ProductID          *uuid.UUID
	ProductName        string
	ProductSKU         string
	Quantity           int
	UnitPriceNet       string
	UnitPriceGross     string
	IsShippingRequired bool
	StockLocation      string
	Position           int
}

type paymentModel struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Status         string
	RemoteID       string
	Total          string
	Tax            string
	Currency       string
	CapturedAmount string
	Created        time.Time
	Modified       time.Time
	Position       int
}

type historyModel struct {
	Date    time.Time
	Content string
	UserID  *uuid.UUID
}

type noteModel struct {
	Date     time.Time
	Content  string
	IsPublic bool
	UserID   *uuid.UUID
}

type addressModel struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
	Phone         string `json:"phone"`
}
