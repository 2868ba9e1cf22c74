package domain

import "github.com/shopspring/decimal"

// RemoteStatus is the classified state of a payment on the gateway's side.
// Every gateway response must map to exactly one of these; anything else is
// an UnmappedGatewayStatus error, never silently ignored.
type RemoteStatus string

const (
	RemoteOpen      RemoteStatus = "open"
	RemotePending   RemoteStatus = "pending"
	RemotePaid      RemoteStatus = "paid"
	RemoteFailed    RemoteStatus = "failed"
	RemoteCancelled RemoteStatus = "cancelled"
	RemoteExpired   RemoteStatus = "expired"
	RemoteRefunded  RemoteStatus = "refunded"
)

// ClassifyRemoteStatus validates a raw gateway status string.
func ClassifyRemoteStatus(raw string) (RemoteStatus, error) {
	switch RemoteStatus(raw) {
	case RemoteOpen, RemotePending, RemotePaid, RemoteFailed,
		RemoteCancelled, RemoteExpired, RemoteRefunded:
		return RemoteStatus(raw), nil
	}
	return "", NewUnmappedGatewayStatusError(raw)
}

// PurchasedItem is one gateway-facing line item. Price is the unit gross
// rounded to cents; a discount is a quantity-one item with a negative price.
type PurchasedItem struct {
	Name     string
	SKU      string
	Quantity int
	Price    decimal.Decimal
	Currency string
}

// RemotePaymentRequest is the payload for creating a payment at the gateway.
// Amounts are quoted in cents, rounded half up at submission time.
type RemotePaymentRequest struct {
	AmountCents int64
	Currency    string
	Description string
	RedirectURL string
	WebhookURL  string
	Items       []PurchasedItem
}

// RemotePayment is the gateway's view of a payment. PaymentURL is where the
// end user must be redirected while the remote payment is open.
type RemotePayment struct {
	ID          string
	Status      RemoteStatus
	AmountCents int64
	Currency    string
	PaymentURL  string
}

// Amount converts the remote cents quote back into Money.
func (r *RemotePayment) Amount() Money {
	return Money{Amount: decimal.New(r.AmountCents, -2), Currency: r.Currency}
}
