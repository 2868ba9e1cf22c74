package domain

import (
	"time"

	"github.com/google/uuid"
)

// GroupStatus represents the lifecycle of a single shipment.
type GroupStatus string

const (
	GroupNew       GroupStatus = "NEW"
	GroupShipped   GroupStatus = "SHIPPED"
	GroupCancelled GroupStatus = "CANCELLED"
)

// DeliveryGroup is a subset of an order's lines fulfilled and shipped
// together. Status transitions are monotonic: once a group leaves NEW it can
// never return, and nothing leaves CANCELLED. A shipped group may still be
// cancelled (a return).
type DeliveryGroup struct {
	ID                 uuid.UUID
	Status             GroupStatus
	ShippingMethodName string
	TrackingNumber     string
	LastUpdated        time.Time
	Lines              []*OrderLine
}

func NewDeliveryGroup(shippingMethodName string, lines []*OrderLine) (*DeliveryGroup, error) {
	if len(lines) == 0 {
		return nil, NewValidationError("delivery group requires at least one line")
	}
	return &DeliveryGroup{
		ID:                 uuid.New(),
		Status:             GroupNew,
		ShippingMethodName: shippingMethodName,
		LastUpdated:        time.Now(),
		Lines:              lines,
	}, nil
}

func (g *DeliveryGroup) IsShippingRequired() bool {
	for _, line := range g.Lines {
		if line.IsShippingRequired {
			return true
		}
	}
	return false
}

func (g *DeliveryGroup) CanShip() bool {
	return g.IsShippingRequired() && g.Status == GroupNew
}

func (g *DeliveryGroup) CanCancel() bool {
	return g.Status != GroupCancelled
}

func (g *DeliveryGroup) CanEditLines() bool {
	return g.Status != GroupCancelled && g.Status != GroupShipped
}

// Process re-runs stock and price reconciliation on a NEW group. It never
// changes status; the actual work is delegated to the line-processing
// collaborator by the fulfillment service.
func (g *DeliveryGroup) Process() error {
	if g.Status != GroupNew {
		return NewInvalidTransitionError(string(g.Status), string(GroupNew))
	}
	g.LastUpdated = time.Now()
	return nil
}

func (g *DeliveryGroup) Ship(trackingNumber string) error {
	if !g.CanShip() {
		return NewInvalidTransitionError(string(g.Status), string(GroupShipped))
	}
	g.Status = GroupShipped
	g.TrackingNumber = trackingNumber
	g.LastUpdated = time.Now()
	return nil
}

func (g *DeliveryGroup) Cancel() error {
	if !g.CanCancel() {
		return NewInvalidTransitionError(string(g.Status), string(GroupCancelled))
	}
	g.Status = GroupCancelled
	g.LastUpdated = time.Now()
	return nil
}

// Total sums line totals. A group with no lines should never exist
// post-checkout, so summing an empty group is a caller error rather than a
// silent zero.
func (g *DeliveryGroup) Total() (TaxedMoney, error) {
	if len(g.Lines) == 0 {
		return TaxedMoney{}, NewEmptyGroupError(g.ID.String())
	}
	total := g.Lines[0].Total()
	for _, line := range g.Lines[1:] {
		var err error
		total, err = total.Add(line.Total())
		if err != nil {
			return TaxedMoney{}, err
		}
	}
	return total, nil
}

func (g *DeliveryGroup) TotalQuantity() int {
	quantity := 0
	for _, line := range g.Lines {
		quantity += line.Quantity
	}
	return quantity
}
