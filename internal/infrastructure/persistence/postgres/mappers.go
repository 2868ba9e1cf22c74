package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ecomkit/orderflow/internal/domain"
)

func parseDecimal(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse stored amount %q: %w", value, err)
	}
	return d, nil
}

func parseMoney(value, currency string) (domain.Money, error) {
	amount, err := parseDecimal(value)
	if err != nil {
		return domain.Money{}, err
	}
	return domain.NewMoney(amount, strings.TrimSpace(currency))
}

func parseTaxed(net, gross, currency string) (domain.TaxedMoney, error) {
	netMoney, err := parseMoney(net, currency)
	if err != nil {
		return domain.TaxedMoney{}, err
	}
	grossMoney, err := parseMoney(gross, currency)
	if err != nil {
		return domain.TaxedMoney{}, err
	}
	return domain.NewTaxedMoney(netMoney, grossMoney)
}

func marshalAddress(address domain.Address) ([]byte, error) {
	return json.Marshal(addressModel{
		FirstName:     address.FirstName,
		LastName:      address.LastName,
		StreetAddress: address.StreetAddress,
		City:          address.City,
		PostalCode:    address.PostalCode,
		Country:       address.Country,
		Phone:         address.Phone,
	})
}

func unmarshalAddress(data []byte) (domain.Address, error) {
	var m addressModel
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Address{}, fmt.Errorf("failed to decode stored address: %w", err)
	}
	return domain.Address{
		FirstName:     m.FirstName,
		LastName:      m.LastName,
		StreetAddress: m.StreetAddress,
		City:          m.City,
		PostalCode:    m.PostalCode,
		Country:       m.Country,
		Phone:         m.Phone,
	}, nil
}

func toDomainOrder(
	m orderModel,
	groups []*domain.DeliveryGroup,
	payments []*domain.Payment,
	history []domain.HistoryEntry,
	notes []domain.Note,
) (*domain.Order, error) {
	billing, err := unmarshalAddress(m.BillingAddress)
	if err != nil {
		return nil, err
	}

	currency := strings.TrimSpace(m.Currency)
	order := &domain.Order{
		ID:               m.ID,
		Token:            m.Token,
		UserID:           m.UserID,
		UserEmail:        m.UserEmail,
		BillingAddress:   billing,
		Currency:         currency,
		DiscountName:     m.DiscountName,
		Created:          m.Created,
		LastStatusChange: m.LastStatusChange,
		Groups:           groups,
		Payments:         payments,
		History:          history,
		Notes:            notes,
	}

	if m.ShippingAddress != nil {
		shipping, err := unmarshalAddress(m.ShippingAddress)
		if err != nil {
			return nil, err
		}
		order.ShippingAddress = &shipping
	}

	order.ShippingPrice, err = parseTaxed(m.ShippingPriceNet, m.ShippingPriceGross, currency)
	if err != nil {
		return nil, err
	}

	if m.TotalNet != nil && m.TotalGross != nil {
		total, err := parseTaxed(*m.TotalNet, *m.TotalGross, currency)
		if err != nil {
			return nil, err
		}
		order.Total = &total
	}

	if m.DiscountAmount != nil {
		discount, err := parseMoney(*m.DiscountAmount, currency)
		if err != nil {
			return nil, err
		}
		order.DiscountAmount = &discount
	}

	return order, nil
}

func toDomainGroup(m groupModel, lines []*domain.OrderLine) *domain.DeliveryGroup {
	return &domain.DeliveryGroup{
		ID:                 m.ID,
		Status:             domain.GroupStatus(m.Status),
		ShippingMethodName: m.ShippingMethodName,
		TrackingNumber:     m.TrackingNumber,
		LastUpdated:        m.LastUpdated,
		Lines:              lines,
	}
}

func toDomainLine(m lineModel, currency string) (*domain.OrderLine, error) {
	unitPrice, err := parseTaxed(m.UnitPriceNet, m.UnitPriceGross, currency)
	if err != nil {
		return nil, err
	}
	return &domain.OrderLine{
		ID:                 m.ID,
		ProductID:          m.ProductID,
		ProductName:        m.ProductName,
		ProductSKU:         m.ProductSKU,
		Quantity:           m.Quantity,
		UnitPrice:          unitPrice,
		IsShippingRequired: m.IsShippingRequired,
		StockLocation:      m.StockLocation,
	}, nil
}

func toDomainPayment(m paymentModel) (*domain.Payment, error) {
	total, err := parseDecimal(m.Total)
	if err != nil {
		return nil, err
	}
	tax, err := parseDecimal(m.Tax)
	if err != nil {
		return nil, err
	}
	captured, err := parseDecimal(m.CapturedAmount)
	if err != nil {
		return nil, err
	}
	return domain.ReconstitutePayment(
		m.ID, m.OrderID,
		domain.PaymentStatus(m.Status),
		m.RemoteID,
		total, tax, captured,
		strings.TrimSpace(m.Currency),
		m.Created, m.Modified,
	), nil
}

func toDomainHistory(models []historyModel) []domain.HistoryEntry {
	var entries []domain.HistoryEntry
	for _, m := range models {
		entries = append(entries, domain.HistoryEntry{
			Date:    m.Date,
			Content: m.Content,
			UserID:  m.UserID,
		})
	}
	return entries
}

func toDomainNotes(models []noteModel) []domain.Note {
	var notes []domain.Note
	for _, m := range models {
		notes = append(notes, domain.Note{
			Date:     m.Date,
			Content:  m.Content,
			IsPublic: m.IsPublic,
			UserID:   m.UserID,
		})
	}
	return notes
}
