package lineitems

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"dealdesk/pkg/models"
)

const (
	unknownProductName = "Unknown Product"
	errorItemName      = "Error loading item"
)

// ToView joins a line item with its product, if present in products.
// position is the 1-based index of the record in the batch response and is
// only used to synthesize an id for records that arrived without one.
func ToView(rec LineItemRecord, products map[string]ProductRecord, position int) models.LineItemView {
	view := models.LineItemView{
		ID:          itemID(rec.ID, position),
		ProductID:   rec.ProductID,
		ProductName: strings.TrimSpace(rec.Name),
		Quantity:    rec.Quantity,
		Price:       nonNegative(rec.Price),
		Amount:      nonNegative(rec.Amount),
		TicketID:    rec.TicketID,
		SKU:         rec.SKU,
		Description: rec.Description,
		Currency:    rec.Currency,
	}
	if view.Quantity < 0 {
		view.Quantity = 1
	}

	if p, ok := products[rec.ProductID]; ok && rec.ProductID != "" {
		view.Product = &models.ProductView{
			ID:          p.ID,
			Name:        p.Name,
			Price:       nonNegative(p.Price),
			Description: p.Description,
			SKU:         p.SKU,
		}
		if view.ProductName == "" {
			view.ProductName = strings.TrimSpace(p.Name)
		}
	}
	if view.ProductName == "" {
		view.ProductName = unknownProductName
	}
	return view
}

// Placeholder stands in for a record that could not be decoded.
func Placeholder(id string, position int) models.LineItemView {
	return models.LineItemView{
		ID:          itemID(id, position),
		ProductName: errorItemName,
	}
}

func itemID(id string, position int) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return fmt.Sprintf("missing-id-%d", position)
}

func nonNegative(d decimal.Decimal) float64 {
	if d.IsNegative() || !finite(d) {
		return 0
	}
	return d.InexactFloat64()
}
