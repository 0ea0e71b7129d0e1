package models

// LineItemView is the normalized, display-ready form of a deal line item.
//
// Every CRM record is mapped into this structure exactly once per request,
// then returned to the panel; it is never stored.
type LineItemView struct {
	ID          string       `json:"id"`                    // CRM line item id, or a synthesized placeholder
	ProductID   string       `json:"productId"`             // may be empty
	ProductName string       `json:"productName"`           // own name, then product name, then "Unknown Product"
	Quantity    int64        `json:"quantity"`              // >= 0, defaults to 1
	Price       float64      `json:"price"`                 // unit price, >= 0
	Amount      float64      `json:"amount"`                // line total, >= 0
	Product     *ProductView `json:"product"`               // nil when no product matched
	TicketID    string       `json:"ticketId"`              // free-form ticket reference
	SKU         string       `json:"sku,omitempty"`         // optional
	Description string       `json:"description,omitempty"` // optional
	Currency    string       `json:"currency,omitempty"`    // optional ISO code
}

type ProductView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	SKU         string  `json:"sku,omitempty"`
}
