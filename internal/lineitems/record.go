package lineitems

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// CRM property names read for each object type.
var (
	dealProperties = []string{"dealname", "amount", "dealstage", "pipeline"}

	lineItemProperties = []string{
		"name", "hs_product_id", "quantity", "price", "amount",
		"hs_sku", "description", "hs_line_item_currency_code", "ticket_id",
	}

	productProperties = []string{"name", "price", "description", "hs_sku"}
)

var (
	errNotObject        = errors.New("record is not a JSON object")
	errPropertiesShape  = errors.New("record properties are not an object")
	errInvalidRecordRaw = errors.New("record is not valid JSON")
)

// LineItemRecord is a line item after coercion of its loosely typed fields.
type LineItemRecord struct {
	ID          string
	Name        string
	ProductID   string
	Quantity    int64
	Price       decimal.Decimal
	Amount      decimal.Decimal
	SKU         string
	Description string
	Currency    string
	TicketID    string
}

type ProductRecord struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Description string
	SKU         string
}

// ParseLineItem decodes one batch-read result. Missing or invalid quantity
// becomes 1; missing or invalid price and amount become 0.
func ParseLineItem(raw json.RawMessage) (LineItemRecord, error) {
	rec, props, err := parseRecord(raw)
	if err != nil {
		return LineItemRecord{ID: RecordID(raw)}, err
	}
	return LineItemRecord{
		ID:          text(rec.Get("id")),
		Name:        text(props.Get("name")),
		ProductID:   text(props.Get("hs_product_id")),
		Quantity:    quantity(props.Get("quantity")),
		Price:       money(props.Get("price")),
		Amount:      money(props.Get("amount")),
		SKU:         text(props.Get("hs_sku")),
		Description: text(props.Get("description")),
		Currency:    text(props.Get("hs_line_item_currency_code")),
		TicketID:    text(props.Get("ticket_id")),
	}, nil
}

func ParseProduct(raw json.RawMessage) (ProductRecord, error) {
	rec, props, err := parseRecord(raw)
	if err != nil {
		return ProductRecord{ID: RecordID(raw)}, err
	}
	return ProductRecord{
		ID:          text(rec.Get("id")),
		Name:        text(props.Get("name")),
		Price:       money(props.Get("price")),
		Description: text(props.Get("description")),
		SKU:         text(props.Get("hs_sku")),
	}, nil
}

// RecordID extracts the id of a record, even a malformed one, or "".
func RecordID(raw json.RawMessage) string {
	return text(gjson.GetBytes(raw, "id"))
}

func parseRecord(raw json.RawMessage) (gjson.Result, gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, gjson.Result{}, errInvalidRecordRaw
	}
	rec := gjson.ParseBytes(raw)
	if !rec.IsObject() {
		return gjson.Result{}, gjson.Result{}, errNotObject
	}
	props := rec.Get("properties")
	if props.Exists() && props.Type != gjson.Null && !props.IsObject() {
		return gjson.Result{}, gjson.Result{}, errPropertiesShape
	}
	return rec, props, nil
}

// text accepts strings and numbers; anything else reads as empty.
func text(v gjson.Result) string {
	switch v.Type {
	case gjson.String, gjson.Number:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func number(v gjson.Result) (decimal.Decimal, bool) {
	var s string
	switch v.Type {
	case gjson.Number:
		s = v.Raw
	case gjson.String:
		s = strings.TrimSpace(v.Str)
	default:
		return decimal.Zero, false
	}
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

func quantity(v gjson.Result) int64 {
	d, ok := number(v)
	if !ok || d.IsNegative() || d.GreaterThan(maxQuantity) {
		return 1
	}
	return d.IntPart()
}

// money accepts only amounts that survive conversion to a finite float64.
func money(v gjson.Result) decimal.Decimal {
	d, ok := number(v)
	if !ok || d.IsNegative() || !finite(d) {
		return decimal.Zero
	}
	return d
}

func finite(d decimal.Decimal) bool {
	f := d.InexactFloat64()
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
