package products

import (
	"net/url"

	"github.com/shopspring/decimal"
)

// Field names accepted from forms and JSON bodies.
const (
	FieldCode        = "code"
	FieldName        = "name"
	FieldQuantity    = "quantity"
	FieldPrice       = "price"
	FieldDescription = "description"
)

// Fields is the raw product input. Values may be strings (form posts) or
// JSON scalars; a missing key means the field was not submitted.
type Fields map[string]any

// FieldsFromForm collects the product fields present in a parsed form.
func FieldsFromForm(form url.Values) Fields {
	fields := make(Fields, 5)
	for _, name := range []string{FieldCode, FieldName, FieldQuantity, FieldPrice, FieldDescription} {
		if values, ok := form[name]; ok && len(values) > 0 {
			fields[name] = values[0]
		}
	}
	return fields
}

// Attributes are the normalized values of an accepted input.
type Attributes struct {
	Code        string
	Name        string
	Quantity    int
	Price       decimal.Decimal
	Description *string
}
