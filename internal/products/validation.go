package products

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Field limits.
const (
	MaxTextLength = 255
	MinQuantity   = 1
	MaxQuantity   = 10000

	// PriceScale is the number of decimal places stored for a price.
	PriceScale = 2
	// maxPriceIntegerDigits matches the NUMERIC(12,2) price column.
	maxPriceIntegerDigits = 10
	// maxPriceFraction bounds the fractional digits read from input before rounding.
	maxPriceFraction = 24
	maxNumberLength  = 64
)

// MaxPrice is the largest price the products table can hold.
var MaxPrice = decimal.RequireFromString("9999999999.99")

// CodeLookup answers whether a product other than excludingID already uses code.
type CodeLookup interface {
	ExistsWithCode(ctx context.Context, code string, excludingID *int64) (bool, error)
}

// Outcome is the decision for one input. Attributes are only set when Accepted.
type Outcome struct {
	Attributes Attributes
	Errors     FieldErrors
}

// Accepted reports whether every field passed.
func (o Outcome) Accepted() bool {
	return len(o.Errors) == 0
}

// check pairs a validator tag, or a predicate on the parsed value, with the
// reason reported when it fails.
type check struct {
	tag     string
	fn      func(any) bool
	reason  Reason
	message string
}

// fieldRule describes one field. parse converts the trimmed text into its
// typed value; checks run in order against that value.
type fieldRule struct {
	name     string
	required bool
	parse    func(string) (any, bool)
	invalid  string
	checks   []check
}

var productRules = []fieldRule{
	{
		name:     FieldCode,
		required: true,
		checks: []check{
			{tag: "max=255", reason: ReasonTooLong, message: "The code field must not be greater than 255 characters."},
		},
	},
	{
		name:     FieldName,
		required: true,
		checks: []check{
			{tag: "max=255", reason: ReasonTooLong, message: "The name field must not be greater than 255 characters."},
		},
	},
	{
		name:     FieldQuantity,
		required: true,
		parse:    parseInteger,
		invalid:  "The quantity field must be an integer.",
		checks: []check{
			{tag: "min=1,max=10000", reason: ReasonOutOfRange, message: "The quantity field must be between 1 and 10000."},
		},
	},
	{
		name:     FieldPrice,
		required: true,
		parse:    parsePrice,
		invalid:  "The price field must be a number.",
		checks: []check{
			{fn: priceNotNegative, reason: ReasonOutOfRange, message: "The price field must be at least 0."},
			{fn: priceWithinMax, reason: ReasonOutOfRange, message: "The price field must not be greater than 9999999999.99."},
		},
	},
	{
		name:    FieldDescription,
		invalid: "The description field must be a string.",
	},
}

// Validator decides whether product input may be stored.
type Validator struct {
	lookup   CodeLookup
	validate *validator.Validate
}

// NewValidator returns a Validator that checks code uniqueness against lookup.
func NewValidator(lookup CodeLookup) *Validator {
	return &Validator{
		lookup:   lookup,
		validate: validator.New(),
	}
}

// ValidateForCreate checks input for a new product.
func (v *Validator) ValidateForCreate(ctx context.Context, fields Fields) (Outcome, error) {
	return v.run(ctx, fields, nil)
}

// ValidateForUpdate checks input for the existing product existingID, which
// may keep its own code. The caller has already resolved that the product exists.
func (v *Validator) ValidateForUpdate(ctx context.Context, fields Fields, existingID int64) (Outcome, error) {
	return v.run(ctx, fields, &existingID)
}

func (v *Validator) run(ctx context.Context, fields Fields, excludingID *int64) (Outcome, error) {
	errs := make(FieldErrors)
	values := make(map[string]any, len(productRules))

	for _, rule := range productRules {
		value, ok := v.evaluate(rule, fields[rule.name], errs)
		if ok {
			values[rule.name] = value
		}
	}

	if code, ok := values[FieldCode].(string); ok && !errs.Has(FieldCode) {
		taken, err := v.lookup.ExistsWithCode(ctx, code, excludingID)
		if err != nil {
			return Outcome{}, fmt.Errorf("products: code lookup: %w", err)
		}
		if taken {
			errs.Add(FieldCode, ReasonNotUnique, "The code has already been taken.")
		}
	}

	if len(errs) > 0 {
		return Outcome{Errors: errs}, nil
	}

	attrs := Attributes{
		Code:     values[FieldCode].(string),
		Name:     values[FieldName].(string),
		Quantity: values[FieldQuantity].(int),
		Price:    values[FieldPrice].(decimal.Decimal).Round(PriceScale),
	}
	if desc, ok := values[FieldDescription].(string); ok && desc != "" {
		attrs.Description = &desc
	}
	return Outcome{Attributes: attrs}, nil
}

// evaluate applies rule to raw and records violations. It returns the typed
// value and whether it is usable.
func (v *Validator) evaluate(rule fieldRule, raw any, errs FieldErrors) (any, bool) {
	text, err := cast.ToStringE(raw)
	if err != nil {
		errs.Add(rule.name, ReasonInvalidFormat, rule.invalid)
		return nil, false
	}
	text = strings.TrimSpace(text)

	if text == "" {
		if rule.required {
			errs.Add(rule.name, ReasonRequired, fmt.Sprintf("The %s field is required.", rule.name))
			return nil, false
		}
		return text, true
	}

	var value any = text
	if rule.parse != nil {
		parsed, ok := rule.parse(text)
		if !ok {
			errs.Add(rule.name, ReasonInvalidFormat, rule.invalid)
			return nil, false
		}
		value = parsed
	}

	for _, c := range rule.checks {
		if !v.passes(c, value) {
			errs.Add(rule.name, c.reason, c.message)
		}
	}
	return value, !errs.Has(rule.name)
}

func (v *Validator) passes(c check, value any) bool {
	if c.fn != nil {
		return c.fn(value)
	}
	return v.validate.Var(value, c.tag) == nil
}

func parseInteger(text string) (any, bool) {
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, false
	}
	return n, true
}

// parsePrice reads a decimal. Exponent notation is accepted, so the exponent
// is bounded here and every later comparison works on a small coefficient.
func parsePrice(text string) (any, bool) {
	if len(text) > maxNumberLength {
		return nil, false
	}
	d, err := decimal.NewFromString(text)
	if err != nil || d.Exponent() < -maxPriceFraction {
		return nil, false
	}
	if d.IsZero() {
		return decimal.Zero, true
	}
	return d, true
}

func priceNotNegative(value any) bool {
	return value.(decimal.Decimal).Sign() >= 0
}

// priceWithinMax never rescales a value whose exponent alone puts it past MaxPrice.
func priceWithinMax(value any) bool {
	d := value.(decimal.Decimal)
	if d.Sign() <= 0 {
		return true
	}
	if d.Exponent() > maxPriceIntegerDigits {
		return false
	}
	return d.LessThanOrEqual(MaxPrice)
}
