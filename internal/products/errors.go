package products

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/odyssey-erp/catalog/internal/shared"
)

// Reason classifies why a field was rejected.
type Reason string

const (
	ReasonRequired      Reason = "REQUIRED"
	ReasonTooLong       Reason = "TOO_LONG"
	ReasonNotUnique     Reason = "NOT_UNIQUE"
	ReasonOutOfRange    Reason = "OUT_OF_RANGE"
	ReasonInvalidFormat Reason = "INVALID_FORMAT"
)

// Violation is a single failed rule on a field.
type Violation struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// FieldErrors maps a field name to its violations in rule order.
type FieldErrors map[string][]Violation

// Add appends a violation for field.
func (e FieldErrors) Add(field string, reason Reason, message string) {
	e[field] = append(e[field], Violation{Reason: reason, Message: message})
}

// Has reports whether field was rejected.
func (e FieldErrors) Has(field string) bool {
	return len(e[field]) > 0
}

// Reasons lists the reason codes recorded for field.
func (e FieldErrors) Reasons(field string) []Reason {
	return lo.Map(e[field], func(v Violation, _ int) Reason { return v.Reason })
}

// Messages flattens the violations to display text keyed by field.
func (e FieldErrors) Messages() map[string][]string {
	return lo.MapValues(e, func(violations []Violation, _ string) []string {
		return lo.Map(violations, func(v Violation, _ int) string { return v.Message })
	})
}

// ValidationError carries the field errors of a rejected input.
type ValidationError struct {
	Errors FieldErrors
}

func (e *ValidationError) Error() string {
	fields := lo.Keys(map[string][]Violation(e.Errors))
	sort.Strings(fields)
	return "products: invalid " + strings.Join(fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return shared.ErrValidation
}
