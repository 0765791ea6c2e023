// Package validation holds the fixed field rules every product must satisfy
// before it reaches a storage gateway.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"product-catalog/internal/catalog"

	"github.com/go-playground/validator/v10"
)

const (
	NameMinLength        = 5
	NameMaxLength        = 255
	DescriptionMinLength = 5
	DescriptionMaxLength = 100
	PriceMin             = 5
	PriceMax             = 200

	RuleRequired = "required"
	RuleLength   = "length"
	RulePositive = "positive"
	RuleRange    = "range"

	msgNotBlank = "This value should not be blank."
	msgPositive = "This value should be positive."
)

type rule struct {
	field    string
	name     string
	tag      string
	min, max int
	value    func(p catalog.Product) any
	// keyed by the validator tag that failed
	messages map[string]string
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	rules = []rule{
		{
			field:    "name",
			name:     RuleRequired,
			tag:      "required",
			value:    func(p catalog.Product) any { return strings.TrimSpace(p.Name) },
			messages: map[string]string{"required": msgNotBlank},
		},
		lengthRule("name", NameMinLength, NameMaxLength, "Name",
			func(p catalog.Product) any { return p.Name }),
		{
			field:    "price",
			name:     RulePositive,
			tag:      "gt=0",
			value:    func(p catalog.Product) any { return p.Price },
			messages: map[string]string{"gt": msgPositive},
		},
		{
			field: "price",
			name:  RuleRange,
			tag:   fmt.Sprintf("gte=%d,lte=%d", PriceMin, PriceMax),
			min:   PriceMin,
			max:   PriceMax,
			value: func(p catalog.Product) any { return p.Price },
			messages: map[string]string{
				"gte": "A product can only be sold between {{ min }} EUR and {{ max }} EUR.",
				"lte": "A product can only be sold between {{ min }} EUR and {{ max }} EUR.",
			},
		},
		{
			field:    "description",
			name:     RuleRequired,
			tag:      "required",
			value:    func(p catalog.Product) any { return strings.TrimSpace(p.Description) },
			messages: map[string]string{"required": msgNotBlank},
		},
		lengthRule("description", DescriptionMinLength, DescriptionMaxLength, "Description",
			func(p catalog.Product) any { return p.Description }),
	}
)

func lengthRule(field string, min, max int, label string, value func(p catalog.Product) any) rule {
	return rule{
		field: field,
		name:  RuleLength,
		tag:   fmt.Sprintf("min=%d,max=%d", min, max),
		min:   min,
		max:   max,
		value: value,
		messages: map[string]string{
			"min": label + " must be at least {{ min }} characters long.",
			"max": label + " cannot be longer than {{ max }} characters.",
		},
	}
}

// Validate runs every rule against p and returns all violations. A nil result means p is valid.
func Validate(p catalog.Product) []catalog.Violation {
	var violations []catalog.Violation
	for _, r := range rules {
		if v, ok := r.check(p); !ok {
			violations = append(violations, v)
		}
	}
	return violations
}

// Check wraps Validate into the error form the service returns.
func Check(p catalog.Product) error {
	if violations := Validate(p); len(violations) > 0 {
		return &catalog.ValidationError{Violations: violations}
	}
	return nil
}

func (r rule) check(p catalog.Product) (catalog.Violation, bool) {
	err := validate.Var(r.value(p), r.tag)
	if err == nil {
		return catalog.Violation{}, true
	}

	failed := r.name
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		failed = verrs[0].Tag()
	}

	tmpl, ok := r.messages[failed]
	if !ok {
		tmpl = "This value is not valid."
	}

	return catalog.Violation{
		Field:   r.field,
		Rule:    r.name,
		Message: r.interpolate(tmpl),
	}, false
}

func (r rule) interpolate(tmpl string) string {
	return strings.NewReplacer(
		"{{ min }}", strconv.Itoa(r.min),
		"{{ max }}", strconv.Itoa(r.max),
	).Replace(tmpl)
}
