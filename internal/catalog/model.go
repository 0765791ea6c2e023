package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("product not found")
	ErrDeleteUnauthorized = errors.New("delete unauthorized")
)

const (
	EventsQueue  = "catalog.events"
	EventCreated = "product_created"
	EventUpdated = "product_updated"
	EventDeleted = "product_deleted"
)

// Product is the catalog entity. A zero ID means the record was never persisted.
type Product struct {
	ID          int64      `json:"id" example:"1"`
	Name        string     `json:"name" example:"Widget"`
	Price       int        `json:"price" example:"50"`
	Description string     `json:"description" example:"A sturdy widget"`
	CreatedAt   time.Time  `json:"created_at" example:"2026-02-24T12:00:00Z"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" example:"2026-02-25T09:30:00Z"`
}

// Persisted reports whether the record has been assigned an id by a storage gateway.
func (p Product) Persisted() bool {
	return p.ID != 0
}

// Input carries user-supplied fields. On update, nil fields keep the stored value.
type Input struct {
	Name        *string `json:"name" example:"Widget"`
	Price       *int    `json:"price" example:"50"`
	Description *string `json:"description" example:"A sturdy widget"`
}

// NewProduct builds an unpersisted candidate stamped with createdAt.
func NewProduct(in Input, createdAt time.Time) Product {
	p := Product{CreatedAt: createdAt}
	in.ApplyTo(&p)
	return p
}

// ApplyTo merges the non-nil fields onto p. ID and CreatedAt are never touched.
func (in Input) ApplyTo(p *Product) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
}

type Violation struct {
	Field   string `json:"field" example:"price"`
	Rule    string `json:"rule" example:"range"`
	Message string `json:"message" example:"A product can only be sold between 5 EUR and 200 EUR."`
}

// ValidationError is returned when a candidate record breaks one or more field rules.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the distinct field names that have violations, in rule order.
func (e *ValidationError) Fields() []string {
	seen := make(map[string]struct{}, len(e.Violations))
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if _, ok := seen[v.Field]; ok {
			continue
		}
		seen[v.Field] = struct{}{}
		fields = append(fields, v.Field)
	}
	return fields
}

type ProductEvent struct {
	EventType string    `json:"event_type"`
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
