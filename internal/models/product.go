package models

import (
	"shopsquad/internal/timestamp"
)

// Product is a line on a squad's shopping list
type Product struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Price       float64             `json:"price"`
	Image       string              `json:"image,omitempty"`
	Description string              `json:"description,omitempty"`
	AddedBy     string              `json:"added_by"`
	AddedAt     timestamp.Timestamp `json:"added_at"`
	AssignedTo  *string             `json:"assigned_to,omitempty"` // participant bearing the cost
}

// IsAssignedTo reports whether participantID bears the product's cost
func (p Product) IsAssignedTo(participantID string) bool {
	return p.AssignedTo != nil && *p.AssignedTo == participantID
}

// Clone copies the product including its assignee pointer
func (p Product) Clone() Product {
	if p.AssignedTo != nil {
		assignee := *p.AssignedTo
		p.AssignedTo = &assignee
	}
	return p
}

// CatalogProduct is static reference data offered when adding products
type CatalogProduct struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand"`
}
