package handlers

import (
	"time"

	"shopsquad/internal/cost"
	"shopsquad/internal/models"
)

// SquadDetail is the API view of one squad
type SquadDetail struct {
	Squad        models.Squad      `json:"squad"`
	Distribution cost.Distribution `json:"distribution"`
	InviteLink   string            `json:"invite_link"`
	MapsURL      string            `json:"maps_url"`
}

// SquadsResponse wraps a squad listing
type SquadsResponse struct {
	Squads []models.Squad `json:"squads"`
}

type CreateSquadRequest struct {
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Location string    `json:"location"`
}

// UpdateSquadRequest carries only the fields being changed
type UpdateSquadRequest struct {
	Title    *string    `json:"title"`
	Date     *time.Time `json:"date"`
	Location *string    `json:"location"`
}

// AddProductRequest adds either a custom product or, when CatalogID is set, a catalog item
type AddProductRequest struct {
	CatalogID   string  `json:"catalog_id" form:"catalog_id"`
	Name        string  `json:"name" form:"name"`
	Price       float64 `json:"price" form:"price"`
	Image       string  `json:"image" form:"image"`
	Description string  `json:"description" form:"description"`
}

// AssignRequest sets the assignee; null clears it
type AssignRequest struct {
	Assignee *string `json:"assignee"`
}

type CatalogResponse struct {
	Items      []models.CatalogProduct `json:"items"`
	Categories []string                `json:"categories"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
