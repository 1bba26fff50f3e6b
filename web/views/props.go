// Package views holds the server-rendered pages. The .templ files are the
// source; run `templ generate` after editing them.
package views

import (
	"strconv"
	"time"

	"shopsquad/internal/cost"
	"shopsquad/internal/models"
)

type ErrorPageProps struct {
	Identity *models.Identity
	Code     int
	Title    string
	Message  string
}

type LoginPageProps struct {
	FirebaseAPIKey     string
	FirebaseAuthDomain string
	FirebaseProjectID  string
	Error              string
	Next               string
}

// NextPath is where the browser goes after a successful login.
func (p LoginPageProps) NextPath() string {
	if p.Next == "" {
		return "/squads"
	}
	return p.Next
}

type JoinPageProps struct {
	Identity *models.Identity
	Squad    models.Squad
	IsMember bool
	Location *time.Location
}

type SquadsPageProps struct {
	Identity  *models.Identity
	Squads    []models.Squad
	Location  *time.Location
	FormError string
}

type SquadPageProps struct {
	Identity     *models.Identity
	Squad        models.Squad
	Distribution cost.Distribution
	InviteLink   string
	MapsURL      string
	Location     *time.Location
	Catalog      []models.CatalogProduct
	// CanAssign decides whether the assignee selector is enabled for a product
	CanAssign func(models.Product) bool
	FormError string
}

func (p SquadPageProps) canAssign(product models.Product) bool {
	return p.CanAssign != nil && p.CanAssign(product)
}

func participantName(s models.Squad, id string) string {
	if p := s.Participant(id); p != nil {
		return p.Name
	}
	return "Former member"
}

// meterValue renders a share for a <meter min="0" max="1">.
func meterValue(share float64) string {
	return strconv.FormatFloat(share, 'f', 4, 64)
}
