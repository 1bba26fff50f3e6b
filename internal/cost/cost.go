// Package cost computes how a squad's shopping list is split between participants.
package cost

import (
	"math"

	"shopsquad/internal/models"
)

// Line is one participant's part of the bill
type Line struct {
	Participant models.Participant `json:"participant"`
	Total       float64            `json:"total"`
	Share       float64            `json:"share"`
}

// Distribution is the full cost breakdown of a squad
type Distribution struct {
	Total      float64 `json:"total"`
	Unassigned float64 `json:"unassigned"`
	Lines      []Line  `json:"lines"`
}

// Total sums the price of every product
func Total(products []models.Product) float64 {
	sum := 0.0
	for _, p := range products {
		sum += p.Price
	}
	return sum
}

// ParticipantTotal sums the price of the products assigned to participantID
func ParticipantTotal(products []models.Product, participantID string) float64 {
	sum := 0.0
	for _, p := range products {
		if p.IsAssignedTo(participantID) {
			sum += p.Price
		}
	}
	return sum
}

// Unassigned sums the price of products nobody bears yet
func Unassigned(products []models.Product) float64 {
	sum := 0.0
	for _, p := range products {
		if p.AssignedTo == nil {
			sum += p.Price
		}
	}
	return sum
}

// Share is participantTotal as a fraction of total, 0 when total is 0
func Share(participantTotal, total float64) float64 {
	if total == 0 {
		return 0
	}
	share := participantTotal / total
	if math.IsNaN(share) || math.IsInf(share, 0) {
		return 0
	}
	return share
}

// Distribute breaks the products down per participant, in participant order
func Distribute(participants []models.Participant, products []models.Product) Distribution {
	total := Total(products)
	lines := make([]Line, 0, len(participants))
	for _, participant := range participants {
		pt := ParticipantTotal(products, participant.ID)
		lines = append(lines, Line{
			Participant: participant,
			Total:       pt,
			Share:       Share(pt, total),
		})
	}
	return Distribution{
		Total:      total,
		Unassigned: Unassigned(products),
		Lines:      lines,
	}
}

// ForSquad is Distribute over a squad's own participants and products
func ForSquad(s models.Squad) Distribution {
	return Distribute(s.Participants, s.Products)
}

// LineFor returns the line of participantID, or false
func (d Distribution) LineFor(participantID string) (Line, bool) {
	for _, l := range d.Lines {
		if l.Participant.ID == participantID {
			return l, true
		}
	}
	return Line{}, false
}
