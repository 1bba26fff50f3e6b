package models

import (
	"shopsquad/internal/timestamp"
)

// Participant is a snapshot of an identity taken when it joined a squad
type Participant struct {
	ID     string `json:"id" firestore:"id"`
	Name   string `json:"name" firestore:"name"`
	Avatar string `json:"avatar" firestore:"avatar"`
}

// Squad is a shopping group with a scheduled meetup and a shared product list
type Squad struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Date         timestamp.Timestamp `json:"date"`
	Location     string              `json:"location"`
	OrganizerID  string              `json:"organizer_id"`
	Organizer    string              `json:"organizer"`
	Participants []Participant       `json:"participants"`
	Products     []Product           `json:"products"`
	CreatedAt    timestamp.Timestamp `json:"created_at"`
}

// HasParticipant reports whether id is among the squad's participants
func (s Squad) HasParticipant(id string) bool {
	return s.Participant(id) != nil
}

// Participant returns the snapshot for id, or nil
func (s Squad) Participant(id string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i]
		}
	}
	return nil
}

// Product returns the product with the given id, or nil
func (s Squad) Product(id string) *Product {
	for i := range s.Products {
		if s.Products[i].ID == id {
			return &s.Products[i]
		}
	}
	return nil
}

// ParticipantIDs lists participant ids in join order
func (s Squad) ParticipantIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// Clone returns a deep copy safe to hand to another goroutine
func (s Squad) Clone() Squad {
	out := s
	out.Participants = append([]Participant(nil), s.Participants...)
	out.Products = make([]Product, len(s.Products))
	for i, p := range s.Products {
		out.Products[i] = p.Clone()
	}
	return out
}

// SquadPatch holds the fields of a partial squad update. Nil fields are left untouched.
type SquadPatch struct {
	Title    *string              `json:"title,omitempty"`
	Date     *timestamp.Timestamp `json:"date,omitempty"`
	Location *string              `json:"location,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p SquadPatch) IsEmpty() bool {
	return p.Title == nil && p.Date == nil && p.Location == nil
}

// Apply merges the patch into s
func (p SquadPatch) Apply(s *Squad) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Date != nil {
		s.Date = *p.Date
	}
	if p.Location != nil {
		s.Location = *p.Location
	}
}
