// Package store defines the document backend boundary that squads are persisted through.
// Implementations live in the memory, firestore and sqlstore subpackages.
package store

import (
	"context"
	"errors"

	"shopsquad/internal/models"
)

// CollectionName is where squads are kept in document backends
const CollectionName = "parties"

var ErrClosed = errors.New("store closed")

// Snapshot is the full set of squads matching a subscription at one point in time.
// A non-nil Err ends the subscription.
type Snapshot struct {
	Squads []models.Squad
	Err    error
}

// Subscription is a live query. Updates delivers snapshots in the order the
// backend produced them; Unsubscribe must be called once the consumer is done.
type Subscription interface {
	Updates() <-chan Snapshot
	Unsubscribe()
}

// Backend persists squads. Implementations must be safe for concurrent use.
type Backend interface {
	// CreateSquad persists a new squad. The squad.ID field is populated by the backend.
	CreateSquad(ctx context.Context, squad *models.Squad) error

	// GetSquad returns apperrors.ErrNotFound when the squad does not exist.
	GetSquad(ctx context.Context, squadID string) (*models.Squad, error)

	// ListSquads returns every squad that has participantID among its participants.
	ListSquads(ctx context.Context, participantID string) ([]models.Squad, error)

	// UpdateSquad merges the non-nil fields of patch.
	UpdateSquad(ctx context.Context, squadID string, patch models.SquadPatch) error

	// AddParticipant appends p unless a participant with the same id is
	// already present, and returns the resulting squad. added is false when
	// p was already a participant.
	AddParticipant(ctx context.Context, squadID string, p models.Participant) (squad *models.Squad, added bool, err error)

	// AppendProduct adds product to the squad's list without rewriting the list.
	AppendProduct(ctx context.Context, squadID string, product models.Product) error

	// AssignProduct sets (or clears, when assignee is nil) the assignedTo field
	// of one product. The assignee must be a participant.
	AssignProduct(ctx context.Context, squadID, productID string, assignee *string) error

	// SubscribeSquads opens a live ListSquads query for participantID.
	SubscribeSquads(ctx context.Context, participantID string) (Subscription, error)

	Close() error
}

// Change announces that a squad was written
type Change struct {
	SquadID        string   `json:"squad_id"`
	ParticipantIDs []string `json:"participant_ids"`
}

// Affects reports whether participantID can see the changed squad
func (c Change) Affects(participantID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == participantID {
			return true
		}
	}
	return false
}

// Notifier fans out changes between processes for backends without native push queries.
type Notifier interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe returns a channel of changes and a cancel func that closes it.
	Subscribe(ctx context.Context) (<-chan Change, func(), error)
}
