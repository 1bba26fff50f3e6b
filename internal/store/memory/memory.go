// Package memory is an in-process store.Backend used by tests and local development.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
	"shopsquad/internal/store"
)

type subscriber struct {
	participantID string
	stream        *store.Stream
}

// Store keeps squads in a map guarded by a single mutex. Every write that
// touches a squad re-evaluates the live queries of its participants.
type Store struct {
	mu          sync.Mutex
	squads      map[string]*models.Squad
	order       []string
	subscribers map[*subscriber]struct{}
	closed      bool
}

var _ store.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		squads:      make(map[string]*models.Squad),
		subscribers: make(map[*subscriber]struct{}),
	}
}

func (s *Store) CreateSquad(ctx context.Context, squad *models.Squad) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Persistence("memory.CreateSquad", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.Persistence("memory.CreateSquad", store.ErrClosed)
	}

	squad.ID = uuid.NewString()
	if squad.Products == nil {
		squad.Products = []models.Product{}
	}
	stored := squad.Clone()
	s.squads[squad.ID] = &stored
	s.order = append(s.order, squad.ID)
	s.notifyLocked(&stored)
	return nil
}

func (s *Store) GetSquad(ctx context.Context, squadID string) (*models.Squad, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Persistence("memory.GetSquad", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	squad, ok := s.squads[squadID]
	if !ok {
		return nil, apperrors.NotFound("memory.GetSquad", "Squad not found")
	}
	out := squad.Clone()
	return &out, nil
}

func (s *Store) ListSquads(ctx context.Context, participantID string) ([]models.Squad, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Persistence("memory.ListSquads", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(participantID), nil
}

func (s *Store) UpdateSquad(ctx context.Context, squadID string, patch models.SquadPatch) error {
	return s.mutate(ctx, "memory.UpdateSquad", squadID, func(squad *models.Squad) error {
		patch.Apply(squad)
		return nil
	})
}

func (s *Store) AddParticipant(ctx context.Context, squadID string, p models.Participant) (*models.Squad, bool, error) {
	var (
		out   models.Squad
		added bool
	)
	err := s.mutate(ctx, "memory.AddParticipant", squadID, func(squad *models.Squad) error {
		if !squad.HasParticipant(p.ID) {
			squad.Participants = append(squad.Participants, p)
			added = true
		}
		out = squad.Clone()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, added, nil
}

func (s *Store) AppendProduct(ctx context.Context, squadID string, product models.Product) error {
	return s.mutate(ctx, "memory.AppendProduct", squadID, func(squad *models.Squad) error {
		squad.Products = append(squad.Products, product.Clone())
		return nil
	})
}

func (s *Store) AssignProduct(ctx context.Context, squadID, productID string, assignee *string) error {
	return s.mutate(ctx, "memory.AssignProduct", squadID, func(squad *models.Squad) error {
		product := squad.Product(productID)
		if product == nil {
			return apperrors.NotFound("memory.AssignProduct", "Product not found")
		}
		if assignee != nil && !squad.HasParticipant(*assignee) {
			return apperrors.Validation("memory.AssignProduct", "Assignee must be a member of the squad")
		}
		if assignee == nil {
			product.AssignedTo = nil
			return nil
		}
		id := *assignee
		product.AssignedTo = &id
		return nil
	})
}

// SubscribeSquads delivers the current result right away and again after every
// write to a squad the participant belongs to.
func (s *Store) SubscribeSquads(ctx context.Context, participantID string) (store.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, apperrors.Persistence("memory.SubscribeSquads", store.ErrClosed)
	}

	sub := &subscriber{participantID: participantID}
	sub.stream = store.NewStream(func() {
		s.mu.Lock()
		delete(s.subscribers, sub)
		s.mu.Unlock()
	})
	s.subscribers[sub] = struct{}{}
	sub.stream.Push(store.Snapshot{Squads: s.listLocked(participantID)})

	go func() {
		select {
		case <-ctx.Done():
			sub.stream.Unsubscribe()
		case <-sub.stream.Done():
		}
	}()
	return sub.stream, nil
}

// Close ends every open subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	subs := make([]*subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.stream.Unsubscribe()
	}
	return nil
}

func (s *Store) mutate(ctx context.Context, op, squadID string, fn func(*models.Squad) error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Persistence(op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.Persistence(op, store.ErrClosed)
	}

	squad, ok := s.squads[squadID]
	if !ok {
		return apperrors.NotFound(op, "Squad not found")
	}
	working := squad.Clone()
	if err := fn(&working); err != nil {
		return err
	}
	before := squad.ParticipantIDs()
	*squad = working
	s.notifyLocked(squad, before...)
	return nil
}

// notifyLocked pushes fresh results to subscribers who can see squad, plus
// anyone listed in extra.
func (s *Store) notifyLocked(squad *models.Squad, extra ...string) {
	change := store.Change{SquadID: squad.ID, ParticipantIDs: append(squad.ParticipantIDs(), extra...)}
	for sub := range s.subscribers {
		if change.Affects(sub.participantID) {
			sub.stream.Push(store.Snapshot{Squads: s.listLocked(sub.participantID)})
		}
	}
}

// listLocked returns matches in creation order.
func (s *Store) listLocked(participantID string) []models.Squad {
	out := []models.Squad{}
	for _, id := range s.order {
		squad := s.squads[id]
		if squad.HasParticipant(participantID) {
			out = append(out, squad.Clone())
		}
	}
	return out
}
