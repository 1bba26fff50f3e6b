// Package squads manages squad membership and live squad listings for an identity.
package squads

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
	"shopsquad/internal/store"
	"shopsquad/internal/timestamp"
)

// Hooks observe successful directory writes. Any field may be nil. Joined
// fires only when the participant was not a member yet.
type Hooks struct {
	Created func(ctx context.Context, squad models.Squad)
	Joined  func(ctx context.Context, squad models.Squad, participant models.Participant)
}

// Directory is the squad directory on top of a store.Backend.
type Directory struct {
	backend store.Backend
	hooks   Hooks
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Directory)

func WithHooks(h Hooks) Option {
	return func(d *Directory) { d.hooks = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) { d.logger = l }
}

func NewDirectory(backend store.Backend, opts ...Option) *Directory {
	d := &Directory{backend: backend, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// List opens a live feed of the squads identity participates in.
func (d *Directory) List(ctx context.Context, identity *models.Identity) (*Feed, error) {
	if identity == nil {
		return nil, apperrors.Unauthenticated("squads.List", "Please log in to see your squads.")
	}

	sub, err := d.backend.SubscribeSquads(ctx, identity.ID)
	if err != nil {
		return nil, apperrors.Persistence("squads.List", err)
	}
	return newFeed(sub), nil
}

// Snapshot fetches the identity's squads once, most recent date first.
func (d *Directory) Snapshot(ctx context.Context, identity *models.Identity) ([]models.Squad, error) {
	if identity == nil {
		return nil, apperrors.Unauthenticated("squads.Snapshot", "Please log in to see your squads.")
	}

	list, err := d.backend.ListSquads(ctx, identity.ID)
	if err != nil {
		return nil, apperrors.Persistence("squads.Snapshot", err)
	}
	SortByDate(list)
	return list, nil
}

// Create persists a new squad organized by identity, who is also its only participant.
func (d *Directory) Create(ctx context.Context, identity *models.Identity, title string, date time.Time, location string) (*models.Squad, error) {
	const op = "squads.Create"
	if identity == nil {
		return nil, apperrors.Unauthenticated(op, "Please log in to create a squad.")
	}

	title = strings.TrimSpace(title)
	location = strings.TrimSpace(location)
	if title == "" || location == "" || date.IsZero() {
		return nil, apperrors.Validation(op, "Please fill in all fields")
	}
	when, err := timestamp.ToBackend(date)
	if err != nil {
		return nil, apperrors.Validation(op, "Please pick a valid date")
	}

	squad := &models.Squad{
		Title:        title,
		Date:         when,
		Location:     location,
		OrganizerID:  identity.ID,
		Organizer:    identity.OrganizerName(),
		Participants: []models.Participant{identity.Participant()},
		Products:     []models.Product{},
		CreatedAt:    timestamp.MustToBackend(d.now()),
	}
	if err := d.backend.CreateSquad(ctx, squad); err != nil {
		return nil, apperrors.Persistence(op, err)
	}

	d.logger.Info("squad created", "squad_id", squad.ID, "organizer_id", identity.ID)
	if d.hooks.Created != nil {
		d.hooks.Created(ctx, *squad)
	}
	return squad, nil
}

// Update merges patch into the squad. It never reaches the backend without an identity.
func (d *Directory) Update(ctx context.Context, identity *models.Identity, squadID string, patch models.SquadPatch) error {
	const op = "squads.Update"
	if identity == nil {
		return apperrors.Unauthenticated(op, "Please log in to edit this squad.")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return apperrors.Validation(op, "Title cannot be empty")
	}
	if patch.Location != nil && strings.TrimSpace(*patch.Location) == "" {
		return apperrors.Validation(op, "Location cannot be empty")
	}
	if patch.Date != nil && patch.Date.IsZero() {
		return apperrors.Validation(op, "Please pick a valid date")
	}

	if err := d.backend.UpdateSquad(ctx, squadID, trimPatch(patch)); err != nil {
		return apperrors.Persistence(op, err)
	}
	return nil
}

// Join adds identity to the squad. Joining a squad one already belongs to
// returns the squad unchanged.
func (d *Directory) Join(ctx context.Context, squadID string, identity *models.Identity) (*models.Squad, error) {
	const op = "squads.Join"
	if identity == nil {
		return nil, apperrors.Unauthenticated(op, "Please log in to join this squad.")
	}

	participant := identity.Participant()
	squad, added, err := d.backend.AddParticipant(ctx, squadID, participant)
	if err != nil {
		return nil, apperrors.Persistence(op, err)
	}

	if added && d.hooks.Joined != nil {
		d.hooks.Joined(ctx, *squad, participant)
	}
	return squad, nil
}

func (d *Directory) Get(ctx context.Context, squadID string) (*models.Squad, error) {
	squad, err := d.backend.GetSquad(ctx, squadID)
	if err != nil {
		return nil, apperrors.Persistence("squads.Get", err)
	}
	return squad, nil
}

// SortByDate orders squads by meetup date, most recent first.
func SortByDate(list []models.Squad) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[j].Date.Before(list[i].Date)
	})
}

// IsParticipant reports whether userID belongs to squad.
func IsParticipant(squad *models.Squad, userID string) bool {
	return squad != nil && squad.HasParticipant(userID)
}

// InviteLink is the page a participant shares so others can join.
func InviteLink(baseURL, squadID string) string {
	return strings.TrimRight(baseURL, "/") + "/join/" + url.PathEscape(squadID)
}

// MapsURL points at a map search for the meetup location.
func MapsURL(location string) string {
	return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(location)
}

func trimPatch(p models.SquadPatch) models.SquadPatch {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	if p.Location != nil {
		l := strings.TrimSpace(*p.Location)
		p.Location = &l
	}
	return p
}
