// Package sqlstore persists squads in PostgreSQL through gorm. Live queries are
// re-evaluated whenever a change is announced through a store.Notifier.
package sqlstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
	"shopsquad/internal/store"
)

// Store is a store.Backend on top of a gorm connection.
type Store struct {
	db       *gorm.DB
	notifier store.Notifier
	hub      *hub
	logger   *slog.Logger

	stopListening func()
	listenerDone  chan struct{}
}

var _ store.Backend = (*Store)(nil)

// New returns a Store. With a nil notifier changes only reach subscriptions
// opened on this Store.
func New(ctx context.Context, db *gorm.DB, notifier store.Notifier, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, notifier: notifier, logger: logger}
	s.hub = newHub(s.ListSquads, logger)

	if notifier != nil {
		changes, cancel, err := notifier.Subscribe(ctx)
		if err != nil {
			return nil, apperrors.Persistence("sqlstore.New", err)
		}
		s.stopListening = cancel
		s.listenerDone = make(chan struct{})
		go func() {
			defer close(s.listenerDone)
			for change := range changes {
				s.hub.dispatch(change)
			}
		}()
	}
	return s, nil
}

func (s *Store) CreateSquad(ctx context.Context, squad *models.Squad) error {
	squad.ID = uuid.NewString()
	row := toRow(squad)

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		squad.ID = ""
		return apperrors.Persistence("sqlstore.CreateSquad", err)
	}
	squad.CreatedAt = row.toModel().CreatedAt
	if squad.Products == nil {
		squad.Products = []models.Product{}
	}

	s.announce(ctx, store.Change{SquadID: squad.ID, ParticipantIDs: squad.ParticipantIDs()})
	return nil
}

func (s *Store) GetSquad(ctx context.Context, squadID string) (*models.Squad, error) {
	var row squadRow
	err := s.withChildren(s.db.WithContext(ctx)).First(&row, "id = ?", squadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("sqlstore.GetSquad", "Squad not found")
	}
	if err != nil {
		return nil, apperrors.Persistence("sqlstore.GetSquad", err)
	}
	squad := row.toModel()
	return &squad, nil
}

func (s *Store) ListSquads(ctx context.Context, participantID string) ([]models.Squad, error) {
	db := s.db.WithContext(ctx)
	member := db.Model(&participantRow{}).Select("squad_id").Where("participant_id = ?", participantID)

	var rows []squadRow
	err := s.withChildren(db).
		Where("id IN (?)", member).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Persistence("sqlstore.ListSquads", err)
	}

	out := make([]models.Squad, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) UpdateSquad(ctx context.Context, squadID string, patch models.SquadPatch) error {
	updates := map[string]interface{}{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Date != nil {
		updates["date"] = *patch.Date
	}
	if patch.Location != nil {
		updates["location"] = *patch.Location
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&squadRow{}).Where("id = ?", squadID).Updates(updates)
		if res.Error != nil {
			return apperrors.Persistence("sqlstore.UpdateSquad", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("sqlstore.UpdateSquad", "Squad not found")
		}
	} else if err := s.ensureSquad(ctx, "sqlstore.UpdateSquad", squadID); err != nil {
		return err
	}

	s.announceSquad(ctx, squadID)
	return nil
}

// AddParticipant relies on the (squad_id, participant_id) unique index so a
// repeated join is a no-op.
func (s *Store) AddParticipant(ctx context.Context, squadID string, p models.Participant) (*models.Squad, bool, error) {
	if err := s.ensureSquad(ctx, "sqlstore.AddParticipant", squadID); err != nil {
		return nil, false, err
	}

	row := participantRow{SquadID: squadID, ParticipantID: p.ID, Name: p.Name, Avatar: p.Avatar}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "squad_id"}, {Name: "participant_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		return nil, false, apperrors.Persistence("sqlstore.AddParticipant", res.Error)
	}

	squad, err := s.GetSquad(ctx, squadID)
	if err != nil {
		return nil, false, err
	}
	added := res.RowsAffected > 0
	if added {
		s.announce(ctx, store.Change{SquadID: squadID, ParticipantIDs: squad.ParticipantIDs()})
	}
	return squad, added, nil
}

func (s *Store) AppendProduct(ctx context.Context, squadID string, product models.Product) error {
	if err := s.ensureSquad(ctx, "sqlstore.AppendProduct", squadID); err != nil {
		return err
	}

	row := toProductRow(squadID, product)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return apperrors.Persistence("sqlstore.AppendProduct", err)
	}

	s.announceSquad(ctx, squadID)
	return nil
}

// AssignProduct updates the single assigned_to column of one product row.
func (s *Store) AssignProduct(ctx context.Context, squadID, productID string, assignee *string) error {
	const op = "sqlstore.AssignProduct"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var squads int64
		if err := tx.Model(&squadRow{}).Where("id = ?", squadID).Count(&squads).Error; err != nil {
			return err
		}
		if squads == 0 {
			return apperrors.NotFound(op, "Squad not found")
		}

		var value interface{}
		if assignee != nil {
			var members int64
			err := tx.Model(&participantRow{}).
				Where("squad_id = ? AND participant_id = ?", squadID, *assignee).
				Count(&members).Error
			if err != nil {
				return err
			}
			if members == 0 {
				return apperrors.Validation(op, "Assignee must be a member of the squad")
			}
			value = *assignee
		}

		res := tx.Model(&productRow{}).
			Where("id = ? AND squad_id = ?", productID, squadID).
			Update("assigned_to", value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound(op, "Product not found")
		}
		return nil
	})
	if err != nil {
		return apperrors.Persistence(op, err)
	}

	s.announceSquad(ctx, squadID)
	return nil
}

func (s *Store) SubscribeSquads(ctx context.Context, participantID string) (store.Subscription, error) {
	return s.hub.subscribe(ctx, participantID), nil
}

// Close ends open subscriptions and stops listening for changes. The gorm
// connection belongs to the caller.
func (s *Store) Close() error {
	if s.stopListening != nil {
		s.stopListening()
		<-s.listenerDone
	}
	s.hub.closeAll()
	return nil
}

func (s *Store) withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") })
}

func (s *Store) ensureSquad(ctx context.Context, op, squadID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&squadRow{}).Where("id = ?", squadID).Count(&count).Error; err != nil {
		return apperrors.Persistence(op, err)
	}
	if count == 0 {
		return apperrors.NotFound(op, "Squad not found")
	}
	return nil
}

func (s *Store) announceSquad(ctx context.Context, squadID string) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&participantRow{}).
		Where("squad_id = ?", squadID).
		Pluck("participant_id", &ids).Error
	if err != nil {
		s.logger.Warn("failed to load participants for change", "squad_id", squadID, "error", err)
		return
	}
	s.announce(ctx, store.Change{SquadID: squadID, ParticipantIDs: ids})
}

// announce publishes through the notifier, or straight to local subscriptions
// when there is none or publishing fails.
func (s *Store) announce(ctx context.Context, change store.Change) {
	if s.notifier == nil {
		s.hub.dispatch(change)
		return
	}
	if err := s.notifier.Publish(ctx, change); err != nil {
		s.logger.Warn("failed to publish squad change", "squad_id", change.SquadID, "error", err)
		s.hub.dispatch(change)
	}
}
