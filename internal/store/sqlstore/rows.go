package sqlstore

import (
	"time"

	"shopsquad/internal/models"
	"shopsquad/internal/store"
	"shopsquad/internal/timestamp"
)

type squadRow struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Title       string              `gorm:"type:varchar(255)"`
	Date        timestamp.Timestamp `gorm:"type:timestamptz"`
	Location    string              `gorm:"type:text"`
	OrganizerID string              `gorm:"type:varchar(128);index"`
	Organizer   string              `gorm:"type:varchar(255)"`

	Participants []participantRow `gorm:"foreignKey:SquadID;constraint:OnDelete:CASCADE"`
	Products     []productRow     `gorm:"foreignKey:SquadID;constraint:OnDelete:CASCADE"`
}

func (squadRow) TableName() string { return store.CollectionName }

// participantRow keeps join order through its serial id.
type participantRow struct {
	ID            uint   `gorm:"primarykey"`
	SquadID       string `gorm:"type:varchar(36);uniqueIndex:idx_party_participant,priority:1"`
	ParticipantID string `gorm:"type:varchar(128);uniqueIndex:idx_party_participant,priority:2;index"`
	Name          string `gorm:"type:varchar(255)"`
	Avatar        string `gorm:"type:text"`
}

func (participantRow) TableName() string { return "party_participants" }

type productRow struct {
	ID      string `gorm:"primaryKey;type:varchar(36)"`
	Seq     uint   `gorm:"autoIncrement;not null"`
	SquadID string `gorm:"type:varchar(36);index"`

	Name        string              `gorm:"type:varchar(255)"`
	Price       float64             `gorm:"type:numeric(12,2)"`
	Image       string              `gorm:"type:text"`
	Description string              `gorm:"type:text"`
	AddedBy     string              `gorm:"type:varchar(128)"`
	AddedAt     timestamp.Timestamp `gorm:"type:timestamptz"`
	AssignedTo  *string             `gorm:"type:varchar(128)"`
}

func (productRow) TableName() string { return "party_products" }

// Models lists the tables the store needs, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{&squadRow{}, &participantRow{}, &productRow{}}
}

func toRow(squad *models.Squad) squadRow {
	row := squadRow{
		ID:          squad.ID,
		Title:       squad.Title,
		Date:        squad.Date,
		Location:    squad.Location,
		OrganizerID: squad.OrganizerID,
		Organizer:   squad.Organizer,
	}
	if !squad.CreatedAt.IsZero() {
		row.CreatedAt = squad.CreatedAt.Time()
	}
	for _, p := range squad.Participants {
		row.Participants = append(row.Participants, participantRow{
			SquadID:       squad.ID,
			ParticipantID: p.ID,
			Name:          p.Name,
			Avatar:        p.Avatar,
		})
	}
	for _, p := range squad.Products {
		row.Products = append(row.Products, toProductRow(squad.ID, p))
	}
	return row
}

func toProductRow(squadID string, p models.Product) productRow {
	return productRow{
		ID:          p.ID,
		SquadID:     squadID,
		Name:        p.Name,
		Price:       p.Price,
		Image:       p.Image,
		Description: p.Description,
		AddedBy:     p.AddedBy,
		AddedAt:     p.AddedAt,
		AssignedTo:  p.AssignedTo,
	}
}

func (r squadRow) toModel() models.Squad {
	squad := models.Squad{
		ID:           r.ID,
		Title:        r.Title,
		Date:         r.Date,
		Location:     r.Location,
		OrganizerID:  r.OrganizerID,
		Organizer:    r.Organizer,
		Participants: make([]models.Participant, 0, len(r.Participants)),
		Products:     make([]models.Product, 0, len(r.Products)),
	}
	if created, err := timestamp.ToBackend(r.CreatedAt); err == nil {
		squad.CreatedAt = created
	}
	for _, p := range r.Participants {
		squad.Participants = append(squad.Participants, models.Participant{ID: p.ParticipantID, Name: p.Name, Avatar: p.Avatar})
	}
	for _, p := range r.Products {
		squad.Products = append(squad.Products, models.Product{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price,
			Image:       p.Image,
			Description: p.Description,
			AddedBy:     p.AddedBy,
			AddedAt:     p.AddedAt,
			AssignedTo:  p.AssignedTo,
		})
	}
	return squad
}
