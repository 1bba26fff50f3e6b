// Package firestore stores squads as documents in a Cloud Firestore collection
// and serves live queries from Firestore snapshot listeners.
package firestore

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
	"shopsquad/internal/store"
	"shopsquad/internal/timestamp"
)

// Field paths inside a squad document.
const (
	fieldTitle          = "title"
	fieldDate           = "date"
	fieldLocation       = "location"
	fieldParticipants   = "participants"
	fieldParticipantIDs = "participantIds"
	fieldProducts       = "products"
)

// squadDoc is the persisted shape. Instants are read back as interface{} since
// older documents hold them as plain {seconds, nanoseconds} maps.
type squadDoc struct {
	Title          string               `firestore:"title"`
	Date           interface{}          `firestore:"date"`
	Location       string               `firestore:"location"`
	OrganizerID    string               `firestore:"organizerId"`
	Organizer      string               `firestore:"organizer"`
	Participants   []models.Participant `firestore:"participants"`
	ParticipantIDs []string             `firestore:"participantIds"`
	Products       []productDoc         `firestore:"products"`
	CreatedAt      interface{}          `firestore:"createdAt"`
}

type productDoc struct {
	ID          string      `firestore:"id"`
	Name        string      `firestore:"name"`
	Price       float64     `firestore:"price"`
	Image       string      `firestore:"image"`
	Description string      `firestore:"description,omitempty"`
	AddedBy     string      `firestore:"addedBy"`
	AddedAt     interface{} `firestore:"addedAt"`
	AssignedTo  *string     `firestore:"assignedTo"`
}

// Store is a store.Backend on top of a Firestore client.
type Store struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

var _ store.Backend = (*Store)(nil)

// New returns a Store writing to collection, or store.CollectionName when empty.
func New(client *firestore.Client, collection string, logger *slog.Logger) *Store {
	if collection == "" {
		collection = store.CollectionName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, collection: collection, logger: logger}
}

func (s *Store) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *Store) CreateSquad(ctx context.Context, squad *models.Squad) error {
	ref := s.col().NewDoc()
	if _, err := ref.Create(ctx, toDoc(squad)); err != nil {
		return apperrors.Persistence("firestore.CreateSquad", err)
	}
	squad.ID = ref.ID
	return nil
}

func (s *Store) GetSquad(ctx context.Context, squadID string) (*models.Squad, error) {
	snap, err := s.col().Doc(squadID).Get(ctx)
	if err != nil {
		return nil, mapErr("firestore.GetSquad", err)
	}
	squad, err := fromSnapshot(snap)
	if err != nil {
		return nil, apperrors.Persistence("firestore.GetSquad", err)
	}
	return squad, nil
}

func (s *Store) ListSquads(ctx context.Context, participantID string) ([]models.Squad, error) {
	docs, err := s.participantQuery(participantID).Documents(ctx).GetAll()
	if err != nil {
		return nil, apperrors.Persistence("firestore.ListSquads", err)
	}
	return s.decodeAll(docs), nil
}

func (s *Store) UpdateSquad(ctx context.Context, squadID string, patch models.SquadPatch) error {
	var updates []firestore.Update
	if patch.Title != nil {
		updates = append(updates, firestore.Update{Path: fieldTitle, Value: *patch.Title})
	}
	if patch.Date != nil {
		updates = append(updates, firestore.Update{Path: fieldDate, Value: patch.Date.Time()})
	}
	if patch.Location != nil {
		updates = append(updates, firestore.Update{Path: fieldLocation, Value: *patch.Location})
	}
	if len(updates) == 0 {
		return nil
	}
	if _, err := s.col().Doc(squadID).Update(ctx, updates); err != nil {
		return mapErr("firestore.UpdateSquad", err)
	}
	return nil
}

// AddParticipant checks membership and writes inside one transaction, so two
// joins racing on the same id still leave a single entry.
func (s *Store) AddParticipant(ctx context.Context, squadID string, p models.Participant) (*models.Squad, bool, error) {
	ref := s.col().Doc(squadID)
	var (
		out   *models.Squad
		added bool
	)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		squad, err := fromSnapshot(snap)
		if err != nil {
			return err
		}
		out, added = squad, false
		if squad.HasParticipant(p.ID) {
			return nil
		}
		squad.Participants = append(squad.Participants, p)
		added = true
		return tx.Update(ref, []firestore.Update{
			{Path: fieldParticipants, Value: squad.Participants},
			{Path: fieldParticipantIDs, Value: squad.ParticipantIDs()},
		})
	})
	if err != nil {
		return nil, false, mapErr("firestore.AddParticipant", err)
	}
	return out, added, nil
}

func (s *Store) AppendProduct(ctx context.Context, squadID string, product models.Product) error {
	_, err := s.col().Doc(squadID).Update(ctx, []firestore.Update{
		{Path: fieldProducts, Value: firestore.ArrayUnion(toProductDoc(product))},
	})
	if err != nil {
		return mapErr("firestore.AppendProduct", err)
	}
	return nil
}

// AssignProduct rewrites the products array from a fresh transactional read, so
// only the target product's assignee differs from what is stored.
func (s *Store) AssignProduct(ctx context.Context, squadID, productID string, assignee *string) error {
	ref := s.col().Doc(squadID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc squadDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}

		idx := -1
		for i := range doc.Products {
			if doc.Products[i].ID == productID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperrors.NotFound("firestore.AssignProduct", "Product not found")
		}
		if assignee != nil && !containsID(doc.Participants, *assignee) {
			return apperrors.Validation("firestore.AssignProduct", "Assignee must be a member of the squad")
		}

		products := make([]productDoc, len(doc.Products))
		copy(products, doc.Products)
		products[idx].AssignedTo = assignee
		return tx.Update(ref, []firestore.Update{{Path: fieldProducts, Value: products}})
	})
	if err != nil {
		return mapErr("firestore.AssignProduct", err)
	}
	return nil
}

// SubscribeSquads attaches a snapshot listener to the participant query.
func (s *Store) SubscribeSquads(ctx context.Context, participantID string) (store.Subscription, error) {
	listenCtx, cancel := context.WithCancel(ctx)
	it := s.participantQuery(participantID).Snapshots(listenCtx)

	stream := store.NewStream(func() {
		cancel()
		it.Stop()
	})

	go func() {
		for {
			qs, err := it.Next()
			if err != nil {
				select {
				case <-stream.Done():
					return
				default:
				}
				if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
					stream.Unsubscribe()
					return
				}
				s.logger.Error("squad listener failed", "participant_id", participantID, "error", err)
				stream.Push(store.Snapshot{Err: apperrors.Persistence("firestore.SubscribeSquads", err)})
				return
			}

			docs, err := qs.Documents.GetAll()
			if err != nil {
				stream.Push(store.Snapshot{Err: apperrors.Persistence("firestore.SubscribeSquads", err)})
				return
			}
			stream.Push(store.Snapshot{Squads: s.decodeAll(docs)})
		}
	}()

	return stream, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// BackfillParticipantIDs writes the participantIds index onto documents that
// lack it or carry a stale one, such as squads created before the index
// existed. Listing queries only find indexed documents. It returns the number
// of documents updated.
func (s *Store) BackfillParticipantIDs(ctx context.Context) (int, error) {
	const op = "firestore.BackfillParticipantIDs"
	iter := s.col().Documents(ctx)
	defer iter.Stop()

	updated := 0
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return updated, nil
		}
		if err != nil {
			return updated, apperrors.Persistence(op, err)
		}

		var doc squadDoc
		if err := snap.DataTo(&doc); err != nil {
			s.logger.Warn("skipping malformed squad document", "squad_id", snap.Ref.ID, "error", err)
			continue
		}
		ids, stale := participantIndex(doc)
		if !stale {
			continue
		}
		if _, err := snap.Ref.Update(ctx, []firestore.Update{{Path: fieldParticipantIDs, Value: ids}}); err != nil {
			return updated, mapErr(op, err)
		}
		s.logger.Info("participant index backfilled", "squad_id", snap.Ref.ID, "participants", len(ids))
		updated++
	}
}

// participantIndex derives participantIds from the participant snapshots and
// reports whether the stored value differs.
func participantIndex(doc squadDoc) ([]string, bool) {
	ids := make([]string, 0, len(doc.Participants))
	for _, p := range doc.Participants {
		ids = append(ids, p.ID)
	}
	if doc.ParticipantIDs == nil || len(doc.ParticipantIDs) != len(ids) {
		return ids, true
	}
	for i := range ids {
		if doc.ParticipantIDs[i] != ids[i] {
			return ids, true
		}
	}
	return ids, false
}

func (s *Store) participantQuery(participantID string) firestore.Query {
	return s.col().Where(fieldParticipantIDs, "array-contains", participantID)
}

// decodeAll skips documents that cannot be decoded rather than failing the whole list.
func (s *Store) decodeAll(docs []*firestore.DocumentSnapshot) []models.Squad {
	out := make([]models.Squad, 0, len(docs))
	for _, d := range docs {
		squad, err := fromSnapshot(d)
		if err != nil {
			s.logger.Warn("skipping malformed squad document", "squad_id", d.Ref.ID, "error", err)
			continue
		}
		out = append(out, *squad)
	}
	return out
}

func mapErr(op string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if status.Code(err) == codes.NotFound {
		return apperrors.NotFound(op, "Squad not found")
	}
	return apperrors.Persistence(op, err)
}

func containsID(participants []models.Participant, id string) bool {
	for _, p := range participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

func toDoc(squad *models.Squad) squadDoc {
	products := make([]productDoc, 0, len(squad.Products))
	for _, p := range squad.Products {
		products = append(products, toProductDoc(p))
	}
	participants := squad.Participants
	if participants == nil {
		participants = []models.Participant{}
	}
	return squadDoc{
		Title:          squad.Title,
		Date:           squad.Date.Time(),
		Location:       squad.Location,
		OrganizerID:    squad.OrganizerID,
		Organizer:      squad.Organizer,
		Participants:   participants,
		ParticipantIDs: squad.ParticipantIDs(),
		Products:       products,
		CreatedAt:      squad.CreatedAt.Time(),
	}
}

func toProductDoc(p models.Product) productDoc {
	return productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Image:       p.Image,
		Description: p.Description,
		AddedBy:     p.AddedBy,
		AddedAt:     p.AddedAt.Time(),
		AssignedTo:  p.AssignedTo,
	}
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (*models.Squad, error) {
	var doc squadDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}

	squad := &models.Squad{
		ID:           snap.Ref.ID,
		Title:        doc.Title,
		Date:         decodeInstant(doc.Date),
		Location:     doc.Location,
		OrganizerID:  doc.OrganizerID,
		Organizer:    doc.Organizer,
		Participants: doc.Participants,
		Products:     make([]models.Product, 0, len(doc.Products)),
		CreatedAt:    decodeInstant(doc.CreatedAt),
	}
	if squad.Participants == nil {
		squad.Participants = []models.Participant{}
	}
	for _, p := range doc.Products {
		squad.Products = append(squad.Products, models.Product{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price,
			Image:       p.Image,
			Description: p.Description,
			AddedBy:     p.AddedBy,
			AddedAt:     decodeInstant(p.AddedAt),
			AssignedTo:  p.AssignedTo,
		})
	}
	return squad, nil
}

// decodeInstant yields the zero Timestamp for missing or malformed values;
// display code renders those as "not set".
func decodeInstant(v interface{}) timestamp.Timestamp {
	if v == nil {
		return timestamp.Timestamp{}
	}
	t, err := timestamp.FromBackend(v)
	if err != nil {
		return timestamp.Timestamp{}
	}
	ts, err := timestamp.ToBackend(t)
	if err != nil {
		return timestamp.Timestamp{}
	}
	return ts
}
