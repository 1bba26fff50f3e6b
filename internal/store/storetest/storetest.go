// Package storetest is a behavioural test suite shared by every store.Backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
	"shopsquad/internal/store"
	"shopsquad/internal/timestamp"
)

// Factory returns a fresh, empty backend. It should register its own cleanup.
type Factory func(t *testing.T) store.Backend

var (
	alice = models.Participant{ID: "alice", Name: "Alice", Avatar: "https://example.com/alice.png"}
	bob   = models.Participant{ID: "bob", Name: "Bob", Avatar: "https://example.com/bob.png"}
)

// Run exercises backend against the store.Backend contract.
func Run(t *testing.T, newBackend Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b store.Backend)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"GetMissing", testGetMissing},
		{"ListByParticipant", testListByParticipant},
		{"UpdateSquad", testUpdateSquad},
		{"AddParticipantIsIdempotent", testAddParticipantIdempotent},
		{"AppendProductConcurrently", testAppendProductConcurrently},
		{"AssignProduct", testAssignProduct},
		{"ConcurrentAssignDifferentProducts", testConcurrentAssignDifferentProducts},
		{"ConcurrentAssignSameProduct", testConcurrentAssignSameProduct},
		{"SubscribeDeliversChanges", testSubscribeDeliversChanges},
		{"UnsubscribeStopsDelivery", testUnsubscribeStopsDelivery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newBackend(t))
		})
	}
}

// NewSquad builds an unsaved squad organized by owner.
func NewSquad(title string, owner models.Participant) *models.Squad {
	return &models.Squad{
		Title:        title,
		Date:         timestamp.MustToBackend(time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)),
		Location:     "Mall Plaza",
		OrganizerID:  owner.ID,
		Organizer:    owner.Name,
		Participants: []models.Participant{owner},
		Products:     []models.Product{},
		CreatedAt:    timestamp.Now(),
	}
}

// NewProduct builds a product added by addedBy.
func NewProduct(id string, price float64, addedBy string) models.Product {
	return models.Product{
		ID:      id,
		Name:    "Product " + id,
		Price:   price,
		AddedBy: addedBy,
		AddedAt: timestamp.Now(),
	}
}

// WaitFor reads snapshots until match accepts one.
func WaitFor(t *testing.T, sub store.Subscription, match func(store.Snapshot) bool) store.Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Updates():
			require.True(t, ok, "subscription closed before expected snapshot")
			require.NoError(t, snap.Err)
			if match(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
			return store.Snapshot{}
		}
	}
}

func create(t *testing.T, b store.Backend, title string, owner models.Participant) *models.Squad {
	t.Helper()
	squad := NewSquad(title, owner)
	require.NoError(t, b.CreateSquad(context.Background(), squad))
	require.NotEmpty(t, squad.ID)
	return squad
}

func testCreateAndGet(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created := create(t, b, "Weekend Trip", alice)

	got, err := b.GetSquad(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Weekend Trip", got.Title)
	assert.Equal(t, "Mall Plaza", got.Location)
	assert.Equal(t, alice.ID, got.OrganizerID)
	assert.Equal(t, []models.Participant{alice}, got.Participants)
	assert.Empty(t, got.Products)
	assert.Equal(t, created.Date.Seconds, got.Date.Seconds)
}

func testGetMissing(t *testing.T, b store.Backend) {
	_, err := b.GetSquad(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func testListByParticipant(t *testing.T, b store.Backend) {
	ctx := context.Background()
	create(t, b, "Alice only", alice)
	shared := create(t, b, "Shared", alice)
	create(t, b, "Bob only", bob)

	_, _, err := b.AddParticipant(ctx, shared.ID, bob)
	require.NoError(t, err)

	aliceSquads, err := b.ListSquads(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alice only", "Shared"}, titles(aliceSquads))

	bobSquads, err := b.ListSquads(ctx, bob.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Shared", "Bob only"}, titles(bobSquads))

	none, err := b.ListSquads(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testUpdateSquad(t *testing.T, b store.Backend) {
	ctx := context.Background()
	squad := create(t, b, "Before", alice)

	title := "After"
	require.NoError(t, b.UpdateSquad(ctx, squad.ID, models.SquadPatch{Title: &title}))

	got, err := b.GetSquad(ctx, squad.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
	assert.Equal(t, "Mall Plaza", got.Location, "unpatched fields are kept")

	err = b.UpdateSquad(ctx, "does-not-exist", models.SquadPatch{Title: &title})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func testAddParticipantIdempotent(t *testing.T, b store.Backend) {
	ctx := context.Background()
	squad := create(t, b, "Join twice", alice)

	got, added, err := b.AddParticipant(ctx, squad.ID, bob)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Len(t, got.Participants, 2)

	renamed := bob
	renamed.Name = "Robert"
	got, added, err = b.AddParticipant(ctx, squad.ID, renamed)
	require.NoError(t, err)
	assert.False(t, added, "a repeated join adds nobody")
	require.Len(t, got.Participants, 2)
	assert.Equal(t, "Bob", got.Participants[1].Name, "existing snapshot is kept")

	_, _, err = b.AddParticipant(ctx, "does-not-exist", bob)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func testAppendProductConcurrently(t *testing.T, b store.Backend) {
	ctx := context.Background()
	squad := create(t, b, "Busy list", alice)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- b.AppendProduct(ctx, squad.ID, NewProduct(fmt.Sprintf("p%02d", i), 1, alice.ID))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := b.GetSquad(ctx, squad.ID)
	require.NoError(t, err)
	assert.Len(t, got.Products, n)

	err = b.AppendProduct(ctx, "does-not-exist", NewProduct("x", 1, alice.ID))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func testAssignProduct(t *testing.T, b store.Backend) {
	ctx := context.Background()
	squad := create(t, b, "Assign", alice)
	_, _, err := b.AddParticipant(ctx, squad.ID, bob)
	require.NoError(t, err)
	require.NoError(t, b.AppendProduct(ctx, squad.ID, NewProduct("p1", 49.99, alice.ID)))

	assignee := bob.ID
	require.NoError(t, b.AssignProduct(ctx, squad.ID, "p1", &assignee))

	got, err := b.GetSquad(ctx, squad.ID)
	require.NoError(t, err)
	require.Len(t, got.Products, 1)
	require.NotNil(t, got.Products[0].AssignedTo)
	assert.Equal(t, bob.ID, *got.Products[0].AssignedTo)
	assert.Equal(t, alice.ID, got.Products[0].AddedBy, "addedBy never changes")

	require.NoError(t, b.AssignProduct(ctx, squad.ID, "p1", nil))
	got, err = b.GetSquad(ctx, squad.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Products[0].AssignedTo)

	err = b.AssignProduct(ctx, squad.ID, "missing", &assignee)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	stranger := "carol"
	err = b.AssignProduct(ctx, squad.ID, "p1", &stranger)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func testConcurrentAssignDifferentProducts(t *testing.T, b store.Backend) {
	ctx := context.Background()
	squad := create(t, b, "Two shoppers", alice)
	_, _, err := b.AddParticipant(ctx, squad.ID, bob)
	require.NoError(t, err)
	require.NoError(t, b.AppendProduct(ctx, squad.ID, NewProduct("p1", 10, alice.ID)))
	require.NoError(t, b.AppendProduct(ctx, squad.ID, NewProduct("p2", 20, bob.ID)))

	a, bb := alice.ID, bob.ID
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); assert.NoError(t, b.AssignProduct(ctx, squad.ID, "p1", &a)) }()
	go func() { defer wg.Done(); assert.NoError(t, b.AssignProduct(ctx, squad.ID, "p2", &bb)) }()
	wg.Wait()

	got, err := b.GetSquad(ctx, squad.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Product("p1").AssignedTo)
	require.NotNil(t, got.Product("p2").AssignedTo)
	assert.Equal(t, alice.ID, *got.Product("p1").AssignedTo)
	assert.Equal(t, bob.ID, *got.Product("p2").AssignedTo)
}

func testConcurrentAssignSameProduct(t *testing.T, b store.Backend) {
	ctx := context.Background()
	squad := create(t, b, "Race", alice)
	_, _, err := b.AddParticipant(ctx, squad.ID, bob)
	require.NoError(t, err)
	require.NoError(t, b.AppendProduct(ctx, squad.ID, NewProduct("p1", 10, alice.ID)))

	var (
		mu      sync.Mutex
		applied []string
		wg      sync.WaitGroup
	)
	for _, id := range []string{alice.ID, bob.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := b.AssignProduct(ctx, squad.ID, "p1", &id); err == nil {
				mu.Lock()
				applied = append(applied, id)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	require.NotEmpty(t, applied)

	got, err := b.GetSquad(ctx, squad.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Products[0].AssignedTo)
	assert.Contains(t, applied, *got.Products[0].AssignedTo)
	assert.Len(t, got.Products, 1)
}

func testSubscribeDeliversChanges(t *testing.T, b store.Backend) {
	ctx := context.Background()

	aliceSub, err := b.SubscribeSquads(ctx, alice.ID)
	require.NoError(t, err)
	defer aliceSub.Unsubscribe()
	bobSub, err := b.SubscribeSquads(ctx, bob.ID)
	require.NoError(t, err)
	defer bobSub.Unsubscribe()

	WaitFor(t, aliceSub, func(s store.Snapshot) bool { return len(s.Squads) == 0 })
	WaitFor(t, bobSub, func(s store.Snapshot) bool { return len(s.Squads) == 0 })

	squad := create(t, b, "Live", alice)
	WaitFor(t, aliceSub, func(s store.Snapshot) bool { return len(s.Squads) == 1 })

	_, _, err = b.AddParticipant(ctx, squad.ID, bob)
	require.NoError(t, err)
	snap := WaitFor(t, bobSub, func(s store.Snapshot) bool { return len(s.Squads) == 1 })
	assert.Equal(t, squad.ID, snap.Squads[0].ID)

	require.NoError(t, b.AppendProduct(ctx, squad.ID, NewProduct("p1", 5, bob.ID)))
	WaitFor(t, aliceSub, func(s store.Snapshot) bool {
		return len(s.Squads) == 1 && len(s.Squads[0].Products) == 1
	})
}

func testUnsubscribeStopsDelivery(t *testing.T, b store.Backend) {
	ctx := context.Background()

	sub, err := b.SubscribeSquads(ctx, alice.ID)
	require.NoError(t, err)
	WaitFor(t, sub, func(s store.Snapshot) bool { return true })

	sub.Unsubscribe()
	sub.Unsubscribe()

	create(t, b, "After unsubscribe", alice)
	for snap := range sub.Updates() {
		t.Fatalf("received snapshot after Unsubscribe: %d squads", len(snap.Squads))
	}
}

func titles(squads []models.Squad) []string {
	out := make([]string, 0, len(squads))
	for _, s := range squads {
		out = append(out, s.Title)
	}
	return out
}
