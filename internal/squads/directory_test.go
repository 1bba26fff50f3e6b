package squads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
	"shopsquad/internal/store"
	"shopsquad/internal/store/memory"
)

var (
	u1 = &models.Identity{ID: "U1", DisplayName: "Uma", AvatarURL: "https://example.com/uma.png"}
	u2 = &models.Identity{ID: "U2", Email: "u2@example.com"}

	weekend = time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
)

func newTestDirectory(t *testing.T, opts ...Option) (*Directory, *memory.Store) {
	t.Helper()
	backend := memory.New()
	t.Cleanup(func() { _ = backend.Close() })
	return NewDirectory(backend, opts...), backend
}

// recvFeed waits for the next snapshot from the feed.
func recvFeed(t *testing.T, f *Feed) []models.Squad {
	t.Helper()
	select {
	case list, ok := <-f.Updates():
		require.True(t, ok, "feed closed")
		return list
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed update")
	}
	return nil
}

// waitFeed reads until match accepts a snapshot.
func waitFeed(t *testing.T, f *Feed, match func([]models.Squad) bool) []models.Squad {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if list := recvFeed(t, f); match(list) {
			return list
		}
	}
	t.Fatal("feed never produced the expected snapshot")
	return nil
}

func TestCreate(t *testing.T) {
	d, _ := newTestDirectory(t)

	squad, err := d.Create(context.Background(), u1, "Weekend Trip", weekend, "Mall Plaza")
	require.NoError(t, err)

	assert.NotEmpty(t, squad.ID)
	assert.Equal(t, "Weekend Trip", squad.Title)
	assert.Equal(t, "Mall Plaza", squad.Location)
	assert.Equal(t, weekend.Unix(), squad.Date.Seconds)
	assert.Equal(t, "U1", squad.OrganizerID)
	assert.Equal(t, "Uma", squad.Organizer)
	assert.Equal(t, []models.Participant{{ID: "U1", Name: "Uma", Avatar: "https://example.com/uma.png"}}, squad.Participants)
	assert.Empty(t, squad.Products)
	assert.False(t, squad.CreatedAt.IsZero())

	stored, err := d.Get(context.Background(), squad.ID)
	require.NoError(t, err)
	assert.Equal(t, squad.Title, stored.Title)
}

func TestCreateValidation(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		identity *models.Identity
		title    string
		date     time.Time
		location string
		want     error
	}{
		{"blank title", u1, "   ", weekend, "Mall Plaza", apperrors.ErrValidation},
		{"blank location", u1, "Trip", weekend, "", apperrors.ErrValidation},
		{"zero date", u1, "Trip", time.Time{}, "Mall Plaza", apperrors.ErrValidation},
		{"no identity", nil, "Trip", weekend, "Mall Plaza", apperrors.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Create(ctx, tt.identity, tt.title, tt.date, tt.location)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	list, err := d.Snapshot(ctx, u1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateOrganizerFallsBackToEmail(t *testing.T) {
	d, _ := newTestDirectory(t)

	squad, err := d.Create(context.Background(), u2, "Groceries", weekend, "Corner Shop")
	require.NoError(t, err)
	assert.Equal(t, "u2@example.com", squad.Organizer)
	assert.Equal(t, "Anonymous", squad.Participants[0].Name)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Anonymous", squad.Participants[0].Avatar)
}

type countingBackend struct {
	store.Backend
	updates int
}

func (c *countingBackend) UpdateSquad(ctx context.Context, id string, patch models.SquadPatch) error {
	c.updates++
	return c.Backend.UpdateSquad(ctx, id, patch)
}

func TestUpdateWithoutIdentityNeverReachesBackend(t *testing.T) {
	backend := &countingBackend{Backend: memory.New()}
	defer backend.Close()
	d := NewDirectory(backend)

	title := "New"
	err := d.Update(context.Background(), nil, "whatever", models.SquadPatch{Title: &title})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	assert.Zero(t, backend.updates)
}

func TestUpdate(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	squad, err := d.Create(ctx, u1, "Weekend Trip", weekend, "Mall Plaza")
	require.NoError(t, err)

	location := "  Central Station  "
	require.NoError(t, d.Update(ctx, u1, squad.ID, models.SquadPatch{Location: &location}))

	got, err := d.Get(ctx, squad.ID)
	require.NoError(t, err)
	assert.Equal(t, "Central Station", got.Location)
	assert.Equal(t, "Weekend Trip", got.Title)

	blank := " "
	err = d.Update(ctx, u1, squad.ID, models.SquadPatch{Title: &blank})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = d.Update(ctx, u1, "missing", models.SquadPatch{Location: &location})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestJoinIsIdempotent(t *testing.T) {
	var joined []string
	d, _ := newTestDirectory(t, WithHooks(Hooks{
		Joined: func(_ context.Context, _ models.Squad, p models.Participant) { joined = append(joined, p.ID) },
	}))
	ctx := context.Background()

	squad, err := d.Create(ctx, u1, "Weekend Trip", weekend, "Mall Plaza")
	require.NoError(t, err)

	first, err := d.Join(ctx, squad.ID, u2)
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, first.ParticipantIDs())

	renamed := *u2
	renamed.DisplayName = "Someone Else"
	second, err := d.Join(ctx, squad.ID, &renamed)
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, second.ParticipantIDs())
	assert.Equal(t, []string{"U2"}, joined, "a repeated join is not reported again")

	_, err = d.Join(ctx, "missing", u2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSnapshotSortedByDateDescending(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.Create(ctx, u1, "Old", weekend.AddDate(0, -1, 0), "A")
	require.NoError(t, err)
	_, err = d.Create(ctx, u1, "New", weekend.AddDate(0, 1, 0), "B")
	require.NoError(t, err)
	_, err = d.Create(ctx, u1, "Middle", weekend, "C")
	require.NoError(t, err)
	_, err = d.Create(ctx, u2, "Not mine", weekend, "D")
	require.NoError(t, err)

	list, err := d.Snapshot(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, []string{"New", "Middle", "Old"}, titlesOf(list))
}

func TestFeedFollowsChanges(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	feed, err := d.List(ctx, u2)
	require.NoError(t, err)
	defer feed.Close()

	assert.Empty(t, recvFeed(t, feed))
	<-feed.Ready()
	latest, ok := feed.Latest()
	require.True(t, ok)
	assert.Empty(t, latest)

	squad, err := d.Create(ctx, u1, "Weekend Trip", weekend, "Mall Plaza")
	require.NoError(t, err)

	_, err = d.Join(ctx, squad.ID, u2)
	require.NoError(t, err)
	list := waitFeed(t, feed, func(l []models.Squad) bool { return len(l) == 1 })
	assert.Equal(t, squad.ID, list[0].ID)

	later, err := d.Create(ctx, u2, "Later", weekend.AddDate(0, 0, 7), "Mall Plaza")
	require.NoError(t, err)
	list = waitFeed(t, feed, func(l []models.Squad) bool { return len(l) == 2 })
	assert.Equal(t, later.ID, list[0].ID, "most recent date first")

	latest, ok = feed.Latest()
	require.True(t, ok)
	assert.Equal(t, []string{"Later", "Weekend Trip"}, titlesOf(latest))
}

func TestFeedClose(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	feed, err := d.List(ctx, u1)
	require.NoError(t, err)
	recvFeed(t, feed)

	feed.Close()
	feed.Close()

	_, err = d.Create(ctx, u1, "After close", weekend, "Mall Plaza")
	require.NoError(t, err)

	_, ok := <-feed.Updates()
	assert.False(t, ok)
	assert.NoError(t, feed.Err())
}

func TestListRequiresIdentity(t *testing.T) {
	d, _ := newTestDirectory(t)

	_, err := d.List(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	_, err = d.Snapshot(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestLinks(t *testing.T) {
	assert.Equal(t, "https://shop.example.com/join/abc", InviteLink("https://shop.example.com/", "abc"))
	assert.Equal(t, "https://www.google.com/maps/search/?api=1&query=Mall+Plaza%2C+Level+2", MapsURL("Mall Plaza, Level 2"))
}

func titlesOf(list []models.Squad) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.Title)
	}
	return out
}
