package firestore

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsquad/internal/models"
	"shopsquad/internal/store"
	"shopsquad/internal/store/storetest"
)

// The suite needs the Firestore emulator; run it with
// FIRESTORE_EMULATOR_HOST=localhost:8080 go test ./internal/store/firestore/...
func TestBackend(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	storetest.Run(t, func(t *testing.T) store.Backend {
		client, err := firestore.NewClient(context.Background(), "shopsquad-test")
		require.NoError(t, err)

		s := New(client, "parties_"+uuid.NewString(), nil)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBackfillParticipantIDs(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "shopsquad-test")
	require.NoError(t, err)
	s := New(client, "parties_"+uuid.NewString(), nil)
	t.Cleanup(func() { _ = s.Close() })

	// written the way squads were stored before the participantIds index
	legacy, _, err := s.col().Add(ctx, map[string]interface{}{
		"title":        "Old trip",
		"date":         map[string]interface{}{"seconds": int64(1748786400), "nanoseconds": int64(0)},
		"location":     "Mall Plaza",
		"organizerId":  "U1",
		"organizer":    "Uma",
		"participants": []map[string]interface{}{{"id": "U1", "name": "Uma", "avatar": ""}},
		"products":     []interface{}{},
	})
	require.NoError(t, err)

	before, err := s.ListSquads(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, before)

	updated, err := s.BackfillParticipantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	after, err := s.ListSquads(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, legacy.ID, after[0].ID)

	again, err := s.BackfillParticipantIDs(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestParticipantIndex(t *testing.T) {
	participants := []models.Participant{{ID: "U1"}, {ID: "U2"}}

	tests := []struct {
		name      string
		stored    []string
		wantStale bool
	}{
		{"missing index", nil, true},
		{"missing a member", []string{"U1"}, true},
		{"different order", []string{"U2", "U1"}, true},
		{"current", []string{"U1", "U2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, stale := participantIndex(squadDoc{Participants: participants, ParticipantIDs: tt.stored})
			assert.Equal(t, []string{"U1", "U2"}, ids)
			assert.Equal(t, tt.wantStale, stale)
		})
	}
}

func TestDecodeInstant(t *testing.T) {
	when := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		want  int64
	}{
		{"native timestamp", when, when.Unix()},
		{"structural map", map[string]interface{}{"seconds": when.Unix(), "nanoseconds": int64(0)}, when.Unix()},
		{"missing", nil, 0},
		{"garbage", "yesterday", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeInstant(tt.value).Seconds)
		})
	}
}
