package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
	"shopsquad/internal/store"
	"shopsquad/internal/store/storetest"
)

func TestBackend(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		s := New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	squad := storetest.NewSquad("Copy", models.Participant{ID: "u1", Name: "U1"})
	require.NoError(t, s.CreateSquad(ctx, squad))

	got, err := s.GetSquad(ctx, squad.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Participants[0].Name = "mutated"

	again, err := s.GetSquad(ctx, squad.ID)
	require.NoError(t, err)
	assert.Equal(t, "Copy", again.Title)
	assert.Equal(t, "U1", again.Participants[0].Name)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	s := New()
	sub, err := s.SubscribeSquads(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	for range sub.Updates() {
	}

	_, err = s.SubscribeSquads(context.Background(), "u1")
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	err = s.CreateSquad(context.Background(), storetest.NewSquad("late", models.Participant{ID: "u1"}))
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestContextCancelUnsubscribes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()
	defer s.Close()

	sub, err := s.SubscribeSquads(ctx, "u1")
	require.NoError(t, err)
	cancel()

	for range sub.Updates() {
	}
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.subscribers) == 0
	}, time.Second, 10*time.Millisecond)
}
