package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsquad/internal/store"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisNotifierPublishSubscribe(t *testing.T) {
	_, client := setupTestRedis(t)
	notifier := NewRedisNotifier(client, nil)
	ctx := context.Background()

	changes, cancel, err := notifier.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	want := store.Change{SquadID: "s1", ParticipantIDs: []string{"u1", "u2"}}
	require.NoError(t, notifier.Publish(ctx, want))

	select {
	case got := <-changes:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("change not received")
	}
}

func TestRedisNotifierSkipsMalformedPayload(t *testing.T) {
	mr, client := setupTestRedis(t)
	notifier := NewRedisNotifier(client, nil)
	ctx := context.Background()

	changes, cancel, err := notifier.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	mr.Publish(ChangesChannel, "not json")
	require.NoError(t, notifier.Publish(ctx, store.Change{SquadID: "s2"}))

	select {
	case got := <-changes:
		assert.Equal(t, "s2", got.SquadID)
	case <-time.After(2 * time.Second):
		t.Fatal("change not received")
	}
}

func TestRedisNotifierCancelClosesChannel(t *testing.T) {
	_, client := setupTestRedis(t)
	notifier := NewRedisNotifier(client, nil)

	changes, cancel, err := notifier.Subscribe(context.Background())
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
