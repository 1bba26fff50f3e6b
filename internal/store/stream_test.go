package store

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsquad/internal/models"
)

func snapshotOf(ids ...string) Snapshot {
	squads := make([]models.Squad, 0, len(ids))
	for _, id := range ids {
		squads = append(squads, models.Squad{ID: id})
	}
	return Snapshot{Squads: squads}
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "updates channel closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestStreamDeliversInOrder(t *testing.T) {
	s := NewStream(nil)
	defer s.Unsubscribe()

	s.Push(snapshotOf("a"))
	assert.Len(t, receive(t, s.Updates()).Squads, 1)

	s.Push(snapshotOf("a", "b"))
	assert.Len(t, receive(t, s.Updates()).Squads, 2)
}

func TestStreamCoalescesForSlowConsumer(t *testing.T) {
	s := NewStream(nil)
	defer s.Unsubscribe()

	for i := 1; i <= 50; i++ {
		ids := make([]string, i)
		for j := range ids {
			ids[j] = "s"
		}
		s.Push(snapshotOf(ids...))
	}

	// whatever was delivered first, the newest snapshot always arrives last
	var last Snapshot
	deadline := time.After(2 * time.Second)
	for len(last.Squads) != 50 {
		select {
		case snap := <-s.Updates():
			assert.GreaterOrEqual(t, len(snap.Squads), len(last.Squads))
			last = snap
		case <-deadline:
			t.Fatalf("newest snapshot never delivered, last had %d squads", len(last.Squads))
		}
	}
}

func TestStreamUnsubscribeStopsDelivery(t *testing.T) {
	var stops int32
	s := NewStream(func() { atomic.AddInt32(&stops, 1) })

	s.Push(snapshotOf("a"))
	s.Unsubscribe()
	s.Unsubscribe()

	assert.Equal(t, int32(1), atomic.LoadInt32(&stops))

	s.Push(snapshotOf("b"))
	for snap := range s.Updates() {
		// at most the snapshot pushed before Unsubscribe may have been in flight
		assert.Equal(t, "a", snap.Squads[0].ID)
	}

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Unsubscribe")
	}
}

func TestStreamEndsAfterError(t *testing.T) {
	s := NewStream(nil)
	defer s.Unsubscribe()

	boom := errors.New("backend went away")
	s.Push(Snapshot{Err: boom})

	snap := receive(t, s.Updates())
	assert.ErrorIs(t, snap.Err, boom)

	_, ok := <-s.Updates()
	assert.False(t, ok)
}

func TestChangeAffects(t *testing.T) {
	c := Change{SquadID: "s1", ParticipantIDs: []string{"u1", "u2"}}

	assert.True(t, c.Affects("u2"))
	assert.False(t, c.Affects("u3"))
}
