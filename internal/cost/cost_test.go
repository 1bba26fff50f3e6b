package cost

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsquad/internal/models"
)

func assigned(id string) *string { return &id }

func TestShareZeroTotal(t *testing.T) {
	assert.Equal(t, 0.0, Share(0, 0))
	assert.Equal(t, 0.0, Share(10, 0))

	share := Share(0, 0)
	assert.False(t, math.IsNaN(share))
	assert.False(t, math.IsInf(share, 0))
}

func TestTotals(t *testing.T) {
	products := []models.Product{
		{ID: "a", Price: 49.99, AssignedTo: assigned("u2")},
		{ID: "b", Price: 10, AssignedTo: assigned("u1")},
		{ID: "c", Price: 5.01},
	}

	assert.InDelta(t, 65.0, Total(products), 1e-9)
	assert.InDelta(t, 49.99, ParticipantTotal(products, "u2"), 1e-9)
	assert.InDelta(t, 10.0, ParticipantTotal(products, "u1"), 1e-9)
	assert.Equal(t, 0.0, ParticipantTotal(products, "nobody"))
	assert.InDelta(t, 5.01, Unassigned(products), 1e-9)
}

func TestSingleAssignedProductShare(t *testing.T) {
	products := []models.Product{{ID: "p1", Name: "Sneakers", Price: 49.99, AssignedTo: assigned("U2")}}

	total := Total(products)
	pt := ParticipantTotal(products, "U2")

	assert.Equal(t, 49.99, total)
	assert.Equal(t, 49.99, pt)
	assert.Equal(t, 1.0, Share(pt, total))
}

func TestParticipantTotalsNeverExceedTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []string{"u1", "u2", "u3"}

	for round := 0; round < 200; round++ {
		allAssigned := round%2 == 0
		var products []models.Product
		n := rng.Intn(12)
		for i := 0; i < n; i++ {
			p := models.Product{Price: math.Round(rng.Float64()*50000) / 100}
			if allAssigned || rng.Intn(3) > 0 {
				p.AssignedTo = assigned(ids[rng.Intn(len(ids))])
			}
			products = append(products, p)
		}

		sum := 0.0
		for _, id := range ids {
			sum += ParticipantTotal(products, id)
		}
		total := Total(products)

		assert.LessOrEqual(t, sum, total+1e-6)
		if allAssigned {
			assert.InDelta(t, total, sum, 1e-6)
		}
	}
}

func TestDistribute(t *testing.T) {
	participants := []models.Participant{
		{ID: "u1", Name: "Ana"},
		{ID: "u2", Name: "Ben"},
		{ID: "u3", Name: "Cy"},
	}
	products := []models.Product{
		{ID: "a", Price: 30, AssignedTo: assigned("u1")},
		{ID: "b", Price: 10, AssignedTo: assigned("u2")},
		{ID: "c", Price: 60},
	}

	d := Distribute(participants, products)

	assert.Equal(t, 100.0, d.Total)
	assert.Equal(t, 60.0, d.Unassigned)
	require.Len(t, d.Lines, 3)
	assert.Equal(t, "Ana", d.Lines[0].Participant.Name)
	assert.InDelta(t, 0.3, d.Lines[0].Share, 1e-9)
	assert.InDelta(t, 0.1, d.Lines[1].Share, 1e-9)
	assert.Equal(t, 0.0, d.Lines[2].Share)

	line, ok := d.LineFor("u2")
	require.True(t, ok)
	assert.Equal(t, 10.0, line.Total)

	_, ok = d.LineFor("missing")
	assert.False(t, ok)
}

func TestDistributeEmptyList(t *testing.T) {
	d := ForSquad(models.Squad{Participants: []models.Participant{{ID: "u1"}}})

	assert.Equal(t, 0.0, d.Total)
	require.Len(t, d.Lines, 1)
	assert.Equal(t, 0.0, d.Lines[0].Share)
}
