package products

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/cost"
	"shopsquad/internal/format"
	"shopsquad/internal/models"
	"shopsquad/internal/squads"
	"shopsquad/internal/store/memory"
)

var (
	u1 = &models.Identity{ID: "U1", DisplayName: "Uma"}
	u2 = &models.Identity{ID: "U2", DisplayName: "Ugo"}
)

type fixture struct {
	dir     *squads.Directory
	manager *Manager
	squad   *models.Squad
}

func setup(t *testing.T) fixture {
	t.Helper()
	backend := memory.New()
	t.Cleanup(func() { _ = backend.Close() })

	dir := squads.NewDirectory(backend)
	squad, err := dir.Create(context.Background(), u1, "Weekend Trip", time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC), "Mall Plaza")
	require.NoError(t, err)
	_, err = dir.Join(context.Background(), squad.ID, u2)
	require.NoError(t, err)

	return fixture{dir: dir, manager: NewManager(backend, Hooks{}, nil), squad: squad}
}

func (f fixture) reload(t *testing.T) *models.Squad {
	t.Helper()
	squad, err := f.dir.Get(context.Background(), f.squad.ID)
	require.NoError(t, err)
	return squad
}

func TestAddProduct(t *testing.T) {
	f := setup(t)

	product, err := f.manager.AddProduct(context.Background(), f.squad.ID, Input{Name: " Sneakers ", Price: 49.99}, "U2")
	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)
	assert.Equal(t, "Sneakers", product.Name)
	assert.Equal(t, "U2", product.AddedBy)
	assert.Nil(t, product.AssignedTo)
	assert.False(t, product.AddedAt.IsZero())

	squad := f.reload(t)
	require.Len(t, squad.Products, 1)
	assert.Equal(t, product.ID, squad.Products[0].ID)
}

func TestAddProductValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   Input
	}{
		{"missing name", Input{Name: "  ", Price: 1}},
		{"negative price", Input{Name: "Hat", Price: -1}},
		{"NaN price", Input{Name: "Hat", Price: math.NaN()}},
		{"infinite price", Input{Name: "Hat", Price: math.Inf(1)}},
		{"price above the cap", Input{Name: "Yacht", Price: MaxPrice + 1}},
		{"price near the float maximum", Input{Name: "Yacht", Price: math.MaxFloat64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.AddProduct(ctx, f.squad.ID, tt.in, "U1")
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	assert.Empty(t, f.reload(t).Products)

	_, err := f.manager.AddProduct(ctx, "missing", Input{Name: "Hat", Price: 1}, "U1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddProductPriceBounds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	top, err := f.manager.AddProduct(ctx, f.squad.ID, Input{Name: "Island", Price: MaxPrice}, "U1")
	require.NoError(t, err)
	second, err := f.manager.AddProduct(ctx, f.squad.ID, Input{Name: "Another island", Price: MaxPrice}, "U1")
	require.NoError(t, err)

	products := f.reload(t).Products
	total := cost.Total(products)
	assert.False(t, math.IsInf(total, 0))
	assert.Equal(t, "$2,000,000,000.00", format.Currency(total))
	assert.Equal(t, float64(MaxPrice), top.Price)
	assert.Equal(t, float64(MaxPrice), second.Price)

	rounded, err := f.manager.AddProduct(ctx, f.squad.ID, Input{Name: "Gum", Price: 19.999}, "U1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, rounded.Price)
	assert.Equal(t, 20.0, f.reload(t).Product(rounded.ID).Price)
}

func TestAddFromCatalog(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	product, err := f.manager.AddFromCatalog(ctx, f.squad.ID, "apple-airpods-pro", "U1")
	require.NoError(t, err)
	assert.Equal(t, 249.0, product.Price)
	assert.NotEqual(t, "apple-airpods-pro", product.ID, "each addition gets its own id")

	_, err = f.manager.AddFromCatalog(ctx, f.squad.ID, "nope", "U1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAssignedShareIsWholeCost(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	product, err := f.manager.AddProduct(ctx, f.squad.ID, Input{Name: "Sneakers", Price: 49.99}, "U2")
	require.NoError(t, err)

	assignee := "U2"
	require.NoError(t, f.manager.AssignProduct(ctx, f.squad.ID, product.ID, &assignee))

	squad := f.reload(t)
	dist := cost.ForSquad(*squad)
	line, ok := dist.LineFor("U2")
	require.True(t, ok)
	assert.InDelta(t, 49.99, line.Total, 1e-9)
	assert.InDelta(t, 1.0, line.Share, 1e-9)

	line, ok = dist.LineFor("U1")
	require.True(t, ok)
	assert.Zero(t, line.Total)
	assert.Zero(t, dist.Unassigned)
}

func TestAssignProductErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	product, err := f.manager.AddProduct(ctx, f.squad.ID, Input{Name: "Hat", Price: 10}, "U1")
	require.NoError(t, err)

	outsider := "U9"
	err = f.manager.AssignProduct(ctx, f.squad.ID, product.ID, &outsider)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = f.manager.AssignProduct(ctx, f.squad.ID, "missing", nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	empty := ""
	require.NoError(t, f.manager.AssignProduct(ctx, f.squad.ID, product.ID, &empty))
	assert.Nil(t, f.reload(t).Products[0].AssignedTo)
}

func TestConcurrentAssignmentsFromStaleView(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p1, err := f.manager.AddProduct(ctx, f.squad.ID, Input{Name: "One", Price: 10}, "U1")
	require.NoError(t, err)
	p2, err := f.manager.AddProduct(ctx, f.squad.ID, Input{Name: "Two", Price: 20}, "U2")
	require.NoError(t, err)

	// both clients act on the same snapshot with neither assignment applied
	stale := f.reload(t)
	require.Nil(t, stale.Product(p1.ID).AssignedTo)
	require.Nil(t, stale.Product(p2.ID).AssignedTo)

	var wg sync.WaitGroup
	for _, a := range []struct{ product, user string }{{p1.ID, "U1"}, {p2.ID, "U2"}} {
		wg.Add(1)
		go func(productID, user string) {
			defer wg.Done()
			assert.NoError(t, f.manager.AssignProduct(ctx, f.squad.ID, productID, &user))
		}(a.product, a.user)
	}
	wg.Wait()

	squad := f.reload(t)
	assert.True(t, squad.Product(p1.ID).IsAssignedTo("U1"))
	assert.True(t, squad.Product(p2.ID).IsAssignedTo("U2"))
}

func TestHooks(t *testing.T) {
	backend := memory.New()
	defer backend.Close()
	dir := squads.NewDirectory(backend)
	squad, err := dir.Create(context.Background(), u1, "Hooks", time.Now().Add(time.Hour), "Here")
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		added    []string
		assigned []string
	)
	m := NewManager(backend, Hooks{
		Added: func(_ context.Context, _ string, p models.Product) {
			mu.Lock()
			defer mu.Unlock()
			added = append(added, p.Name)
		},
		Assigned: func(_ context.Context, _, productID string, _ *string) {
			mu.Lock()
			defer mu.Unlock()
			assigned = append(assigned, productID)
		},
	}, nil)

	p, err := m.AddProduct(context.Background(), squad.ID, Input{Name: "Tent", Price: 120}, "U1")
	require.NoError(t, err)
	require.NoError(t, m.AssignProduct(context.Background(), squad.ID, p.ID, nil))

	assert.Equal(t, []string{"Tent"}, added)
	assert.Equal(t, []string{p.ID}, assigned)
}

func TestCanAssign(t *testing.T) {
	assignee := "U2"
	product := models.Product{ID: "p", AddedBy: "U1", AssignedTo: &assignee}

	assert.True(t, CanAssign(product, "U1"), "adder")
	assert.True(t, CanAssign(product, "U2"), "current assignee")
	assert.False(t, CanAssign(product, "U3"))
	assert.False(t, CanAssign(models.Product{AddedBy: ""}, ""))
}
