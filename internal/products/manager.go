// Package products manages the shopping list of a squad.
package products

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/catalog"
	"shopsquad/internal/models"
	"shopsquad/internal/store"
	"shopsquad/internal/timestamp"
)

// MaxPrice bounds a single product so list totals stay finite and fit the
// numeric(12,2) column of the SQL backend.
const MaxPrice = 1_000_000_000

// Input is a product as entered by a participant.
type Input struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Image       string  `json:"image,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Hooks observe successful writes. Any field may be nil.
type Hooks struct {
	Added    func(ctx context.Context, squadID string, product models.Product)
	Assigned func(ctx context.Context, squadID, productID string, assignee *string)
}

type Manager struct {
	backend store.Backend
	hooks   Hooks
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

func NewManager(backend store.Backend, hooks Hooks, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend: backend,
		hooks:   hooks,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// AddProduct appends a new product to the squad and returns it. The squad's
// live feed picks the product up on its own; callers only need the return
// value to reflect the addition right away.
func (m *Manager) AddProduct(ctx context.Context, squadID string, in Input, addedBy string) (*models.Product, error) {
	const op = "products.AddProduct"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Validation(op, "Product name is required")
	}
	if math.IsNaN(in.Price) || in.Price < 0 || in.Price > MaxPrice {
		return nil, apperrors.Validation(op, "Price must be between 0 and 1,000,000,000")
	}
	if addedBy == "" {
		return nil, apperrors.Unauthenticated(op, "Please log in to add products.")
	}

	product := models.Product{
		ID:          m.newID(),
		Name:        name,
		Price:       roundCents(in.Price),
		Image:       strings.TrimSpace(in.Image),
		Description: strings.TrimSpace(in.Description),
		AddedBy:     addedBy,
		AddedAt:     timestamp.MustToBackend(m.now()),
	}
	if err := m.backend.AppendProduct(ctx, squadID, product); err != nil {
		return nil, apperrors.Persistence(op, err)
	}

	m.logger.Debug("product added", "squad_id", squadID, "product_id", product.ID)
	if m.hooks.Added != nil {
		m.hooks.Added(ctx, squadID, product)
	}
	return &product, nil
}

// roundCents keeps every backend at the same precision.
func roundCents(price float64) float64 {
	return math.Round(price*100) / 100
}

// AddFromCatalog adds a copy of a catalog item.
func (m *Manager) AddFromCatalog(ctx context.Context, squadID, catalogID, addedBy string) (*models.Product, error) {
	item, ok := catalog.Find(catalogID)
	if !ok {
		return nil, apperrors.NotFound("products.AddFromCatalog", "Catalog item not found")
	}
	return m.AddProduct(ctx, squadID, Input{
		Name:        item.Name,
		Price:       item.Price,
		Image:       item.Image,
		Description: item.Description,
	}, addedBy)
}

// AssignProduct makes assignee bear the product's cost, or clears the
// assignment when assignee is nil. Only the one product is written.
func (m *Manager) AssignProduct(ctx context.Context, squadID, productID string, assignee *string) error {
	const op = "products.AssignProduct"
	if assignee != nil && *assignee == "" {
		assignee = nil
	}

	if err := m.backend.AssignProduct(ctx, squadID, productID, assignee); err != nil {
		return apperrors.Persistence(op, err)
	}
	if m.hooks.Assigned != nil {
		m.hooks.Assigned(ctx, squadID, productID, assignee)
	}
	return nil
}

// CanAssign reports whether userID may change who bears product's cost: the
// participant who added it, or the one currently assigned.
func CanAssign(product models.Product, userID string) bool {
	if userID == "" {
		return false
	}
	return product.AddedBy == userID || product.IsAssignedTo(userID)
}
