package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
	"shopsquad/internal/products"
	"shopsquad/web/views"
)

type ProductHandler struct {
	squads   *SquadHandler
	products *products.Manager
}

func NewProductHandler(squads *SquadHandler, manager *products.Manager) *ProductHandler {
	return &ProductHandler{squads: squads, products: manager}
}

func (h *ProductHandler) add(c echo.Context, identity *models.Identity, squadID string, req AddProductRequest) (*models.Product, error) {
	ctx := c.Request().Context()
	if strings.TrimSpace(req.CatalogID) != "" {
		return h.products.AddFromCatalog(ctx, squadID, req.CatalogID, identity.ID)
	}
	return h.products.AddProduct(ctx, squadID, products.Input{
		Name:        req.Name,
		Price:       req.Price,
		Image:       req.Image,
		Description: req.Description,
	}, identity.ID)
}

// assign applies an assignment after checking that identity may change it.
func (h *ProductHandler) assign(c echo.Context, squad *models.Squad, identity *models.Identity, productID string, assignee *string) error {
	const op = "handlers.AssignProduct"
	product := squad.Product(productID)
	if product == nil {
		return apperrors.NotFound(op, "Product not found")
	}
	if !products.CanAssign(*product, identity.ID) {
		return apperrors.Forbidden(op, "Only the person who added this product or its assignee can reassign it.")
	}
	return h.products.AssignProduct(c.Request().Context(), squad.ID, productID, assignee)
}

// Add handles POST /api/squads/:id/products
func (h *ProductHandler) Add(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req AddProductRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("handlers.AddProduct", "Invalid request body")
	}
	squad, err := h.squads.memberSquad(c.Request().Context(), c.Param("id"), identity)
	if err != nil {
		return err
	}

	product, err := h.add(c, identity, squad.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, product)
}

// Assign handles PUT /api/squads/:id/products/:productId/assignee
func (h *ProductHandler) Assign(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req AssignRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("handlers.AssignProduct", "Invalid request body")
	}

	ctx := c.Request().Context()
	squad, err := h.squads.memberSquad(ctx, c.Param("id"), identity)
	if err != nil {
		return err
	}
	if err := h.assign(c, squad, identity, c.Param("productId"), req.Assignee); err != nil {
		return err
	}

	squad, err = h.squads.dir.Get(ctx, squad.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.squads.detail(*squad))
}

// AddFromForm handles the add-product forms on the squad page
func (h *ProductHandler) AddFromForm(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	squad, err := h.squads.memberSquad(ctx, c.Param("id"), identity)
	if err != nil {
		return err
	}

	req := AddProductRequest{
		CatalogID:   c.FormValue("catalog_id"),
		Name:        c.FormValue("name"),
		Image:       c.FormValue("image"),
		Description: c.FormValue("description"),
	}
	if req.CatalogID == "" {
		price, err := strconv.ParseFloat(strings.TrimSpace(c.FormValue("price")), 64)
		if err != nil {
			return h.renderFormError(c, identity, squad, "Please enter a valid price")
		}
		req.Price = price
	}

	if _, err := h.add(c, identity, squad.ID, req); err != nil {
		if errorsIsValidation(err) {
			return h.renderFormError(c, identity, squad, apperrors.Message(err))
		}
		return err
	}
	return redirect(c, "/squads/"+squad.ID)
}

// AssignFromForm handles the assignee selector. An empty value clears the assignment.
func (h *ProductHandler) AssignFromForm(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	squad, err := h.squads.memberSquad(c.Request().Context(), c.Param("id"), identity)
	if err != nil {
		return err
	}

	var assignee *string
	if v := c.FormValue("assignee"); v != "" {
		assignee = &v
	}
	if err := h.assign(c, squad, identity, c.Param("productId"), assignee); err != nil {
		return err
	}
	return redirect(c, "/squads/"+squad.ID)
}

func (h *ProductHandler) renderFormError(c echo.Context, identity *models.Identity, squad *models.Squad, msg string) error {
	return render(c, http.StatusBadRequest, views.SquadPage(h.squads.pageProps(identity, *squad, msg)))
}
