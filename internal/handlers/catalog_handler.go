package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"shopsquad/internal/catalog"
	"shopsquad/internal/models"
	"shopsquad/internal/services"
)

const catalogCacheTTL = 10 * time.Minute

type CatalogHandler struct {
	cache *services.RedisCache
}

// NewCatalogHandler creates the handler. cache may be nil.
func NewCatalogHandler(cache *services.RedisCache) *CatalogHandler {
	return &CatalogHandler{cache: cache}
}

// Search handles GET /api/catalog?q=&category=
func (h *CatalogHandler) Search(c echo.Context) error {
	term := strings.TrimSpace(c.QueryParam("q"))
	category := strings.TrimSpace(c.QueryParam("category"))
	key := "catalog:" + strings.ToLower(term) + ":" + category

	items, err := services.GetOrSet(h.cache, c.Request().Context(), key, catalogCacheTTL, func() ([]models.CatalogProduct, error) {
		return catalog.Search(term, category), nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CatalogResponse{Items: items, Categories: catalog.Categories()})
}
