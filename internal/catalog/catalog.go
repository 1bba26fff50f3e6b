// Package catalog holds the static products offered when filling a shopping list.
package catalog

import (
	"sort"
	"strings"

	"shopsquad/internal/models"
)

var products = []models.CatalogProduct{
	{
		ID:          "nike-air-max-270",
		Name:        "Nike Air Max 270",
		Price:       150,
		Image:       "https://images.unsplash.com/photo-1514989940723-e8e51635b782?w=400",
		Description: "The Nike Air Max 270 delivers a plush ride and modern look.",
		Category:    "Shoes",
		Brand:       "Nike",
	},
	{
		ID:          "adidas-ultraboost",
		Name:        "Adidas Ultraboost",
		Price:       180,
		Image:       "https://images.unsplash.com/photo-1608231387042-66d1773070a5?w=400",
		Description: "Energy-returning Boost cushioning and a sock-like fit.",
		Category:    "Shoes",
		Brand:       "Adidas",
	},
	{
		ID:          "levi-501-jeans",
		Name:        "Levi's 501 Original Jeans",
		Price:       98,
		Image:       "https://images.unsplash.com/photo-1542272604-787c3835535d?w=400",
		Description: "The original blue jean since 1873.",
		Category:    "Clothing",
		Brand:       "Levi's",
	},
	{
		ID:          "nike-tech-fleece",
		Name:        "Nike Tech Fleece Hoodie",
		Price:       120,
		Image:       "https://images.unsplash.com/photo-1556821840-3a63f95609a7?w=400",
		Description: "Lightweight warmth with a modern look.",
		Category:    "Clothing",
		Brand:       "Nike",
	},
	{
		ID:          "apple-airpods-pro",
		Name:        "Apple AirPods Pro",
		Price:       249,
		Image:       "https://images.unsplash.com/photo-1588423771073-b8903fbb85b5?w=400",
		Description: "Active Noise Cancellation and Transparency mode.",
		Category:    "Electronics",
		Brand:       "Apple",
	},
	{
		ID:          "samsung-galaxy-watch",
		Name:        "Samsung Galaxy Watch 5",
		Price:       279,
		Image:       "https://images.unsplash.com/photo-1579586337278-3befd40fd17a?w=400",
		Description: "Advanced health monitoring and fitness tracking.",
		Category:    "Electronics",
		Brand:       "Samsung",
	},
	{
		ID:          "ray-ban-aviator",
		Name:        "Ray-Ban Aviator Classic",
		Price:       161,
		Image:       "https://images.unsplash.com/photo-1572635196237-14b3f281503f?w=400",
		Description: "Timeless aviator sunglasses with gold frame.",
		Category:    "Accessories",
		Brand:       "Ray-Ban",
	},
	{
		ID:          "herschel-backpack",
		Name:        "Herschel Little America Backpack",
		Price:       100,
		Image:       "https://images.unsplash.com/photo-1553062407-98eeb64c6a62?w=400",
		Description: "Classic mountaineering style with modern functionality.",
		Category:    "Accessories",
		Brand:       "Herschel",
	},
}

// All returns a copy of every catalog product
func All() []models.CatalogProduct {
	return append([]models.CatalogProduct(nil), products...)
}

// Find looks a product up by id
func Find(id string) (models.CatalogProduct, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return models.CatalogProduct{}, false
}

// Search matches term against name and brand (case-insensitive) and keeps
// only products of category when it is set.
func Search(term, category string) []models.CatalogProduct {
	term = strings.ToLower(strings.TrimSpace(term))
	result := []models.CatalogProduct{}
	for _, p := range products {
		if category != "" && p.Category != category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Brand), term) {
			continue
		}
		result = append(result, p)
	}
	return result
}

// Categories lists the distinct categories, sorted
func Categories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, p := range products {
		if !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}
	sort.Strings(categories)
	return categories
}
