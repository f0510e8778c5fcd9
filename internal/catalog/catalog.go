// Package catalog holds the read-only product listing the storefront sells from.
package catalog

import (
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// All matches every category or style in a Filter.
const All = "All"

type Catalog struct {
	products []models.Product
	byName   map[string]models.Product
}

// Filter narrows a listing. Empty or All fields do not constrain; Query is a
// case-insensitive substring match against name and description.
type Filter struct {
	Category string
	Style    string
	Query    string
}

// New validates products and builds a catalog preserving their order.
func New(products []models.Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]models.Product, 0, len(products)),
		byName:   make(map[string]models.Product, len(products)),
	}
	for _, p := range products {
		if p.Name == "" {
			return nil, fmt.Errorf("product name is required")
		}
		if !p.Price.IsPositive() {
			return nil, fmt.Errorf("product %q: price must be positive", p.Name)
		}
		if _, exists := c.byName[p.Name]; exists {
			return nil, fmt.Errorf("duplicate product %q", p.Name)
		}
		c.byName[p.Name] = p
		c.products = append(c.products, p)
	}
	return c, nil
}

// Default returns the storefront's built-in catalog.
func Default() *Catalog {
	c, err := New([]models.Product{
		{
			Name:        "Levis Pants",
			Price:       decimal.NewFromInt(39),
			Category:    "Pants",
			Style:       "Daily",
			Description: "Classic straight-fit denim jeans.",
			Image:       "levis_pants.png",
		},
		{
			Name:        "Van Heusen Shirt",
			Price:       decimal.NewFromInt(89),
			Category:    "Shirts",
			Style:       "Party",
			Description: "A premium formal shirt for parties.",
			Image:       "vanheusen_shirt.png",
		},
		{
			Name:        "Arrow Polo",
			Price:       decimal.NewFromInt(59),
			Category:    "Shirts",
			Style:       "Daily",
			Description: "A smart casual polo shirt.",
			Image:       "arrow_shirt.png",
		},
		{
			Name:        "Pepe Jeans",
			Price:       decimal.NewFromInt(79),
			Category:    "Pants",
			Style:       "Party",
			Description: "Stylish slim-fit jeans.",
			Image:       "pepe_jeans_pants.png",
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lookup(name string) (models.Product, bool) {
	p, ok := c.byName[name]
	return p, ok
}

func (c *Catalog) List() []models.Product {
	return append([]models.Product(nil), c.products...)
}

func (c *Catalog) Search(f Filter) []models.Product {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	return lo.Filter(c.products, func(p models.Product, _ int) bool {
		if !matches(f.Category, p.Category) || !matches(f.Style, p.Style) {
			return false
		}
		if query == "" {
			return true
		}
		return strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.Description), query)
	})
}

// Categories lists distinct categories in catalog order.
func (c *Catalog) Categories() []string {
	return lo.Uniq(lo.Map(c.products, func(p models.Product, _ int) string { return p.Category }))
}

// Styles lists distinct styles in catalog order.
func (c *Catalog) Styles() []string {
	return lo.Uniq(lo.Map(c.products, func(p models.Product, _ int) string { return p.Style }))
}

func matches(want, got string) bool {
	return want == "" || want == All || want == got
}
