// Package catalog serves the storefront's products and bookable services
// from an embedded seed.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

//go:embed seed.json
var seed []byte

// Product is a sellable item.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Species  string          `json:"species"`
	Price    decimal.Decimal `json:"price"`
}

// Service is a bookable appointment type.
type Service struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"durationMinutes"`
	Professionals   []string        `json:"professionals"`
}

// HasProfessional reports whether name may be assigned to the service.
func (s Service) HasProfessional(name string) bool {
	for _, candidate := range s.Professionals {
		if candidate == name {
			return true
		}
	}
	return false
}

type document struct {
	Products []Product `json:"products"`
	Services []Service `json:"services"`
}

// Catalog is an immutable in-memory index.
type Catalog struct {
	products     []Product
	services     []Service
	productsByID map[string]Product
	servicesByID map[string]Service
}

// Load parses the embedded seed.
func Load() (*Catalog, error) {
	return Parse(seed)
}

// Parse builds a catalog from a JSON document.
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		productsByID: make(map[string]Product, len(doc.Products)),
		servicesByID: make(map[string]Service, len(doc.Services)),
	}
	for _, p := range doc.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("product without id")
		}
		if _, dup := c.productsByID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product %q", p.ID)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("product %q has negative price", p.ID)
		}
		c.productsByID[p.ID] = p
		c.products = append(c.products, p)
	}
	for _, s := range doc.Services {
		if s.ID == "" {
			return nil, fmt.Errorf("service without id")
		}
		if _, dup := c.servicesByID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate service %q", s.ID)
		}
		if s.Price.IsNegative() {
			return nil, fmt.Errorf("service %q has negative price", s.ID)
		}
		c.servicesByID[s.ID] = s
		c.services = append(c.services, s)
	}
	sort.SliceStable(c.products, func(i, j int) bool { return c.products[i].Name < c.products[j].Name })
	sort.SliceStable(c.services, func(i, j int) bool { return c.services[i].Name < c.services[j].Name })
	return c, nil
}

// Products returns products ordered by name, optionally filtered by category.
func (c *Catalog) Products(category string) []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) Product(id string) (Product, bool) {
	p, ok := c.productsByID[id]
	return p, ok
}

func (c *Catalog) Services() []Service {
	out := make([]Service, len(c.services))
	copy(out, c.services)
	return out
}

func (c *Catalog) Service(id string) (Service, bool) {
	s, ok := c.servicesByID[id]
	return s, ok
}

// PriceOf is the checkout price lookup.
func (c *Catalog) PriceOf(productID string) (decimal.Decimal, bool) {
	p, ok := c.productsByID[productID]
	if !ok {
		return decimal.Zero, false
	}
	return p.Price, true
}
