// Package store provides the catalog read side the cart reload consumes.
package store

import (
	"context"
	"sort"
	"sync"

	"cartsync/internal/catalog/models"
	"cartsync/pkg/domain"
)

// Memory is a fixed in-process product list, used in tests and local runs.
type Memory struct {
	mu       sync.RWMutex
	products map[domain.ProductID]models.Product
}

// NewMemory constructs an in-memory catalog seeded with the given products.
func NewMemory(products ...models.Product) *Memory {
	m := &Memory{products: make(map[domain.ProductID]models.Product, len(products))}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// Put adds or replaces a product. Test seeding helper.
func (m *Memory) Put(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *Memory) ListProducts(_ context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
