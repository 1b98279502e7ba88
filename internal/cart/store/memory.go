package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"cartsync/internal/cart/models"
	"cartsync/pkg/domain"
	"cartsync/pkg/platform/sentinel"
)

// Memory keeps cart rows in process. It backs unit tests and local runs where
// Postgres is not configured; semantics mirror the Postgres store, including
// the atomic UpsertAdd.
type Memory struct {
	mu     sync.RWMutex
	rows   map[domain.IdentityID]map[domain.ProductID]models.LineItem
	nextID int64
}

// NewMemory constructs an empty in-memory cart store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[domain.IdentityID]map[domain.ProductID]models.LineItem)}
}

func (s *Memory) SelectRows(_ context.Context, identityID domain.IdentityID) ([]models.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := s.rows[identityID]
	out := make([]models.LineItem, 0, len(byProduct))
	for _, row := range byProduct {
		out = append(out, row)
	}
	// added_at descending, matching the remote contract's ordering key.
	sort.Slice(out, func(i, j int) bool {
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	return out, nil
}

func (s *Memory) InsertRow(_ context.Context, item models.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProduct := s.rows[item.IdentityID]
	if byProduct == nil {
		byProduct = make(map[domain.ProductID]models.LineItem)
		s.rows[item.IdentityID] = byProduct
	}
	if _, exists := byProduct[item.ProductID]; exists {
		return sentinel.ErrConflict
	}
	s.nextID++
	item.ID = s.nextID
	byProduct[item.ProductID] = item
	return nil
}

func (s *Memory) UpdateRow(_ context.Context, identityID domain.IdentityID, productID domain.ProductID, quantity int, addedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[identityID][productID]
	if !ok {
		return sentinel.ErrNotFound
	}
	row.Quantity = quantity
	row.AddedAt = addedAt
	s.rows[identityID][productID] = row
	return nil
}

func (s *Memory) DeleteRow(_ context.Context, identityID domain.IdentityID, productID domain.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[identityID], productID)
	return nil
}

func (s *Memory) DeleteAll(_ context.Context, identityID domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, identityID)
	return nil
}

func (s *Memory) UpsertAdd(_ context.Context, item models.LineItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProduct := s.rows[item.IdentityID]
	if byProduct == nil {
		byProduct = make(map[domain.ProductID]models.LineItem)
		s.rows[item.IdentityID] = byProduct
	}
	if existing, ok := byProduct[item.ProductID]; ok {
		existing.Quantity += item.Quantity
		existing.AddedAt = item.AddedAt
		byProduct[item.ProductID] = existing
		return existing.Quantity, nil
	}
	s.nextID++
	item.ID = s.nextID
	byProduct[item.ProductID] = item
	return item.Quantity, nil
}
