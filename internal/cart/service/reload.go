package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"cartsync/internal/cart/models"
	catalogmodels "cartsync/internal/catalog/models"
	"cartsync/pkg/domain"
)

// reloadResult carries the two independent read slices of one reload. Each
// slice fails on its own; a cart read failure never hides catalog rows and
// vice versa.
type reloadResult struct {
	rows        []models.LineItem
	products    []catalogmodels.Product
	rowsErr     error
	productsErr error
}

// onIdentityChange drives the reload state machine. Every change bumps the
// generation counter; a reload completion whose captured generation is no
// longer current is discarded without touching cache or state.
func (s *Service) onIdentityChange(id domain.IdentityID, signedIn bool) {
	s.mu.Lock()
	s.generation++
	gen := s.generation

	if !signedIn {
		// No identity: empty cart, no remote reads.
		s.cache = nil
		s.products = nil
		s.state = models.StateReady
		s.loadErr = ""
		s.catalogErr = ""
		s.metrics.SetCacheSize(0)
		s.mu.Unlock()
		return
	}

	s.state = models.StateLoading
	s.mu.Unlock()

	s.metrics.IncReload()
	s.wg.Add(1)
	go s.reload(gen, id)
}

func (s *Service) reload(gen uint64, id domain.IdentityID) {
	defer s.wg.Done()

	// Identity changes are not tied to any request lifetime.
	ctx := context.Background()

	// singleflight collapses concurrent reloads for the same identity into
	// one pair of reads; each waiter still applies (or discards) the shared
	// result under its own generation.
	v, _, _ := s.loads.Do(id.String(), func() (any, error) {
		var res reloadResult
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			res.rows, res.rowsErr = s.store.SelectRows(gctx, id)
			// Per-slice failure only; never cancel the sibling read.
			return nil
		})
		g.Go(func() error {
			res.products, res.productsErr = s.catalog.ListProducts(gctx)
			return nil
		})
		_ = g.Wait()
		return res, nil
	})
	res := v.(reloadResult)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// A newer identity change superseded this load.
		s.metrics.IncStaleDiscarded()
		s.logger.Debug("discarded stale reload",
			"identity_id", id,
			"generation", gen,
			"current_generation", s.generation,
		)
		return
	}

	if res.rowsErr != nil {
		s.cache = nil
		s.state = models.StateError
		s.loadErr = res.rowsErr.Error()
		s.logger.Error("cart reload failed",
			"identity_id", id,
			"error", res.rowsErr,
		)
	} else {
		s.cache = res.rows
		s.state = models.StateReady
		s.loadErr = ""
	}

	if res.productsErr != nil {
		s.products = nil
		s.catalogErr = res.productsErr.Error()
		s.logger.Error("catalog reload failed",
			"identity_id", id,
			"error", res.productsErr,
		)
	} else {
		s.products = res.products
		s.catalogErr = ""
	}

	s.metrics.SetCacheSize(len(s.cache))
}
