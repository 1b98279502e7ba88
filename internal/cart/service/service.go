// Package service implements cart reconciliation: optimistic local mutations
// applied to an in-memory cache and propagated to the remote row store, with
// a full reload on every identity change.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"cartsync/internal/cart/metrics"
	"cartsync/internal/cart/models"
	"cartsync/internal/cart/ports"
	catalogmodels "cartsync/internal/catalog/models"
	"cartsync/pkg/domain"
	dErrors "cartsync/pkg/domain-errors"
)

// Service is the reconciliation engine. It exclusively owns the local cart
// cache; every other component reads snapshots only.
//
// Mutations follow one policy: the cache is mutated synchronously, then the
// remote call runs on a goroutine. Remote failures land in a latest-error
// slot and are never retried, and the optimistic cache mutation is not rolled
// back; the next identity-change reload reconciles any drift. Clear is the
// one exception: it withholds its cache mutation until the remote delete
// succeeds, so a failed clear leaves the cache untouched.
type Service struct {
	store    ports.Store
	catalog  ports.CatalogReader
	identity ports.IdentityProvider
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	cache      []models.LineItem
	products   []catalogmodels.Product
	state      models.LoadState
	loadErr    string
	catalogErr string
	lastErr    error
	generation uint64

	loads       singleflight.Group
	wg          sync.WaitGroup
	unsubscribe func()
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics attaches cart metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the engine. Call Start to load the current identity's cart
// and begin tracking identity changes.
func New(store ports.Store, catalog ports.CatalogReader, identity ports.IdentityProvider, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader is required")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity provider is required")
	}

	svc := &Service{
		store:    store,
		catalog:  catalog,
		identity: identity,
		logger:   slog.Default(),
		state:    models.StateIdle,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Start performs the initial load and subscribes to identity changes.
func (s *Service) Start() {
	s.unsubscribe = s.identity.Subscribe(s.onIdentityChange)
	id, ok := s.identity.Current()
	s.onIdentityChange(id, ok)
}

// Close stops tracking identity changes and waits for in-flight remote calls
// to finish, bounded by ctx.
func (s *Service) Close(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	return s.Drain(ctx)
}

// Drain blocks until every spawned remote call has completed, or ctx expires.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Add optimistically appends a one-quantity line for the product and persists
// it with an atomic increment-or-insert. The append happens even when a line
// for the product already exists (the aggregate view merges duplicates) and
// even when no identity is signed in (the persistence step then records a
// no-identity error without rolling the append back).
func (s *Service) Add(ctx context.Context, product catalogmodels.Product) {
	now := time.Now()
	item := models.LineItem{
		ID:          int64(product.ID),
		ProductID:   product.ID,
		Quantity:    1,
		Title:       product.Title,
		Price:       product.Price,
		Thumbnail:   product.Thumbnail,
		Description: product.Description,
		AddedAt:     now,
	}
	identityID, signedIn := s.identity.Current()
	item.IdentityID = identityID

	s.mu.Lock()
	s.cache = append(s.cache, item)
	s.metrics.SetCacheSize(len(s.cache))
	s.mu.Unlock()
	s.metrics.ObserveMutation("add")

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if !signedIn {
			s.metrics.IncNoIdentity()
			s.record(identityID, signedIn, dErrors.New(dErrors.CodeNoIdentity, "adding to cart requires a signed-in identity"))
			return
		}
		start := time.Now()
		qty, err := s.store.UpsertAdd(ctx, item)
		s.metrics.ObserveStoreCall(start, err)
		if err != nil {
			s.logger.ErrorContext(ctx, "persist add failed",
				"identity_id", identityID,
				"product_id", item.ProductID,
				"error", err,
			)
			s.record(identityID, signedIn, dErrors.Wrap(err, dErrors.CodeStoreFailure, "persist add"))
			return
		}
		s.logger.DebugContext(ctx, "add persisted",
			"identity_id", identityID,
			"product_id", item.ProductID,
			"quantity", qty,
		)
	}()
}

// UpdateQuantity sets the matched cache line to qty and persists the change.
// A qty below 1 is rejected outright; treat-as-remove was considered and
// dropped so an accidental zero from a client cannot delete a row.
func (s *Service) UpdateQuantity(ctx context.Context, ref models.ItemRef, qty int) error {
	if qty < 1 {
		return dErrors.Newf(dErrors.CodeValidation, "quantity must be at least 1, got %d", qty)
	}

	identityID, signedIn := s.identity.Current()
	if !signedIn {
		s.metrics.IncNoIdentity()
		s.record(identityID, signedIn, dErrors.New(dErrors.CodeNoIdentity, "updating the cart requires a signed-in identity"))
		return nil
	}

	now := time.Now()
	target := ref.TargetProduct()

	s.mu.Lock()
	if idx := s.matchLocked(ref); idx >= 0 {
		s.cache[idx].Quantity = qty
		s.cache[idx].AddedAt = now
	}
	s.mu.Unlock()
	s.metrics.ObserveMutation("update")

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		err := s.store.UpdateRow(ctx, identityID, target, qty, now)
		s.metrics.ObserveStoreCall(start, err)
		if err != nil {
			s.logger.ErrorContext(ctx, "persist quantity update failed",
				"identity_id", identityID,
				"product_id", target,
				"quantity", qty,
				"error", err,
			)
			s.record(identityID, signedIn, dErrors.Wrap(err, dErrors.CodeStoreFailure, "persist quantity update"))
		}
	}()
	return nil
}

// Remove decrements the matched line, deleting it when the quantity would
// drop to zero. An unmatched ref is a silent no-op with no store call. The
// qty==1 versus qty>1 boundary decides update-versus-delete remotely.
func (s *Service) Remove(ctx context.Context, ref models.ItemRef) {
	now := time.Now()
	identityID, signedIn := s.identity.Current()

	s.mu.Lock()
	idx := s.matchLocked(ref)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	entry := s.cache[idx]
	deleting := entry.Quantity <= 1
	if deleting {
		s.cache = append(s.cache[:idx], s.cache[idx+1:]...)
	} else {
		s.cache[idx].Quantity = entry.Quantity - 1
		s.cache[idx].AddedAt = now
	}
	s.metrics.SetCacheSize(len(s.cache))
	s.mu.Unlock()
	s.metrics.ObserveMutation("remove")

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if !signedIn {
			s.metrics.IncNoIdentity()
			s.record(identityID, signedIn, dErrors.New(dErrors.CodeNoIdentity, "removing from the cart requires a signed-in identity"))
			return
		}
		start := time.Now()
		var err error
		if deleting {
			err = s.store.DeleteRow(ctx, identityID, entry.Key())
		} else {
			err = s.store.UpdateRow(ctx, identityID, entry.Key(), entry.Quantity-1, now)
		}
		s.metrics.ObserveStoreCall(start, err)
		if err != nil {
			s.logger.ErrorContext(ctx, "persist remove failed",
				"identity_id", identityID,
				"product_id", entry.Key(),
				"deleting", deleting,
				"error", err,
			)
			s.record(identityID, signedIn, dErrors.Wrap(err, dErrors.CodeStoreFailure, "persist remove"))
		}
	}()
}

// Clear deletes every remote row for the identity, then empties the cache.
// Unlike the other mutations the cache is only touched after the remote
// delete succeeds, so a failed clear leaves it byte-for-byte unchanged.
// With no identity signed in, Clear is a no-op.
func (s *Service) Clear(ctx context.Context) {
	identityID, signedIn := s.identity.Current()
	if !signedIn {
		return
	}

	start := time.Now()
	err := s.store.DeleteAll(ctx, identityID)
	s.metrics.ObserveStoreCall(start, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "clear cart failed",
			"identity_id", identityID,
			"error", err,
		)
		s.record(identityID, signedIn, dErrors.Wrap(err, dErrors.CodeStoreFailure, "clear cart"))
		return
	}

	s.mu.Lock()
	s.cache = nil
	s.metrics.SetCacheSize(0)
	s.mu.Unlock()
	s.metrics.ObserveMutation("clear")
}

// Items returns a snapshot of the local cart cache.
func (s *Service) Items() []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LineItem, len(s.cache))
	copy(out, s.cache)
	return out
}

// Aggregate returns the derived per-product view of the current cache.
func (s *Service) Aggregate() []models.AggregateEntry {
	return AggregateItems(s.Items())
}

// Products returns the catalog snapshot from the last reload.
func (s *Service) Products() []catalogmodels.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalogmodels.Product, len(s.products))
	copy(out, s.products)
	return out
}

// State returns the reload state machine's position.
func (s *Service) State() models.LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadError returns the raw cart reload failure message, empty when none.
func (s *Service) LoadError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// CatalogError returns the raw catalog reload failure message, empty when none.
func (s *Service) CatalogError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalogErr
}

// LastError returns the latest mutation error (no-identity or store failure),
// or nil. Errors overwrite each other; nothing is queued or retried.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// record stores err in the latest-error slot, unless the identity the
// mutation targeted is no longer the current one; completions of calls that
// outlived an identity switch are discarded silently.
func (s *Service) record(taggedID domain.IdentityID, taggedSignedIn bool, err error) {
	currentID, signedIn := s.identity.Current()
	if signedIn != taggedSignedIn || currentID != taggedID {
		return
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// matchLocked resolves ref against the cache using three fallbacks in order,
// first match wins: row id, product id against the ref's id, explicit
// product id. Callers hold s.mu.
func (s *Service) matchLocked(ref models.ItemRef) int {
	if ref.ID != 0 {
		for i, it := range s.cache {
			if it.ID == ref.ID {
				return i
			}
		}
		for i, it := range s.cache {
			if it.ProductID == domain.ProductID(ref.ID) {
				return i
			}
		}
	}
	if !ref.ProductID.IsNil() {
		for i, it := range s.cache {
			if it.ProductID == ref.ProductID {
				return i
			}
		}
	}
	return -1
}
