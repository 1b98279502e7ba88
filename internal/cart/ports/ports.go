// Package ports defines the interfaces the reconciliation engine consumes.
// Interfaces live here, not with their implementations, so the engine depends
// only on contracts.
package ports

import (
	"context"
	"time"

	cartmodels "cartsync/internal/cart/models"
	catalogmodels "cartsync/internal/catalog/models"
	"cartsync/pkg/domain"
)

// Store is the remote cart row set, keyed by (identity, product). All
// operations are scoped to one identity.
type Store interface {
	// SelectRows returns every row for the identity, ordered by added_at
	// descending.
	SelectRows(ctx context.Context, identityID domain.IdentityID) ([]cartmodels.LineItem, error)

	// InsertRow creates a new row. Fails if (identity, product) already exists.
	InsertRow(ctx context.Context, item cartmodels.LineItem) error

	// UpdateRow sets quantity and added_at on an existing row.
	UpdateRow(ctx context.Context, identityID domain.IdentityID, productID domain.ProductID, quantity int, addedAt time.Time) error

	// DeleteRow removes one row. Deleting an absent row is not an error.
	DeleteRow(ctx context.Context, identityID domain.IdentityID, productID domain.ProductID) error

	// DeleteAll removes every row for the identity.
	DeleteAll(ctx context.Context, identityID domain.IdentityID) error

	// UpsertAdd atomically inserts the row with its quantity, or increments
	// the existing row's quantity by that amount and refreshes added_at.
	// Returns the resulting quantity. This is the conditional upsert that
	// keeps concurrent adds from inserting duplicate rows.
	UpsertAdd(ctx context.Context, item cartmodels.LineItem) (int, error)
}

// CatalogReader is the read side of the product catalog, loaded alongside the
// cart on every identity change. Catalog writes are out of scope here.
type CatalogReader interface {
	ListProducts(ctx context.Context) ([]catalogmodels.Product, error)
}

// IdentityProvider supplies the current identity and notifies on changes.
// The engine subscribes exactly once at start.
type IdentityProvider interface {
	// Current returns the signed-in identity, or ok=false when none.
	Current() (id domain.IdentityID, ok bool)

	// Subscribe registers a callback fired on every identity change with the
	// new identity (ok=false for sign-out). Returns an unsubscribe func.
	Subscribe(fn func(id domain.IdentityID, ok bool)) (unsubscribe func())
}
