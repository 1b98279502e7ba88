// Package models defines the cart's persisted and derived shapes.
package models

import (
	"time"

	"cartsync/pkg/domain"
)

// LineItem is one cart row: an identity+product pair with a quantity and the
// product fields captured when the item was first added. AddedAt is refreshed
// on every mutation and is the remote ordering key.
//
// ID is the store-assigned row id. Optimistically appended items carry the
// product id in both ID and ProductID until a reload replaces them with the
// persisted rows.
type LineItem struct {
	ID          int64             `json:"id"`
	IdentityID  domain.IdentityID `json:"identity_id"`
	ProductID   domain.ProductID  `json:"product_id"`
	Quantity    int               `json:"quantity"`
	Title       string            `json:"title"`
	Price       float64           `json:"price"`
	Thumbnail   string            `json:"thumbnail"`
	Description string            `json:"description"`
	AddedAt     time.Time         `json:"added_at"`
}

// Key returns the per-product grouping key: the product id when set, else the
// row id. Optimistic appends always set ProductID; rows loaded from older
// store snapshots may not.
func (li LineItem) Key() domain.ProductID {
	if !li.ProductID.IsNil() {
		return li.ProductID
	}
	return domain.ProductID(li.ID)
}

// ItemRef identifies a cart line for update and removal. Matching against the
// cache applies three fallbacks in order, first match wins: row id equals ID,
// product id equals ID, product id equals ProductID.
type ItemRef struct {
	ID        int64
	ProductID domain.ProductID
}

// TargetProduct resolves the product id a remote mutation should address: the
// explicit ProductID when present, else the ref's own id.
func (r ItemRef) TargetProduct() domain.ProductID {
	if !r.ProductID.IsNil() {
		return r.ProductID
	}
	return domain.ProductID(r.ID)
}

// AggregateEntry is one row of the derived per-product view: all cache lines
// sharing a product id merged into a single entry with the summed quantity.
// Never persisted, never mutated in place.
type AggregateEntry struct {
	ProductID   domain.ProductID `json:"product_id"`
	Quantity    int              `json:"quantity"`
	Title       string           `json:"title"`
	Price       float64          `json:"price"`
	Thumbnail   string           `json:"thumbnail"`
	Description string           `json:"description"`
}

// LoadState is the reload state machine's position. Ready and Error are
// terminal until the next identity change.
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateReady   LoadState = "ready"
	StateError   LoadState = "error"
)
