package models

import "cartsync/pkg/domain"

// Product is one catalog entry. The cart denormalizes these fields into line
// items at add time, so later catalog edits do not rewrite carts.
type Product struct {
	ID          domain.ProductID `json:"id"`
	Title       string           `json:"title"`
	Price       float64          `json:"price"`
	Thumbnail   string           `json:"thumbnail"`
	Description string           `json:"description"`
}
