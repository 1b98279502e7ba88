package service

import (
	"cartsync/internal/cart/models"
	"cartsync/pkg/domain"
)

// AggregateItems merges line items sharing a product id into one entry with
// the summed quantity. Pure function of its input: groups keep first-seen
// order, each entry carries the fields of the group's last-seen member, and
// an absent quantity counts as 1. Computed per call; cart sizes are small
// enough that O(n) on every read is fine.
func AggregateItems(items []models.LineItem) []models.AggregateEntry {
	entries := make([]models.AggregateEntry, 0, len(items))
	index := make(map[domain.ProductID]int, len(items))

	for _, it := range items {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		key := it.Key()
		if i, ok := index[key]; ok {
			entries[i] = models.AggregateEntry{
				ProductID:   key,
				Quantity:    entries[i].Quantity + qty,
				Title:       it.Title,
				Price:       it.Price,
				Thumbnail:   it.Thumbnail,
				Description: it.Description,
			}
			continue
		}
		index[key] = len(entries)
		entries = append(entries, models.AggregateEntry{
			ProductID:   key,
			Quantity:    qty,
			Title:       it.Title,
			Price:       it.Price,
			Thumbnail:   it.Thumbnail,
			Description: it.Description,
		})
	}
	return entries
}
