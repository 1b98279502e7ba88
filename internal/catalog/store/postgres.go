package store

import (
	"context"
	"database/sql"
	"fmt"

	"cartsync/internal/catalog/models"
	"cartsync/pkg/domain"
)

// Postgres reads products from PostgreSQL. Catalog writes happen out of band
// (seed scripts, admin tooling); this service only lists.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed catalog reader.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema creates the products table.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id          BIGSERIAL PRIMARY KEY,
	title       TEXT             NOT NULL,
	price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	thumbnail   TEXT             NOT NULL DEFAULT '',
	description TEXT             NOT NULL DEFAULT ''
);
`

func (s *Postgres) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, price, thumbnail, description FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		var id int64
		if err := rows.Scan(&id, &p.Title, &p.Price, &p.Thumbnail, &p.Description); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.ID = domain.ProductID(id)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}
