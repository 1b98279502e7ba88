package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cartsync/internal/cart/models"
	"cartsync/pkg/domain"
	"cartsync/pkg/platform/sentinel"
)

// Postgres persists cart rows in PostgreSQL. One row per (identity, product),
// enforced by the primary key; UpsertAdd leans on ON CONFLICT so concurrent
// adds for the same product never insert duplicates.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed cart store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema creates the cart table. Callers run it at startup; IF NOT EXISTS
// keeps it idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS cart_items (
	identity_id TEXT             NOT NULL,
	product_id  BIGINT           NOT NULL,
	row_id      BIGSERIAL,
	quantity    INTEGER          NOT NULL CHECK (quantity >= 1),
	title       TEXT             NOT NULL DEFAULT '',
	price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	thumbnail   TEXT             NOT NULL DEFAULT '',
	description TEXT             NOT NULL DEFAULT '',
	added_at    TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (identity_id, product_id)
);
CREATE INDEX IF NOT EXISTS cart_items_added_at_idx ON cart_items (identity_id, added_at DESC);
`

func (s *Postgres) SelectRows(ctx context.Context, identityID domain.IdentityID) ([]models.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row_id, identity_id, product_id, quantity, title, price, thumbnail, description, added_at
		FROM cart_items
		WHERE identity_id = $1
		ORDER BY added_at DESC`,
		identityID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("select cart rows: %w", err)
	}
	defer rows.Close()

	var items []models.LineItem
	for rows.Next() {
		var item models.LineItem
		var identity string
		var product int64
		if err := rows.Scan(
			&item.ID, &identity, &product, &item.Quantity,
			&item.Title, &item.Price, &item.Thumbnail, &item.Description, &item.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart row: %w", err)
		}
		item.IdentityID = domain.IdentityID(identity)
		item.ProductID = domain.ProductID(product)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart rows: %w", err)
	}
	return items, nil
}

func (s *Postgres) InsertRow(ctx context.Context, item models.LineItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items (identity_id, product_id, quantity, title, price, thumbnail, description, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.IdentityID.String(), int64(item.ProductID), item.Quantity,
		item.Title, item.Price, item.Thumbnail, item.Description, item.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cart row: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateRow(ctx context.Context, identityID domain.IdentityID, productID domain.ProductID, quantity int, addedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3, added_at = $4
		WHERE identity_id = $1 AND product_id = $2`,
		identityID.String(), int64(productID), quantity, addedAt,
	)
	if err != nil {
		return fmt.Errorf("update cart row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cart row: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteRow(ctx context.Context, identityID domain.IdentityID, productID domain.ProductID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE identity_id = $1 AND product_id = $2`,
		identityID.String(), int64(productID),
	)
	if err != nil {
		return fmt.Errorf("delete cart row: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteAll(ctx context.Context, identityID domain.IdentityID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE identity_id = $1`,
		identityID.String(),
	)
	if err != nil {
		return fmt.Errorf("delete cart rows: %w", err)
	}
	return nil
}

func (s *Postgres) UpsertAdd(ctx context.Context, item models.LineItem) (int, error) {
	var quantity int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (identity_id, product_id, quantity, title, price, thumbnail, description, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (identity_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, added_at = EXCLUDED.added_at
		RETURNING quantity`,
		item.IdentityID.String(), int64(item.ProductID), item.Quantity,
		item.Title, item.Price, item.Thumbnail, item.Description, item.AddedAt,
	).Scan(&quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("upsert cart row: no row returned")
		}
		return 0, fmt.Errorf("upsert cart row: %w", err)
	}
	return quantity, nil
}
