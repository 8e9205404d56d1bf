package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	itemColumns = `i.id, i.title, i.price, i.discount_price, i.category, i.label, i.slug, i.description,
		i.image, COALESCE(i.image_secondary_1, ''), COALESCE(i.image_secondary_2, ''), COALESCE(i.image_secondary_3, '')`

	listItemsSQL = `SELECT ` + itemColumns + ` FROM items i ORDER BY i.title, i.id OFFSET $1 LIMIT $2`

	countItemsSQL = `SELECT count(*) FROM items`

	getItemBySlugSQL = `SELECT ` + itemColumns + ` FROM items i WHERE i.slug = $1`

	getItemsByIDsSQL = `SELECT ` + itemColumns + ` FROM items i WHERE i.id = ANY($1)`

	deleteItemSQL = `DELETE FROM items WHERE id = $1`

	updateItemImagesSQL = `UPDATE items SET image = $2,
		image_secondary_1 = NULLIF($3, ''), image_secondary_2 = NULLIF($4, ''), image_secondary_3 = NULLIF($5, '')
		WHERE id = $1`

	upsertItemSQL = `INSERT INTO items (id, title, price, discount_price, category, label, slug, description,
			image, image_secondary_1, image_secondary_2, image_secondary_3)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''))
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title, price = EXCLUDED.price, discount_price = EXCLUDED.discount_price,
			category = EXCLUDED.category, label = EXCLUDED.label, description = EXCLUDED.description
		RETURNING id`
)

var _ catalog.Repository = (*ItemRepository)(nil)

// ItemRepository implements catalog.Repository backed by PostgreSQL.
type ItemRepository struct {
	q querier
}

// List returns one window of the catalog ordered by title.
func (r *ItemRepository) List(ctx context.Context, offset, limit int) ([]catalog.Item, error) {
	rows, err := r.q.Query(ctx, listItemsSQL, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// Count returns the number of catalog items.
func (r *ItemRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, countItemsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// GetBySlug returns the item with the given slug or catalog.ErrNotFound.
func (r *ItemRepository) GetBySlug(ctx context.Context, slug string) (*catalog.Item, error) {
	rows, err := r.q.Query(ctx, getItemBySlugSQL, slug)
	if err != nil {
		return nil, fmt.Errorf("getting item %q: %w", slug, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting item %q: %w", slug, err)
	}
	return &it, nil
}

// GetByIDs returns items matching any of the given IDs.
func (r *ItemRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Item, error) {
	rows, err := r.q.Query(ctx, getItemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// Delete removes the item. Cart lines referencing it are removed by cascade.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, deleteItemSQL, id)
	if err != nil {
		return fmt.Errorf("deleting item %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// UpdateImages replaces the stored image names of an item.
func (r *ItemRepository) UpdateImages(ctx context.Context, id string, images catalog.Images) error {
	_, err := r.q.Exec(ctx, updateItemImagesSQL, id, images.Primary,
		images.Secondary[0], images.Secondary[1], images.Secondary[2])
	if err != nil {
		return fmt.Errorf("updating images of %q: %w", id, err)
	}
	return nil
}

// Upsert inserts the item or updates the one with the same slug. Images of
// an existing item are left as they are.
func (r *ItemRepository) Upsert(ctx context.Context, it *catalog.Item) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	err := r.q.QueryRow(ctx, upsertItemSQL,
		it.ID, it.Title, it.Price, it.DiscountPrice, string(it.Category), string(it.Label), it.Slug, it.Description,
		it.Images.Primary, it.Images.Secondary[0], it.Images.Secondary[1], it.Images.Secondary[2],
	).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("upserting item %q: %w", it.Slug, err)
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var it catalog.Item
	err := row.Scan(
		&it.ID, &it.Title, &it.Price, &it.DiscountPrice, &it.Category, &it.Label, &it.Slug, &it.Description,
		&it.Images.Primary, &it.Images.Secondary[0], &it.Images.Secondary[1], &it.Images.Secondary[2],
	)
	return it, err
}
