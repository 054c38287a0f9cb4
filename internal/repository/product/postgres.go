package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger)}
}

const productColumns = `id, handle, title, description, description_html, available_for_sale, brand, category, tags, options, featured_image, images, created_at, updated_at`

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+productColumns+`
FROM products
ORDER BY created_at DESC, id
`)
	if err != nil {
		r.logger.Error("product repo: list", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("product repo: list rows", zap.Error(err))
		return nil, err
	}

	variants, err := r.variants(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range result {
		finish(&result[i], variants[result[i].ID])
	}
	r.logger.Debug("product repo: list", zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByHandle(ctx context.Context, handle string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `
SELECT `+productColumns+`
FROM products
WHERE handle = $1
`, handle))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("product repo: get", zap.String("handle", handle), zap.Error(err))
		return nil, err
	}
	variants, err := r.variants(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	finish(&p, variants[p.ID])
	return &p, nil
}

func (r *postgresRepo) GetByVariantID(ctx context.Context, variantID string) (*domain.Product, error) {
	var handle string
	err := r.pool.QueryRow(ctx, `
SELECT p.handle
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`, variantID).Scan(&handle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.GetByHandle(ctx, handle)
}

// Upsert writes product and replaces its variants. Products are keyed by id.
func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := product.Validate(); err != nil {
		return nil, err
	}
	options, err := json.Marshal(nonNil(product.Options))
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	images, err := json.Marshal(nonNil(product.Images))
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}
	var featured []byte
	if product.FeaturedImage != nil {
		if featured, err = json.Marshal(product.FeaturedImage); err != nil {
			return nil, fmt.Errorf("encode featured image: %w", err)
		}
	}
	tags := product.Tags
	if tags == nil {
		tags = []string{}
	}
	createdAt := product.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var updatedAt time.Time
	err = tx.QueryRow(ctx, `
INSERT INTO products (id, handle, title, description, description_html, available_for_sale, brand, category, tags, options, featured_image, images, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
    handle = EXCLUDED.handle,
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    description_html = EXCLUDED.description_html,
    available_for_sale = EXCLUDED.available_for_sale,
    brand = EXCLUDED.brand,
    category = EXCLUDED.category,
    tags = EXCLUDED.tags,
    options = EXCLUDED.options,
    featured_image = EXCLUDED.featured_image,
    images = EXCLUDED.images,
    updated_at = now()
RETURNING updated_at
`,
		product.ID,
		product.Handle,
		product.Title,
		product.Description,
		product.DescriptionHTML,
		product.AvailableForSale,
		product.Brand,
		product.Category,
		tags,
		options,
		featured,
		images,
		createdAt,
	).Scan(&updatedAt)
	if err != nil {
		r.logger.Error("product repo: upsert", zap.String("id", product.ID), zap.String("handle", product.Handle), zap.Error(err))
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_variants WHERE product_id = $1`, product.ID); err != nil {
		return nil, err
	}
	for i, v := range product.Variants {
		selected, err := json.Marshal(nonNil(v.SelectedOptions))
		if err != nil {
			return nil, fmt.Errorf("encode selected options: %w", err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO product_variants (id, product_id, position, title, available_for_sale, selected_options, price_amount, currency_code)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)
`, v.ID, product.ID, i, v.Title, v.AvailableForSale, selected, v.Price.Amount, v.Price.CurrencyCode); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	res := product
	res.CreatedAt = createdAt
	res.UpdatedAt = updatedAt
	finish(&res, product.Variants)
	r.logger.Debug("product repo: upserted", zap.String("id", res.ID), zap.String("handle", res.Handle), zap.Int("variants", len(res.Variants)))
	return &res, nil
}

// variants loads variants grouped by product id, optionally restricted to productIDs.
func (r *postgresRepo) variants(ctx context.Context, productIDs []string) (map[string][]domain.Variant, error) {
	q := `
SELECT id, product_id, title, available_for_sale, selected_options, price_amount::text, currency_code
FROM product_variants
`
	var args []any
	if productIDs != nil {
		q += `WHERE product_id = ANY($1)
`
		args = append(args, productIDs)
	}
	q += `ORDER BY product_id, position`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Variant)
	for rows.Next() {
		var v domain.Variant
		var productID string
		var selected []byte
		if err := rows.Scan(&v.ID, &productID, &v.Title, &v.AvailableForSale, &selected, &v.Price.Amount, &v.Price.CurrencyCode); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(selected, &v.SelectedOptions); err != nil {
			return nil, fmt.Errorf("decode selected options for variant %s: %w", v.ID, err)
		}
		out[productID] = append(out[productID], v)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	var options, featured, images []byte
	if err := row.Scan(
		&p.ID,
		&p.Handle,
		&p.Title,
		&p.Description,
		&p.DescriptionHTML,
		&p.AvailableForSale,
		&p.Brand,
		&p.Category,
		&p.Tags,
		&options,
		&featured,
		&images,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	if err := json.Unmarshal(options, &p.Options); err != nil {
		return domain.Product{}, fmt.Errorf("decode options for product %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return domain.Product{}, fmt.Errorf("decode images for product %s: %w", p.ID, err)
	}
	if len(featured) > 0 {
		var img domain.Image
		if err := json.Unmarshal(featured, &img); err != nil {
			return domain.Product{}, fmt.Errorf("decode featured image for product %s: %w", p.ID, err)
		}
		p.FeaturedImage = &img
	}
	return p, nil
}

// finish attaches variants and derives the price range.
func finish(p *domain.Product, variants []domain.Variant) {
	if variants == nil {
		variants = []domain.Variant{}
	}
	p.Variants = variants
	currency := "USD"
	if len(variants) > 0 {
		currency = variants[0].Price.CurrencyCode
	}
	p.PriceRange = domain.PriceRangeOf(variants, currency)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
