package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool    *pgxpool.Pool
	catalog VariantLookup
	opts    Options
	logger  *zap.Logger
}

// NewPostgres stores carts in the carts and cart_lines tables.
func NewPostgres(pool *pgxpool.Pool, catalog VariantLookup, opts Options, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, catalog: catalog, opts: opts.withDefaults(), logger: logging.OrNop(logger)}
}

func (r *postgresRepo) CreateCart(ctx context.Context) (*domain.Cart, error) {
	var id string
	if err := r.pool.QueryRow(ctx, `
INSERT INTO carts (currency_code)
VALUES ($1)
RETURNING id::text
`, r.opts.Currency).Scan(&id); err != nil {
		r.logger.Error("cart repo: create", zap.Error(err))
		return nil, err
	}
	r.logger.Debug("cart repo: created", zap.String("cart_id", id))
	return assemble(id, nil, r.opts)
}

func (r *postgresRepo) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	if _, err := uuid.Parse(cartID); err != nil {
		return nil, domain.ErrNotFound
	}
	return r.fetchCart(ctx, r.pool, cartID)
}

func (r *postgresRepo) AddLines(ctx context.Context, cartID string, inputs []domain.LineInput) (*domain.Cart, error) {
	if _, err := uuid.Parse(cartID); err != nil {
		return nil, domain.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockCart(ctx, tx, cartID); err != nil {
		return nil, err
	}

	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, in.Quantity)
		}
		existing, err := scanLine(tx.QueryRow(ctx, `
SELECT id::text, quantity, total_amount::text, currency_code, merchandise
FROM cart_lines
WHERE cart_id = $1 AND merchandise_id = $2
FOR UPDATE
`, cartID, in.MerchandiseID))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		if err == nil {
			next, err := existing.WithQuantity(existing.Quantity + in.Quantity)
			if err != nil {
				return nil, err
			}
			if err := updateLine(ctx, tx, cartID, next); err != nil {
				return nil, err
			}
			continue
		}

		line, err := pricedLine(ctx, r.catalog, in)
		if err != nil {
			return nil, err
		}
		merchandise, err := json.Marshal(line.Merchandise)
		if err != nil {
			return nil, fmt.Errorf("encode merchandise: %w", err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO cart_lines (cart_id, merchandise_id, quantity, total_amount, currency_code, merchandise)
VALUES ($1, $2, $3, $4::numeric, $5, $6)
`, cartID, in.MerchandiseID, line.Quantity, line.TotalAmount.Amount, line.TotalAmount.CurrencyCode, merchandise); err != nil {
			return nil, err
		}
	}

	if err := touchCart(ctx, tx, cartID); err != nil {
		return nil, err
	}
	cart, err := r.fetchCart(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Debug("cart repo: lines added", zap.String("cart_id", cartID), zap.Int("count", len(inputs)))
	return cart, nil
}

func (r *postgresRepo) UpdateLines(ctx context.Context, cartID string, updates []domain.LineUpdate) (*domain.Cart, error) {
	if _, err := uuid.Parse(cartID); err != nil {
		return nil, domain.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockCart(ctx, tx, cartID); err != nil {
		return nil, err
	}

	for _, u := range updates {
		if _, err := uuid.Parse(u.ID); err != nil {
			return nil, fmt.Errorf("line %s: %w", u.ID, domain.ErrNotFound)
		}
		if u.Quantity <= 0 {
			cmd, err := tx.Exec(ctx, `
DELETE FROM cart_lines
WHERE id = $1 AND cart_id = $2
`, u.ID, cartID)
			if err != nil {
				return nil, err
			}
			if cmd.RowsAffected() == 0 {
				return nil, fmt.Errorf("line %s: %w", u.ID, domain.ErrNotFound)
			}
			continue
		}
		line, err := scanLine(tx.QueryRow(ctx, `
SELECT id::text, quantity, total_amount::text, currency_code, merchandise
FROM cart_lines
WHERE id = $1 AND cart_id = $2
FOR UPDATE
`, u.ID, cartID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("line %s: %w", u.ID, domain.ErrNotFound)
			}
			return nil, err
		}
		next, err := line.WithQuantity(u.Quantity)
		if err != nil {
			return nil, err
		}
		if err := updateLine(ctx, tx, cartID, next); err != nil {
			return nil, err
		}
	}

	if err := touchCart(ctx, tx, cartID); err != nil {
		return nil, err
	}
	cart, err := r.fetchCart(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *postgresRepo) RemoveLines(ctx context.Context, cartID string, lineIDs []string) (*domain.Cart, error) {
	if _, err := uuid.Parse(cartID); err != nil {
		return nil, domain.ErrNotFound
	}
	ids := make([]string, 0, len(lineIDs))
	for _, id := range lineIDs {
		if _, err := uuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockCart(ctx, tx, cartID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
DELETE FROM cart_lines
WHERE cart_id = $1 AND id = ANY($2::uuid[])
`, cartID, ids); err != nil {
		return nil, err
	}
	if err := touchCart(ctx, tx, cartID); err != nil {
		return nil, err
	}
	cart, err := r.fetchCart(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return cart, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *postgresRepo) fetchCart(ctx context.Context, q querier, cartID string) (*domain.Cart, error) {
	var currency string
	err := q.QueryRow(ctx, `
SELECT currency_code
FROM carts
WHERE id = $1
`, cartID).Scan(&currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("cart repo: get", zap.String("cart_id", cartID), zap.Error(err))
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT id::text, quantity, total_amount::text, currency_code, merchandise
FROM cart_lines
WHERE cart_id = $1
ORDER BY created_at ASC, id ASC
`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []domain.LineItem{}
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	opts := r.opts
	opts.Currency = currency
	return assemble(cartID, lines, opts)
}

func scanLine(row pgx.Row) (domain.LineItem, error) {
	var line domain.LineItem
	var merchandise []byte
	if err := row.Scan(&line.ID, &line.Quantity, &line.TotalAmount.Amount, &line.TotalAmount.CurrencyCode, &merchandise); err != nil {
		return domain.LineItem{}, err
	}
	if err := json.Unmarshal(merchandise, &line.Merchandise); err != nil {
		return domain.LineItem{}, fmt.Errorf("decode merchandise for line %s: %w", line.ID, err)
	}
	return line, nil
}

func lockCart(ctx context.Context, tx pgx.Tx, cartID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id::text FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func updateLine(ctx context.Context, tx pgx.Tx, cartID string, line domain.LineItem) error {
	_, err := tx.Exec(ctx, `
UPDATE cart_lines
SET quantity = $1, total_amount = $2::numeric
WHERE id = $3 AND cart_id = $4
`, line.Quantity, line.TotalAmount.Amount, line.ID, cartID)
	return err
}

func touchCart(ctx context.Context, tx pgx.Tx, cartID string) error {
	_, err := tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
	return err
}
