// Package cart stores authoritative carts. Both implementations price lines from the catalog
// and keep one line per merchandise id.
package cart

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/cartstore"
	"storefront/internal/domain"
)

// Repository is the cart backend contract used by the cart service.
type Repository interface {
	CreateCart(ctx context.Context) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	AddLines(ctx context.Context, cartID string, lines []domain.LineInput) (*domain.Cart, error)
	UpdateLines(ctx context.Context, cartID string, lines []domain.LineUpdate) (*domain.Cart, error)
	RemoveLines(ctx context.Context, cartID string, lineIDs []string) (*domain.Cart, error)
}

// VariantLookup resolves a variant id to the variant and its product.
type VariantLookup interface {
	GetVariant(ctx context.Context, variantID string) (domain.Variant, domain.Product, error)
}

// Options configures both backends.
type Options struct {
	Currency        string
	CheckoutURLBase string
}

func (o Options) withDefaults() Options {
	if o.Currency == "" {
		o.Currency = "USD"
	}
	return o
}

// pricedLine builds a new line of quantity units priced from the catalog.
func pricedLine(ctx context.Context, catalog VariantLookup, in domain.LineInput) (domain.LineItem, error) {
	if in.Quantity <= 0 {
		return domain.LineItem{}, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, in.Quantity)
	}
	if strings.TrimSpace(in.MerchandiseID) == "" {
		return domain.LineItem{}, fmt.Errorf("%w: merchandise id required", domain.ErrInvalidOperation)
	}
	variant, product, err := catalog.GetVariant(ctx, in.MerchandiseID)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("resolve variant %s: %w", in.MerchandiseID, err)
	}
	if err := variant.Price.Validate(); err != nil {
		return domain.LineItem{}, err
	}
	line := domain.LineItem{
		Quantity:    1,
		TotalAmount: variant.Price,
		Merchandise: domain.Merchandise{
			ID:              variant.ID,
			Title:           variant.Title,
			SelectedOptions: variant.SelectedOptions,
			Product:         product.Ref(),
		},
	}
	if line.Merchandise.SelectedOptions == nil {
		line.Merchandise.SelectedOptions = []domain.SelectedOption{}
	}
	if in.Quantity == 1 {
		return line, nil
	}
	return line.WithQuantity(in.Quantity)
}

// assemble derives the cart aggregates and checkout address from its lines.
func assemble(id string, lines []domain.LineItem, opts Options) (*domain.Cart, error) {
	if lines == nil {
		lines = []domain.LineItem{}
	}
	qty, cost, err := cartstore.RecomputeTotals(lines, opts.Currency)
	if err != nil {
		return nil, err
	}
	return &domain.Cart{
		ID:            id,
		CheckoutURL:   opts.CheckoutURLBase + id,
		Lines:         lines,
		TotalQuantity: qty,
		Cost:          cost,
	}, nil
}
