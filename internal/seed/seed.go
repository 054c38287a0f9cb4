// Package seed loads the two demo products the storefront ships with into the product table.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	productrepo "storefront/internal/repository/product"
)

// Products returns the demo catalog. Each call builds fresh values.
func Products(now time.Time) []domain.Product {
	usd := func(amount string) domain.Money { return domain.Money{Amount: amount, CurrencyCode: "USD"} }
	image := func(n int) domain.Image {
		return domain.Image{
			URL:     fmt.Sprintf("https://dummyjson.com/image/400x400?text=Dummy+%d", n),
			AltText: fmt.Sprintf("Dummy Product %d", n),
			Width:   400,
			Height:  400,
		}
	}
	return []domain.Product{
		{
			ID:               "demo-product-1",
			Handle:           "dummy-product-1",
			Title:            "Dummy Product 1",
			Description:      "This is a dummy product.",
			DescriptionHTML:  "<p>This is a dummy product.</p>",
			AvailableForSale: true,
			Category:         "demo",
			Tags:             []string{"demo"},
			Options:          []domain.ProductOption{{ID: "size", Name: "Size", Values: []string{"S", "M"}}},
			Variants: []domain.Variant{
				{
					ID: "demo-variant-1", Title: "S", AvailableForSale: true,
					SelectedOptions: []domain.SelectedOption{{Name: "Size", Value: "S"}},
					Price:           usd("19.99"),
				},
				{
					ID: "demo-variant-2", Title: "M", AvailableForSale: true,
					SelectedOptions: []domain.SelectedOption{{Name: "Size", Value: "M"}},
					Price:           usd("24.99"),
				},
			},
			FeaturedImage: ptr(image(1)),
			Images:        []domain.Image{image(1)},
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:               "demo-product-2",
			Handle:           "dummy-product-2",
			Title:            "Dummy Product 2",
			Description:      "This is another dummy product.",
			DescriptionHTML:  "<p>This is another dummy product.</p>",
			AvailableForSale: true,
			Category:         "demo",
			Tags:             []string{"demo"},
			Options:          []domain.ProductOption{{ID: "color", Name: "Color", Values: []string{"Red"}}},
			Variants: []domain.Variant{{
				ID: "demo-variant-3", Title: "Red", AvailableForSale: true,
				SelectedOptions: []domain.SelectedOption{{Name: "Color", Value: "Red"}},
				Price:           usd("45.00"),
			}},
			FeaturedImage: ptr(image(2)),
			Images:        []domain.Image{image(2)},
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
}

// Apply upserts the demo products. It is idempotent.
func Apply(ctx context.Context, repo productrepo.Repository, logger *zap.Logger) error {
	logger = logging.OrNop(logger)
	for _, p := range Products(time.Now().UTC()) {
		if _, err := repo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Handle, err)
		}
		logger.Info("seeded product", zap.String("handle", p.Handle), zap.Int("variants", len(p.Variants)))
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
