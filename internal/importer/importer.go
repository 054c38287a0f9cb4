// Package importer copies catalog products from an external source into the product repository.
package importer

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type ProductSource interface {
	Products(ctx context.Context) ([]domain.Product, error)
}

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Importer upserts every product a source yields, a few at a time.
type Importer struct {
	source      ProductSource
	productRepo ProductWriter
	parallelism int
	logger      *zap.Logger
}

func New(source ProductSource, repo ProductWriter, parallelism int, logger *zap.Logger) *Importer {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Importer{
		source:      source,
		productRepo: repo,
		parallelism: parallelism,
		logger:      logging.OrNop(logger),
	}
}

// Run returns how many products were written. The first failed upsert stops the import.
func (i *Importer) Run(ctx context.Context) (int, error) {
	products, err := i.source.Products(ctx)
	if err != nil {
		return 0, fmt.Errorf("read products: %w", err)
	}

	var imported atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.parallelism)
	for _, p := range products {
		p := p
		g.Go(func() error {
			if _, err := i.productRepo.Upsert(gctx, p); err != nil {
				return fmt.Errorf("upsert product %q: %w", p.Handle, err)
			}
			imported.Add(1)
			i.logger.Debug("imported product", zap.String("handle", p.Handle))
			return nil
		})
	}
	err = g.Wait()
	n := int(imported.Load())
	i.logger.Info("import finished", zap.Int("imported", n), zap.Int("total", len(products)), zap.Error(err))
	return n, err
}
