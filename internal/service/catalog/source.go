package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dummyjson"
	"storefront/internal/logging"
	productrepo "storefront/internal/repository/product"
)

// ProductSource lists every product the storefront sells.
type ProductSource interface {
	Products(ctx context.Context) ([]domain.Product, error)
}

// ArticleSource lists blog articles.
type ArticleSource interface {
	Articles(ctx context.Context) ([]domain.Article, error)
}

// DummyJSONSource reads products and posts from dummyjson.
type DummyJSONSource struct {
	client       *dummyjson.Client
	productLimit int
	postLimit    int
	logger       *zap.Logger
}

func NewDummyJSONSource(client *dummyjson.Client, logger *zap.Logger) *DummyJSONSource {
	return &DummyJSONSource{client: client, productLimit: 40, postLimit: 3, logger: logging.OrNop(logger)}
}

// WithProductLimit changes how many products one fetch asks for.
func (s *DummyJSONSource) WithProductLimit(n int) *DummyJSONSource {
	if n > 0 {
		s.productLimit = n
	}
	return s
}

// Products maps every fetched product; records that fail validation are skipped and logged.
func (s *DummyJSONSource) Products(ctx context.Context) ([]domain.Product, error) {
	raw, err := s.client.Products(ctx, s.productLimit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(raw))
	for _, r := range raw {
		p, err := dummyjson.ToProduct(r)
		if err != nil {
			s.logger.Warn("skip dummyjson product", zap.Int("id", r.ID), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *DummyJSONSource) Articles(ctx context.Context) ([]domain.Article, error) {
	raw, err := s.client.Posts(ctx, s.postLimit)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]domain.Article, 0, len(raw))
	for _, r := range raw {
		out = append(out, dummyjson.ToArticle(r, now))
	}
	return out, nil
}

// RepositorySource serves products stored in Postgres.
type RepositorySource struct {
	repo productrepo.Repository
}

func NewRepositorySource(repo productrepo.Repository) *RepositorySource {
	return &RepositorySource{repo: repo}
}

func (s *RepositorySource) Products(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored products: %w", err)
	}
	return products, nil
}
