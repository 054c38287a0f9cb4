// Package catalog serves products, collections and articles from a cached snapshot of the
// configured sources.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

// ErrUnknownSortKey is returned for sort keys other than the ones below.
var ErrUnknownSortKey = errors.New("unknown sort key")

type SortKey string

const (
	SortRelevance SortKey = "RELEVANCE"
	SortCreatedAt SortKey = "CREATED_AT"
	SortPriceAsc  SortKey = "PRICE_ASC"
	SortPriceDesc SortKey = "PRICE_DESC"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToUpper(strings.TrimSpace(s))); k {
	case "", SortRelevance:
		return SortRelevance, nil
	case SortCreatedAt, SortPriceAsc, SortPriceDesc:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
	}
}

// Query selects and orders products.
type Query struct {
	Search  string
	SortKey SortKey
	Reverse bool
}

const (
	maxRecommendations = 4
	loadTimeout        = 30 * time.Second
)

type Service struct {
	products ProductSource
	articles ArticleSource
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	snap  *snapshot
}

type snapshot struct {
	products  []domain.Product
	byHandle  map[string]int
	byVariant map[string]int
	articles  []domain.Article
	loadedAt  time.Time
}

// New builds a catalog. articles may be nil when no article source is configured; ttl <= 0
// caches until Refresh.
func New(products ProductSource, articles ArticleSource, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		products: products,
		articles: articles,
		ttl:      ttl,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// Refresh reloads every source now.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.reload(ctx)
	return err
}

func (s *Service) Products(ctx context.Context, q Query) ([]domain.Product, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	var out []domain.Product
	for _, p := range snap.products {
		if needle == "" || strings.Contains(strings.ToLower(p.Title), needle) || p.HasTag(q.Search) {
			out = append(out, p)
		}
	}
	return order(out, q.SortKey, q.Reverse)
}

// Collections derives one collection per product category, after the "All" collection.
func (s *Service) Collections(ctx context.Context) ([]domain.Collection, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.Collection{{
		Handle:      "",
		Title:       "All",
		Description: "All products",
		Path:        "/search",
		UpdatedAt:   snap.loadedAt,
	}}
	seen := map[string]bool{}
	title := cases.Title(language.English)
	for _, p := range snap.products {
		handle := domain.Slugify(p.Category)
		if handle == "" || seen[handle] {
			continue
		}
		seen[handle] = true
		name := title.String(strings.ReplaceAll(p.Category, "-", " "))
		out = append(out, domain.Collection{
			Handle:      handle,
			Title:       name,
			Description: name + " products",
			Path:        "/search/" + handle,
			UpdatedAt:   snap.loadedAt,
		})
	}
	return out, nil
}

// CollectionProducts lists products whose category slug or tag equals handle. The empty
// handle selects every product.
func (s *Service) CollectionProducts(ctx context.Context, handle string, sortKey SortKey, reverse bool) ([]domain.Product, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Product
	for _, p := range snap.products {
		if handle == "" || domain.Slugify(p.Category) == handle || p.HasTag(handle) {
			out = append(out, p)
		}
	}
	return order(out, sortKey, reverse)
}

func (s *Service) GetProduct(ctx context.Context, handle string) (*domain.Product, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	i, ok := snap.byHandle[handle]
	if !ok {
		return nil, fmt.Errorf("product %q: %w", handle, domain.ErrNotFound)
	}
	p := snap.products[i]
	return &p, nil
}

// GetVariant returns the variant and the product that owns it.
func (s *Service) GetVariant(ctx context.Context, variantID string) (domain.Variant, domain.Product, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return domain.Variant{}, domain.Product{}, err
	}
	i, ok := snap.byVariant[variantID]
	if !ok {
		return domain.Variant{}, domain.Product{}, fmt.Errorf("variant %q: %w", variantID, domain.ErrNotFound)
	}
	p := snap.products[i]
	v, _ := p.Variant(variantID)
	return v, p, nil
}

// Recommendations returns up to four other products, same category first.
func (s *Service) Recommendations(ctx context.Context, productID string) ([]domain.Product, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var source *domain.Product
	for i := range snap.products {
		if snap.products[i].ID == productID {
			source = &snap.products[i]
			break
		}
	}
	if source == nil {
		return nil, fmt.Errorf("product %q: %w", productID, domain.ErrNotFound)
	}
	var same, other []domain.Product
	for _, p := range snap.products {
		switch {
		case p.ID == source.ID:
		case source.Category != "" && p.Category == source.Category:
			same = append(same, p)
		default:
			other = append(other, p)
		}
	}
	out := append(same, other...)
	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out, nil
}

func (s *Service) Articles(ctx context.Context) ([]domain.Article, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.articles), nil
}

func (s *Service) Article(ctx context.Context, handle string) (*domain.Article, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range snap.articles {
		if a.Handle == handle {
			a := a
			return &a, nil
		}
	}
	return nil, fmt.Errorf("article %q: %w", handle, domain.ErrNotFound)
}

func (s *Service) snapshot(ctx context.Context) (*snapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap != nil && (s.ttl <= 0 || s.now().Sub(snap.loadedAt) < s.ttl) {
		return snap, nil
	}
	fresh, err := s.reload(ctx)
	if err != nil {
		if snap != nil {
			s.logger.Warn("catalog refresh failed, serving stale snapshot", zap.Error(err))
			return snap, nil
		}
		return nil, err
	}
	return fresh, nil
}

// reload fetches products and articles concurrently; concurrent callers share one fetch. The
// fetch outlives a cancelled caller, which stops waiting and returns its own context error.
func (s *Service) reload(ctx context.Context) (*snapshot, error) {
	ch := s.group.DoChan("catalog", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.load(loadCtx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) load(ctx context.Context) (*snapshot, error) {
	var products []domain.Product
	var articles []domain.Article
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.products.Products(gctx)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		return nil
	})
	if s.articles != nil {
		g.Go(func() error {
			var err error
			articles, err = s.articles.Articles(gctx)
			if err != nil {
				return fmt.Errorf("load articles: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap := index(products, articles, s.now())
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	s.logger.Info("catalog loaded", zap.Int("products", len(snap.products)), zap.Int("articles", len(snap.articles)))
	return snap, nil
}

func index(products []domain.Product, articles []domain.Article, now time.Time) *snapshot {
	snap := &snapshot{
		products:  make([]domain.Product, 0, len(products)),
		byHandle:  make(map[string]int, len(products)),
		byVariant: make(map[string]int, len(products)),
		articles:  articles,
		loadedAt:  now,
	}
	if snap.articles == nil {
		snap.articles = []domain.Article{}
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			continue
		}
		if _, dup := snap.byHandle[p.Handle]; dup {
			continue
		}
		i := len(snap.products)
		snap.products = append(snap.products, p)
		snap.byHandle[p.Handle] = i
		for _, v := range p.Variants {
			snap.byVariant[v.ID] = i
		}
	}
	return snap
}

// order sorts a copy of products by key and then reverses it when asked.
func order(products []domain.Product, key SortKey, reverse bool) ([]domain.Product, error) {
	out := slices.Clone(products)
	if out == nil {
		out = []domain.Product{}
	}
	switch key {
	case "", SortRelevance:
	case SortCreatedAt:
		slices.SortStableFunc(out, func(a, b domain.Product) int {
			return createdAt(b).Compare(createdAt(a))
		})
	case SortPriceAsc, SortPriceDesc:
		slices.SortStableFunc(out, func(a, b domain.Product) int {
			c := comparePrice(a, b)
			if key == SortPriceDesc {
				return -c
			}
			return c
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortKey, key)
	}
	if reverse {
		slices.Reverse(out)
	}
	return out, nil
}

func createdAt(p domain.Product) time.Time {
	if p.CreatedAt.IsZero() {
		return p.UpdatedAt
	}
	return p.CreatedAt
}

func comparePrice(a, b domain.Product) int {
	da, errA := a.MinPrice().Decimal()
	db, errB := b.MinPrice().Decimal()
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	return da.Cmp(db)
}
