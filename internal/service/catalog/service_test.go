package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

type stubProducts struct {
	products []domain.Product
	err      error
	calls    atomic.Int32
}

func (s *stubProducts) Products(context.Context) ([]domain.Product, error) {
	s.calls.Add(1)
	return s.products, s.err
}

type stubArticles []domain.Article

func (s stubArticles) Articles(context.Context) ([]domain.Article, error) {
	return s, nil
}

func product(n int, title, category, price string, created time.Time, tags ...string) domain.Product {
	id := string(rune('a' + n))
	p := domain.Product{
		ID:        "p-" + id,
		Handle:    domain.Slugify(title),
		Title:     title,
		Category:  category,
		Tags:      tags,
		CreatedAt: created,
		Variants: []domain.Variant{{
			ID:    "v-" + id,
			Title: "Default",
			Price: domain.Money{Amount: price, CurrencyCode: "USD"},
		}},
	}
	p.PriceRange = domain.PriceRangeOf(p.Variants, "USD")
	return p
}

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func fixtures() []domain.Product {
	return []domain.Product{
		product(0, "Red Lipstick", "beauty", "12.99", day, "lipstick"),
		product(1, "Blue Mascara", "beauty", "9.99", day.Add(48*time.Hour)),
		product(2, "Oak Table", "furniture", "299.00", day.Add(24*time.Hour)),
		product(3, "Pine Chair", "furniture", "89.5", day.Add(72*time.Hour)),
		product(4, "Silk Scarf", "home-decoration", "45.00", day, "gift"),
		product(5, "Green Mascara", "beauty", "10.00", day),
	}
}

func newCatalog(src *stubProducts) *Service {
	return New(src, stubArticles{{ID: "a1", Handle: "hello-world", Title: "Hello World"}}, time.Minute, nil)
}

func handles(ps []domain.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Handle)
	}
	return out
}

func TestProductsSearchAndSort(t *testing.T) {
	svc := newCatalog(&stubProducts{products: fixtures()})
	ctx := context.Background()

	got, err := svc.Products(ctx, Query{Search: "mascara"})
	require.NoError(t, err)
	assert.Equal(t, []string{"blue-mascara", "green-mascara"}, handles(got))

	got, err = svc.Products(ctx, Query{Search: "gift"})
	require.NoError(t, err)
	assert.Equal(t, []string{"silk-scarf"}, handles(got))

	got, err = svc.Products(ctx, Query{SortKey: SortPriceAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"blue-mascara", "green-mascara", "red-lipstick", "silk-scarf", "pine-chair", "oak-table"}, handles(got))

	got, err = svc.Products(ctx, Query{SortKey: SortPriceDesc})
	require.NoError(t, err)
	assert.Equal(t, "oak-table", got[0].Handle)

	got, err = svc.Products(ctx, Query{SortKey: SortCreatedAt})
	require.NoError(t, err)
	assert.Equal(t, []string{"pine-chair", "blue-mascara", "oak-table"}, handles(got)[:3])

	got, err = svc.Products(ctx, Query{SortKey: SortPriceAsc, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, "oak-table", got[0].Handle)

	got, err = svc.Products(ctx, Query{Search: "nothing matches"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = svc.Products(ctx, Query{SortKey: "BEST_SELLING"})
	assert.ErrorIs(t, err, ErrUnknownSortKey)
}

func TestCollections(t *testing.T) {
	svc := newCatalog(&stubProducts{products: fixtures()})
	ctx := context.Background()

	cols, err := svc.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, "All", cols[0].Title)
	assert.Equal(t, "/search", cols[0].Path)
	assert.Equal(t, "beauty", cols[1].Handle)
	assert.Equal(t, "Home Decoration", cols[3].Title)
	assert.Equal(t, "/search/home-decoration", cols[3].Path)

	got, err := svc.CollectionProducts(ctx, "furniture", SortPriceAsc, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"pine-chair", "oak-table"}, handles(got))

	got, err = svc.CollectionProducts(ctx, "lipstick", SortRelevance, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"red-lipstick"}, handles(got))

	got, err = svc.CollectionProducts(ctx, "", SortRelevance, false)
	require.NoError(t, err)
	assert.Len(t, got, 6)
}

func TestLookups(t *testing.T) {
	svc := newCatalog(&stubProducts{products: fixtures()})
	ctx := context.Background()

	p, err := svc.GetProduct(ctx, "oak-table")
	require.NoError(t, err)
	assert.Equal(t, "p-c", p.ID)

	_, err = svc.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	v, owner, err := svc.GetVariant(ctx, "v-b")
	require.NoError(t, err)
	assert.Equal(t, "9.99", v.Price.Amount)
	assert.Equal(t, "blue-mascara", owner.Handle)

	_, _, err = svc.GetVariant(ctx, "v-zz")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	recs, err := svc.Recommendations(ctx, "p-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"blue-mascara", "green-mascara", "oak-table", "pine-chair"}, handles(recs))

	_, err = svc.Recommendations(ctx, "p-zz")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	articles, err := svc.Articles(ctx)
	require.NoError(t, err)
	assert.Len(t, articles, 1)
	a, err := svc.Article(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", a.Title)
	_, err = svc.Article(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotIsCachedForTTL(t *testing.T) {
	src := &stubProducts{products: fixtures()}
	svc := newCatalog(src)
	now := day
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := svc.Products(ctx, Query{})
	require.NoError(t, err)
	_, err = svc.GetProduct(ctx, "oak-table")
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())

	now = now.Add(2 * time.Minute)
	_, err = svc.Products(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())

	src.err = errors.New("upstream down")
	now = now.Add(2 * time.Minute)
	got, err := svc.Products(ctx, Query{})
	require.NoError(t, err, "stale snapshot is served")
	assert.Len(t, got, 6)

	require.Error(t, svc.Refresh(ctx))
}

func TestFirstLoadFailureIsReturned(t *testing.T) {
	svc := newCatalog(&stubProducts{err: errors.New("upstream down")})
	_, err := svc.Products(context.Background(), Query{})
	assert.Error(t, err)
}

type blockingProducts struct {
	products []domain.Product
	started  chan struct{}
	release  chan struct{}
}

func (s *blockingProducts) Products(ctx context.Context) ([]domain.Product, error) {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.products, nil
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	src := &blockingProducts{products: fixtures(), started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := New(src, nil, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Products(ctx, Query{})
		first <- err
	}()
	<-src.started
	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(src.release)
	got, err := svc.Products(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, got, len(fixtures()))
}

func TestInvalidProductsAreDropped(t *testing.T) {
	bad := product(9, "Broken", "x", "oops", day)
	svc := newCatalog(&stubProducts{products: append(fixtures(), bad)})
	got, err := svc.Products(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, got, 6)
}

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("price_asc")
	require.NoError(t, err)
	assert.Equal(t, SortPriceAsc, k)
	k, err = ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortRelevance, k)
	_, err = ParseSortKey("title")
	assert.ErrorIs(t, err, ErrUnknownSortKey)
}
