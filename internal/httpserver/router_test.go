package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/service/account"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/catalog"
	"storefront/internal/session"
)

type stubCatalog struct {
	products  map[string]domain.Product
	lastQuery catalog.Query
	lastColl  string
	lastRecs  string
}

func (s *stubCatalog) Products(_ context.Context, q catalog.Query) ([]domain.Product, error) {
	s.lastQuery = q
	return nil, nil
}

func (s *stubCatalog) GetProduct(_ context.Context, handle string) (*domain.Product, error) {
	for _, p := range s.products {
		if p.Handle == handle {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubCatalog) GetVariant(_ context.Context, variantID string) (domain.Variant, domain.Product, error) {
	for _, p := range s.products {
		if v, ok := p.Variant(variantID); ok {
			return v, p, nil
		}
	}
	return domain.Variant{}, domain.Product{}, domain.ErrNotFound
}

func (s *stubCatalog) Recommendations(_ context.Context, productID string) ([]domain.Product, error) {
	s.lastRecs = productID
	return []domain.Product{s.products["p2"]}, nil
}

func (s *stubCatalog) Collections(_ context.Context) ([]domain.Collection, error) {
	return []domain.Collection{{Handle: "", Title: "All", Path: "/search"}}, nil
}

func (s *stubCatalog) CollectionProducts(_ context.Context, handle string, _ catalog.SortKey, _ bool) ([]domain.Product, error) {
	s.lastColl = handle
	return []domain.Product{s.products["p1"]}, nil
}

func (s *stubCatalog) Articles(_ context.Context) ([]domain.Article, error) {
	return nil, nil
}

func (s *stubCatalog) Article(_ context.Context, _ string) (*domain.Article, error) {
	return nil, domain.ErrNotFound
}

type stubAccount struct {
	sessions *session.Manager
}

func (s *stubAccount) Login(ctx context.Context, username, password string) (session.Session, error) {
	if username == "" || password == "" {
		return session.Session{}, account.ErrMissingCredentials
	}
	if username != "emilys" || password != "emilyspass" {
		return session.Session{}, account.ErrInvalidCredentials
	}
	return s.sessions.Issue(ctx, 1, username, "Emily")
}

func (s *stubAccount) Logout(ctx context.Context, token string) error {
	return s.sessions.Invalidate(ctx, token, "logout")
}

func (s *stubAccount) Account(_ context.Context, userID int) (domain.Customer, error) {
	return domain.Customer{ID: userID, Username: "emilys"}, nil
}

func (s *stubAccount) Orders(_ context.Context, _ int) ([]domain.Order, error) {
	return nil, domain.ErrNotFound
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

type testEnv struct {
	router  *gin.Engine
	catalog *stubCatalog
}

func newTestEnv(t *testing.T, db Pinger) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	usd := func(a string) domain.Money { return domain.Money{Amount: a, CurrencyCode: "USD"} }
	cat := &stubCatalog{products: map[string]domain.Product{
		"p1": {ID: "p1", Handle: "dummy-product-1", Title: "Dummy Product 1", Variants: []domain.Variant{{ID: "v1", Title: "S", Price: usd("19.99")}}},
		"p2": {ID: "p2", Handle: "dummy-product-2", Title: "Dummy Product 2", Variants: []domain.Variant{{ID: "v2", Title: "Red", Price: usd("45.00")}}},
	}}
	repo := cartrepo.NewMemory(cat, cartrepo.Options{CheckoutURLBase: "https://checkout.example/"}, nil)
	carts := cartsvc.New(repo, cat, cartsvc.Options{Workers: 2})
	t.Cleanup(carts.Close)
	sessions := session.NewManager(session.NewMemoryStore(), time.Hour, nil, nil)

	router, err := buildRouter(nil, db, Deps{
		Catalog:  cat,
		Cart:     carts,
		Account:  &stubAccount{sessions: sessions},
		Sessions: sessions,
	}, []string{"http://localhost:3000"})
	require.NoError(t, err)
	return &testEnv{router: router, catalog: cat}
}

func (e *testEnv) do(method, target, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func cartCookieFrom(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cartCookie {
			return c
		}
	}
	return nil
}

func TestBuildRouterRequiresDeps(t *testing.T) {
	_, err := buildRouter(nil, nil, Deps{}, nil)
	assert.Error(t, err)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", "", nil).Code)

	down := newTestEnv(t, failingPinger{})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodGet, "/readyz", "", nil).Code)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodOptions, "/cart", "", func(r *http.Request) {
		r.Header.Set("Origin", "http://localhost:3000")
		r.Header.Set("Access-Control-Request-Method", "POST")
	})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProductsPassesQuery(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/products?query=shirt&sortKey=price_asc&reverse=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"products":[]}`, rec.Body.String())
	assert.Equal(t, catalog.Query{Search: "shirt", SortKey: catalog.SortPriceAsc, Reverse: true}, env.catalog.lastQuery)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/products?sortKey=TITLE", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/products?reverse=maybe", "", nil).Code)
}

func TestProductLookups(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/products/dummy-product-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"handle":"dummy-product-1"`)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/products/nope", "", nil).Code)

	rec = env.do(http.MethodGet, "/products/dummy-product-1/recommendations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", env.catalog.lastRecs)
	assert.Contains(t, rec.Body.String(), "dummy-product-2")

	rec = env.do(http.MethodGet, "/collections/all/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.catalog.lastColl)

	env.do(http.MethodGet, "/collections/hidden-homepage-carousel/products", "", nil)
	assert.Equal(t, "hidden-homepage-carousel", env.catalog.lastColl)

	assert.JSONEq(t, `{"articles":[]}`, env.do(http.MethodGet, "/articles", "", nil).Body.String())
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/articles/missing", "", nil).Code)
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/cart/items", `{"variantId":"v1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := cartCookieFrom(rec)
	require.NotNil(t, cookie)
	require.NotEmpty(t, cookie.Value)

	resp := decodeCart(t, rec)
	assert.Equal(t, cookie.Value, resp.Cart.ID)
	require.Len(t, resp.Cart.Lines, 1)
	assert.Equal(t, "19.99", resp.Cart.Cost.TotalAmount.Amount)

	rec = env.do(http.MethodPatch, "/cart/items/v1", `{"op":"increment"}`, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decodeCart(t, rec)
	assert.Equal(t, 2, resp.Cart.TotalQuantity)
	assert.Equal(t, "39.98", resp.Cart.Cost.TotalAmount.Amount)

	rec = env.do(http.MethodPost, "/cart/items", `{"variantId":"v2"}`, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, cartCookieFrom(rec))
	assert.Equal(t, "84.98", decodeCart(t, rec).Cart.Cost.TotalAmount.Amount)

	rec = env.do(http.MethodGet, "/cart/checkout", "", withCookie(cookie))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://checkout.example/"+cookie.Value, rec.Header().Get("Location"))

	rec = env.do(http.MethodPost, "/cart/refresh", "", withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeCart(t, rec)
	assert.False(t, resp.Pending)
	assert.Equal(t, 3, resp.Cart.TotalQuantity)
	for _, l := range resp.Cart.Lines {
		assert.NotEmpty(t, l.ID)
	}

	rec = env.do(http.MethodDelete, "/cart/items/v1", "", withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeCart(t, rec)
	require.Len(t, resp.Cart.Lines, 1)
	assert.Equal(t, "v2", resp.Cart.Lines[0].Merchandise.ID)
}

func TestCartEdgeCases(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/cart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Cart.Lines)

	stale := &http.Cookie{Name: cartCookie, Value: "no-such-cart"}
	rec = env.do(http.MethodGet, "/cart", "", withCookie(stale))
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := cartCookieFrom(rec)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	rec = env.do(http.MethodPost, "/cart/items", `{"variantId":"v1"}`, withCookie(stale))
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := cartCookieFrom(rec)
	require.NotNil(t, fresh)
	assert.NotEqual(t, stale.Value, fresh.Value)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/cart/items", `{}`, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPatch, "/cart/items/v1", `{"op":"increment"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPatch, "/cart/items/v1", `{"op":"double"}`, withCookie(fresh)).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/cart/checkout", "", nil).Code)

	rec = env.do(http.MethodPost, "/cart", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotNil(t, cartCookieFrom(rec))
}

func TestAccountRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/login", `{"username":"emilys"}`, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/login", `{"username":"emilys","password":"x"}`, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/account", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/account", "", withBearer("bogus")).Code)

	rec := env.do(http.MethodPost, "/login", `{"username":"emilys","password":"emilyspass"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var s session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	require.NotEmpty(t, s.Token)

	rec = env.do(http.MethodGet, "/account", "", withBearer(s.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"emilys"`)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/orders", "", withBearer(s.Token)).Code)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodPost, "/logout", "", withBearer(s.Token)).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/account", "", withBearer(s.Token)).Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		&cartsvc.BackendError{Op: "add", Kind: cartsvc.ErrBackendUnavailable, Err: errors.New("dial tcp")}: http.StatusBadGateway,
		&cartsvc.BackendError{Op: "add", Kind: cartsvc.ErrBackendRejected, Err: errors.New("conflict")}:   http.StatusUnprocessableEntity,
		context.DeadlineExceeded:        http.StatusGatewayTimeout,
		domain.ErrInvalidQuantity:       http.StatusBadRequest,
		session.ErrInvalidToken:         http.StatusUnauthorized,
		errors.New("something strange"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
