package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/cartstore"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/service/catalog"
	"storefront/internal/session"
)

type CatalogService interface {
	Products(ctx context.Context, q catalog.Query) ([]domain.Product, error)
	GetProduct(ctx context.Context, handle string) (*domain.Product, error)
	Recommendations(ctx context.Context, productID string) ([]domain.Product, error)
	Collections(ctx context.Context) ([]domain.Collection, error)
	CollectionProducts(ctx context.Context, handle string, sortKey catalog.SortKey, reverse bool) ([]domain.Product, error)
	Articles(ctx context.Context) ([]domain.Article, error)
	Article(ctx context.Context, handle string) (*domain.Article, error)
}

type CartService interface {
	CreateCart(ctx context.Context) (domain.Cart, error)
	Cart(ctx context.Context, cartID string) (domain.Cart, error)
	AddItem(ctx context.Context, cartID, variantID string) (domain.Cart, error)
	UpdateItem(ctx context.Context, cartID, merchandiseID string, op cartstore.UpdateOp) (domain.Cart, error)
	RemoveItem(ctx context.Context, cartID, merchandiseID string) (domain.Cart, error)
	Refresh(ctx context.Context, cartID string) (domain.Cart, error)
	CheckoutURL(ctx context.Context, cartID string) (string, error)
	State(cartID string) cartstore.State
	LastError(cartID string) error
}

type AccountService interface {
	Login(ctx context.Context, username, password string) (session.Session, error)
	Logout(ctx context.Context, token string) error
	Account(ctx context.Context, userID int) (domain.Customer, error)
	Orders(ctx context.Context, userID int) ([]domain.Order, error)
}

type SessionValidator interface {
	Validate(ctx context.Context, token string) (*session.Session, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Catalog  CatalogService
	Cart     CartService
	Account  AccountService
	Sessions SessionValidator
}

func (d Deps) validate() error {
	switch {
	case d.Catalog == nil:
		return errors.New("httpserver: catalog service is required")
	case d.Cart == nil:
		return errors.New("httpserver: cart service is required")
	case d.Account == nil:
		return errors.New("httpserver: account service is required")
	case d.Sessions == nil:
		return errors.New("httpserver: session validator is required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db Pinger, deps Deps, corsOrigins []string) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(zap.NewStdLog(logger).Writer()), gin.Recovery())
	if len(corsOrigins) > 0 {
		router.Use(corsMiddleware(corsOrigins))
	}

	h := &handlers{deps: deps, logger: logger}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	router.GET("/products", h.listProducts)
	router.GET("/products/:handle", h.getProduct)
	router.GET("/products/:handle/recommendations", h.recommendations)
	router.GET("/collections", h.listCollections)
	router.GET("/collections/:handle/products", h.collectionProducts)
	router.GET("/articles", h.listArticles)
	router.GET("/articles/:handle", h.getArticle)

	router.GET("/cart", h.getCart)
	router.POST("/cart", h.createCart)
	router.POST("/cart/items", h.addItem)
	router.PATCH("/cart/items/*merchandiseId", h.updateItem)
	router.DELETE("/cart/items/*merchandiseId", h.removeItem)
	router.POST("/cart/refresh", h.refreshCart)
	router.GET("/cart/checkout", h.checkout)

	router.POST("/login", h.login)
	authed := router.Group("/", sessionMiddleware(deps.Sessions))
	authed.POST("/logout", h.logout)
	authed.GET("/account", h.account)
	authed.GET("/orders", h.orders)

	return router, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
