package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/service/catalog"
)

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// allCollectionHandle addresses the collection with the empty handle in paths.
const allCollectionHandle = "all"

func parseOrdering(c *gin.Context) (catalog.SortKey, bool, error) {
	key, err := catalog.ParseSortKey(c.Query("sortKey"))
	if err != nil {
		return "", false, err
	}
	reverse := false
	if raw := c.Query("reverse"); raw != "" {
		reverse, err = strconv.ParseBool(raw)
		if err != nil {
			return "", false, fmt.Errorf("%w: reverse must be a boolean", errBadRequest)
		}
	}
	return key, reverse, nil
}

func (h *handlers) listProducts(c *gin.Context) {
	key, reverse, err := parseOrdering(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	products, err := h.deps.Catalog.Products(c.Request.Context(), catalog.Query{
		Search:  c.Query("query"),
		SortKey: key,
		Reverse: reverse,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": nonNil(products)})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.Catalog.GetProduct(c.Request.Context(), c.Param("handle"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) recommendations(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.deps.Catalog.GetProduct(ctx, c.Param("handle"))
	if err != nil {
		h.fail(c, err)
		return
	}
	products, err := h.deps.Catalog.Recommendations(ctx, p.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": nonNil(products)})
}

func (h *handlers) listCollections(c *gin.Context) {
	collections, err := h.deps.Catalog.Collections(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": nonNil(collections)})
}

func (h *handlers) collectionProducts(c *gin.Context) {
	key, reverse, err := parseOrdering(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	handle := c.Param("handle")
	if handle == allCollectionHandle {
		handle = ""
	}
	products, err := h.deps.Catalog.CollectionProducts(c.Request.Context(), handle, key, reverse)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": nonNil(products)})
}

func (h *handlers) listArticles(c *gin.Context) {
	articles, err := h.deps.Catalog.Articles(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": nonNil(articles)})
}

func (h *handlers) getArticle(c *gin.Context) {
	a, err := h.deps.Catalog.Article(c.Request.Context(), c.Param("handle"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
