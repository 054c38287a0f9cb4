package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/cartstore"
	"storefront/internal/domain"
)

const cartCookie = "cartId"

type cartResponse struct {
	Cart      domain.Cart `json:"cart"`
	Pending   bool        `json:"pending"`
	LastError string      `json:"lastError,omitempty"`
}

type addItemRequest struct {
	VariantID string `json:"variantId" binding:"required"`
}

type updateItemRequest struct {
	Op string `json:"op" binding:"required"`
}

func (h *handlers) respondCart(c *gin.Context, status int, cart domain.Cart) {
	resp := cartResponse{Cart: cart}
	if cart.ID != "" {
		resp.Pending = h.deps.Cart.State(cart.ID) == cartstore.Pending
		if err := h.deps.Cart.LastError(cart.ID); err != nil {
			resp.LastError = err.Error()
		}
	}
	c.JSON(status, resp)
}

func setCartCookie(c *gin.Context, cartID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cartCookie, cartID, 0, "/", "", false, true)
}

func clearCartCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cartCookie, "", -1, "/", "", false, true)
}

func cartIDFrom(c *gin.Context) string {
	id, err := c.Cookie(cartCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}

func requireCartID(c *gin.Context) (string, error) {
	id := cartIDFrom(c)
	if id == "" {
		return "", fmt.Errorf("no cart: %w", domain.ErrNotFound)
	}
	return id, nil
}

func merchandiseParam(c *gin.Context) (string, error) {
	id := strings.TrimPrefix(c.Param("merchandiseId"), "/")
	if id == "" {
		return "", fmt.Errorf("%w: merchandise id required", errBadRequest)
	}
	return id, nil
}

func (h *handlers) getCart(c *gin.Context) {
	ctx := c.Request.Context()
	cart, err := h.deps.Cart.Cart(ctx, cartIDFrom(c))
	if errors.Is(err, domain.ErrNotFound) {
		clearCartCookie(c)
		cart, err = h.deps.Cart.Cart(ctx, "")
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, cart)
}

func (h *handlers) createCart(c *gin.Context) {
	cart, err := h.deps.Cart.CreateCart(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	setCartCookie(c, cart.ID)
	h.respondCart(c, http.StatusCreated, cart)
}

// addItem creates the cart first when the shopper has none or the cookie is stale.
func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	ctx := c.Request.Context()

	cartID := cartIDFrom(c)
	if cartID != "" {
		if _, err := h.deps.Cart.Cart(ctx, cartID); errors.Is(err, domain.ErrNotFound) {
			cartID = ""
		} else if err != nil {
			h.fail(c, err)
			return
		}
	}
	if cartID == "" {
		created, err := h.deps.Cart.CreateCart(ctx)
		if err != nil {
			h.fail(c, err)
			return
		}
		cartID = created.ID
		setCartCookie(c, cartID)
	}

	cart, err := h.deps.Cart.AddItem(ctx, cartID, req.VariantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, cart)
}

func (h *handlers) updateItem(c *gin.Context) {
	cartID, err := requireCartID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	merchandiseID, err := merchandiseParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	op, err := cartstore.ParseUpdateOp(req.Op)
	if err != nil {
		h.fail(c, err)
		return
	}
	cart, err := h.deps.Cart.UpdateItem(c.Request.Context(), cartID, merchandiseID, op)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, cart)
}

func (h *handlers) removeItem(c *gin.Context) {
	cartID, err := requireCartID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	merchandiseID, err := merchandiseParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	cart, err := h.deps.Cart.RemoveItem(c.Request.Context(), cartID, merchandiseID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, cart)
}

func (h *handlers) refreshCart(c *gin.Context) {
	cartID, err := requireCartID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	cart, err := h.deps.Cart.Refresh(c.Request.Context(), cartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondCart(c, http.StatusOK, cart)
}

// checkout waits for the cart's queued backend calls before redirecting.
func (h *handlers) checkout(c *gin.Context) {
	cartID, err := requireCartID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	url, err := h.deps.Cart.CheckoutURL(c.Request.Context(), cartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}
