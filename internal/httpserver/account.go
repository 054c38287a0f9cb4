package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	s, err := h.deps.Account.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handlers) logout(c *gin.Context) {
	s := sessionFrom(c.Request.Context())
	if err := h.deps.Account.Logout(c.Request.Context(), s.Token); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) account(c *gin.Context) {
	s := sessionFrom(c.Request.Context())
	customer, err := h.deps.Account.Account(c.Request.Context(), s.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *handlers) orders(c *gin.Context) {
	s := sessionFrom(c.Request.Context())
	orders, err := h.deps.Account.Orders(c.Request.Context(), s.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
