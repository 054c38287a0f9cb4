// Package dummyjson reads the public dummyjson.com demo API and maps it onto storefront records.
package dummyjson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

const DefaultBaseURL = "https://dummyjson.com"

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, logger: logging.OrNop(logger)}
}

type RawProduct struct {
	ID          int         `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Stock       int         `json:"stock"`
	Brand       string      `json:"brand"`
	Category    string      `json:"category"`
	Thumbnail   string      `json:"thumbnail"`
	Images      []string    `json:"images"`
	Tags        []string    `json:"tags"`
	Meta        struct {
		CreatedAt string `json:"createdAt"`
		UpdatedAt string `json:"updatedAt"`
	} `json:"meta"`
}

type RawPost struct {
	ID     int      `json:"id"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Tags   []string `json:"tags"`
	UserID int      `json:"userId"`
}

type RawUser struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Image      string `json:"image"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	Phone      string `json:"phone"`
	BirthDate  string `json:"birthDate"`
	University string `json:"university"`
	Address    *struct {
		Address    string `json:"address"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postalCode"`
		Country    string `json:"country"`
	} `json:"address"`
}

type RawCart struct {
	ID              int              `json:"id"`
	UserID          int              `json:"userId"`
	Products        []RawCartProduct `json:"products"`
	Total           json.Number      `json:"total"`
	DiscountedTotal json.Number      `json:"discountedTotal"`
	TotalProducts   int              `json:"totalProducts"`
	TotalQuantity   int              `json:"totalQuantity"`
}

type RawCartProduct struct {
	ID                 int         `json:"id"`
	Title              string      `json:"title"`
	Price              json.Number `json:"price"`
	Quantity           int         `json:"quantity"`
	Total              json.Number `json:"total"`
	DiscountPercentage json.Number `json:"discountPercentage"`
	DiscountedTotal    json.Number `json:"discountedTotal"`
	Thumbnail          string      `json:"thumbnail"`
}

// Products fetches up to limit products.
func (c *Client) Products(ctx context.Context, limit int) ([]RawProduct, error) {
	var body struct {
		Products []RawProduct `json:"products"`
	}
	if err := c.get(ctx, "/products", url.Values{"limit": {strconv.Itoa(limit)}}, &body); err != nil {
		return nil, err
	}
	return body.Products, nil
}

// Posts fetches up to limit blog posts.
func (c *Client) Posts(ctx context.Context, limit int) ([]RawPost, error) {
	var body struct {
		Posts []RawPost `json:"posts"`
	}
	if err := c.get(ctx, "/posts", url.Values{"limit": {strconv.Itoa(limit)}}, &body); err != nil {
		return nil, err
	}
	return body.Posts, nil
}

// UserByUsername finds the user with exactly username.
func (c *Client) UserByUsername(ctx context.Context, username string) (*RawUser, error) {
	var body struct {
		Users []RawUser `json:"users"`
	}
	q := url.Values{"key": {"username"}, "value": {username}}
	if err := c.get(ctx, "/users/filter", q, &body); err != nil {
		return nil, err
	}
	for i := range body.Users {
		if body.Users[i].Username == username {
			return &body.Users[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (c *Client) User(ctx context.Context, id int) (*RawUser, error) {
	var user RawUser
	if err := c.get(ctx, "/users/"+strconv.Itoa(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserCarts lists the carts dummyjson keeps for a user; the storefront shows them as orders.
func (c *Client) UserCarts(ctx context.Context, id int) ([]RawCart, error) {
	var body struct {
		Carts []RawCart `json:"carts"`
	}
	if err := c.get(ctx, "/users/"+strconv.Itoa(id)+"/carts", nil, &body); err != nil {
		return nil, err
	}
	return body.Carts, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("dummyjson request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("dummyjson %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("dummyjson request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("dummyjson %s: %w", path, domain.ErrNotFound)
	case resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dummyjson %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode dummyjson %s: %w", path, err)
	}
	return nil
}
