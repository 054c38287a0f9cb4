package dummyjson

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

const (
	Currency = "USD"

	TagHomepageFeatured = "hidden-homepage-featured-items"
	TagHomepageCarousel = "hidden-homepage-carousel"
)

func ProductID(id int) string { return "gid://dummyjson/Product/" + strconv.Itoa(id) }

func VariantID(id int) string { return "gid://dummyjson/ProductVariant/" + strconv.Itoa(id) + "-0" }

// ToProduct maps a dummyjson product onto a single-variant catalog product.
func ToProduct(raw RawProduct) (domain.Product, error) {
	price, err := amount(raw.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: product %d price: %v", domain.ErrInvalidProduct, raw.ID, err)
	}
	available := raw.Stock > 0
	variant := domain.Variant{
		ID:               VariantID(raw.ID),
		Title:            "Default",
		AvailableForSale: available,
		SelectedOptions:  []domain.SelectedOption{},
		Price:            domain.Money{Amount: price, CurrencyCode: Currency},
	}

	images := make([]domain.Image, 0, len(raw.Images))
	for i, u := range raw.Images {
		images = append(images, domain.Image{
			URL:     u,
			AltText: fmt.Sprintf("%s - image %d", raw.Title, i+1),
			Width:   600,
			Height:  600,
		})
	}

	tags := append([]string{}, raw.Tags...)
	switch {
	case raw.ID >= 1 && raw.ID <= 3:
		tags = append(tags, TagHomepageFeatured)
	case raw.ID >= 4 && raw.ID <= 8:
		tags = append(tags, TagHomepageCarousel)
	}

	p := domain.Product{
		ID:               ProductID(raw.ID),
		Handle:           domain.Slugify(raw.Title),
		AvailableForSale: available,
		Title:            raw.Title,
		Description:      raw.Description,
		DescriptionHTML:  "<p>" + raw.Description + "</p>",
		Options:          []domain.ProductOption{},
		Variants:         []domain.Variant{variant},
		Images:           images,
		Tags:             tags,
		Brand:            raw.Brand,
		Category:         raw.Category,
		CreatedAt:        parseTime(raw.Meta.CreatedAt),
		UpdatedAt:        parseTime(raw.Meta.UpdatedAt),
	}
	if raw.Thumbnail != "" {
		p.FeaturedImage = &domain.Image{URL: raw.Thumbnail, AltText: raw.Title, Width: 300, Height: 300}
	}
	p.PriceRange = domain.PriceRangeOf(p.Variants, Currency)
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// ToArticle maps a post onto an article. Posts carry no timestamps, so both are set to now.
func ToArticle(raw RawPost, now time.Time) domain.Article {
	summary := raw.Body
	if r := []rune(summary); len(r) > 150 {
		summary = string(r[:150])
	}
	tags := raw.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Article{
		ID:        "gid://dummyjson/Post/" + strconv.Itoa(raw.ID),
		Handle:    domain.Slugify(raw.Title),
		Title:     raw.Title,
		Body:      raw.Body,
		Summary:   summary,
		Tags:      tags,
		Author:    "User " + strconv.Itoa(raw.UserID),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func ToCustomer(raw RawUser) domain.Customer {
	c := domain.Customer{
		ID:         raw.ID,
		Username:   raw.Username,
		Email:      raw.Email,
		FirstName:  raw.FirstName,
		LastName:   raw.LastName,
		Image:      raw.Image,
		Age:        raw.Age,
		Gender:     raw.Gender,
		Phone:      raw.Phone,
		BirthDate:  raw.BirthDate,
		University: raw.University,
	}
	if raw.Address != nil {
		c.Address = &domain.Address{
			Address:    raw.Address.Address,
			City:       raw.Address.City,
			State:      raw.Address.State,
			PostalCode: raw.Address.PostalCode,
			Country:    raw.Address.Country,
		}
	}
	return c
}

func ToOrder(raw RawCart) (domain.Order, error) {
	total, err := amount(raw.Total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d total: %w", raw.ID, err)
	}
	discounted, err := amount(raw.DiscountedTotal)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d discounted total: %w", raw.ID, err)
	}
	o := domain.Order{
		ID:              raw.ID,
		UserID:          raw.UserID,
		Products:        make([]domain.OrderProduct, 0, len(raw.Products)),
		Total:           domain.Money{Amount: total, CurrencyCode: Currency},
		DiscountedTotal: domain.Money{Amount: discounted, CurrencyCode: Currency},
		TotalProducts:   raw.TotalProducts,
		TotalQuantity:   raw.TotalQuantity,
	}
	for _, p := range raw.Products {
		price, err := amount(p.Price)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %d product %d price: %w", raw.ID, p.ID, err)
		}
		lineTotal, err := amount(p.Total)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %d product %d total: %w", raw.ID, p.ID, err)
		}
		lineDiscounted, err := amount(p.DiscountedTotal)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %d product %d discounted total: %w", raw.ID, p.ID, err)
		}
		o.Products = append(o.Products, domain.OrderProduct{
			ID:                 p.ID,
			Title:              p.Title,
			Price:              domain.Money{Amount: price, CurrencyCode: Currency},
			Quantity:           p.Quantity,
			Total:              domain.Money{Amount: lineTotal, CurrencyCode: Currency},
			DiscountPercentage: p.DiscountPercentage.String(),
			DiscountedTotal:    domain.Money{Amount: lineDiscounted, CurrencyCode: Currency},
			Thumbnail:          p.Thumbnail,
		})
	}
	return o, nil
}

// amount normalizes a JSON number into a decimal string without going through float64.
func amount(n json.Number) (string, error) {
	if n == "" {
		return "0", nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrMalformedMoney, n)
	}
	return d.String(), nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
