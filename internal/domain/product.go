package domain

import (
	"fmt"
	"strings"
	"time"
)

type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ProductOption struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type PriceRange struct {
	MinVariantPrice Money `json:"minVariantPrice"`
	MaxVariantPrice Money `json:"maxVariantPrice"`
}

// Variant is one purchasable configuration of a product.
type Variant struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	AvailableForSale bool             `json:"availableForSale"`
	SelectedOptions  []SelectedOption `json:"selectedOptions"`
	Price            Money            `json:"price"`
}

// Product is the typed catalog record shared by every catalog source.
type Product struct {
	ID               string          `json:"id"`
	Handle           string          `json:"handle"`
	AvailableForSale bool            `json:"availableForSale"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	DescriptionHTML  string          `json:"descriptionHtml,omitempty"`
	Options          []ProductOption `json:"options"`
	PriceRange       PriceRange      `json:"priceRange"`
	Variants         []Variant       `json:"variants"`
	FeaturedImage    *Image          `json:"featuredImage,omitempty"`
	Images           []Image         `json:"images"`
	Tags             []string        `json:"tags"`
	Brand            string          `json:"brand,omitempty"`
	Category         string          `json:"category,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Variant looks up a variant by id.
func (p Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// HasTag reports whether the product carries tag (case-insensitive).
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Ref returns the read-only snapshot stored on cart lines.
func (p Product) Ref() ProductRef {
	ref := ProductRef{ID: p.ID, Handle: p.Handle, Title: p.Title}
	if p.FeaturedImage != nil {
		img := *p.FeaturedImage
		ref.FeaturedImage = &img
	}
	return ref
}

// Validate rejects records the cart could not price or identify.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.Handle) == "" {
		return fmt.Errorf("%w: product %s missing handle", ErrInvalidProduct, p.ID)
	}
	for _, v := range p.Variants {
		if strings.TrimSpace(v.ID) == "" {
			return fmt.Errorf("%w: product %s has variant without id", ErrInvalidProduct, p.ID)
		}
		if err := v.Price.Validate(); err != nil {
			return fmt.Errorf("%w: variant %s: %v", ErrInvalidProduct, v.ID, err)
		}
	}
	return nil
}

// MinPrice is the lowest variant price, used for price sorting.
func (p Product) MinPrice() Money {
	return p.PriceRange.MinVariantPrice
}

// PriceRangeOf spans the variant prices. Variants with unparsable prices are skipped; an empty
// set yields "0" in currency for both ends.
func PriceRangeOf(variants []Variant, currency string) PriceRange {
	out := PriceRange{MinVariantPrice: ZeroMoney(currency), MaxVariantPrice: ZeroMoney(currency)}
	first := true
	for _, v := range variants {
		d, err := v.Price.Decimal()
		if err != nil {
			continue
		}
		if first {
			out.MinVariantPrice, out.MaxVariantPrice = v.Price, v.Price
			first = false
			continue
		}
		if lo, _ := out.MinVariantPrice.Decimal(); d.LessThan(lo) {
			out.MinVariantPrice = v.Price
		}
		if hi, _ := out.MaxVariantPrice.Decimal(); d.GreaterThan(hi) {
			out.MaxVariantPrice = v.Price
		}
	}
	return out
}
