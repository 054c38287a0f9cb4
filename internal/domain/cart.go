package domain

import "fmt"

type Cart struct {
	ID            string     `json:"id,omitempty"`
	CheckoutURL   string     `json:"checkoutUrl"`
	Lines         []LineItem `json:"lines"`
	TotalQuantity int        `json:"totalQuantity"`
	Cost          CartCost   `json:"cost"`
}

type CartCost struct {
	SubtotalAmount Money `json:"subtotalAmount"`
	TotalAmount    Money `json:"totalAmount"`
	TotalTaxAmount Money `json:"totalTaxAmount"`
}

// LineItem is one variant's presence in a cart. ID is empty until the backend confirms it.
type LineItem struct {
	ID          string      `json:"id,omitempty"`
	Quantity    int         `json:"quantity"`
	TotalAmount Money       `json:"totalAmount"`
	Merchandise Merchandise `json:"merchandise"`
}

// Merchandise is a denormalized snapshot of the variant and its product.
type Merchandise struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	SelectedOptions []SelectedOption `json:"selectedOptions"`
	Product         ProductRef       `json:"product"`
}

type ProductRef struct {
	ID            string `json:"id"`
	Handle        string `json:"handle"`
	Title         string `json:"title"`
	FeaturedImage *Image `json:"featuredImage,omitempty"`
}

// LineInput requests quantity units of a variant.
type LineInput struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

// LineUpdate sets the absolute quantity of an existing line.
type LineUpdate struct {
	ID            string `json:"id"`
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

// UnitAmount derives the per-unit price from the line total.
func (l LineItem) UnitAmount() (Money, error) {
	if l.Quantity <= 0 {
		return Money{}, fmt.Errorf("%w: line %s has quantity %d", ErrInvalidQuantity, l.Merchandise.ID, l.Quantity)
	}
	total, err := l.TotalAmount.Decimal()
	if err != nil {
		return Money{}, err
	}
	unit := total.DivRound(decimalFromInt(l.Quantity), 16)
	return NewMoney(unit, l.TotalAmount.Scale(), l.TotalAmount.CurrencyCode), nil
}

// WithQuantity returns a copy of the line at quantity, repricing it as
// total*quantity/oldQuantity rounded half away from zero to the scale of the total. Lines whose
// total is a whole multiple of the unit price reprice exactly; otherwise each step rounds from
// the current total, so "10.00" at 3 goes to "13.33" at 4 and "16.66" at 5.
func (l LineItem) WithQuantity(quantity int) (LineItem, error) {
	if quantity <= 0 {
		return LineItem{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if l.Quantity <= 0 {
		return LineItem{}, fmt.Errorf("%w: line %s has quantity %d", ErrInvalidQuantity, l.Merchandise.ID, l.Quantity)
	}
	total, err := l.TotalAmount.Decimal()
	if err != nil {
		return LineItem{}, err
	}
	next := total.Mul(decimalFromInt(quantity)).DivRound(decimalFromInt(l.Quantity), 16)
	out := l.Clone()
	out.Quantity = quantity
	out.TotalAmount = NewMoney(next, l.TotalAmount.Scale(), l.TotalAmount.CurrencyCode)
	return out, nil
}

// Clone deep-copies the line so snapshots never share slices.
func (l LineItem) Clone() LineItem {
	out := l
	if l.Merchandise.SelectedOptions != nil {
		out.Merchandise.SelectedOptions = append([]SelectedOption(nil), l.Merchandise.SelectedOptions...)
	}
	if l.Merchandise.Product.FeaturedImage != nil {
		img := *l.Merchandise.Product.FeaturedImage
		out.Merchandise.Product.FeaturedImage = &img
	}
	return out
}

// Clone deep-copies the cart.
func (c Cart) Clone() Cart {
	out := c
	out.Lines = make([]LineItem, len(c.Lines))
	for i, l := range c.Lines {
		out.Lines[i] = l.Clone()
	}
	return out
}

// Line finds the line holding merchandiseID.
func (c Cart) Line(merchandiseID string) (LineItem, bool) {
	for _, l := range c.Lines {
		if l.Merchandise.ID == merchandiseID {
			return l, true
		}
	}
	return LineItem{}, false
}

// EmptyCart is the unconfirmed cart shown before the backend has supplied one.
func EmptyCart(currency string) Cart {
	return Cart{
		Lines: []LineItem{},
		Cost: CartCost{
			SubtotalAmount: ZeroMoney(currency),
			TotalAmount:    ZeroMoney(currency),
			TotalTaxAmount: ZeroMoney(currency),
		},
	}
}
