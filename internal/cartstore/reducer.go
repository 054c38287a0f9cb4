// Package cartstore derives the cart a shopper sees from the last confirmed cart plus the
// actions that have not been confirmed yet.
package cartstore

import (
	"fmt"

	"storefront/internal/domain"
)

// UpdateOp is a single-step change to one line.
type UpdateOp string

const (
	OpIncrement UpdateOp = "increment"
	OpDecrement UpdateOp = "decrement"
	OpRemove    UpdateOp = "remove"
)

// ParseUpdateOp accepts the wire names plus the plus/minus/delete aliases used by the storefront UI.
func ParseUpdateOp(s string) (UpdateOp, error) {
	switch s {
	case "increment", "plus":
		return OpIncrement, nil
	case "decrement", "minus":
		return OpDecrement, nil
	case "remove", "delete":
		return OpRemove, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidOperation, s)
	}
}

func (op UpdateOp) valid() bool {
	return op == OpIncrement || op == OpDecrement || op == OpRemove
}

// Action is one optimistic cart mutation.
type Action interface {
	apply(cart domain.Cart, defaultCurrency string) (domain.Cart, error)
}

// AddItemAction adds one unit of Variant.
type AddItemAction struct {
	Variant domain.Variant
	Product domain.Product
}

func (a AddItemAction) apply(cart domain.Cart, defaultCurrency string) (domain.Cart, error) {
	return AddItem(cart, a.Variant, a.Product, defaultCurrency)
}

// UpdateItemAction applies Op to the line holding MerchandiseID.
type UpdateItemAction struct {
	MerchandiseID string
	Op            UpdateOp
}

func (a UpdateItemAction) apply(cart domain.Cart, defaultCurrency string) (domain.Cart, error) {
	return UpdateItem(cart, a.MerchandiseID, a.Op, defaultCurrency)
}

// Apply runs action against cart.
func Apply(cart domain.Cart, action Action, defaultCurrency string) (domain.Cart, error) {
	if action == nil {
		return domain.Cart{}, fmt.Errorf("%w: nil action", domain.ErrInvalidOperation)
	}
	return action.apply(cart, defaultCurrency)
}

// AddItem adds one unit of variant. An existing line keeps its unit price; a new line is
// appended without an id and priced at variant.Price. The input cart is not modified.
func AddItem(cart domain.Cart, variant domain.Variant, product domain.Product, defaultCurrency string) (domain.Cart, error) {
	if variant.ID == "" {
		return domain.Cart{}, fmt.Errorf("%w: variant id required", domain.ErrInvalidOperation)
	}
	lines := make([]domain.LineItem, 0, len(cart.Lines)+1)
	found := false
	for _, line := range cart.Lines {
		if line.Merchandise.ID != variant.ID {
			lines = append(lines, line.Clone())
			continue
		}
		next, err := line.WithQuantity(line.Quantity + 1)
		if err != nil {
			return domain.Cart{}, err
		}
		lines = append(lines, next)
		found = true
	}
	if !found {
		if err := variant.Price.Validate(); err != nil {
			return domain.Cart{}, err
		}
		lines = append(lines, newLine(variant, product))
	}
	return withLines(cart, lines, defaultCurrency)
}

func newLine(variant domain.Variant, product domain.Product) domain.LineItem {
	line := domain.LineItem{
		Quantity:    1,
		TotalAmount: variant.Price,
		Merchandise: domain.Merchandise{
			ID:      variant.ID,
			Title:   variant.Title,
			Product: product.Ref(),
		},
	}
	if variant.SelectedOptions != nil {
		line.Merchandise.SelectedOptions = append([]domain.SelectedOption(nil), variant.SelectedOptions...)
	}
	return line
}

// UpdateItem applies op to the line for merchandiseID. A line reaching quantity 0 is removed.
// An unknown merchandiseID returns the cart unchanged.
func UpdateItem(cart domain.Cart, merchandiseID string, op UpdateOp, defaultCurrency string) (domain.Cart, error) {
	if !op.valid() {
		return domain.Cart{}, fmt.Errorf("%w: %q", domain.ErrInvalidOperation, string(op))
	}
	if _, ok := cart.Line(merchandiseID); !ok {
		return cart.Clone(), nil
	}

	lines := make([]domain.LineItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		if line.Merchandise.ID != merchandiseID {
			lines = append(lines, line.Clone())
			continue
		}
		quantity := line.Quantity
		switch op {
		case OpRemove:
			quantity = 0
		case OpIncrement:
			quantity++
		case OpDecrement:
			quantity--
		}
		if quantity <= 0 {
			continue
		}
		next, err := line.WithQuantity(quantity)
		if err != nil {
			return domain.Cart{}, err
		}
		lines = append(lines, next)
	}
	return withLines(cart, lines, defaultCurrency)
}

// RecomputeTotals derives the cart aggregates from lines. Tax is always zero and the subtotal
// equals the total. An empty line set totals "0" in defaultCurrency.
func RecomputeTotals(lines []domain.LineItem, defaultCurrency string) (int, domain.CartCost, error) {
	currency := defaultCurrency
	if len(lines) > 0 {
		currency = lines[0].TotalAmount.CurrencyCode
	}
	quantity := 0
	amounts := make([]domain.Money, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return 0, domain.CartCost{}, fmt.Errorf("%w: line %s has quantity %d", domain.ErrInvalidQuantity, l.Merchandise.ID, l.Quantity)
		}
		quantity += l.Quantity
		amounts = append(amounts, l.TotalAmount)
	}
	total, err := domain.Sum(amounts, currency)
	if err != nil {
		return 0, domain.CartCost{}, err
	}
	return quantity, domain.CartCost{
		SubtotalAmount: total,
		TotalAmount:    total,
		TotalTaxAmount: domain.ZeroMoney(currency),
	}, nil
}

// Normalize recomputes the aggregates of a cart received from elsewhere. An empty cart keeps
// the currency of its own cost when it carries one.
func Normalize(cart domain.Cart, defaultCurrency string) (domain.Cart, error) {
	if c := cart.Cost.TotalAmount.CurrencyCode; c != "" {
		defaultCurrency = c
	}
	lines := make([]domain.LineItem, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, l.Clone())
	}
	return withLines(cart, lines, defaultCurrency)
}

func withLines(cart domain.Cart, lines []domain.LineItem, defaultCurrency string) (domain.Cart, error) {
	quantity, cost, err := RecomputeTotals(lines, defaultCurrency)
	if err != nil {
		return domain.Cart{}, err
	}
	out := cart
	out.Lines = lines
	out.TotalQuantity = quantity
	out.Cost = cost
	return out, nil
}
