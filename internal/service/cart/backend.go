package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
)

var (
	// ErrBackendUnavailable marks a cart backend call that could not complete.
	ErrBackendUnavailable = errors.New("cart backend unavailable")
	// ErrBackendRejected marks a cart backend call refused for the given input.
	ErrBackendRejected = errors.New("cart backend rejected request")
)

// Backend is the authoritative cart store. Every call returns the cart as the backend sees it
// after the call.
type Backend interface {
	CreateCart(ctx context.Context) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	AddLines(ctx context.Context, cartID string, lines []domain.LineInput) (*domain.Cart, error)
	UpdateLines(ctx context.Context, cartID string, lines []domain.LineUpdate) (*domain.Cart, error)
	RemoveLines(ctx context.Context, cartID string, lineIDs []string) (*domain.Cart, error)
}

// Catalog resolves a variant id to the variant and its parent product.
type Catalog interface {
	GetVariant(ctx context.Context, variantID string) (domain.Variant, domain.Product, error)
}

// Policy decides what the displayed cart does when a backend call fails.
type Policy string

const (
	// PolicyReconcile keeps the optimistic view until the next confirmed cart or refresh.
	PolicyReconcile Policy = "reconcile"
	// PolicyRollback discards the failed action at once.
	PolicyRollback Policy = "rollback"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyReconcile, "":
		return PolicyReconcile, nil
	case PolicyRollback:
		return PolicyRollback, nil
	default:
		return "", fmt.Errorf("unknown rollback policy %q", s)
	}
}

// BackendError wraps a failed backend call. It matches ErrBackendUnavailable or
// ErrBackendRejected with errors.Is, as well as the underlying error.
type BackendError struct {
	Op     string
	CartID string
	Kind   error
	Err    error
}

func newBackendError(op, cartID string, err error) *BackendError {
	return &BackendError{Op: op, CartID: cartID, Kind: classify(err), Err: err}
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s cart %s: %v", e.Op, e.CartID, e.Err)
}

func (e *BackendError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, domain.ErrMalformedMoney):
		return ErrBackendRejected
	default:
		return ErrBackendUnavailable
	}
}
