// Package cart coordinates the optimistic cart store with the authoritative cart backend.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/cartstore"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/logging"
)

type Options struct {
	Policy          Policy
	DefaultCurrency string
	Workers         int
	CallTimeout     time.Duration
	Publisher       events.Publisher
	Logger          *zap.Logger
}

type Service struct {
	backend    Backend
	catalog    Catalog
	policy     Policy
	currency   string
	dispatcher *Dispatcher
	publisher  events.Publisher
	logger     *zap.Logger

	mu    sync.Mutex
	carts map[string]*entry
}

type entry struct {
	store *cartstore.Store

	// queue is held from the optimistic apply until its backend call is submitted.
	queue sync.Mutex

	mu      sync.Mutex
	lastErr error
}

func New(backend Backend, catalog Catalog, opts Options) *Service {
	logger := logging.OrNop(opts.Logger)
	if opts.Policy == "" {
		opts.Policy = PolicyReconcile
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	if opts.CallTimeout == 0 {
		opts.CallTimeout = 30 * time.Second
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &Service{
		backend:    backend,
		catalog:    catalog,
		policy:     opts.Policy,
		currency:   opts.DefaultCurrency,
		dispatcher: NewDispatcher(opts.Workers, opts.CallTimeout, logger),
		publisher:  publisher,
		logger:     logger,
		carts:      make(map[string]*entry),
	}
}

// Close waits for queued backend calls and stops the workers.
func (s *Service) Close() {
	s.dispatcher.Shutdown()
}

// CreateCart creates a backend cart and starts tracking it.
func (s *Service) CreateCart(ctx context.Context) (domain.Cart, error) {
	created, err := s.backend.CreateCart(ctx)
	if err != nil {
		return domain.Cart{}, newBackendError("create", "", err)
	}
	e := &entry{store: cartstore.New(created, s.currency)}
	s.mu.Lock()
	s.carts[created.ID] = e
	s.mu.Unlock()
	return e.store.Cart(), nil
}

// Cart returns the displayed cart. An empty cartID yields the empty cart; an id the backend
// does not know yields domain.ErrNotFound.
func (s *Service) Cart(ctx context.Context, cartID string) (domain.Cart, error) {
	if strings.TrimSpace(cartID) == "" {
		return domain.EmptyCart(s.currency), nil
	}
	e, err := s.entry(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	return e.store.Cart(), nil
}

// State reports whether cartID has backend calls awaiting confirmation.
func (s *Service) State(cartID string) cartstore.State {
	s.mu.Lock()
	e, ok := s.carts[cartID]
	s.mu.Unlock()
	if !ok {
		return cartstore.Settled
	}
	return e.store.State()
}

// LastError returns the most recent backend failure for cartID. A later success clears it.
func (s *Service) LastError(cartID string) error {
	s.mu.Lock()
	e, ok := s.carts[cartID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// AddItem shows one more unit of variantID at once and queues the backend call.
func (s *Service) AddItem(ctx context.Context, cartID, variantID string) (domain.Cart, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return domain.Cart{}, fmt.Errorf("%w: variant id required", domain.ErrInvalidOperation)
	}
	e, err := s.entry(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	variant, product, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("resolve variant %s: %w", variantID, err)
	}
	e.queue.Lock()
	defer e.queue.Unlock()
	id, shown, err := e.store.AddItem(variant, product)
	if err != nil {
		return domain.Cart{}, err
	}
	err = s.dispatcher.Submit(cartID, func(ctx context.Context) {
		confirmed, err := s.backend.AddLines(ctx, cartID, []domain.LineInput{{MerchandiseID: variantID, Quantity: 1}})
		s.settle(ctx, cartID, e, id, "add", variantID, confirmed, err)
	})
	if err != nil {
		return s.abandon(e, id, err)
	}
	return shown, nil
}

// UpdateItem applies op to the line for merchandiseID at once and queues a backend call that
// sets the resulting quantity. An unknown merchandiseID changes nothing.
func (s *Service) UpdateItem(ctx context.Context, cartID, merchandiseID string, op cartstore.UpdateOp) (domain.Cart, error) {
	e, err := s.entry(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	e.queue.Lock()
	defer e.queue.Unlock()
	id, shown, err := e.store.UpdateItem(merchandiseID, op)
	if err != nil {
		return domain.Cart{}, err
	}
	if id == 0 {
		return shown, nil
	}
	target := 0
	if line, ok := shown.Line(merchandiseID); ok {
		target = line.Quantity
	}
	err = s.dispatcher.Submit(cartID, func(ctx context.Context) {
		confirmed, err := s.setQuantity(ctx, cartID, merchandiseID, target)
		s.settle(ctx, cartID, e, id, string(op), merchandiseID, confirmed, err)
	})
	if err != nil {
		return s.abandon(e, id, err)
	}
	return shown, nil
}

// RemoveItem drops the line for merchandiseID.
func (s *Service) RemoveItem(ctx context.Context, cartID, merchandiseID string) (domain.Cart, error) {
	return s.UpdateItem(ctx, cartID, merchandiseID, cartstore.OpRemove)
}

// Settle waits until every backend call queued for cartID has completed.
func (s *Service) Settle(ctx context.Context, cartID string) error {
	return s.dispatcher.Barrier(ctx, cartID)
}

// Refresh refetches cartID and replaces the displayed cart wholesale.
func (s *Service) Refresh(ctx context.Context, cartID string) (domain.Cart, error) {
	e, err := s.entry(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	fresh, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		return domain.Cart{}, newBackendError("get", cartID, err)
	}
	e.setErr(nil)
	return e.store.ReplaceBaseline(*fresh), nil
}

// CheckoutURL waits for queued calls and returns the checkout address of the confirmed cart.
func (s *Service) CheckoutURL(ctx context.Context, cartID string) (string, error) {
	if strings.TrimSpace(cartID) == "" {
		return "", domain.ErrNotFound
	}
	if err := s.Settle(ctx, cartID); err != nil {
		return "", err
	}
	confirmed, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		return "", newBackendError("get", cartID, err)
	}
	if confirmed.CheckoutURL == "" {
		return "", fmt.Errorf("%w: cart %s has no checkout url", domain.ErrNotFound, cartID)
	}
	return confirmed.CheckoutURL, nil
}

func (s *Service) entry(ctx context.Context, cartID string) (*entry, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, fmt.Errorf("%w: cart id required", domain.ErrNotFound)
	}
	s.mu.Lock()
	e, ok := s.carts[cartID]
	s.mu.Unlock()
	if ok {
		return e, nil
	}

	baseline, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, newBackendError("get", cartID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.carts[cartID]; ok {
		return e, nil
	}
	e = &entry{store: cartstore.New(baseline, s.currency)}
	s.carts[cartID] = e
	return e, nil
}

// setQuantity moves the backend line for merchandiseID to target units.
func (s *Service) setQuantity(ctx context.Context, cartID, merchandiseID string, target int) (*domain.Cart, error) {
	current, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	line, found := current.Line(merchandiseID)
	switch {
	case target <= 0 && !found:
		return current, nil
	case target <= 0:
		return s.backend.RemoveLines(ctx, cartID, []string{line.ID})
	case found:
		return s.backend.UpdateLines(ctx, cartID, []domain.LineUpdate{{ID: line.ID, MerchandiseID: merchandiseID, Quantity: target}})
	default:
		return s.backend.AddLines(ctx, cartID, []domain.LineInput{{MerchandiseID: merchandiseID, Quantity: target}})
	}
}

func (s *Service) settle(ctx context.Context, cartID string, e *entry, id cartstore.ActionID, action, merchandiseID string, confirmed *domain.Cart, err error) {
	if err == nil && confirmed == nil {
		err = errors.New("backend returned no cart")
	}
	if err != nil {
		berr := newBackendError(action, cartID, err)
		e.setErr(berr)
		if s.policy == PolicyRollback {
			e.store.Discard(id)
		}
		s.logger.Warn("cart backend call failed",
			zap.String("cart_id", cartID),
			zap.String("action", action),
			zap.String("merchandise_id", merchandiseID),
			zap.String("policy", string(s.policy)),
			zap.Error(err))
		s.publish(ctx, events.SubjectCartRejected, events.CartEvent{
			CartID: cartID, Action: action, MerchandiseID: merchandiseID,
			TotalQuantity: e.store.Cart().TotalQuantity, Error: err.Error(),
		})
		return
	}
	e.setErr(nil)
	shown := e.store.Confirm(id, *confirmed)
	s.logger.Debug("cart action confirmed",
		zap.String("cart_id", cartID),
		zap.String("action", action),
		zap.String("merchandise_id", merchandiseID),
		zap.Int("total_quantity", confirmed.TotalQuantity))
	s.publish(ctx, events.SubjectCartConfirmed, events.CartEvent{
		CartID: cartID, Action: action, MerchandiseID: merchandiseID, TotalQuantity: shown.TotalQuantity,
	})
}

// abandon undoes an optimistic action whose backend call could not be queued.
func (s *Service) abandon(e *entry, id cartstore.ActionID, err error) (domain.Cart, error) {
	e.store.Discard(id)
	return domain.Cart{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func (s *Service) publish(ctx context.Context, subject string, payload events.CartEvent) {
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		s.logger.Warn("publish cart event", zap.String("subject", subject), zap.Error(err))
	}
}

func (e *entry) setErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}
