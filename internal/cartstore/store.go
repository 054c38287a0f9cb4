package cartstore

import (
	"sync"

	"storefront/internal/domain"
)

// State tells whether the displayed cart matches the last confirmed cart.
type State int

const (
	Settled State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "settled"
}

// ActionID identifies an optimistic action until it is confirmed or discarded.
type ActionID uint64

type pendingAction struct {
	id     ActionID
	action Action
}

// Store holds the baseline cart and the optimistic actions applied on top of it. Every
// mutation installs a new cart value, so a cart returned by Cart is never modified later.
type Store struct {
	mu              sync.RWMutex
	defaultCurrency string
	baseline        *domain.Cart
	displayed       domain.Cart
	pending         []pendingAction
	nextID          ActionID
}

// New builds a Store. A nil baseline displays an empty cart in defaultCurrency.
func New(baseline *domain.Cart, defaultCurrency string) *Store {
	s := &Store{defaultCurrency: defaultCurrency}
	s.setBaseline(baseline)
	return s
}

// Cart returns the displayed cart.
func (s *Store) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayed.Clone()
}

// Baseline returns the last confirmed cart, if any.
func (s *Store) Baseline() (domain.Cart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.baseline == nil {
		return domain.Cart{}, false
	}
	return s.baseline.Clone(), true
}

// State reports Pending while any optimistic action awaits confirmation.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.pending) > 0 {
		return Pending
	}
	return Settled
}

// AddItem optimistically adds one unit of variant on top of the displayed cart.
func (s *Store) AddItem(variant domain.Variant, product domain.Product) (ActionID, domain.Cart, error) {
	return s.Dispatch(AddItemAction{Variant: variant, Product: product})
}

// UpdateItem optimistically applies op to the line holding merchandiseID. An unknown
// merchandiseID changes nothing and does not make the store Pending; the returned id is 0.
func (s *Store) UpdateItem(merchandiseID string, op UpdateOp) (ActionID, domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.displayed.Line(merchandiseID); !ok && op.valid() {
		return 0, s.displayed.Clone(), nil
	}
	return s.dispatch(UpdateItemAction{MerchandiseID: merchandiseID, Op: op})
}

// Dispatch applies action to the displayed cart and records it as pending.
func (s *Store) Dispatch(action Action) (ActionID, domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatch(action)
}

func (s *Store) dispatch(action Action) (ActionID, domain.Cart, error) {
	next, err := Apply(s.displayed, action, s.defaultCurrency)
	if err != nil {
		return 0, domain.Cart{}, err
	}
	s.nextID++
	id := s.nextID
	s.pending = append(s.pending, pendingAction{id: id, action: action})
	s.displayed = next
	return id, next.Clone(), nil
}

// ReplaceBaseline installs a freshly fetched cart and drops every pending action. The cart
// aggregates are recomputed from its lines; a cart with an invalid line is ignored.
func (s *Store) ReplaceBaseline(cart domain.Cart) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.setBaseline(&cart)
	return s.displayed.Clone()
}

// Confirm installs cart as the baseline produced by action id. The action and everything
// before it are treated as reflected in cart; later actions are re-applied on top of it.
func (s *Store) Confirm(id ActionID, cart domain.Cart) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := s.pending[:0:0]
	for _, p := range s.pending {
		if p.id > id {
			keep = append(keep, p)
		}
	}
	s.pending = keep
	s.setBaseline(&cart)
	s.replay()
	return s.displayed.Clone()
}

// Discard forgets action id and re-derives the displayed cart from the baseline and the
// remaining pending actions.
func (s *Store) Discard(id ActionID) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := s.pending[:0:0]
	for _, p := range s.pending {
		if p.id != id {
			keep = append(keep, p)
		}
	}
	s.pending = keep
	s.displayed = s.baselineOrEmpty()
	s.replay()
	return s.displayed.Clone()
}

func (s *Store) setBaseline(cart *domain.Cart) {
	if cart == nil {
		s.baseline = nil
		s.displayed = domain.EmptyCart(s.defaultCurrency)
		return
	}
	b, err := Normalize(cart.Clone(), s.defaultCurrency)
	if err != nil {
		// keep the previous baseline
		s.displayed = s.baselineOrEmpty()
		return
	}
	s.baseline = &b
	s.displayed = b.Clone()
}

func (s *Store) baselineOrEmpty() domain.Cart {
	if s.baseline == nil {
		return domain.EmptyCart(s.defaultCurrency)
	}
	return s.baseline.Clone()
}

// replay re-applies pending actions to the displayed cart. An action that no longer applies
// is dropped rather than leaving a corrupted cart.
func (s *Store) replay() {
	keep := s.pending[:0:0]
	for _, p := range s.pending {
		next, err := Apply(s.displayed, p.action, s.defaultCurrency)
		if err != nil {
			continue
		}
		s.displayed = next
		keep = append(keep, p)
	}
	s.pending = keep
}
