package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type memoryRepo struct {
	mu      sync.Mutex
	carts   map[string][]domain.LineItem
	catalog VariantLookup
	opts    Options
	logger  *zap.Logger
}

// NewMemory keeps carts in process memory.
func NewMemory(catalog VariantLookup, opts Options, logger *zap.Logger) Repository {
	return &memoryRepo{
		carts:   make(map[string][]domain.LineItem),
		catalog: catalog,
		opts:    opts.withDefaults(),
		logger:  logging.OrNop(logger),
	}
}

func (r *memoryRepo) CreateCart(_ context.Context) (*domain.Cart, error) {
	id := uuid.NewString()
	r.mu.Lock()
	r.carts[id] = []domain.LineItem{}
	r.mu.Unlock()
	r.logger.Debug("cart created", zap.String("cart_id", id))
	return assemble(id, nil, r.opts)
}

func (r *memoryRepo) GetCart(_ context.Context, cartID string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines, ok := r.carts[cartID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return assemble(cartID, cloneLines(lines), r.opts)
}

func (r *memoryRepo) AddLines(ctx context.Context, cartID string, inputs []domain.LineInput) (*domain.Cart, error) {
	r.mu.Lock()
	_, ok := r.carts[cartID]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	// Resolve prices before taking the lock; the catalog may call out over the network.
	fresh := make(map[string]domain.LineItem, len(inputs))
	for _, in := range inputs {
		line, err := pricedLine(ctx, r.catalog, in)
		if err != nil {
			return nil, err
		}
		fresh[in.MerchandiseID] = line
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	lines, ok := r.carts[cartID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	lines = cloneLines(lines)
	for _, in := range inputs {
		if idx := lineIndex(lines, in.MerchandiseID); idx >= 0 {
			next, err := lines[idx].WithQuantity(lines[idx].Quantity + in.Quantity)
			if err != nil {
				return nil, err
			}
			lines[idx] = next
			continue
		}
		line := fresh[in.MerchandiseID]
		line.ID = uuid.NewString()
		lines = append(lines, line)
	}
	r.carts[cartID] = lines
	return assemble(cartID, cloneLines(lines), r.opts)
}

func (r *memoryRepo) UpdateLines(_ context.Context, cartID string, updates []domain.LineUpdate) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines, ok := r.carts[cartID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	lines = cloneLines(lines)
	for _, u := range updates {
		idx := lineIDIndex(lines, u.ID)
		if idx < 0 {
			return nil, fmt.Errorf("line %s: %w", u.ID, domain.ErrNotFound)
		}
		if u.Quantity <= 0 {
			lines = append(lines[:idx], lines[idx+1:]...)
			continue
		}
		next, err := lines[idx].WithQuantity(u.Quantity)
		if err != nil {
			return nil, err
		}
		lines[idx] = next
	}
	r.carts[cartID] = lines
	return assemble(cartID, cloneLines(lines), r.opts)
}

func (r *memoryRepo) RemoveLines(_ context.Context, cartID string, lineIDs []string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines, ok := r.carts[cartID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	drop := make(map[string]bool, len(lineIDs))
	for _, id := range lineIDs {
		drop[id] = true
	}
	kept := make([]domain.LineItem, 0, len(lines))
	for _, l := range lines {
		if !drop[l.ID] {
			kept = append(kept, l.Clone())
		}
	}
	r.carts[cartID] = kept
	return assemble(cartID, cloneLines(kept), r.opts)
}

func cloneLines(lines []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(lines))
	for i, l := range lines {
		out[i] = l.Clone()
	}
	return out
}

func lineIndex(lines []domain.LineItem, merchandiseID string) int {
	for i, l := range lines {
		if l.Merchandise.ID == merchandiseID {
			return i
		}
	}
	return -1
}

func lineIDIndex(lines []domain.LineItem, lineID string) int {
	for i, l := range lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}
