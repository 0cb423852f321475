// Package cart implements the client cart: line items, the mandatory
// basic-kit line, and persistence of the whole cart to durable storage.
//
// Every mutation is a pure transform from one immutable *Snapshot to the
// next, applied through a single mutex-guarded update function. A transform
// that changes nothing returns the same pointer, and the store then neither
// replaces its state nor writes to storage.
package cart

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/storage"
)

// StorageKey is the durable storage key holding the cart array.
const StorageKey = "cricket-cart"

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is an immutable view of the cart. Never modify its items.
type Snapshot struct {
	items []domain.CartItem
	open  bool
}

// Items returns a copy of the line items.
func (s *Snapshot) Items() []domain.CartItem {
	return slices.Clone(s.items)
}

// Len returns the number of lines.
func (s *Snapshot) Len() int {
	return len(s.items)
}

// IsOpen reports whether the cart view is open.
func (s *Snapshot) IsOpen() bool {
	return s.open
}

// Total returns the sum of price times quantity over all lines.
func (s *Snapshot) Total() float64 {
	var total float64
	for _, it := range s.items {
		total += it.LineTotal()
	}
	return total
}

// Count returns the sum of quantities over all lines.
func (s *Snapshot) Count() int {
	var n int
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// KitLines returns the basic-kit lines.
func (s *Snapshot) KitLines() []domain.CartItem {
	var out []domain.CartItem
	for _, it := range s.items {
		if it.IsBasicKit() {
			out = append(out, it)
		}
	}
	return out
}

func (s *Snapshot) find(id, size string) int {
	return slices.IndexFunc(s.items, func(it domain.CartItem) bool { return it.Matches(id, size) })
}

func (s *Snapshot) withItems(items []domain.CartItem) *Snapshot {
	return &Snapshot{items: items, open: s.open}
}

// =============================================================================
// Store
// =============================================================================

// Store serializes cart mutations and persists each new snapshot.
type Store struct {
	mu       sync.Mutex
	state    *Snapshot
	hydrated bool

	storage  storage.Storage
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates an empty, unhydrated store.
func New(st storage.Storage, logger *slog.Logger) *Store {
	return &Store{
		state:    &Snapshot{},
		storage:  st,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Hydrate loads the stored cart once. Until it has run, mutations are kept
// in memory only so the empty initial state never overwrites a stored cart.
// Malformed stored data is logged and treated as an empty cart.
func (s *Store) Hydrate(ctx context.Context) *Snapshot {
	const op = "Cart.Hydrate"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hydrated {
		return s.state
	}
	s.hydrated = true

	raw, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		if !storage.IsNotFound(err) {
			s.logger.Warn("failed to load cart", "op", op, "error", err)
		}
		return s.state
	}

	var items []domain.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn("ignoring malformed stored cart", "op", op, "error", err)
		return s.state
	}

	valid := items[:0]
	for _, it := range items {
		if err := s.validate.Struct(it); err != nil {
			s.logger.Warn("dropping invalid stored cart line", "op", op, "item_id", it.ID, "error", err)
			continue
		}
		valid = append(valid, it)
	}
	s.state = s.state.withItems(valid)
	return s.state
}

// IsHydrated reports whether Hydrate has run.
func (s *Store) IsHydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// update applies fn to the current snapshot. When fn returns the same
// pointer nothing is stored or persisted.
func (s *Store) update(ctx context.Context, fn func(*Snapshot) *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.state)
	if next == s.state {
		return s.state
	}
	itemsChanged := !slices.Equal(next.items, s.state.items)
	s.state = next
	if s.hydrated && itemsChanged {
		s.persist(ctx, next)
	}
	return next
}

func (s *Store) persist(ctx context.Context, snap *Snapshot) {
	items := snap.items
	if items == nil {
		items = []domain.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		s.logger.Error("failed to encode cart", "op", "Cart.persist", "error", err)
		return
	}
	if err := s.storage.Set(ctx, StorageKey, raw); err != nil {
		s.logger.Warn("failed to persist cart", "op", "Cart.persist", "error", err)
	}
}

// =============================================================================
// Mutations
// =============================================================================

// AddOptions controls side effects of AddToCart.
type AddOptions struct {
	// Open opens the cart view after adding.
	Open bool
}

// AddToCart increments the (id, selectedSize) line or appends it with
// quantity 1. The cart view is left as is unless opts.Open is set.
func (s *Store) AddToCart(ctx context.Context, item domain.CartItem, selectedSize string, opts AddOptions) (*Snapshot, error) {
	const op = "Cart.AddToCart"

	item.SelectedSize = selectedSize
	item.Quantity = 1
	if err := s.validate.Struct(item); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Cart item is incomplete. Please choose a valid product.")
	}

	return s.update(ctx, func(cur *Snapshot) *Snapshot {
		items := slices.Clone(cur.items)
		if idx := cur.find(item.ID, selectedSize); idx >= 0 {
			items[idx].Quantity++
		} else {
			items = append(items, item)
		}
		next := cur.withItems(items)
		if opts.Open {
			next.open = true
		}
		return next
	}), nil
}

// RemoveFromCart removes the matching line. The basic-kit line is refused.
func (s *Store) RemoveFromCart(ctx context.Context, id, selectedSize string) *Snapshot {
	return s.update(ctx, func(cur *Snapshot) *Snapshot {
		return removeLine(cur, id, selectedSize)
	})
}

func removeLine(cur *Snapshot, id, selectedSize string) *Snapshot {
	if id == domain.BasicKitID {
		return cur
	}
	idx := cur.find(id, selectedSize)
	if idx < 0 {
		return cur
	}
	return cur.withItems(slices.Delete(slices.Clone(cur.items), idx, idx+1))
}

// UpdateQuantity sets a line's quantity. Quantities <= 0 remove the line,
// except for basic-kit whose requests below 1 are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, id, selectedSize string, quantity int) *Snapshot {
	return s.update(ctx, func(cur *Snapshot) *Snapshot {
		if quantity <= 0 {
			return removeLine(cur, id, selectedSize)
		}
		idx := cur.find(id, selectedSize)
		if idx < 0 || cur.items[idx].Quantity == quantity {
			return cur
		}
		items := slices.Clone(cur.items)
		items[idx].Quantity = quantity
		return cur.withItems(items)
	})
}

// ClearCart removes every optional line. Basic-kit lines survive.
func (s *Store) ClearCart(ctx context.Context) *Snapshot {
	return s.update(ctx, func(cur *Snapshot) *Snapshot {
		kits := cur.KitLines()
		if len(kits) == len(cur.items) {
			return cur
		}
		return cur.withItems(kits)
	})
}

// SyncKitItems replaces all basic-kit lines with desired, keeping every
// other line untouched. When desired already matches the existing kit lines
// by (selectedSize, price) the current snapshot is returned unchanged.
func (s *Store) SyncKitItems(ctx context.Context, desired []domain.CartItem) *Snapshot {
	return s.update(ctx, func(cur *Snapshot) *Snapshot {
		if kitsMatch(cur.KitLines(), desired) {
			return cur
		}
		items := make([]domain.CartItem, 0, len(cur.items)+len(desired))
		for _, it := range cur.items {
			if !it.IsBasicKit() {
				items = append(items, it)
			}
		}
		for _, it := range desired {
			it.ID = domain.BasicKitID
			if it.Quantity < 1 {
				it.Quantity = 1
			}
			items = append(items, it)
		}
		return cur.withItems(items)
	})
}

type kitKey struct {
	size  string
	price float64
}

func kitsMatch(existing, desired []domain.CartItem) bool {
	if len(existing) != len(desired) {
		return false
	}
	counts := make(map[kitKey]int, len(existing))
	for _, it := range existing {
		counts[kitKey{it.SelectedSize, it.Price}]++
	}
	for _, it := range desired {
		k := kitKey{it.SelectedSize, it.Price}
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}

// =============================================================================
// View State and Totals
// =============================================================================

// Open opens the cart view.
func (s *Store) Open(ctx context.Context) *Snapshot {
	return s.setOpen(ctx, true)
}

// Close closes the cart view.
func (s *Store) Close(ctx context.Context) *Snapshot {
	return s.setOpen(ctx, false)
}

// Toggle flips the cart view.
func (s *Store) Toggle(ctx context.Context) *Snapshot {
	return s.update(ctx, func(cur *Snapshot) *Snapshot {
		return &Snapshot{items: cur.items, open: !cur.open}
	})
}

func (s *Store) setOpen(ctx context.Context, open bool) *Snapshot {
	return s.update(ctx, func(cur *Snapshot) *Snapshot {
		if cur.open == open {
			return cur
		}
		return &Snapshot{items: cur.items, open: open}
	})
}

// IsOpen reports whether the cart view is open.
func (s *Store) IsOpen() bool {
	return s.Snapshot().IsOpen()
}

// Total returns the cart total.
func (s *Store) Total() float64 {
	return s.Snapshot().Total()
}

// Count returns the number of units in the cart.
func (s *Store) Count() int {
	return s.Snapshot().Count()
}
