package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/autoparts-storefront/internal/infrastructure/localstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockOracle answers how many units of a product are currently
// purchasable (on hand minus reserved). Implemented by the remote backend.
type StockOracle interface {
	AvailableStock(ctx context.Context, productID string) (int, error)
}

// ChangedEvent is emitted to subscribers after every successful cart
// mutation. It carries enough for an observer (header badge, event stream)
// to re-render without reading the store back.
type ChangedEvent struct {
	VisitorID string    `json:"visitor_id"`
	Lines     []Line    `json:"lines"`
	ItemCount int       `json:"item_count"`
	ChangedAt time.Time `json:"changed_at"`
}

// Store owns one visitor's cart. Mutations are stock-gated, persisted
// synchronously to durable storage, and announced to subscribers. All
// methods are safe for concurrent use within one process; carts open in two
// processes race exactly like two browser tabs would, mitigated only by the
// pre-checkout stock gate.
type Store struct {
	visitorID string
	key       string
	storage   localstore.Store
	stock     StockOracle

	mu    sync.Mutex
	lines []Line
	subs  []func(ChangedEvent)
}

// NewStore builds the store for a visitor and loads any persisted cart. A
// corrupt or unreadable document starts the visitor with an empty cart
// rather than failing construction.
func NewStore(visitorID string, storage localstore.Store, stock StockOracle) *Store {
	s := &Store{
		visitorID: visitorID,
		key:       StorageKeyPrefix + visitorID,
		storage:   storage,
		stock:     stock,
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, ok, err := s.storage.Get(s.key)
	if err != nil {
		log.Printf("[Cart] Failed to load cart %s: %v", s.key, err)
		return
	}
	if !ok {
		return
	}
	var doc struct {
		Lines []Line `json:"lines"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("[Cart] Discarding corrupt cart %s: %v", s.key, err)
		return
	}
	s.lines = doc.Lines
}

// Subscribe registers an observer for cart changes. Subscribers run
// synchronously while the store's lock is held, so they must not call back
// into the Store.
func (s *Store) Subscribe(fn func(ChangedEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// AddItem puts a product in the cart. If a line for the product exists its
// quantity grows; otherwise a new line is appended. The combined quantity
// is checked against purchasable stock first, and a shortage leaves the
// cart untouched.
func (s *Store) AddItem(ctx context.Context, p Product, quantity int) error {
	if p.ID == "" {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := 0
	idx := -1
	for i, l := range s.lines {
		if l.ProductID == p.ID {
			existing = l.Quantity
			idx = i
			break
		}
	}

	available, err := s.stock.AvailableStock(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("stock check failed: %w", err)
	}
	if existing+quantity > available {
		return &InsufficientStockError{ProductID: p.ID, Requested: existing + quantity, Available: available}
	}

	if idx >= 0 {
		s.lines[idx].Quantity += quantity
	} else {
		s.lines = append(s.lines, Line{
			ID:        uuid.New().String(),
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Brand:     p.Brand,
			Image:     p.Image,
			Quantity:  quantity,
			AddedAt:   time.Now(),
		})
	}

	return s.afterMutation()
}

// SetQuantity changes a line's quantity. Zero or negative removes the line;
// removing an absent line succeeds as a no-op. A positive quantity is
// re-validated against stock and a shortage leaves the line unchanged.
func (s *Store) SetQuantity(ctx context.Context, lineID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, l := range s.lines {
		if l.ID == lineID {
			idx = i
			break
		}
	}

	if quantity <= 0 {
		if idx < 0 {
			return nil
		}
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
		return s.afterMutation()
	}

	if idx < 0 {
		return nil
	}

	line := s.lines[idx]
	available, err := s.stock.AvailableStock(ctx, line.ProductID)
	if err != nil {
		return fmt.Errorf("stock check failed: %w", err)
	}
	if quantity > available {
		return &InsufficientStockError{ProductID: line.ProductID, Requested: quantity, Available: available}
	}
	if s.lines[idx].Quantity == quantity {
		return nil
	}
	s.lines[idx].Quantity = quantity
	return s.afterMutation()
}

// RemoveItem drops a line unconditionally. Absent lines are a no-op.
func (s *Store) RemoveItem(ctx context.Context, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range s.lines {
		if l.ID == lineID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return s.afterMutation()
		}
	}
	return nil
}

// Clear empties the cart and persists the empty state.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lines) == 0 {
		return nil
	}
	s.lines = nil
	return s.afterMutation()
}

// Lines returns a copy of the cart's lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// ItemCount is the total unit count across all lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return itemCount(s.lines)
}

// Totals prices the cart for a shipping type. Pure over current state, no
// network calls, no coupon awareness (that composes in the pricing engine).
func (s *Store) Totals(shipping ShippingType) Totals {
	s.mu.Lock()
	defer s.mu.Unlock()

	subtotal := decimal.Zero
	for _, l := range s.lines {
		subtotal = subtotal.Add(l.Subtotal())
	}
	tax := subtotal.Mul(TaxRate).Round(2)
	fee := ShippingFee(shipping)
	return Totals{
		Subtotal:  subtotal,
		Tax:       tax,
		Shipping:  fee,
		Total:     subtotal.Add(tax).Add(fee),
		ItemCount: itemCount(s.lines),
	}
}

// ValidateAgainstStock re-checks every line against the oracle. Stock has
// no reservation or locking, so this is the pre-checkout gate: it must run
// immediately before order submission.
func (s *Store) ValidateAgainstStock(ctx context.Context) ([]Shortage, error) {
	s.mu.Lock()
	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)
	s.mu.Unlock()

	var shortages []Shortage
	for _, l := range lines {
		available, err := s.stock.AvailableStock(ctx, l.ProductID)
		if err != nil {
			return nil, fmt.Errorf("stock check failed for %s: %w", l.ProductID, err)
		}
		if l.Quantity > available {
			shortages = append(shortages, Shortage{
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Available: available,
			})
		}
	}
	return shortages, nil
}

// afterMutation persists the cart and notifies subscribers. A persistence
// failure keeps the in-memory mutation and is reported so the caller can
// warn or retry; divergence is limited to this one mutation.
func (s *Store) afterMutation() error {
	event := ChangedEvent{
		VisitorID: s.visitorID,
		Lines:     append([]Line(nil), s.lines...),
		ItemCount: itemCount(s.lines),
		ChangedAt: time.Now(),
	}
	for _, fn := range s.subs {
		fn(event)
	}

	doc := struct {
		Lines []Line `json:"lines"`
	}{Lines: s.lines}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := s.storage.Set(s.key, data); err != nil {
		log.Printf("[Cart] Failed to persist cart %s: %v", s.key, err)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func itemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
