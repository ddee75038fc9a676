package coupon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/autoparts-storefront/internal/infrastructure/localstore"
	"github.com/shopspring/decimal"
)

// SessionKeyPrefix namespaces applied-coupon sessions in session storage.
const SessionKeyPrefix = "coupon:"

// Lookup finds a coupon by code. Matching is case-insensitive; a code with
// no coupon behind it returns (nil, nil).
type Lookup interface {
	CouponByCode(ctx context.Context, code string) (*Coupon, error)
}

// AppliedSession is the one coupon currently applied to a visitor's cart.
// Discount here is the amount at apply time; readers get it recomputed
// against the live subtotal via Applied.
type AppliedSession struct {
	Coupon    Coupon          `json:"coupon"`
	Discount  decimal.Decimal `json:"discount"`
	AppliedAt time.Time       `json:"applied_at"`
}

// Resolver validates coupon codes and tracks the applied session for one
// visitor. One coupon is active at a time; applying a new code replaces the
// previous one.
type Resolver struct {
	lookup  Lookup
	session localstore.Store
	key     string
	now     func() time.Time

	mu      sync.Mutex
	applied *AppliedSession
}

func NewResolver(visitorID string, lookup Lookup, session localstore.Store) *Resolver {
	r := &Resolver{
		lookup:  lookup,
		session: session,
		key:     SessionKeyPrefix + visitorID,
		now:     time.Now,
	}
	r.restore()
	return r
}

// restore loads a previously applied session from session storage.
func (r *Resolver) restore() {
	data, ok, err := r.session.Get(r.key)
	if err != nil {
		log.Printf("[Coupon] Failed to restore session: %v", err)
		return
	}
	if !ok {
		return
	}
	var s AppliedSession
	if err := json.Unmarshal(data, &s); err != nil {
		log.Printf("[Coupon] Discarding corrupt session: %v", err)
		return
	}
	r.applied = &s
}

// Validate checks a code against the business rules in order: exists,
// active, validity window, usage limit, minimum purchase. The first failure
// wins and maps to a distinct reason. No state is mutated.
func (r *Resolver) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Coupon, decimal.Decimal, error) {
	c, err := r.lookup.CouponByCode(ctx, code)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if c == nil {
		return nil, decimal.Zero, ErrNotFound
	}
	if !c.IsActive {
		return nil, decimal.Zero, ErrInactive
	}

	now := r.now()
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return nil, decimal.Zero, ErrNotYetValid
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return nil, decimal.Zero, ErrExpired
	}
	if c.MaxUses != nil && c.UsesCount >= *c.MaxUses {
		return nil, decimal.Zero, ErrUsageLimitReached
	}
	if c.MinPurchase != nil && subtotal.LessThan(*c.MinPurchase) {
		return nil, decimal.Zero, ErrMinPurchaseNotMet
	}

	return c, CalculateDiscount(c, subtotal), nil
}

// Apply validates the code and stores the resulting session, replacing any
// previously applied coupon.
func (r *Resolver) Apply(ctx context.Context, code string, subtotal decimal.Decimal) (*AppliedSession, error) {
	c, discount, err := r.Validate(ctx, code, subtotal)
	if err != nil {
		return nil, err
	}

	s := &AppliedSession{
		Coupon:    *c,
		Discount:  discount,
		AppliedAt: r.now(),
	}

	r.mu.Lock()
	r.applied = s
	r.mu.Unlock()

	if err := r.persist(s); err != nil {
		// Session storage failing does not unapply the coupon; the
		// in-memory session keeps working for this visit.
		return s, fmt.Errorf("coupon applied but session not persisted: %w", err)
	}
	return s, nil
}

// Applied returns the current session with the discount recomputed against
// the given subtotal. The cart can change after a coupon is applied, so the
// discount is a function of the live subtotal, never a cached amount.
func (r *Resolver) Applied(currentSubtotal decimal.Decimal) *AppliedSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applied == nil {
		return nil
	}
	return &AppliedSession{
		Coupon:    r.applied.Coupon,
		Discount:  CalculateDiscount(&r.applied.Coupon, currentSubtotal),
		AppliedAt: r.applied.AppliedAt,
	}
}

// AppliedCouponID returns the id of the applied coupon, if any. Checkout
// uses it for the post-order usage increment.
func (r *Resolver) AppliedCouponID() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applied == nil {
		return "", false
	}
	return r.applied.Coupon.ID, true
}

// Remove clears the applied session.
func (r *Resolver) Remove() {
	r.mu.Lock()
	r.applied = nil
	r.mu.Unlock()

	if err := r.session.Delete(r.key); err != nil {
		log.Printf("[Coupon] Failed to clear session: %v", err)
	}
}

func (r *Resolver) persist(s *AppliedSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.session.Set(r.key, data)
}
