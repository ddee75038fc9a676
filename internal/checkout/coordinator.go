package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/autoparts-storefront/internal/domain/cart"
	"github.com/example/autoparts-storefront/internal/domain/order"
	"github.com/example/autoparts-storefront/internal/domain/pricing"
	"github.com/example/autoparts-storefront/internal/infrastructure/backend"
	"github.com/google/uuid"
)

var (
	// ErrAuthRequired means the visitor has no identity; not retryable
	// without signing in.
	ErrAuthRequired = errors.New("authentication required")
	ErrEmptyCart    = errors.New("cart is empty")
	// ErrOrderCreationFailed covers header/line persistence failures after
	// the compensating cleanup ran; resubmitting is safe.
	ErrOrderCreationFailed = errors.New("order creation failed")
)

// StockShortageError blocks checkout when any cart line exceeds purchasable
// stock. The caller should re-render the cart from Shortages.
type StockShortageError struct {
	Shortages []cart.Shortage
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for %d cart line(s)", len(e.Shortages))
}

func (e *StockShortageError) Is(target error) bool { return target == cart.ErrInsufficientStock }

// Request carries what the buyer supplies at checkout.
type Request struct {
	ShippingAddress order.Address      `json:"shipping_address"`
	PaymentMethod   order.PaymentMethod `json:"payment_method"`
	ShippingType    cart.ShippingType  `json:"shipping_type"`
}

// Coordinator runs the checkout transaction against a shared, mutable stock
// resource with no distributed transaction available. The ordering is
// deliberate: validate, persist header, persist lines (rolling back the
// header if they fail), then best-effort stock deduction that never rolls
// the order back, then cart/coupon cleanup.
type Coordinator struct {
	cart    *cart.Store
	pricing *pricing.Engine
	backend backend.Client
}

func NewCoordinator(cartStore *cart.Store, engine *pricing.Engine, client backend.Client) *Coordinator {
	return &Coordinator{cart: cartStore, pricing: engine, backend: client}
}

// CouponSession is the minimal view of the applied-coupon state the
// coordinator needs for cleanup after a successful order.
type CouponSession interface {
	AppliedCouponID() (string, bool)
	Remove()
}

// Submit places the order. Failures before the order lines are durable
// leave the cart and coupon session exactly as they were.
func (c *Coordinator) Submit(ctx context.Context, userID string, req Request, session CouponSession) (*order.Order, error) {
	// Validating
	if userID == "" {
		return nil, ErrAuthRequired
	}
	lines := c.cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	shortages, err := c.cart.ValidateAgainstStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock validation failed: %w", err)
	}
	if len(shortages) > 0 {
		return nil, &StockShortageError{Shortages: shortages}
	}

	// Submitting
	quote := c.pricing.Quote(req.ShippingType)
	o := &order.Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Status:          order.StatusPending,
		Subtotal:        quote.Subtotal,
		Discount:        quote.Discount,
		Tax:             quote.Tax,
		Shipping:        quote.Shipping,
		Total:           quote.Total,
		CouponCode:      quote.CouponCode,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CreatedAt:       time.Now(),
	}

	orderID, err := c.backend.CreateOrderHeader(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	o.ID = orderID

	// ItemsPersisting: snapshot name/price/quantity so the order stays
	// stable when live product data changes later.
	orderLines := make([]order.Line, 0, len(lines))
	for _, l := range lines {
		orderLines = append(orderLines, order.Line{
			OrderID:   orderID,
			ProductID: l.ProductID,
			Title:     l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal(),
		})
	}
	if err := c.backend.CreateOrderLines(ctx, orderLines); err != nil {
		// Compensating action: an order header with no lines must not
		// survive.
		if delErr := c.backend.DeleteOrder(ctx, orderID); delErr != nil {
			log.Printf("[Checkout] Failed to roll back order header %s: %v", orderID, delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	o.Items = orderLines

	// StockDeducting: the order is durable now, so a failure here stands
	// as a known inconsistency to reconcile out-of-band, not a rollback.
	for _, l := range orderLines {
		if err := c.backend.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
			log.Printf("[Checkout] Stock deduction inconsistent for product %s (order %s): %v",
				l.ProductID, orderID, err)
		}
	}

	// Cleared
	if err := c.cart.Clear(ctx); err != nil {
		log.Printf("[Checkout] Failed to clear cart after order %s: %v", orderID, err)
	}
	if session != nil {
		if couponID, ok := session.AppliedCouponID(); ok {
			// Fire-and-forget: a crash between order insert and this
			// increment leaves uses_count under-counted.
			if err := c.backend.IncrementCouponUsage(ctx, couponID); err != nil {
				log.Printf("[Checkout] Failed to increment coupon usage %s: %v", couponID, err)
			}
			session.Remove()
		}
	}

	return o, nil
}
