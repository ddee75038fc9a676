package pricing

import (
	"github.com/example/autoparts-storefront/internal/domain/cart"
	"github.com/example/autoparts-storefront/internal/domain/coupon"
	"github.com/shopspring/decimal"
)

// Quote is the full price breakdown shown at checkout. When a coupon is
// applied, tax is charged on the discounted subtotal.
type Quote struct {
	Subtotal   decimal.Decimal        `json:"subtotal"`
	Discount   decimal.Decimal        `json:"discount"`
	Tax        decimal.Decimal        `json:"tax"`
	Shipping   decimal.Decimal        `json:"shipping"`
	Total      decimal.Decimal        `json:"total"`
	ItemCount  int                    `json:"item_count"`
	CouponCode string                 `json:"coupon_code,omitempty"`
	Applied    *coupon.AppliedSession `json:"-"`
}

// Engine composes cart totals with the applied coupon session. Stateless;
// every call reads the live cart and recomputes the discount, so a cart
// change after a coupon was applied is reflected immediately.
type Engine struct {
	cart    *cart.Store
	coupons *coupon.Resolver
}

func NewEngine(cartStore *cart.Store, coupons *coupon.Resolver) *Engine {
	return &Engine{cart: cartStore, coupons: coupons}
}

// Quote prices the cart for a shipping type. The discount clamp in the
// coupon package guarantees the total never goes negative.
func (e *Engine) Quote(shipping cart.ShippingType) Quote {
	base := e.cart.Totals(shipping)

	applied := e.coupons.Applied(base.Subtotal)
	if applied == nil {
		return Quote{
			Subtotal:  base.Subtotal,
			Discount:  decimal.Zero,
			Tax:       base.Tax,
			Shipping:  base.Shipping,
			Total:     base.Total,
			ItemCount: base.ItemCount,
		}
	}

	discounted := base.Subtotal.Sub(applied.Discount)
	tax := discounted.Mul(cart.TaxRate).Round(2)
	return Quote{
		Subtotal:   base.Subtotal,
		Discount:   applied.Discount,
		Tax:        tax,
		Shipping:   base.Shipping,
		Total:      discounted.Add(tax).Add(base.Shipping),
		ItemCount:  base.ItemCount,
		CouponCode: applied.Coupon.Code,
		Applied:    applied,
	}
}
