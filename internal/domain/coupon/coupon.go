package coupon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary amount.
	DiscountFixed DiscountType = "fixed"
)

// ErrInvalidCoupon is the umbrella error every validation failure matches
// via errors.Is, so callers can branch on "coupon rejected" without
// enumerating reasons.
var ErrInvalidCoupon = errors.New("invalid coupon")

var (
	ErrNotFound          = reason("coupon code not found")
	ErrInactive          = reason("coupon is not active")
	ErrNotYetValid       = reason("coupon is not yet valid")
	ErrExpired           = reason("coupon has expired")
	ErrUsageLimitReached = reason("coupon usage limit reached")
	ErrMinPurchaseNotMet = reason("minimum purchase amount not met")
)

// reasonError is a validation failure with a distinct user-facing reason.
type reasonError struct{ msg string }

func reason(msg string) error { return &reasonError{msg: msg} }

func (e *reasonError) Error() string { return e.msg }

func (e *reasonError) Is(target error) bool { return target == ErrInvalidCoupon }

// Coupon is a discount code as stored by the remote backend. The storefront
// only reads coupons; the single write it requests is a usage increment
// after a successful order.
type Coupon struct {
	ID            string           `json:"id"`
	Code          string           `json:"code"`
	DiscountType  DiscountType     `json:"discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	MinPurchase   *decimal.Decimal `json:"min_purchase,omitempty"`
	MaxDiscount   *decimal.Decimal `json:"max_discount,omitempty"`
	ValidFrom     *time.Time       `json:"valid_from,omitempty"`
	ValidUntil    *time.Time       `json:"valid_until,omitempty"`
	MaxUses       *int             `json:"max_uses,omitempty"`
	UsesCount     int              `json:"uses_count"`
	IsActive      bool             `json:"is_active"`
}

// CalculateDiscount computes the discount a coupon grants on a subtotal.
// The MaxDiscount cap applies before the subtotal clamp, so the result is
// never more than the order is worth. Rounded half-up to two decimals.
func CalculateDiscount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
		discount = *c.MaxDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}
