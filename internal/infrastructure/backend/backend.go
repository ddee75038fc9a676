package backend

import (
	"context"
	"errors"

	"github.com/example/autoparts-storefront/internal/domain/coupon"
	"github.com/example/autoparts-storefront/internal/domain/order"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	// ErrServiceUnavailable is returned by every operation when the backend
	// client failed to initialize, instead of crashing the storefront.
	ErrServiceUnavailable = errors.New("backend service unavailable")
)

// Product is a catalog row as the hosted backend stores it. Stock is the
// on-hand count; Reserved is held by pending orders. Purchasable stock is
// the difference.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Brand    string          `json:"brand"`
	Image    string          `json:"image,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Reserved int             `json:"reserved"`
}

// Available is the purchasable unit count, floored at zero.
func (p *Product) Available() int {
	available := p.Stock - p.Reserved
	if available < 0 {
		return 0
	}
	return available
}

// Client is the contract the hosted backend fulfils. Everything the
// storefront knows about products, coupons and orders flows through it.
type Client interface {
	// AvailableStock answers how many units of a product are currently
	// purchasable. Satisfies cart.StockOracle.
	AvailableStock(ctx context.Context, productID string) (int, error)

	ProductByID(ctx context.Context, productID string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	// CouponByCode looks a coupon up case-insensitively; (nil, nil) when
	// the code does not exist. Satisfies coupon.Lookup.
	CouponByCode(ctx context.Context, code string) (*coupon.Coupon, error)
	IncrementCouponUsage(ctx context.Context, couponID string) error

	// CreateOrderHeader persists the header row and returns its id.
	CreateOrderHeader(ctx context.Context, o *order.Order) (string, error)
	CreateOrderLines(ctx context.Context, lines []order.Line) error
	// DeleteOrder removes a header, used as the compensating action when
	// line persistence fails.
	DeleteOrder(ctx context.Context, orderID string) error

	// DecrementStock reduces a product's on-hand stock by quantity,
	// floored at zero. Read-then-write with no atomicity guarantee: two
	// concurrent orders can lose an update. Kept that way on purpose; a
	// hardened deployment swaps this one method for a conditional
	// decrement.
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

// Unavailable is a Client whose every operation fails with
// ErrServiceUnavailable. Used when the real client cannot be constructed,
// so dependents degrade consistently instead of panicking.
type Unavailable struct{}

func (Unavailable) AvailableStock(context.Context, string) (int, error) {
	return 0, ErrServiceUnavailable
}
func (Unavailable) ProductByID(context.Context, string) (*Product, error) {
	return nil, ErrServiceUnavailable
}
func (Unavailable) ListProducts(context.Context) ([]Product, error) {
	return nil, ErrServiceUnavailable
}
func (Unavailable) CouponByCode(context.Context, string) (*coupon.Coupon, error) {
	return nil, ErrServiceUnavailable
}
func (Unavailable) IncrementCouponUsage(context.Context, string) error {
	return ErrServiceUnavailable
}
func (Unavailable) CreateOrderHeader(context.Context, *order.Order) (string, error) {
	return "", ErrServiceUnavailable
}
func (Unavailable) CreateOrderLines(context.Context, []order.Line) error {
	return ErrServiceUnavailable
}
func (Unavailable) DeleteOrder(context.Context, string) error {
	return ErrServiceUnavailable
}
func (Unavailable) DecrementStock(context.Context, string, int) error {
	return ErrServiceUnavailable
}
