package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StorageKeyPrefix namespaces cart documents in durable local storage.
const StorageKeyPrefix = "cart:"

// TaxRate is the flat VAT-equivalent rate applied to every order.
var TaxRate = decimal.NewFromFloat(0.14)

// ExpressShippingFee is the flat surcharge for express delivery.
var ExpressShippingFee = decimal.NewFromInt(50)

// ShippingType selects the delivery option used for the shipping fee.
type ShippingType string

const (
	ShippingStandard ShippingType = "standard"
	ShippingExpress  ShippingType = "express"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product id is required")
	// ErrInsufficientStock matches any InsufficientStockError via errors.Is.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStorageUnavailable wraps persistence failures. The in-memory cart
	// keeps the mutation; only the durable copy is stale.
	ErrStorageUnavailable = errors.New("cart storage unavailable")
)

// InsufficientStockError reports how many units were actually purchasable
// when a requested quantity could not be satisfied.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Product is the snapshot of catalog data a line is created from.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Brand string          `json:"brand"`
	Image string          `json:"image,omitempty"`
}

// Line is one product entry in a cart. A cart holds at most one line per
// product id; repeated adds merge into the existing line's quantity.
type Line struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Brand     string          `json:"brand"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

// Subtotal is the line's price contribution.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals is the price breakdown for a cart before any coupon discount.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// Shortage reports one cart line whose requested quantity exceeds the stock
// currently purchasable.
type Shortage struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// ShippingFee returns the fee for a shipping type. Unknown types price as
// standard.
func ShippingFee(t ShippingType) decimal.Decimal {
	if t == ShippingExpress {
		return ExpressShippingFee
	}
	return decimal.Zero
}
