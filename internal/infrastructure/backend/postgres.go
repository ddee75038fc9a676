package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/autoparts-storefront/internal/domain/coupon"
	"github.com/example/autoparts-storefront/internal/domain/order"
	"github.com/shopspring/decimal"

	_ "github.com/lib/pq"
)

// Postgres implements Client over the hosted backend's PostgreSQL tables
// (products, coupons, orders, order_items).
type Postgres struct {
	db *sql.DB
}

// ConnectPostgres establishes a pooled connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) AvailableStock(ctx context.Context, productID string) (int, error) {
	var stock, reserved int
	err := p.db.QueryRowContext(ctx,
		`SELECT stock, reserved FROM products WHERE id = $1`, productID,
	).Scan(&stock, &reserved)
	if err == sql.ErrNoRows {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query stock: %w", err)
	}

	available := stock - reserved
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (p *Postgres) ProductByID(ctx context.Context, productID string) (*Product, error) {
	var prod Product
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, brand, COALESCE(image, ''), price, stock, reserved
		 FROM products WHERE id = $1`, productID,
	).Scan(&prod.ID, &prod.Name, &prod.Brand, &prod.Image, &prod.Price, &prod.Stock, &prod.Reserved)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return &prod, nil
}

func (p *Postgres) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, brand, COALESCE(image, ''), price, stock, reserved
		 FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var prod Product
		if err := rows.Scan(&prod.ID, &prod.Name, &prod.Brand, &prod.Image, &prod.Price, &prod.Stock, &prod.Reserved); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, prod)
	}
	return products, rows.Err()
}

func (p *Postgres) CouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	var minPurchase, maxDiscount decimal.NullDecimal
	var validFrom, validUntil sql.NullTime
	var maxUses sql.NullInt64

	err := p.db.QueryRowContext(ctx,
		`SELECT id, code, discount_type, discount_value, min_purchase, max_discount,
		        valid_from, valid_until, max_uses, uses_count, is_active
		 FROM coupons WHERE LOWER(code) = LOWER($1)`, code,
	).Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &minPurchase, &maxDiscount,
		&validFrom, &validUntil, &maxUses, &c.UsesCount, &c.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}

	if minPurchase.Valid {
		c.MinPurchase = &minPurchase.Decimal
	}
	if maxDiscount.Valid {
		c.MaxDiscount = &maxDiscount.Decimal
	}
	if validFrom.Valid {
		c.ValidFrom = &validFrom.Time
	}
	if validUntil.Valid {
		c.ValidUntil = &validUntil.Time
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		c.MaxUses = &n
	}
	return &c, nil
}

func (p *Postgres) IncrementCouponUsage(ctx context.Context, couponID string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE coupons SET uses_count = uses_count + 1 WHERE id = $1`, couponID)
	if err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	return nil
}

func (p *Postgres) CreateOrderHeader(ctx context.Context, o *order.Order) (string, error) {
	var id string
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO orders (id, user_id, status, subtotal, discount, tax, shipping, total,
		                     coupon_code, ship_name, ship_phone, ship_street, ship_city, ship_notes,
		                     payment_method, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id`,
		o.ID, o.UserID, o.Status, o.Subtotal, o.Discount, o.Tax, o.Shipping, o.Total,
		o.CouponCode, o.ShippingAddress.Name, o.ShippingAddress.Phone, o.ShippingAddress.Street,
		o.ShippingAddress.City, o.ShippingAddress.Notes, o.PaymentMethod, o.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert order header: %w", err)
	}
	return id, nil
}

func (p *Postgres) CreateOrderLines(ctx context.Context, lines []order.Line) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, l := range lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, title, unit_price, quantity, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			l.OrderID, l.ProductID, l.Title, l.UnitPrice, l.Quantity, l.Subtotal,
		); err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) DeleteOrder(ctx context.Context, orderID string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// DecrementStock reduces on-hand stock by quantity, floored at zero. The
// read and the write are separate statements: two concurrent orders can
// read the same stock value and lose an update. Swap this method for an
// atomic `UPDATE ... WHERE stock >= quantity` to harden it.
func (p *Postgres) DecrementStock(ctx context.Context, productID string, quantity int) error {
	var stock int
	err := p.db.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE id = $1`, productID,
	).Scan(&stock)
	if err == sql.ErrNoRows {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read stock: %w", err)
	}

	next := stock - quantity
	if next < 0 {
		next = 0
	}
	if _, err := p.db.ExecContext(ctx,
		`UPDATE products SET stock = $1 WHERE id = $2`, next, productID,
	); err != nil {
		return fmt.Errorf("failed to write stock: %w", err)
	}
	return nil
}
