package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/example/autoparts-storefront/internal/domain/coupon"
	"github.com/example/autoparts-storefront/internal/domain/order"
	"github.com/example/autoparts-storefront/internal/infrastructure/backend"
)

// MockBackend is an in-memory implementation of backend.Client for testing.
// It records mutating calls and lets tests inject failures per operation.
type MockBackend struct {
	mu       sync.Mutex
	Products map[string]backend.Product
	Coupons  map[string]coupon.Coupon // keyed by lowercased code
	Orders   map[string]*order.Order
	Lines    map[string][]order.Line // orderID -> lines

	// Recorded calls
	DecrementCalls []DecrementCall
	IncrementCalls []string
	DeletedOrders  []string

	// Injectable failures
	StockErr      error
	HeaderErr     error
	LinesErr      error
	DeleteErr     error
	DecrementErr  error
	IncrementErr  error
	CouponErr     error
	NextOrderID   string
}

// DecrementCall records parameters passed to DecrementStock.
type DecrementCall struct {
	ProductID string
	Quantity  int
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		Products: make(map[string]backend.Product),
		Coupons:  make(map[string]coupon.Coupon),
		Orders:   make(map[string]*order.Order),
		Lines:    make(map[string][]order.Line),
	}
}

// SetProduct stores a product for lookup and stock checks.
func (m *MockBackend) SetProduct(p backend.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Products[p.ID] = p
}

// SetCoupon stores a coupon for code lookup.
func (m *MockBackend) SetCoupon(c coupon.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Coupons[strings.ToLower(c.Code)] = c
}

func (m *MockBackend) AvailableStock(ctx context.Context, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StockErr != nil {
		return 0, m.StockErr
	}
	p, ok := m.Products[productID]
	if !ok {
		return 0, backend.ErrProductNotFound
	}
	return p.Available(), nil
}

func (m *MockBackend) ProductByID(ctx context.Context, productID string) (*backend.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Products[productID]
	if !ok {
		return nil, backend.ErrProductNotFound
	}
	return &p, nil
}

func (m *MockBackend) ListProducts(ctx context.Context) ([]backend.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []backend.Product
	for _, p := range m.Products {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockBackend) CouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CouponErr != nil {
		return nil, m.CouponErr
	}
	c, ok := m.Coupons[strings.ToLower(code)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MockBackend) IncrementCouponUsage(ctx context.Context, couponID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IncrementErr != nil {
		return m.IncrementErr
	}
	m.IncrementCalls = append(m.IncrementCalls, couponID)
	for key, c := range m.Coupons {
		if c.ID == couponID {
			c.UsesCount++
			m.Coupons[key] = c
		}
	}
	return nil
}

func (m *MockBackend) CreateOrderHeader(ctx context.Context, o *order.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HeaderErr != nil {
		return "", m.HeaderErr
	}
	id := o.ID
	if m.NextOrderID != "" {
		id = m.NextOrderID
	}
	stored := *o
	stored.ID = id
	m.Orders[id] = &stored
	return id, nil
}

func (m *MockBackend) CreateOrderLines(ctx context.Context, lines []order.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LinesErr != nil {
		return m.LinesErr
	}
	for _, l := range lines {
		m.Lines[l.OrderID] = append(m.Lines[l.OrderID], l)
	}
	return nil
}

func (m *MockBackend) DeleteOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.Orders[orderID]; !ok {
		return backend.ErrOrderNotFound
	}
	delete(m.Orders, orderID)
	delete(m.Lines, orderID)
	m.DeletedOrders = append(m.DeletedOrders, orderID)
	return nil
}

func (m *MockBackend) DecrementStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DecrementCalls = append(m.DecrementCalls, DecrementCall{ProductID: productID, Quantity: quantity})
	if m.DecrementErr != nil {
		return m.DecrementErr
	}
	p, ok := m.Products[productID]
	if !ok {
		return backend.ErrProductNotFound
	}
	p.Stock -= quantity
	if p.Stock < 0 {
		p.Stock = 0
	}
	m.Products[productID] = p
	return nil
}
