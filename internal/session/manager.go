// Package session ties one visitor's cart, coupon and pricing state into a
// single service object. The original storefront kept these as global
// singletons; here they are constructed once per visitor with injected
// storage and backend dependencies.
package session

import (
	"sync"

	"github.com/example/autoparts-storefront/internal/checkout"
	"github.com/example/autoparts-storefront/internal/domain/cart"
	"github.com/example/autoparts-storefront/internal/domain/coupon"
	"github.com/example/autoparts-storefront/internal/domain/pricing"
	"github.com/example/autoparts-storefront/internal/infrastructure/backend"
	"github.com/example/autoparts-storefront/internal/infrastructure/localstore"
)

// Session bundles the per-visitor services.
type Session struct {
	VisitorID string
	Cart      *cart.Store
	Coupons   *coupon.Resolver
	Pricing   *pricing.Engine
	Checkout  *checkout.Coordinator
}

// Manager lazily builds and caches sessions per visitor id. Cart state
// lives in durable storage, coupon sessions in session-scoped storage, so
// an evicted or restarted Manager reconstructs identical sessions.
type Manager struct {
	backend      backend.Client
	cartStorage  localstore.Store
	sessStorage  localstore.Store
	onCartChange func(cart.ChangedEvent)

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(client backend.Client, cartStorage, sessionStorage localstore.Store) *Manager {
	return &Manager{
		backend:     client,
		cartStorage: cartStorage,
		sessStorage: sessionStorage,
		sessions:    make(map[string]*Session),
	}
}

// OnCartChange registers an observer attached to every session's cart
// (e.g. the event-stream publisher). Must be called before the first Get.
func (m *Manager) OnCartChange(fn func(cart.ChangedEvent)) {
	m.onCartChange = fn
}

// Get returns the session for a visitor, building it on first use.
func (m *Manager) Get(visitorID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[visitorID]; ok {
		return s
	}

	cartStore := cart.NewStore(visitorID, m.cartStorage, m.backend)
	if m.onCartChange != nil {
		cartStore.Subscribe(m.onCartChange)
	}
	resolver := coupon.NewResolver(visitorID, m.backend, m.sessStorage)
	engine := pricing.NewEngine(cartStore, resolver)

	s := &Session{
		VisitorID: visitorID,
		Cart:      cartStore,
		Coupons:   resolver,
		Pricing:   engine,
		Checkout:  checkout.NewCoordinator(cartStore, engine, m.backend),
	}
	m.sessions[visitorID] = s
	return s
}
